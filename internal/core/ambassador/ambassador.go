package ambassador

import "time"

// Ambassador is a featured community member shown on the landing page.
type Ambassador struct {
	ID        int               `json:"id"`
	Name      string            `json:"name"`
	AvatarURL string            `json:"avatar_url"`
	Bio       string            `json:"bio"`
	Socials   map[string]string `json:"socials"`
	SortOrder int               `json:"sort_order"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"-"`
}

package banner

import "time"

// Banner is a homepage promotion with an optional display window.
type Banner struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	ImageURL  string     `json:"image_url"`
	LinkURL   string     `json:"link_url"`
	SortOrder int        `json:"sort_order"`
	Active    bool       `json:"active"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"-"`
}

// Visible reports whether the banner should show at the given instant.
func (banner *Banner) Visible(now time.Time) bool {
	if !banner.Active {
		return false
	}
	if banner.StartsAt != nil && now.Before(*banner.StartsAt) {
		return false
	}
	if banner.EndsAt != nil && now.After(*banner.EndsAt) {
		return false
	}
	return true
}

package banner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVisible(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name   string
		banner Banner
		want   bool
	}{
		{"inactive", Banner{Active: false}, false},
		{"no window", Banner{Active: true}, true},
		{"inside window", Banner{Active: true, StartsAt: &before, EndsAt: &after}, true},
		{"not started", Banner{Active: true, StartsAt: &after}, false},
		{"already ended", Banner{Active: true, EndsAt: &before}, false},
		{"open ended", Banner{Active: true, StartsAt: &before}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, test.banner.Visible(now))
		})
	}
}

package types

import "time"

// Publication records one resource path turned into a published URL.
type Publication struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	Backend     string    `json:"backend"`
	Source      string    `json:"source,omitempty"` // document the path was found in
	PublishedAt time.Time `json:"published_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the published URL is past its expiry at t.
// Publications without an expiry never expire.
func (p *Publication) Expired(t time.Time) bool {
	return !p.ExpiresAt.IsZero() && !t.Before(p.ExpiresAt)
}

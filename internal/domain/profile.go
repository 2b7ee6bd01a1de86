package domain

import "time"

// Profile is the cached representation of an external identity, keyed by the
// slug extracted from its URL. Profiles are created on first reference and never deleted.
type Profile struct {
	LastUpdated time.Time `json:"lu"`
	Image       *string   `json:"i,omitempty"`
	AvatarCode  *string   `json:"ac,omitempty"`
	ID          string    `json:"id"`
	Name        string    `json:"n"`
	URL         string    `json:"u"`
}

// Resolved reports whether the profile carries enough data to display.
// Profiles with neither a name nor a URL are treated as not ready.
func (p *Profile) Resolved() bool {
	return p != nil && (p.Name != "" || p.URL != "")
}

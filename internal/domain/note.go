package domain

import "time"

// Note is free text addressed to exactly one profile, owned by exactly one user.
type Note struct {
	LastUpdated time.Time `json:"lu"`
	ID          string    `json:"id"`
	Content     string    `json:"ct"`
	OwnerID     string    `json:"lc"`
	ProfileID   string    `json:"p"`
}

// MessageTemplate is a reusable message body (a "shortcut" in the legacy schema).
type MessageTemplate struct {
	LastUpdated time.Time `json:"lu"`
	ID          string    `json:"id"`
	Title       string    `json:"ti"`
	Body        string    `json:"b"`
	OwnerID     string    `json:"lc"`
}

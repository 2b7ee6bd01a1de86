// Package search maintains a full-text index of profiles for label member lookup.
package search

import (
	"time"

	"github.com/listenupapp/labelsync/internal/domain"
)

// ProfileDocument is the indexed form of a profile.
type ProfileDocument struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewProfileDocument builds the indexed form of p.
func NewProfileDocument(p *domain.Profile) *ProfileDocument {
	doc := &ProfileDocument{
		ID:   p.ID,
		Name: p.Name,
		URL:  p.URL,
	}
	if !p.LastUpdated.IsZero() {
		doc.UpdatedAt = p.LastUpdated.UnixMilli()
	}
	return doc
}

// ToMap converts the document to the field names used by the mapping.
func (d *ProfileDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":   d.ID,
		"slug": d.ID,
		"name": d.Name,
		"url":  d.URL,
	}
	if d.UpdatedAt > 0 {
		m["updated_at"] = float64(d.UpdatedAt)
	}
	return m
}

// UpdatedTime returns UpdatedAt as a time.
func (d *ProfileDocument) UpdatedTime() time.Time {
	return time.UnixMilli(d.UpdatedAt)
}

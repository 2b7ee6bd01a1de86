// Package service implements the label, note, template, profile and sharing
// operations on top of the document store.
package service

import (
	"slices"
	"time"

	"github.com/listenupapp/labelsync/internal/validation"
)

// validate is the shared request validator.
var validate = validation.New()

// clock returns the current time. Services take it as a field so tests can pin it.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// dedupe returns ids without duplicates or empty strings, keeping first-seen order.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

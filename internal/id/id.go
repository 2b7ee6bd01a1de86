// Package id mints document identifiers.
package id

import (
	"fmt"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// suffixAlphabet keeps timestamped ids lowercase and URL-safe.
const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const suffixLength = 9

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "run-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Timestamped creates a document id of the form prefix_<unix-millis>_<random>,
// e.g. "label_1760659200000_k3x9q0m2a". Labels, notes and templates use this shape.
func Timestamped(prefix string, now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(suffixAlphabet, suffixLength)
	if err != nil {
		return "", fmt.Errorf("generate id suffix: %w", err)
	}
	return prefix + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix, nil
}

// Label mints a new label id.
func Label(now time.Time) (string, error) { return Timestamped("label", now) }

// Note mints a new note id.
func Note(now time.Time) (string, error) { return Timestamped("note", now) }

// Template mints a new message template id.
func Template(now time.Time) (string, error) { return Timestamped("template", now) }

// Package util provides text normalization shared by the services and the migration.
package util

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ErrNoProfileID is returned when a URL carries no usable /in/<slug> segment.
var ErrNoProfileID = errors.New("url has no profile identifier")

var (
	// Anything outside the identifier-safe set.
	unsafeIDRe = regexp.MustCompile(`[^a-z0-9_-]+`)
	// Runs of dashes left behind by stripping.
	multipleDashRe = regexp.MustCompile(`-{2,}`)
)

var upper = cases.Upper(language.Und)

// ProfileIDFromURL extracts the profile identity from a profile URL by taking
// the path segment after "/in/" and sanitizing it.
//
//	"https://www.linkedin.com/in/jdoe/"         → "jdoe"
//	"https://x/in/J%C3%B6rg-M%C3%BCller?trk=1"  → "jorg-muller"
//	"https://x/company/acme"                    → ErrNoProfileID
func ProfileIDFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	i := strings.Index(raw, "/in/")
	if i < 0 {
		return "", ErrNoProfileID
	}

	segment := raw[i+len("/in/"):]
	if j := strings.IndexAny(segment, "/?#"); j >= 0 {
		segment = segment[:j]
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}

	id := SanitizeID(segment)
	if id == "" {
		return "", ErrNoProfileID
	}
	return id, nil
}

// SanitizeID reduces s to lowercase ASCII letters, digits, '-' and '_'.
// Accented characters are folded to their base letter.
func SanitizeID(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeIDRe.ReplaceAllString(s, "-")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeLabelName trims and upper-cases a label name, the convention every
// client follows when displaying labels.
func NormalizeLabelName(name string) string {
	return upper.String(strings.Join(strings.Fields(name), " "))
}

// NormalizeEmail lowercases and trims an email for case-insensitive lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

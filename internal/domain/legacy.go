package domain

// Legacy per-user documents read by the migration. Each lives in its own
// collection (labels, settings, notes, shortcuts, sheets) keyed by user id.

// LegacyProfile is a profile snapshot embedded in legacy labels and notes.
type LegacyProfile struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// LegacyLabel is one named label in the legacy labels document.
// Codes maps an opaque client key to the member's profile snapshot.
type LegacyLabel struct {
	Codes map[string]LegacyProfile `json:"codes"`
	Color string                   `json:"color"`
}

// LegacyLabels is the legacy labels document: label name to label.
type LegacyLabels struct {
	Labels map[string]LegacyLabel `json:"labels"`
}

// LegacyNote is a note keyed in the legacy document by the profile's client key.
type LegacyNote struct {
	Text string `json:"text"`
	LegacyProfile
}

// LegacyNotes is the legacy notes document.
type LegacyNotes struct {
	Notes map[string]LegacyNote `json:"notes"`
}

// LegacyShortcut is a legacy message template.
type LegacyShortcut struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// LegacyShortcuts is the legacy shortcuts document.
type LegacyShortcuts struct {
	Shortcuts []LegacyShortcut `json:"shortcuts"`
}

// LegacySettings is the legacy settings document.
type LegacySettings struct {
	Theme       string `json:"theme"`
	Locale      string `json:"locale"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

// LegacySheets is the legacy Google Sheets link document.
type LegacySheets struct {
	SheetID string `json:"sheetId"`
}

package domain

import "time"

// Default settings applied to new and migrated users.
const (
	DefaultTheme  = "light"
	DefaultLocale = "en"
	DefaultPlan   = "free"
)

// UserSettings are the client preferences carried on the Access Index.
type UserSettings struct {
	Theme   string `json:"th"`
	Locale  string `json:"lo"`
	SheetID string `json:"sh,omitempty"`
}

// Plan is the user's subscription plan.
type Plan struct {
	ExpiresAt time.Time `json:"ex"`
	Name      string    `json:"nm"`
}

// UserAccess is the per-user Access Index document stored in users_v2.
// It is the only place sharing state lives: label and note documents do not
// point back at their recipients.
type UserAccess struct {
	LastUpdated time.Time    `json:"lu"`
	Plan        Plan         `json:"pl"`
	Settings    UserSettings `json:"s"`
	ID          string       `json:"id"`
	Email       string       `json:"e"`
	DisplayName string       `json:"dn"`
	Data        AccessLists  `json:"d"`
	IsAdmin     bool         `json:"adm,omitempty"`
}

// DefaultUserSettings returns settings with every field defaulted.
func DefaultUserSettings() UserSettings {
	return UserSettings{Theme: DefaultTheme, Locale: DefaultLocale}
}

// DefaultUserPlan returns the free plan expiring one year after now.
func DefaultUserPlan(now time.Time) Plan {
	return Plan{Name: DefaultPlan, ExpiresAt: now.AddDate(1, 0, 0)}
}

// NewUserAccess creates an empty Access Index with default settings and plan.
func NewUserAccess(userID, email, displayName string, now time.Time) *UserAccess {
	return &UserAccess{
		ID:          userID,
		Email:       email,
		DisplayName: displayName,
		Settings:    DefaultUserSettings(),
		Plan:        DefaultUserPlan(now),
		Data: AccessLists{
			Labels:    []AccessReference{},
			Notes:     []AccessReference{},
			Templates: []AccessReference{},
		},
		LastUpdated: now,
	}
}

// Name returns the display name, falling back to the email.
func (u *UserAccess) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// Touch sets LastUpdated.
func (u *UserAccess) Touch(now time.Time) {
	u.LastUpdated = now
}

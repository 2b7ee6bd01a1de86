package domain

import (
	"slices"
	"time"
)

// Label is a named, coloured group of profiles owned by exactly one user.
type Label struct {
	LastUpdated      time.Time `json:"lu"`
	ID               string    `json:"id"`
	Name             string    `json:"n"`
	Color            string    `json:"c"`
	OwnerID          string    `json:"lc"`
	MemberProfileIDs []string  `json:"p"`
}

// HasMember reports whether profileID is in the label.
func (l *Label) HasMember(profileID string) bool {
	return slices.Contains(l.MemberProfileIDs, profileID)
}

// AddMember adds profileID if absent. Reports whether the label changed.
func (l *Label) AddMember(profileID string) bool {
	if l.HasMember(profileID) {
		return false
	}
	l.MemberProfileIDs = append(l.MemberProfileIDs, profileID)
	return true
}

// RemoveMember drops profileID. Reports whether the label changed.
func (l *Label) RemoveMember(profileID string) bool {
	i := slices.Index(l.MemberProfileIDs, profileID)
	if i < 0 {
		return false
	}
	l.MemberProfileIDs = slices.Delete(l.MemberProfileIDs, i, i+1)
	return true
}

// Clone returns a deep copy so read models never alias store data.
func (l *Label) Clone() *Label {
	if l == nil {
		return nil
	}
	c := *l
	c.MemberProfileIDs = slices.Clone(l.MemberProfileIDs)
	return &c
}

package reconcile

import (
	"maps"

	"github.com/listenupapp/labelsync/internal/domain"
)

// SharedLabel is a label received through a share, with the reference that granted it.
type SharedLabel struct {
	Label     *domain.Label          `json:"label"`
	Reference domain.AccessReference `json:"-"`
	Grant     domain.ShareGrant      `json:"grant"`
}

// SharedNote is a note received through a share.
type SharedNote struct {
	Note      *domain.Note           `json:"note"`
	Reference domain.AccessReference `json:"-"`
	Grant     domain.ShareGrant      `json:"grant"`
}

// State is the set of read models derived for one user. A State returned by
// the Reconciler is immutable; maps are rebuilt on every change.
type State struct {
	Err                 error                              `json:"-"`
	OwnedLabels         map[string]*domain.Label           `json:"ownedLabels"`
	ActiveSharedLabels  map[string]SharedLabel             `json:"activeSharedLabels"`
	PendingSharedLabels map[string]SharedLabel             `json:"pendingSharedLabels"`
	Notes               map[string]*domain.Note            `json:"notes"`
	SharedNotes         map[string]SharedNote              `json:"sharedNotes"`
	PendingSharedNotes  map[string]SharedNote              `json:"pendingSharedNotes"`
	Templates           map[string]*domain.MessageTemplate `json:"templates"`
	Profiles            map[string]*domain.Profile         `json:"profiles"`
}

func emptyState() State {
	return State{
		OwnedLabels:         map[string]*domain.Label{},
		ActiveSharedLabels:  map[string]SharedLabel{},
		PendingSharedLabels: map[string]SharedLabel{},
		Notes:               map[string]*domain.Note{},
		SharedNotes:         map[string]SharedNote{},
		PendingSharedNotes:  map[string]SharedNote{},
		Templates:           map[string]*domain.MessageTemplate{},
		Profiles:            map[string]*domain.Profile{},
	}
}

// inputs is the latest observed snapshot of every watched document.
// Missing and not-yet-emitted documents are simply absent.
type inputs struct {
	access    *domain.UserAccess
	labels    map[string]*domain.Label
	notes     map[string]*domain.Note
	templates map[string]*domain.MessageTemplate
	profiles  map[string]*domain.Profile
}

// derive computes the read models from the inputs. It depends only on the
// latest value per document, so replaying emissions in any order that keeps
// per-document order converges on the same State.
func derive(in inputs) State {
	st := emptyState()
	if in.access == nil {
		return st
	}

	for _, ref := range in.access.Data.Labels {
		l, ok := in.labels[ref.ID]
		if !ok {
			continue
		}
		if ref.IsOwned() {
			st.OwnedLabels[ref.ID] = l
			continue
		}
		acceptance, _ := ref.Acceptance()
		entry := SharedLabel{Label: l, Reference: ref, Grant: *ref.Grant}
		switch acceptance {
		case domain.AcceptanceActive:
			st.ActiveSharedLabels[ref.ID] = entry
			delete(st.PendingSharedLabels, ref.ID)
		case domain.AcceptancePending:
			st.PendingSharedLabels[ref.ID] = entry
			delete(st.ActiveSharedLabels, ref.ID)
		case domain.AcceptanceDeclined:
			delete(st.ActiveSharedLabels, ref.ID)
			delete(st.PendingSharedLabels, ref.ID)
		}
	}

	for _, ref := range in.access.Data.Notes {
		n, ok := in.notes[ref.ID]
		if !ok {
			continue
		}
		if ref.IsOwned() {
			st.Notes[ref.ID] = n
			continue
		}
		acceptance, _ := ref.Acceptance()
		entry := SharedNote{Note: n, Reference: ref, Grant: *ref.Grant}
		switch acceptance {
		case domain.AcceptanceActive:
			st.SharedNotes[ref.ID] = entry
			delete(st.PendingSharedNotes, ref.ID)
		case domain.AcceptancePending:
			st.PendingSharedNotes[ref.ID] = entry
			delete(st.SharedNotes, ref.ID)
		case domain.AcceptanceDeclined:
			delete(st.SharedNotes, ref.ID)
			delete(st.PendingSharedNotes, ref.ID)
		}
	}

	for _, ref := range in.access.Data.Templates {
		if t, ok := in.templates[ref.ID]; ok && ref.IsOwned() {
			st.Templates[ref.ID] = t
		}
	}

	for id := range neededProfiles(st) {
		if p, ok := in.profiles[id]; ok {
			st.Profiles[id] = p
		}
	}
	return st
}

// neededProfiles is the union of member ids of every placed label and the
// profile id of every placed note.
func neededProfiles(st State) map[string]struct{} {
	need := make(map[string]struct{})
	addLabel := func(l *domain.Label) {
		for _, pid := range l.MemberProfileIDs {
			if pid != "" {
				need[pid] = struct{}{}
			}
		}
	}
	for _, l := range st.OwnedLabels {
		addLabel(l)
	}
	for _, sl := range st.ActiveSharedLabels {
		addLabel(sl.Label)
	}
	for _, sl := range st.PendingSharedLabels {
		addLabel(sl.Label)
	}
	addNote := func(n *domain.Note) {
		if n.ProfileID != "" {
			need[n.ProfileID] = struct{}{}
		}
	}
	for _, n := range st.Notes {
		addNote(n)
	}
	for _, sn := range st.SharedNotes {
		addNote(sn.Note)
	}
	for _, sn := range st.PendingSharedNotes {
		addNote(sn.Note)
	}
	return need
}

// referencedIDs returns the ids each subscription registry should hold.
// Shared ids are watched whatever their acceptance so flips are seen live.
func referencedIDs(access *domain.UserAccess) (labels, notes, templates map[string]struct{}) {
	labels, notes, templates = map[string]struct{}{}, map[string]struct{}{}, map[string]struct{}{}
	if access == nil {
		return labels, notes, templates
	}
	for _, ref := range access.Data.Labels {
		labels[ref.ID] = struct{}{}
	}
	for _, ref := range access.Data.Notes {
		notes[ref.ID] = struct{}{}
	}
	for _, ref := range access.Data.Templates {
		if ref.IsOwned() {
			templates[ref.ID] = struct{}{}
		}
	}
	return labels, notes, templates
}

// Clone returns a State whose maps can be modified by the caller.
func (s State) Clone() State {
	return State{
		Err:                 s.Err,
		OwnedLabels:         maps.Clone(s.OwnedLabels),
		ActiveSharedLabels:  maps.Clone(s.ActiveSharedLabels),
		PendingSharedLabels: maps.Clone(s.PendingSharedLabels),
		Notes:               maps.Clone(s.Notes),
		SharedNotes:         maps.Clone(s.SharedNotes),
		PendingSharedNotes:  maps.Clone(s.PendingSharedNotes),
		Templates:           maps.Clone(s.Templates),
		Profiles:            maps.Clone(s.Profiles),
	}
}

package reconcile

import (
	"reflect"
	"sort"

	"github.com/listenupapp/labelsync/internal/domain"
)

// ChangeKind classifies a read-model change.
type ChangeKind string

// Change kinds.
const (
	LabelUpserted    ChangeKind = "label.upserted"
	LabelRemoved     ChangeKind = "label.removed"
	NoteUpserted     ChangeKind = "note.upserted"
	NoteRemoved      ChangeKind = "note.removed"
	TemplateUpserted ChangeKind = "template.upserted"
	TemplateRemoved  ChangeKind = "template.removed"
	ProfileUpdated   ChangeKind = "profile.updated"
	ProfileRemoved   ChangeKind = "profile.removed"
	SyncError        ChangeKind = "sync.error"
)

// View names the read model a label or note change applies to.
type View string

// Views.
const (
	ViewOwned   View = "owned"
	ViewActive  View = "active"
	ViewPending View = "pending"
)

// Change is one difference between two consecutive States.
type Change struct {
	Err      error                   `json:"-"`
	Label    *domain.Label           `json:"label,omitempty"`
	Note     *domain.Note            `json:"note,omitempty"`
	Template *domain.MessageTemplate `json:"template,omitempty"`
	Profile  *domain.Profile         `json:"profile,omitempty"`
	Grant    *domain.ShareGrant      `json:"grant,omitempty"`
	Kind     ChangeKind              `json:"kind"`
	View     View                    `json:"view,omitempty"`
	ID       string                  `json:"id"`
	Message  string                  `json:"message,omitempty"`
}

// diff lists the changes from prev to next. Removals come before upserts so a
// pending to active move is seen as leaving one view and entering the other.
func diff(prev, next State) []Change {
	var d differ

	appendMapDiff(&d, prev.OwnedLabels, next.OwnedLabels, func(id string, l *domain.Label, removed bool) Change {
		return labelChange(id, ViewOwned, l, nil, removed)
	})
	appendMapDiff(&d, prev.ActiveSharedLabels, next.ActiveSharedLabels, func(id string, sl SharedLabel, removed bool) Change {
		return labelChange(id, ViewActive, sl.Label, &sl.Grant, removed)
	})
	appendMapDiff(&d, prev.PendingSharedLabels, next.PendingSharedLabels, func(id string, sl SharedLabel, removed bool) Change {
		return labelChange(id, ViewPending, sl.Label, &sl.Grant, removed)
	})
	appendMapDiff(&d, prev.Notes, next.Notes, func(id string, n *domain.Note, removed bool) Change {
		return noteChange(id, ViewOwned, n, nil, removed)
	})
	appendMapDiff(&d, prev.SharedNotes, next.SharedNotes, func(id string, sn SharedNote, removed bool) Change {
		return noteChange(id, ViewActive, sn.Note, &sn.Grant, removed)
	})
	appendMapDiff(&d, prev.PendingSharedNotes, next.PendingSharedNotes, func(id string, sn SharedNote, removed bool) Change {
		return noteChange(id, ViewPending, sn.Note, &sn.Grant, removed)
	})
	appendMapDiff(&d, prev.Templates, next.Templates, func(id string, t *domain.MessageTemplate, removed bool) Change {
		if removed {
			return Change{Kind: TemplateRemoved, ID: id}
		}
		return Change{Kind: TemplateUpserted, ID: id, Template: t}
	})
	appendMapDiff(&d, prev.Profiles, next.Profiles, func(id string, p *domain.Profile, removed bool) Change {
		if removed {
			return Change{Kind: ProfileRemoved, ID: id}
		}
		return Change{Kind: ProfileUpdated, ID: id, Profile: p}
	})

	changes := append(d.removed, d.upserted...)
	if next.Err != nil && (prev.Err == nil || prev.Err.Error() != next.Err.Error()) {
		changes = append(changes, Change{Kind: SyncError, Err: next.Err, Message: next.Err.Error()})
	}
	return changes
}

type differ struct {
	removed  []Change
	upserted []Change
}

func labelChange(id string, view View, l *domain.Label, grant *domain.ShareGrant, removed bool) Change {
	if removed {
		return Change{Kind: LabelRemoved, View: view, ID: id}
	}
	return Change{Kind: LabelUpserted, View: view, ID: id, Label: l, Grant: grant}
}

func noteChange(id string, view View, n *domain.Note, grant *domain.ShareGrant, removed bool) Change {
	if removed {
		return Change{Kind: NoteRemoved, View: view, ID: id}
	}
	return Change{Kind: NoteUpserted, View: view, ID: id, Note: n, Grant: grant}
}

// appendMapDiff records removals and upserts for one map, each in id order.
func appendMapDiff[V any](d *differ, prev, next map[string]V, mk func(id string, v V, removed bool) Change) {
	var removed, upserted []string
	for id := range prev {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	for id, v := range next {
		if old, ok := prev[id]; !ok || !reflect.DeepEqual(old, v) {
			upserted = append(upserted, id)
		}
	}
	sort.Strings(removed)
	sort.Strings(upserted)

	var zero V
	for _, id := range removed {
		d.removed = append(d.removed, mk(id, zero, true))
	}
	for _, id := range upserted {
		d.upserted = append(d.upserted, mk(id, next[id], false))
	}
}

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AccessType tells whether the holder owns the referenced document or received it through a share.
type AccessType string

const (
	// AccessOwned marks a document the holder created.
	AccessOwned AccessType = "owned"
	// AccessShared marks a document another user granted to the holder.
	AccessShared AccessType = "shared"
)

// Acceptance is the recipient's answer to a share.
type Acceptance int

const (
	// AcceptancePending is the state of a fresh share. Wire value: null.
	AcceptancePending Acceptance = iota
	// AcceptanceActive means the recipient accepted. Wire value: true.
	AcceptanceActive
	// AcceptanceDeclined is terminal; readers forget the reference. Wire value: false.
	AcceptanceDeclined
)

func (a Acceptance) String() string {
	switch a {
	case AcceptancePending:
		return "pending"
	case AcceptanceActive:
		return "active"
	case AcceptanceDeclined:
		return "declined"
	default:
		return fmt.Sprintf("acceptance(%d)", int(a))
	}
}

// MarshalText renders the acceptance for logs and API payloads.
func (a Acceptance) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the names written by MarshalText.
func (a *Acceptance) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*a = AcceptancePending
	case "active":
		*a = AcceptanceActive
	case "declined":
		*a = AcceptanceDeclined
	default:
		return fmt.Errorf("unknown acceptance %q", text)
	}
	return nil
}

func (a Acceptance) wire() *bool {
	switch a {
	case AcceptanceActive:
		v := true
		return &v
	case AcceptanceDeclined:
		v := false
		return &v
	default:
		return nil
	}
}

func acceptanceFromWire(v *bool) Acceptance {
	switch {
	case v == nil:
		return AcceptancePending
	case *v:
		return AcceptanceActive
	default:
		return AcceptanceDeclined
	}
}

// PermissionScope limits what a share recipient may do. Only read is granted today.
type PermissionScope string

// ScopeRead lets the recipient see the document.
const ScopeRead PermissionScope = "read"

// ShareGrant is the sharing metadata carried by a shared reference.
type ShareGrant struct {
	SharedAt            time.Time       `json:"sharedAt"`
	Scope               PermissionScope `json:"scope"`
	SharedByUserID      string          `json:"sharedByUserId"`
	SharedByDisplayName string          `json:"sharedByDisplayName"`
	Acceptance          Acceptance      `json:"acceptance"`
}

// AccessReference points at a label, note or template the holder can see.
// Owned references never carry a Grant; shared references always do.
type AccessReference struct {
	Grant *ShareGrant
	ID    string
	Type  AccessType
}

// OwnedReference builds the reference written alongside a newly created document.
func OwnedReference(id string) AccessReference {
	return AccessReference{ID: id, Type: AccessOwned}
}

// SharedReference builds a pending shared reference.
func SharedReference(id, sharedByUserID, sharedByDisplayName string, at time.Time) AccessReference {
	return AccessReference{
		ID:   id,
		Type: AccessShared,
		Grant: &ShareGrant{
			Acceptance:          AcceptancePending,
			Scope:               ScopeRead,
			SharedAt:            at,
			SharedByUserID:      sharedByUserID,
			SharedByDisplayName: sharedByDisplayName,
		},
	}
}

// IsOwned reports whether the holder owns the referenced document.
func (r AccessReference) IsOwned() bool {
	return r.Type == AccessOwned
}

// Acceptance returns the share state. ok is false for owned references.
func (r AccessReference) Acceptance() (a Acceptance, ok bool) {
	if r.Type != AccessShared || r.Grant == nil {
		return 0, false
	}
	return r.Grant.Acceptance, true
}

// Validate checks the owned/shared invariants.
func (r AccessReference) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("access reference: empty id")
	}
	switch r.Type {
	case AccessOwned:
		if r.Grant != nil {
			return fmt.Errorf("access reference %s: owned reference carries share metadata", r.ID)
		}
	case AccessShared:
		if r.Grant == nil {
			return fmt.Errorf("access reference %s: shared reference without share metadata", r.ID)
		}
	default:
		return fmt.Errorf("access reference %s: unknown type %q", r.ID, r.Type)
	}
	return nil
}

// ownedWire and sharedWire are the stored shapes. The acceptance key "a" is
// always present on shared references, with null meaning pending.
type ownedWire struct {
	ID string     `json:"id"`
	T  AccessType `json:"t"`
}

type sharedWire struct {
	SA  *time.Time      `json:"sa,omitempty"`
	A   *bool           `json:"a"`
	ID  string          `json:"id"`
	T   AccessType      `json:"t"`
	PS  PermissionScope `json:"ps,omitempty"`
	SB  string          `json:"sb,omitempty"`
	SBN string          `json:"sbn,omitempty"`
}

// MarshalJSON encodes the reference in the abbreviated stored form.
func (r AccessReference) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Type == AccessOwned {
		return json.Marshal(ownedWire{ID: r.ID, T: r.Type})
	}
	g := r.Grant
	w := sharedWire{
		ID:  r.ID,
		T:   r.Type,
		A:   g.Acceptance.wire(),
		PS:  g.Scope,
		SB:  g.SharedByUserID,
		SBN: g.SharedByDisplayName,
	}
	if !g.SharedAt.IsZero() {
		at := g.SharedAt
		w.SA = &at
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the abbreviated stored form.
func (r *AccessReference) UnmarshalJSON(data []byte) error {
	var w sharedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ref := AccessReference{ID: w.ID, Type: w.T}
	switch w.T {
	case AccessOwned:
	case AccessShared:
		ref.Grant = &ShareGrant{
			Acceptance:          acceptanceFromWire(w.A),
			Scope:               w.PS,
			SharedByUserID:      w.SB,
			SharedByDisplayName: w.SBN,
		}
		if ref.Grant.Scope == "" {
			ref.Grant.Scope = ScopeRead
		}
		if w.SA != nil {
			ref.Grant.SharedAt = *w.SA
		}
	default:
		return fmt.Errorf("access reference %s: unknown type %q", w.ID, w.T)
	}

	*r = ref
	return nil
}

// Kind names the reference list an entry lives in.
type Kind string

const (
	// KindLabel references live under d.l.
	KindLabel Kind = "label"
	// KindNote references live under d.n.
	KindNote Kind = "note"
	// KindTemplate references live under d.m.
	KindTemplate Kind = "template"
)

// AccessLists holds the reference lists of a user's Access Index.
type AccessLists struct {
	Labels    []AccessReference `json:"l"`
	Notes     []AccessReference `json:"n"`
	Templates []AccessReference `json:"m"`
}

// List returns a pointer to the list for kind so callers can rewrite it in place.
func (d *AccessLists) List(kind Kind) *[]AccessReference {
	switch kind {
	case KindLabel:
		return &d.Labels
	case KindNote:
		return &d.Notes
	case KindTemplate:
		return &d.Templates
	default:
		panic(fmt.Sprintf("domain: unknown reference kind %q", kind))
	}
}

// Find returns the reference with id in the kind list.
func (d *AccessLists) Find(kind Kind, id string) (AccessReference, bool) {
	for _, ref := range *d.List(kind) {
		if ref.ID == id {
			return ref, true
		}
	}
	return AccessReference{}, false
}

// Has reports whether id is referenced in any form in the kind list.
func (d *AccessLists) Has(kind Kind, id string) bool {
	_, ok := d.Find(kind, id)
	return ok
}

// Add appends ref unless its id is already present. Reports whether it was added.
func (d *AccessLists) Add(kind Kind, ref AccessReference) bool {
	if d.Has(kind, ref.ID) {
		return false
	}
	list := d.List(kind)
	*list = append(*list, ref)
	return true
}

// Remove drops every reference with id from the kind list. Reports whether anything was removed.
func (d *AccessLists) Remove(kind Kind, id string) bool {
	list := d.List(kind)
	kept := (*list)[:0]
	removed := false
	for _, ref := range *list {
		if ref.ID == id {
			removed = true
			continue
		}
		kept = append(kept, ref)
	}
	*list = kept
	return removed
}

// Partition splits a reference list into owned ids and shared references.
func Partition(refs []AccessReference) (owned []string, shared []AccessReference) {
	for _, ref := range refs {
		if ref.IsOwned() {
			owned = append(owned, ref.ID)
		} else {
			shared = append(shared, ref)
		}
	}
	return owned, shared
}

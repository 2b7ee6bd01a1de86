// Package reconcile turns a user's Access Index into live read models.
//
// A Reconciler watches the user's Access Index, opens one subscription per
// referenced label, note and template, and one per profile those documents
// need. Every emission updates the latest known value of one document and the
// read models are re-derived from scratch, so the result does not depend on the
// order in which different documents emit.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/listenupapp/labelsync/internal/domain"
	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/store"
	"github.com/listenupapp/labelsync/internal/subscription"
)

// NoteWithProfile is a note merged with its resolved profile.
type NoteWithProfile struct {
	Note     *domain.Note    `json:"note"`
	Profile  *domain.Profile `json:"profile,omitempty"`
	IsShared bool            `json:"isShared"`
}

// Reconciler maintains the read models of one user.
type Reconciler struct {
	src    Source
	logger *slog.Logger
	userID string

	mu sync.Mutex
	// notifyMu is taken before mu is released so listeners see changes in
	// the order they were derived.
	notifyMu sync.Mutex

	accessSub  subscription.Closer
	access     *domain.UserAccess
	accessSeen bool
	started    bool
	closed     bool

	labels    map[string]*domain.Label
	notes     map[string]*domain.Note
	templates map[string]*domain.MessageTemplate
	profiles  map[string]*domain.Profile

	// seen holds subscription keys that emitted at least once since opening.
	seen map[string]struct{}
	errs map[string]error

	labelSubs    *subscription.Registry[string]
	noteSubs     *subscription.Registry[string]
	templateSubs *subscription.Registry[string]
	profileSubs  *subscription.Registry[string]

	state        State
	listeners    map[uint64]func(Change)
	nextListener uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a Reconciler for userID. Call Start to begin watching.
func New(src Source, userID string, log *slog.Logger) *Reconciler {
	if log == nil {
		log = logger.Discard()
	}
	return &Reconciler{
		src:          src,
		userID:       userID,
		logger:       log.With("user_id", userID),
		labels:       map[string]*domain.Label{},
		notes:        map[string]*domain.Note{},
		templates:    map[string]*domain.MessageTemplate{},
		profiles:     map[string]*domain.Profile{},
		seen:         map[string]struct{}{},
		errs:         map[string]error{},
		labelSubs:    subscription.NewRegistry[string](),
		noteSubs:     subscription.NewRegistry[string](),
		templateSubs: subscription.NewRegistry[string](),
		profileSubs:  subscription.NewRegistry[string](),
		state:        emptyState(),
		listeners:    map[uint64]func(Change){},
		ready:        make(chan struct{}),
	}
}

// UserID returns the user whose Access Index is reconciled.
func (r *Reconciler) UserID() string {
	return r.userID
}

// Start opens the Access Index subscription. Calling it again is a no-op.
func (r *Reconciler) Start() {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	sub := r.src.WatchAccess(r.userID, r.onAccess)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sub.Close()
		return
	}
	r.accessSub = sub
	r.mu.Unlock()
}

// Close tears down every subscription. Emissions already in flight are ignored.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	accessSub := r.accessSub
	r.listeners = map[uint64]func(Change){}
	r.mu.Unlock()

	if accessSub != nil {
		accessSub.Close()
	}
	r.labelSubs.Close()
	r.noteSubs.Close()
	r.templateSubs.Close()
	r.profileSubs.Close()
	r.logger.Debug("reconciler closed")
}

// Ready is closed once the Access Index and every document it initially
// references (and their profiles) have emitted at least once.
func (r *Reconciler) Ready() <-chan struct{} {
	return r.ready
}

// WaitReady blocks until Ready or ctx is done.
func (r *Reconciler) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current read models. The returned maps must not be modified.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers fn for every future Change. fn runs on a store
// goroutine and must not block for long. The returned func unregisters it.
func (r *Reconciler) Subscribe(fn func(Change)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextListener++
	id := r.nextListener
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// GetLabelProfiles returns the profiles of a label in member order, skipping
// members whose profile has not resolved to something with a name or URL.
// isShared selects the shared views instead of owned: active first, then
// pending, so a recipient can preview a share before answering it.
func (r *Reconciler) GetLabelProfiles(labelID string, isShared bool) ([]*domain.Profile, error) {
	st := r.State()

	var label *domain.Label
	if isShared {
		if sl, ok := st.ActiveSharedLabels[labelID]; ok {
			label = sl.Label
		} else if sl, ok := st.PendingSharedLabels[labelID]; ok {
			label = sl.Label
		}
	} else {
		label = st.OwnedLabels[labelID]
	}
	if label == nil {
		return nil, domainerrors.NotFoundf("label %s is not available", labelID)
	}

	out := make([]*domain.Profile, 0, len(label.MemberProfileIDs))
	for _, pid := range label.MemberProfileIDs {
		if p := st.Profiles[pid]; p.Resolved() {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetNoteWithProfile looks the note up among owned notes, then active shared
// notes, and merges its profile when resolved.
func (r *Reconciler) GetNoteWithProfile(noteID string) (NoteWithProfile, error) {
	st := r.State()

	var out NoteWithProfile
	if n, ok := st.Notes[noteID]; ok {
		out.Note = n
	} else if sn, ok := st.SharedNotes[noteID]; ok {
		out.Note = sn.Note
		out.IsShared = true
	} else {
		return NoteWithProfile{}, domainerrors.NotFoundf("note %s is not available", noteID)
	}

	if p := st.Profiles[out.Note.ProfileID]; p.Resolved() {
		out.Profile = p
	}
	return out, nil
}

// Subscriptions returns the number of open document subscriptions, access index excluded.
func (r *Reconciler) Subscriptions() (labels, notes, templates, profiles int) {
	return r.labelSubs.Len(), r.noteSubs.Len(), r.templateSubs.Len(), r.profileSubs.Len()
}

func (r *Reconciler) onAccess(snap store.Snapshot[domain.UserAccess]) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	key := "access:" + r.userID
	switch {
	case snap.Err != nil:
		r.recordErr(key, snap.Err)
	case !snap.Exists:
		r.access = nil
		delete(r.errs, key)
	default:
		r.access = snap.Doc
		delete(r.errs, key)
	}
	r.accessSeen = true

	labels, notes, templates := referencedIDs(r.access)
	_, released := r.labelSubs.Sync(labels, r.openLabel)
	forget(r, "label:", released, r.labels)
	_, released = r.noteSubs.Sync(notes, r.openNote)
	forget(r, "note:", released, r.notes)
	_, released = r.templateSubs.Sync(templates, r.openTemplate)
	forget(r, "template:", released, r.templates)

	r.publishLocked()
}

func (r *Reconciler) openLabel(id string, gen uint64) subscription.Closer {
	return r.src.WatchLabel(id, func(snap store.Snapshot[domain.Label]) {
		r.mu.Lock()
		if r.closed || !r.labelSubs.Current(id, gen) {
			r.mu.Unlock()
			return
		}
		apply(r, "label:"+id, r.labels, snap)
		r.publishLocked()
	})
}

func (r *Reconciler) openNote(id string, gen uint64) subscription.Closer {
	return r.src.WatchNote(id, func(snap store.Snapshot[domain.Note]) {
		r.mu.Lock()
		if r.closed || !r.noteSubs.Current(id, gen) {
			r.mu.Unlock()
			return
		}
		apply(r, "note:"+id, r.notes, snap)
		r.publishLocked()
	})
}

func (r *Reconciler) openTemplate(id string, gen uint64) subscription.Closer {
	return r.src.WatchTemplate(id, func(snap store.Snapshot[domain.MessageTemplate]) {
		r.mu.Lock()
		if r.closed || !r.templateSubs.Current(id, gen) {
			r.mu.Unlock()
			return
		}
		apply(r, "template:"+id, r.templates, snap)
		r.publishLocked()
	})
}

func (r *Reconciler) openProfile(id string, gen uint64) subscription.Closer {
	return r.src.WatchProfile(id, func(snap store.Snapshot[domain.Profile]) {
		r.mu.Lock()
		if r.closed || !r.profileSubs.Current(id, gen) {
			r.mu.Unlock()
			return
		}
		apply(r, "profile:"+id, r.profiles, snap)
		r.publishLocked()
	})
}

// apply folds one emission into docs. A failed subscription drops its entity.
func apply[T any](r *Reconciler, key string, docs map[string]*T, snap store.Snapshot[T]) {
	r.seen[key] = struct{}{}
	switch {
	case snap.Err != nil:
		delete(docs, snap.ID)
		r.recordErr(key, snap.Err)
	case !snap.Exists:
		delete(docs, snap.ID)
		delete(r.errs, key)
	default:
		docs[snap.ID] = snap.Doc
		delete(r.errs, key)
	}
}

func (r *Reconciler) recordErr(key string, err error) {
	r.errs[key] = err
	r.logger.Warn("subscription error", "key", key, "error", err)
}

// forget drops everything known about released ids.
func forget[T any](r *Reconciler, prefix string, ids []string, docs map[string]*T) {
	for _, id := range ids {
		delete(docs, id)
		delete(r.seen, prefix+id)
		delete(r.errs, prefix+id)
	}
}

// publishLocked re-derives the read models, brings profile subscriptions in
// line with what the placed labels and notes need, and notifies listeners.
// It must be called with mu held and releases it.
func (r *Reconciler) publishLocked() {
	in := inputs{
		access:    r.access,
		labels:    r.labels,
		notes:     r.notes,
		templates: r.templates,
		profiles:  r.profiles,
	}
	next := derive(in)

	_, released := r.profileSubs.Sync(neededProfiles(next), r.openProfile)
	forget(r, "profile:", released, r.profiles)

	next.Err = r.joinedErr()
	changes := diff(r.state, next)
	r.state = next
	r.checkReady()

	listeners := make([]func(Change), 0, len(r.listeners))
	ids := make([]uint64, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, r.listeners[id])
	}

	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()

	for _, c := range changes {
		for _, fn := range listeners {
			fn(c)
		}
	}
}

func (r *Reconciler) joinedErr() error {
	if len(r.errs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.errs))
	for k := range r.errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, r.errs[k])
	}
	return errors.Join(errs...)
}

func (r *Reconciler) checkReady() {
	if !r.accessSeen {
		return
	}
	for _, reg := range []struct {
		prefix string
		subs   *subscription.Registry[string]
	}{
		{"label:", r.labelSubs},
		{"note:", r.noteSubs},
		{"template:", r.templateSubs},
		{"profile:", r.profileSubs},
	} {
		for _, id := range reg.subs.Keys() {
			if _, ok := r.seen[reg.prefix+id]; !ok {
				return
			}
		}
	}
	r.readyOnce.Do(func() {
		close(r.ready)
		r.logger.Debug("read models ready")
	})
}

package reconcile

import (
	"sync"
	"sync/atomic"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/store"
	"github.com/listenupapp/labelsync/internal/subscription"
)

// fakeSource is a hand-driven Source. Watch queues the current value of the
// document; Flush delivers queued initial values. Set delivers to open
// watches immediately. Everything runs on the calling goroutine.
type fakeSource struct {
	mu      sync.Mutex
	current map[string]any
	watches map[string][]*fakeWatch
	queued  []queued
	opened  map[string]int
}

type fakeWatch struct {
	deliver func(value any, err error)
	key     string
	closed  atomic.Bool
}

func (w *fakeWatch) Close() { w.closed.Store(true) }

type queued struct {
	w *fakeWatch
	v any
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		current: map[string]any{},
		watches: map[string][]*fakeWatch{},
		opened:  map[string]int{},
	}
}

func watchFake[T any](f *fakeSource, key, id string, fn func(store.Snapshot[T])) subscription.Closer {
	w := &fakeWatch{key: key}
	w.deliver = func(v any, err error) {
		snap := store.Snapshot[T]{ID: id, Err: err}
		if doc, ok := v.(*T); ok && doc != nil && err == nil {
			snap.Doc = doc
			snap.Exists = true
		}
		fn(snap)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches[key] = append(f.watches[key], w)
	f.opened[key]++
	f.queued = append(f.queued, queued{w: w, v: f.current[key]})
	return w
}

func (f *fakeSource) WatchAccess(userID string, fn func(store.Snapshot[domain.UserAccess])) subscription.Closer {
	return watchFake(f, "access:"+userID, userID, fn)
}

func (f *fakeSource) WatchLabel(id string, fn func(store.Snapshot[domain.Label])) subscription.Closer {
	return watchFake(f, "label:"+id, id, fn)
}

func (f *fakeSource) WatchNote(id string, fn func(store.Snapshot[domain.Note])) subscription.Closer {
	return watchFake(f, "note:"+id, id, fn)
}

func (f *fakeSource) WatchTemplate(id string, fn func(store.Snapshot[domain.MessageTemplate])) subscription.Closer {
	return watchFake(f, "template:"+id, id, fn)
}

func (f *fakeSource) WatchProfile(id string, fn func(store.Snapshot[domain.Profile])) subscription.Closer {
	return watchFake(f, "profile:"+id, id, fn)
}

// Flush delivers queued initial values until none remain.
func (f *fakeSource) Flush() {
	for {
		f.mu.Lock()
		q := f.queued
		f.queued = nil
		f.mu.Unlock()
		if len(q) == 0 {
			return
		}
		for _, item := range q {
			if !item.w.closed.Load() {
				item.w.deliver(item.v, nil)
			}
		}
	}
}

// Set stores v as key's current value and emits it to open watches. A nil
// pointer value models a deleted document.
func (f *fakeSource) Set(key string, v any) {
	f.mu.Lock()
	f.current[key] = v
	targets := append([]*fakeWatch(nil), f.watches[key]...)
	f.mu.Unlock()

	for _, w := range targets {
		if !w.closed.Load() {
			w.deliver(v, nil)
		}
	}
	f.Flush()
}

// Fail emits err to open watches of key.
func (f *fakeSource) Fail(key string, err error) {
	f.mu.Lock()
	targets := append([]*fakeWatch(nil), f.watches[key]...)
	f.mu.Unlock()

	for _, w := range targets {
		if !w.closed.Load() {
			w.deliver(nil, err)
		}
	}
	f.Flush()
}

// Late delivers v to closed watches of key, modelling an emission that was
// already in flight when the subscription was torn down.
func (f *fakeSource) Late(key string, v any) {
	f.mu.Lock()
	targets := append([]*fakeWatch(nil), f.watches[key]...)
	f.mu.Unlock()

	for _, w := range targets {
		if w.closed.Load() {
			w.deliver(v, nil)
		}
	}
}

// Open reports how many watches on key are currently open.
func (f *fakeSource) Open(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, w := range f.watches[key] {
		if !w.closed.Load() {
			n++
		}
	}
	return n
}

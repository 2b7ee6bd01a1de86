// Package subscription keeps a keyed set of live subscriptions de-duplicated
// and guards callbacks against emissions that arrive after a key was released.
//
// Every opened key gets a generation number. Callbacks capture the generation
// they were opened with and check Current before applying an emission; once a
// key is released (or released and reopened) the old generation is never
// current again, so a late emission cannot resurrect removed state.
package subscription

import (
	"sync"
)

// Closer ends a subscription. store.Subscription satisfies it.
type Closer interface {
	Close()
}

// CloserFunc adapts a function to Closer.
type CloserFunc func()

// Close calls f.
func (f CloserFunc) Close() { f() }

// Opener opens the subscription for key. gen must be passed to Current by the
// subscription's callbacks.
type Opener[K comparable] func(key K, gen uint64) Closer

type entry struct {
	closer Closer
	gen    uint64
}

// Registry tracks one subscription per key.
type Registry[K comparable] struct {
	entries map[K]*entry
	mu      sync.Mutex
	gen     uint64
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{entries: make(map[K]*entry)}
}

// Ensure opens key unless it is already open. Reports whether it opened.
// open is called without the registry lock held.
func (r *Registry[K]) Ensure(key K, open Opener[K]) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if _, ok := r.entries[key]; ok {
		r.mu.Unlock()
		return false
	}
	r.gen++
	gen := r.gen
	r.entries[key] = &entry{gen: gen}
	r.mu.Unlock()

	closer := open(key, gen)

	r.mu.Lock()
	e, ok := r.entries[key]
	if ok && e.gen == gen && !r.closed {
		e.closer = closer
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()

	// Released while opening.
	if closer != nil {
		closer.Close()
	}
	return true
}

// Release closes key's subscription. Reports whether key was open.
func (r *Registry[K]) Release(key K) bool {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if e.closer != nil {
		e.closer.Close()
	}
	return true
}

// Sync makes the open set equal to want: missing keys are opened and keys not
// in want are released. It returns the keys it opened and released.
func (r *Registry[K]) Sync(want map[K]struct{}, open Opener[K]) (opened, released []K) {
	r.mu.Lock()
	for key := range r.entries {
		if _, keep := want[key]; !keep {
			released = append(released, key)
		}
	}
	r.mu.Unlock()

	for _, key := range released {
		r.Release(key)
	}
	for key := range want {
		if r.Ensure(key, open) {
			opened = append(opened, key)
		}
	}
	return opened, released
}

// Current reports whether gen is the live generation for key.
func (r *Registry[K]) Current(key K, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	return ok && e.gen == gen && !r.closed
}

// Has reports whether key is open.
func (r *Registry[K]) Has(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[key]
	return ok
}

// Keys returns the open keys in no particular order.
func (r *Registry[K]) Keys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of open keys.
func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close releases every key. Later Ensure calls are no-ops.
func (r *Registry[K]) Close() {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[K]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		if e.closer != nil {
			e.closer.Close()
		}
	}
}

// Set builds a want-set for Sync.
func Set[K comparable](keys ...K) map[K]struct{} {
	s := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

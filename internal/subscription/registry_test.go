package subscription

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeSub) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeSub) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type opener struct {
	subs map[string]*fakeSub
	gens map[string]uint64
	n    int
}

func newOpener() *opener {
	return &opener{subs: map[string]*fakeSub{}, gens: map[string]uint64{}}
}

func (o *opener) open(key string, gen uint64) Closer {
	o.n++
	s := &fakeSub{}
	o.subs[key] = s
	o.gens[key] = gen
	return s
}

func TestEnsure_OpensOnce(t *testing.T) {
	r := NewRegistry[string]()
	o := newOpener()

	assert.True(t, r.Ensure("L1", o.open))
	assert.False(t, r.Ensure("L1", o.open))
	assert.Equal(t, 1, o.n)
	assert.True(t, r.Has("L1"))
}

func TestRelease_ClosesAndInvalidatesGeneration(t *testing.T) {
	r := NewRegistry[string]()
	o := newOpener()

	r.Ensure("L1", o.open)
	first := o.gens["L1"]
	sub := o.subs["L1"]
	require.True(t, r.Current("L1", first))

	assert.True(t, r.Release("L1"))
	assert.False(t, r.Release("L1"))
	assert.Equal(t, 1, sub.closeCount())
	assert.False(t, r.Current("L1", first), "late emission from released subscription is stale")

	r.Ensure("L1", o.open)
	assert.False(t, r.Current("L1", first), "reopening does not revive the old generation")
	assert.True(t, r.Current("L1", o.gens["L1"]))
}

func TestSync_OpensMissingReleasesSurplus(t *testing.T) {
	r := NewRegistry[string]()
	o := newOpener()

	opened, released := r.Sync(Set("a", "b"), o.open)
	sort.Strings(opened)
	assert.Equal(t, []string{"a", "b"}, opened)
	assert.Empty(t, released)

	subA := o.subs["a"]
	opened, released = r.Sync(Set("b", "c"), o.open)
	assert.Equal(t, []string{"c"}, opened)
	assert.Equal(t, []string{"a"}, released)
	assert.Equal(t, 1, subA.closeCount())

	keys := r.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"b", "c"}, keys)
	assert.Equal(t, 2, r.Len())
}

func TestEnsure_ReleasedWhileOpening(t *testing.T) {
	r := NewRegistry[string]()
	var opened *fakeSub

	r.Ensure("L1", func(key string, gen uint64) Closer {
		// Simulates teardown racing with setup.
		r.Release(key)
		opened = &fakeSub{}
		return opened
	})

	assert.False(t, r.Has("L1"))
	assert.Equal(t, 1, opened.closeCount())
}

func TestClose_ReleasesEverything(t *testing.T) {
	r := NewRegistry[string]()
	o := newOpener()

	r.Sync(Set("a", "b"), o.open)
	gen := o.gens["a"]
	r.Close()

	assert.Equal(t, 1, o.subs["a"].closeCount())
	assert.Equal(t, 1, o.subs["b"].closeCount())
	assert.False(t, r.Current("a", gen))
	assert.False(t, r.Ensure("a", o.open))
	assert.Equal(t, 0, r.Len())
}

func TestCloserFunc(t *testing.T) {
	called := false
	CloserFunc(func() { called = true }).Close()
	assert.True(t, called)
}

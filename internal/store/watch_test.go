package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/store"
)

func collect[T any](t *testing.T) (func(store.Snapshot[T]), <-chan store.Snapshot[T]) {
	t.Helper()
	ch := make(chan store.Snapshot[T], 64)
	return func(s store.Snapshot[T]) { ch <- s }, ch
}

func next[T any](t *testing.T, ch <-chan store.Snapshot[T]) store.Snapshot[T] {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return store.Snapshot[T]{}
	}
}

func TestWatch_InitialMissingThenChanges(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	fn, ch := collect[domain.Label](t)
	sub := s.Labels.Watch("L1", fn)
	defer sub.Close()

	first := next(t, ch)
	assert.Equal(t, "L1", first.ID)
	assert.False(t, first.Exists)
	assert.NoError(t, first.Err)

	require.NoError(t, s.Labels.Put(ctx, "L1", &domain.Label{ID: "L1", Name: "VIP"}))
	created := next(t, ch)
	require.True(t, created.Exists)
	assert.Equal(t, "VIP", created.Doc.Name)

	require.NoError(t, s.Labels.Delete(ctx, "L1"))
	deleted := next(t, ch)
	assert.False(t, deleted.Exists)
	assert.Nil(t, deleted.Doc)
}

func TestWatch_InitialExisting(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Notes.Put(context.Background(), "N1", &domain.Note{ID: "N1", Content: "hi"}))

	fn, ch := collect[domain.Note](t)
	sub := s.Notes.Watch("N1", fn)
	defer sub.Close()

	first := next(t, ch)
	require.True(t, first.Exists)
	assert.Equal(t, "hi", first.Doc.Content)
}

func TestWatch_PerDocumentOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	fn, ch := collect[domain.Label](t)
	sub := s.Labels.Watch("L1", fn)
	defer sub.Close()
	next(t, ch)

	names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	for _, n := range names {
		require.NoError(t, s.Labels.Put(ctx, "L1", &domain.Label{ID: "L1", Name: n}))
	}

	for _, want := range names {
		assert.Equal(t, want, next(t, ch).Doc.Name)
	}
}

func TestWatch_OtherDocumentsDoNotEmit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	fn, ch := collect[domain.Label](t)
	sub := s.Labels.Watch("L1", fn)
	defer sub.Close()
	next(t, ch)

	require.NoError(t, s.Labels.Put(ctx, "L2", &domain.Label{ID: "L2"}))
	require.NoError(t, s.Notes.Put(ctx, "L1", &domain.Note{ID: "L1"}))

	select {
	case snap := <-ch:
		t.Fatalf("unexpected emission %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatch_CloseStopsDelivery(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	fn, ch := collect[domain.Label](t)
	sub := s.Labels.Watch("L1", fn)
	next(t, ch)

	sub.Close()
	sub.Close()

	require.NoError(t, s.Labels.Put(ctx, "L1", &domain.Label{ID: "L1"}))
	select {
	case snap := <-ch:
		t.Fatalf("emission after close: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatch_CloseFromOwnCallback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		calls int
		sub   *store.Subscription
	)
	ready := make(chan struct{})
	done := make(chan struct{})

	sub = s.Labels.Watch("L1", func(snap store.Snapshot[domain.Label]) {
		<-ready
		mu.Lock()
		calls++
		mu.Unlock()
		if snap.Exists {
			sub.Close()
			close(done)
		}
	})
	close(ready)

	require.NoError(t, s.Labels.Put(ctx, "L1", &domain.Label{ID: "L1"}))
	<-done
	require.NoError(t, s.Labels.Put(ctx, "L1", &domain.Label{ID: "L1", Name: "again"}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestWatch_DecodeErrorIsReported(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	raw := store.NewEntity[map[string]any](s, store.CollectionLabels)
	require.NoError(t, raw.Put(ctx, "L1", &map[string]any{"n": 42}))

	fn, ch := collect[domain.Label](t)
	sub := s.Labels.Watch("L1", fn)
	defer sub.Close()

	snap := next(t, ch)
	assert.Error(t, snap.Err)
	assert.False(t, snap.Exists)
}

package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/labelsync/internal/domain"
	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/store"
)

type testDoc struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestEntity_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	docs := store.NewEntity[testDoc](s, "test")

	require.NoError(t, docs.Create(ctx, "1", &testDoc{ID: "1", Name: "Jane"}))

	got, err := docs.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.Name)

	err = docs.Create(ctx, "1", &testDoc{ID: "1"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_GetMissing(t *testing.T) {
	s := setupTestStore(t)
	docs := store.NewEntity[testDoc](s, "test")

	_, err := docs.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestEntity_UpdateRequiresExisting(t *testing.T) {
	s := setupTestStore(t)
	docs := store.NewEntity[testDoc](s, "test")

	err := docs.Update(context.Background(), "1", &testDoc{ID: "1"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_DeleteIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	docs := store.NewEntity[testDoc](s, "test")

	require.NoError(t, docs.Put(ctx, "1", &testDoc{ID: "1"}))
	require.NoError(t, docs.Delete(ctx, "1"))
	require.NoError(t, docs.Delete(ctx, "1"))

	exists, err := docs.Exists(ctx, "1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEntity_IndexLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	docs := store.NewEntity[testDoc](s, "test").WithIndex("email", func(d *testDoc) []string {
		return []string{d.Email}
	})

	require.NoError(t, docs.Create(ctx, "1", &testDoc{ID: "1", Email: "a@x"}))

	err := docs.Create(ctx, "2", &testDoc{ID: "2", Email: "a@x"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	require.NoError(t, docs.Put(ctx, "1", &testDoc{ID: "1", Email: "b@x"}))
	_, err = docs.GetByIndex(ctx, "email", "a@x")
	assert.ErrorIs(t, err, store.ErrNotFound, "old index value released")

	got, err := docs.GetByIndex(ctx, "email", "b@x")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	require.NoError(t, docs.Create(ctx, "2", &testDoc{ID: "2", Email: "a@x"}))
}

func TestEntity_ListSkipsIndexKeys(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	docs := store.NewEntity[testDoc](s, "test").WithIndex("email", func(d *testDoc) []string {
		return []string{d.Email}
	})

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, docs.Create(ctx, id, &testDoc{ID: id, Email: id + "@x"}))
	}

	var ids []string
	for d, err := range docs.List(ctx) {
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestStore_UserByEmailIsCaseInsensitive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users.Create(ctx, "B", &domain.UserAccess{ID: "B", Email: "Bob@Example.com"}))

	u, err := s.UserByEmail(ctx, "  bob@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "B", u.ID)
}

func TestEntity_Mutate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Labels.Create(ctx, "L1", &domain.Label{ID: "L1", Name: "VIP"}))

	out, err := s.Labels.Mutate(ctx, "L1", func(l *domain.Label) error {
		l.AddMember("P1")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, out.MemberProfileIDs)

	_, err = s.Labels.Mutate(ctx, "missing", func(*domain.Label) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_InMemory(t *testing.T) {
	s, err := store.New("", nil, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Profiles.Put(context.Background(), "jdoe", &domain.Profile{ID: "jdoe", Name: "Jane"}))
	p, err := s.Profiles.Get(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "Jane", p.Name)
}

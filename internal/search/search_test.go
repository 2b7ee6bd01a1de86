package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/store"
)

func setupTestIndex(t *testing.T) *ProfileIndex {
	t.Helper()

	index, err := NewProfileIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func seed(t *testing.T, index *ProfileIndex) {
	t.Helper()
	require.NoError(t, index.IndexAll([]*ProfileDocument{
		{ID: "jdoe", Name: "Jane Doe", URL: "https://www.linkedin.com/in/jdoe"},
		{ID: "jsmith", Name: "John Smith", URL: "https://www.linkedin.com/in/jsmith"},
		{ID: "amartin-42", Name: "Alice Martin", URL: "https://www.linkedin.com/in/amartin-42"},
	}))
}

func TestNewProfileIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewProfileIndex_ReopensExisting(t *testing.T) {
	dir := t.TempDir()

	index, err := NewProfileIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.Index(&ProfileDocument{ID: "jdoe", Name: "Jane Doe"}))
	require.NoError(t, index.Close())

	index, err = NewProfileIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestProfileIndex_Search(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)
	ctx := context.Background()

	tests := []struct {
		name   string
		query  string
		wantID string
	}{
		{name: "full name", query: "Jane Doe", wantID: "jdoe"},
		{name: "last name", query: "smith", wantID: "jsmith"},
		{name: "prefix", query: "mart", wantID: "amartin-42"},
		{name: "typo", query: "smyth", wantID: "jsmith"},
		{name: "slug", query: "amartin", wantID: "amartin-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := index.Search(ctx, tt.query, 5)
			require.NoError(t, err)
			require.NotEmpty(t, res.Hits)
			assert.Equal(t, tt.wantID, res.Hits[0].ID)
		})
	}
}

func TestProfileIndex_SearchEmptyQueryListsAll(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.Len(t, res.Hits, 3)
}

func TestProfileIndex_DeleteAndRebuild(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.Delete("jdoe"))
	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	require.NoError(t, index.Rebuild())
	count, err = index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestIndexer_FollowsStoreWrites(t *testing.T) {
	index, err := NewProfileIndex(Options{})
	require.NoError(t, err)
	defer index.Close()

	ix := NewIndexer(index, nil)
	s, err := store.New("", nil, ix)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Profiles.Put(ctx, "jdoe", &domain.Profile{ID: "jdoe", Name: "Jane Doe", LastUpdated: now}))
	require.NoError(t, s.Labels.Put(ctx, "L1", &domain.Label{ID: "L1", Name: "JANE"}))

	res, err := index.Search(ctx, "jane", 10)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1, "labels are not indexed")
	assert.Equal(t, "jdoe", res.Hits[0].ID)

	require.NoError(t, s.Profiles.Delete(ctx, "jdoe"))
	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestIndexer_Reindex(t *testing.T) {
	index, err := NewProfileIndex(Options{})
	require.NoError(t, err)
	defer index.Close()

	s, err := store.New("", nil, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Profiles.Put(ctx, "a", &domain.Profile{ID: "a", Name: "Ann"}))
	require.NoError(t, s.Profiles.Put(ctx, "b", &domain.Profile{ID: "b", Name: "Ben"}))

	n, err := NewIndexer(index, nil).Reindex(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

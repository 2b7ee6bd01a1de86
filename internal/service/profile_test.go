package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/search"
	"github.com/listenupapp/labelsync/internal/store"
)

func TestProfileService_UpsertDerivesIDFromURL(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	p, err := ts.profiles.Upsert(ctx, ProfileInput{URL: "https://www.linkedin.com/in/J%C3%B6rg-M%C3%BCller?trk=x", Name: "Jörg Müller"})
	require.NoError(t, err)
	assert.Equal(t, "jorg-muller", p.ID)
	assert.True(t, p.LastUpdated.Equal(testNow))

	again, err := ts.profiles.Upsert(ctx, ProfileInput{URL: profileURL("jorg-muller")})
	require.NoError(t, err)
	assert.Equal(t, "Jörg Müller", again.Name, "empty fields do not overwrite")
	assert.Nil(t, again.Image)

	withImage, err := ts.profiles.Upsert(ctx, ProfileInput{URL: profileURL("jorg-muller"), Image: "https://cdn.example.com/a.jpg"})
	require.NoError(t, err)
	require.NotNil(t, withImage.Image)
	assert.Equal(t, "https://cdn.example.com/a.jpg", *withImage.Image)

	_, err = ts.profiles.Upsert(ctx, ProfileInput{URL: "https://www.linkedin.com/in/"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestProfileService_Search(t *testing.T) {
	index, err := search.NewProfileIndex(search.Options{})
	require.NoError(t, err)
	defer index.Close()

	s, err := store.New("", nil, search.NewIndexer(index, nil))
	require.NoError(t, err)
	defer s.Close()

	profiles := NewProfileService(s, index, logger.Discard())
	ctx := context.Background()

	for slug, name := range map[string]string{"jdoe": "Jane Doe", "bsmith": "Bob Smith"} {
		_, err := profiles.Upsert(ctx, ProfileInput{URL: profileURL(slug), Name: name})
		require.NoError(t, err)
	}

	res, err := profiles.Search(ctx, "jane", 10)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "jdoe", res.Hits[0].ID)
	assert.Equal(t, "Jane Doe", res.Hits[0].Name)
}

func TestProfileService_SearchWithoutIndex(t *testing.T) {
	ts := setupServices(t)

	_, err := ts.profiles.Search(context.Background(), "x", 5)
	assert.ErrorIs(t, err, domainerrors.ErrInternal)
}

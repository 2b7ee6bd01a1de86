package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/store"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type testServices struct {
	store    *store.Store
	users    *UserService
	profiles *ProfileService
	labels   *LabelService
	notes    *NoteService
	tmpl     *TemplateService
	sharing  *SharingService
}

// setupServices wires every service over a temporary Badger store.
func setupServices(t *testing.T) *testServices {
	t.Helper()

	s, err := store.New(t.TempDir(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	log := logger.Discard()
	fixed := clock(func() time.Time { return testNow })

	ts := &testServices{store: s}
	ts.users = NewUserService(s, log)
	ts.users.clock = fixed
	ts.profiles = NewProfileService(s, nil, log)
	ts.profiles.clock = fixed
	ts.labels = NewLabelService(s, ts.profiles, log)
	ts.labels.clock = fixed
	ts.notes = NewNoteService(s, ts.profiles, log)
	ts.notes.clock = fixed
	ts.tmpl = NewTemplateService(s, log)
	ts.tmpl.clock = fixed
	ts.sharing = NewSharingService(s, log)
	ts.sharing.clock = fixed
	return ts
}

func (ts *testServices) user(t *testing.T, id, email, name string) *domain.UserAccess {
	t.Helper()
	u, err := ts.users.EnsureUser(context.Background(), id, EnsureUserRequest{Email: email, DisplayName: name})
	require.NoError(t, err)
	return u
}

func (ts *testServices) access(t *testing.T, id string) *domain.UserAccess {
	t.Helper()
	u, err := ts.store.Users.Get(context.Background(), id)
	require.NoError(t, err)
	return u
}

func profileURL(slug string) string {
	return "https://www.linkedin.com/in/" + slug + "/"
}

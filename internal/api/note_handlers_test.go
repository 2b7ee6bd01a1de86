package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createNote(t *testing.T, ts *testServer, header, slug, content string) NoteResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/notes", header, map[string]any{
		"profile": map[string]any{"url": profileURL(slug), "name": "Jane Doe"},
		"content": content,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[NoteResponse](t, resp.Body.Bytes()).Data
}

func TestNotes_CreateGetUpdateDelete(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")

	n := createNote(t, ts, alice, "jdoe", "met at **conf**")
	assert.Equal(t, "jdoe", n.ProfileID)
	assert.Equal(t, "alice", n.OwnerID)
	assert.Regexp(t, `^note_\d+_`, n.ID)

	resp := ts.api.Get("/api/v1/notes/"+n.ID, alice)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	got := decode[NoteWithProfileResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "met at **conf**", got.Note.Content)
	assert.False(t, got.IsShared)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "Jane Doe", got.Profile.Name)

	resp = ts.api.Patch("/api/v1/notes/"+n.ID, alice, map[string]any{"content": "follow up in May"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "follow up in May", decode[NoteResponse](t, resp.Body.Bytes()).Data.Content)

	resp = ts.api.Delete("/api/v1/notes/"+n.ID, alice)
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/notes/"+n.ID, alice)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestNotes_InvalidProfileURL(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")

	resp := ts.api.Post("/api/v1/notes", alice, map[string]any{
		"profile": map[string]any{"url": "https://example.com/about", "name": "Nobody"},
		"content": "x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp.Body.Bytes()).Code)
}

func TestNotes_OtherUsersNoteIsHidden(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")
	bob := ts.signUp(t, "bob", "bob@example.com")
	n := createNote(t, ts, alice, "jdoe", "private")

	resp := ts.api.Get("/api/v1/notes/"+n.ID, bob)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Patch("/api/v1/notes/"+n.ID, bob, map[string]any{"content": "mine now"})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestTemplates_CreateDelete(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")

	resp := ts.api.Post("/api/v1/templates", alice, map[string]any{"title": "Intro", "body": "Hi {{name}}"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	tmpl := decode[TemplateResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "Intro", tmpl.Title)
	assert.Regexp(t, `^template_\d+_`, tmpl.ID)

	u, err := ts.store.Users.Get(t.Context(), "alice")
	require.NoError(t, err)
	require.Len(t, u.Data.Templates, 1)

	resp = ts.api.Delete("/api/v1/templates/"+tmpl.ID, alice)
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	u, err = ts.store.Users.Get(t.Context(), "alice")
	require.NoError(t, err)
	assert.Empty(t, u.Data.Templates)
}

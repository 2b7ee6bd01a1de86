package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/service"
)

func syncState(t *testing.T, ts *testServer, header string) SyncStateResponse {
	t.Helper()
	resp := ts.api.Get("/api/v1/sync/state", header)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decode[SyncStateResponse](t, resp.Body.Bytes()).Data
}

func TestShareLabels_PendingThenAccepted(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")
	bob := ts.signUp(t, "bob", "bob@example.com")
	l := createLabel(t, ts, alice, "vip")

	resp := ts.api.Post("/api/v1/shares/labels", alice, map[string]any{
		"labelIds":   []string{l.ID},
		"recipients": []string{"Bob@Example.com"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decode[service.ShareResult](t, resp.Body.Bytes()).Data
	require.Len(t, res.Recipients, 1)
	assert.Equal(t, "bob", res.Recipients[0].UserID)
	assert.Equal(t, []string{l.ID}, res.Recipients[0].Added)

	st := syncState(t, ts, bob)
	assert.False(t, st.Partial)
	assert.Contains(t, st.State.PendingSharedLabels, l.ID)
	assert.Empty(t, st.State.ActiveSharedLabels)

	resp = ts.api.Post("/api/v1/shares/respond", bob, map[string]any{
		"referenceIds": []string{l.ID},
		"accept":       true,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []string{l.ID}, decode[service.RespondResult](t, resp.Body.Bytes()).Data.Updated)

	st = syncState(t, ts, bob)
	require.Contains(t, st.State.ActiveSharedLabels, l.ID)
	assert.Equal(t, "VIP", st.State.ActiveSharedLabels[l.ID].Label.Name)
	assert.Empty(t, st.State.PendingSharedLabels)

	resp = ts.api.Get("/api/v1/labels/"+l.ID+"/profiles?shared=true", bob)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestShareLabels_SecondShareSkipped(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")
	ts.signUp(t, "bob", "bob@example.com")
	l := createLabel(t, ts, alice, "vip")

	body := map[string]any{"labelIds": []string{l.ID}, "recipients": []string{"bob@example.com"}}
	require.Equal(t, http.StatusOK, ts.api.Post("/api/v1/shares/labels", alice, body).Code)

	resp := ts.api.Post("/api/v1/shares/labels", alice, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decode[service.ShareResult](t, resp.Body.Bytes()).Data
	assert.Empty(t, res.Recipients[0].Added)
	assert.Equal(t, []string{l.ID}, res.Recipients[0].Skipped)
}

func TestShareLabels_UnknownRecipient(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")
	l := createLabel(t, ts, alice, "vip")

	resp := ts.api.Post("/api/v1/shares/labels", alice, map[string]any{
		"labelIds":   []string{l.ID},
		"recipients": []string{"nobody@example.com"},
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestShareLabels_NotOwner(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")
	bob := ts.signUp(t, "bob", "bob@example.com")
	ts.signUp(t, "carol", "carol@example.com")
	l := createLabel(t, ts, alice, "vip")

	resp := ts.api.Post("/api/v1/shares/labels", bob, map[string]any{
		"labelIds":   []string{l.ID},
		"recipients": []string{"carol@example.com"},
	})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestShareLabels_EmptyRecipientsRejected(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")

	resp := ts.api.Post("/api/v1/shares/labels", alice, map[string]any{
		"labelIds":   []string{"label_1_x"},
		"recipients": []string{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp.Body.Bytes()).Code)
}

func TestShare_TooManyRecipients(t *testing.T) {
	ts := setupTestServer(t, withSharing(600, 100, 2))
	alice := ts.signUp(t, "alice", "alice@example.com")
	l := createLabel(t, ts, alice, "vip")

	resp := ts.api.Post("/api/v1/shares/labels", alice, map[string]any{
		"labelIds":   []string{l.ID},
		"recipients": []string{"a@example.com", "b@example.com", "c@example.com"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestShare_RateLimited(t *testing.T) {
	ts := setupTestServer(t, withSharing(1, 1, 50))
	alice := ts.signUp(t, "alice", "alice@example.com")
	ts.signUp(t, "bob", "bob@example.com")
	l := createLabel(t, ts, alice, "vip")

	body := map[string]any{"labelIds": []string{l.ID}, "recipients": []string{"bob@example.com"}}
	require.Equal(t, http.StatusOK, ts.api.Post("/api/v1/shares/labels", alice, body).Code)

	resp := ts.api.Post("/api/v1/shares/labels", alice, body)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	env := decode[any](t, resp.Body.Bytes())
	assert.Equal(t, "RATE_LIMITED", env.Code)
	var details struct {
		RetryAfterSeconds int `json:"retryAfterSeconds"`
	}
	require.NoError(t, json.Unmarshal(env.Details, &details))
	assert.Positive(t, details.RetryAfterSeconds)
}

func TestShareNotes_AllAndSubset(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")
	bob := ts.signUp(t, "bob", "bob@example.com")
	n1 := createNote(t, ts, alice, "jdoe", "one")
	n2 := createNote(t, ts, alice, "rsmith", "two")

	resp := ts.api.Post("/api/v1/shares/notes", alice, map[string]any{
		"noteIds":    []string{n1.ID},
		"recipients": []string{"bob@example.com"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []string{n1.ID}, decode[service.ShareResult](t, resp.Body.Bytes()).Data.Recipients[0].Added)

	resp = ts.api.Post("/api/v1/shares/notes", alice, map[string]any{
		"all":        true,
		"recipients": []string{"bob@example.com"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	grant := decode[service.ShareResult](t, resp.Body.Bytes()).Data.Recipients[0]
	assert.Equal(t, []string{n2.ID}, grant.Added)
	assert.Equal(t, []string{n1.ID}, grant.Skipped)

	st := syncState(t, ts, bob)
	assert.Len(t, st.State.PendingSharedNotes, 2)
}

func TestShareNotes_RequiresSelectionOrAll(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")

	resp := ts.api.Post("/api/v1/shares/notes", alice, map[string]any{
		"recipients": []string{"bob@example.com"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRespond_DeclineRemovesReference(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")
	bob := ts.signUp(t, "bob", "bob@example.com")
	l := createLabel(t, ts, alice, "vip")

	require.Equal(t, http.StatusOK, ts.api.Post("/api/v1/shares/labels", alice, map[string]any{
		"labelIds": []string{l.ID}, "recipients": []string{"bob@example.com"},
	}).Code)

	resp := ts.api.Post("/api/v1/shares/respond", bob, map[string]any{
		"referenceIds": []string{l.ID, "label_1_unknown"},
		"accept":       false,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decode[service.RespondResult](t, resp.Body.Bytes()).Data
	assert.Equal(t, []string{l.ID}, res.Updated)
	assert.Equal(t, []string{"label_1_unknown"}, res.Ignored)

	st := syncState(t, ts, bob)
	assert.Empty(t, st.State.PendingSharedLabels)
	assert.Empty(t, st.State.ActiveSharedLabels)
}

func TestShareLabels_SelfShareRejected(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.signUp(t, "alice", "alice@example.com")
	l := createLabel(t, ts, alice, "vip")

	resp := ts.api.Post("/api/v1/shares/labels", alice, map[string]any{
		"labelIds":   []string{l.ID},
		"recipients": []string{"alice@example.com"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp.Body.Bytes()).Code)
}

func TestShareError_ReportsGrantedRecipients(t *testing.T) {
	granted := &service.ShareResult{Recipients: []service.RecipientGrant{
		{UserID: "bob", Added: []string{"label_1_a"}, Skipped: []string{}},
	}}

	t.Run("domain error keeps its code", func(t *testing.T) {
		err := shareError(fmt.Errorf("grant carol: %w", domainerrors.NotFound("user carol has no access index")), granted)

		var de *domainerrors.Error
		require.True(t, errors.As(err, &de))
		assert.Equal(t, domainerrors.CodeNotFound, de.Code)
		assert.Equal(t, map[string]any{"granted": granted.Recipients}, de.Details)
	})

	t.Run("other errors become internal", func(t *testing.T) {
		cause := errors.New("transaction aborted")
		err := shareError(cause, granted)

		var de *domainerrors.Error
		require.True(t, errors.As(err, &de))
		assert.Equal(t, domainerrors.CodeInternal, de.Code)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, map[string]any{"granted": granted.Recipients}, de.Details)
	})

	t.Run("nothing granted returns the error as is", func(t *testing.T) {
		cause := errors.New("boom")
		assert.Same(t, cause, shareError(cause, &service.ShareResult{Recipients: []service.RecipientGrant{}}))
		assert.Same(t, cause, shareError(cause, nil))
	})
}

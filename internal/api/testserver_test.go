package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/labelsync/internal/auth"
	"github.com/listenupapp/labelsync/internal/config"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/migration"
	"github.com/listenupapp/labelsync/internal/reconcile"
	"github.com/listenupapp/labelsync/internal/search"
	"github.com/listenupapp/labelsync/internal/service"
	"github.com/listenupapp/labelsync/internal/sse"
	"github.com/listenupapp/labelsync/internal/store"
)

// testEnvelope decodes the response envelope around a T payload.
type testEnvelope[T any] struct {
	Data    T               `json:"data"`
	Details json.RawMessage `json:"details"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Version int             `json:"v"`
	Success bool            `json:"success"`
}

type testServer struct {
	*Server
	api    humatest.TestAPI
	store  *store.Store
	tokens *auth.TokenService
}

type testOption func(cfg *config.Config, svc *Services, st *store.Store)

func withLegacy(src migration.Source) testOption {
	return func(_ *config.Config, svc *Services, st *store.Store) {
		svc.Migrator = migration.New(src, st, nil)
	}
}

func withSharing(perMinute, burst, maxRecipients int) testOption {
	return func(cfg *config.Config, _ *Services, _ *store.Store) {
		cfg.Sharing = config.SharingConfig{RatePerMinute: perMinute, Burst: burst, MaxRecipients: maxRecipients}
	}
}

// setupTestServer wires the full API over an in-memory store and index.
func setupTestServer(t *testing.T, opts ...testOption) *testServer {
	t.Helper()

	log := logger.Discard()

	index, err := search.NewProfileIndex(search.Options{Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	st, err := store.New("", log, search.NewIndexer(index, log))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	keyHex, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(keyHex, 15*time.Minute)
	require.NoError(t, err)

	cfg := &config.Config{
		Server:  config.ServerConfig{AllowedOrigins: []string{"chrome-extension://*"}},
		Sharing: config.SharingConfig{RatePerMinute: 600, Burst: 100, MaxRecipients: 50},
	}

	profiles := service.NewProfileService(st, index, log)
	services := &Services{
		User:     service.NewUserService(st, log),
		Label:    service.NewLabelService(st, profiles, log),
		Note:     service.NewNoteService(st, profiles, log),
		Template: service.NewTemplateService(st, log),
		Profile:  profiles,
		Sharing:  service.NewSharingService(st, log),
		Search:   index,
	}
	for _, opt := range opts {
		opt(cfg, services, st)
	}

	pool := reconcile.NewPool(reconcile.NewStoreSource(st), log)
	t.Cleanup(pool.Close)
	manager := sse.NewManager(pool, log)

	s := NewServer(st, services, tokens, pool, manager, cfg, log)
	t.Cleanup(s.Close)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
		store:  st,
		tokens: tokens,
	}
}

// token issues an access token for userID.
func (ts *testServer) token(t *testing.T, userID, email string, admin bool) string {
	t.Helper()
	tok, _, err := ts.tokens.IssueAccessToken(auth.Subject{UserID: userID, Email: email, IsAdmin: admin})
	require.NoError(t, err)
	return "Authorization: Bearer " + tok
}

// signUp issues a token and creates the user's access index.
func (ts *testServer) signUp(t *testing.T, userID, email string) string {
	t.Helper()
	header := ts.token(t, userID, email, false)
	resp := ts.api.Post("/api/v1/users/me", header, map[string]any{"displayName": userID})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return header
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env
}

func profileURL(slug string) string {
	return "https://www.linkedin.com/in/" + slug + "/"
}

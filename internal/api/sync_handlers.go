package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/labelsync/internal/reconcile"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSyncState",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/state",
		Summary:     "Get sync state",
		Description: "Returns the caller's owned, shared and pending labels, notes, templates and their profiles",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSyncState)
}

// SyncStateInput contains parameters for reading sync state.
type SyncStateInput struct {
	Authorization string `header:"Authorization"`
}

// SyncStateResponse is the caller's derived state. Partial is set when the
// state was read before every subscription reported in.
type SyncStateResponse struct {
	State   reconcile.State `json:"state" doc:"Derived read models"`
	Partial bool            `json:"partial" doc:"Whether loading had not finished"`
	Error   string          `json:"error,omitempty" doc:"Last subscription error, if any"`
}

// SyncStateOutput wraps the sync state response for Huma.
type SyncStateOutput struct {
	Body SyncStateResponse
}

func (s *Server) handleGetSyncState(ctx context.Context, input *SyncStateInput) (*SyncStateOutput, error) {
	userID, err := s.authenticateUser(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	rec, release := s.pool.Acquire(userID)
	defer release()

	partial := !s.waitReady(ctx, rec)
	st := rec.State()

	out := &SyncStateOutput{Body: SyncStateResponse{State: st, Partial: partial}}
	if st.Err != nil {
		out.Body.Error = st.Err.Error()
	}
	return out, nil
}

// waitReady waits up to readyTimeout for rec's first complete state and
// reports whether it arrived.
func (s *Server) waitReady(ctx context.Context, rec *reconcile.Reconciler) bool {
	ctx, cancel := context.WithTimeout(ctx, s.readyTimeout)
	defer cancel()
	return rec.WaitReady(ctx) == nil
}

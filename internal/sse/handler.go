package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/listenupapp/labelsync/internal/http/response"
	"github.com/listenupapp/labelsync/internal/logger"
)

// Authenticator resolves the user behind a stream request.
type Authenticator func(r *http.Request) (userID string, err error)

const (
	defaultReadyTimeout = 10 * time.Second
	writeTimeout        = 60 * time.Second
)

// Handler serves GET /api/v1/sync/stream.
type Handler struct {
	manager      *Manager
	authenticate Authenticator
	logger       *slog.Logger
	readyTimeout time.Duration
}

// NewHandler creates a stream handler.
func NewHandler(manager *Manager, authenticate Authenticator, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		manager:      manager,
		authenticate: authenticate,
		logger:       log,
		readyTimeout: defaultReadyTimeout,
	}
}

// ServeHTTP authenticates, sends the user's snapshot once their reconciler is
// ready, then streams changes until the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, http.StatusMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	userID, err := h.authenticate(r)
	if err != nil {
		response.Error(w, http.StatusUnauthorized, "authentication required", h.logger)
		return
	}

	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	client, err := h.manager.Connect(userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		response.Error(w, status, "failed to establish connection", h.logger)
		return
	}
	defer h.manager.Disconnect(client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", "error", err)
		return
	}

	log := h.logger.With("client_id", client.ID, "user_id", userID)

	if err := h.send(w, rc, NewConnectedEvent(client.ID, userID)); err != nil {
		log.Warn("failed to send connected event", "error", err)
		return
	}

	readyCtx, cancel := context.WithTimeout(ctx, h.readyTimeout)
	err = client.Reconciler().WaitReady(readyCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	partial := err != nil
	if partial {
		log.Warn("reconciler not ready, sending partial snapshot", "timeout", h.readyTimeout)
	}
	if err := h.sendSnapshot(w, rc, client, SnapshotInitial, partial); err != nil {
		log.Info("client disconnected during snapshot")
		return
	}

	for {
		select {
		case ev := <-client.EventChan:
			if err := h.send(w, rc, ev); err != nil {
				log.Info("client disconnected during send")
				return
			}

		case <-client.Resync():
			log.Warn("client fell behind, resending snapshot")
			if err := h.sendSnapshot(w, rc, client, SnapshotResync, false); err != nil {
				return
			}

		case <-client.Done:
			log.Info("client closed by manager")
			return

		case <-ctx.Done():
			return
		}
	}
}

// sendSnapshot drops buffered changes, which the fresh state already contains.
func (h *Handler) sendSnapshot(w http.ResponseWriter, rc *http.ResponseController, c *Client, reason string, partial bool) error {
	c.Drain()
	return h.send(w, rc, NewSnapshotEvent(c.Reconciler().State(), reason, partial))
}

func (h *Handler) send(w http.ResponseWriter, rc *http.ResponseController, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		h.logger.Debug("failed to set write deadline", "error", err)
	}
	return nil
}

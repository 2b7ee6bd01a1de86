// Package sse pushes each connected user's read-model changes to the browser
// extension over Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/labelsync/internal/reconcile"
)

// EventType is the SSE event name.
type EventType string

const (
	// EventConnected is the first event on every stream.
	EventConnected EventType = "sync.connected"
	// EventSnapshot carries the user's full read models. It is sent once the
	// reconciler is ready, and again whenever the client fell behind.
	EventSnapshot EventType = "sync.snapshot"
	// EventHeartbeat keeps idle connections open through proxies.
	EventHeartbeat EventType = "heartbeat"

	// Change events are named after the reconciler's change kinds.
	EventLabelUpserted    = EventType(reconcile.LabelUpserted)
	EventLabelRemoved     = EventType(reconcile.LabelRemoved)
	EventNoteUpserted     = EventType(reconcile.NoteUpserted)
	EventNoteRemoved      = EventType(reconcile.NoteRemoved)
	EventTemplateUpserted = EventType(reconcile.TemplateUpserted)
	EventTemplateRemoved  = EventType(reconcile.TemplateRemoved)
	EventProfileUpdated   = EventType(reconcile.ProfileUpdated)
	EventProfileRemoved   = EventType(reconcile.ProfileRemoved)
	EventSyncError        = EventType(reconcile.SyncError)
)

// Event is one SSE message. Data is encoded as the JSON payload.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// ConnectedEventData is the payload of EventConnected.
type ConnectedEventData struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
}

// SnapshotEventData is the payload of EventSnapshot.
type SnapshotEventData struct {
	State  reconcile.State `json:"state"`
	Reason string          `json:"reason"`
	// Partial is set when the reconciler was not ready in time and the
	// snapshot may be missing documents still loading.
	Partial bool `json:"partial,omitempty"`
}

// Snapshot reasons.
const (
	SnapshotInitial = "initial"
	SnapshotResync  = "resync"
)

// HeartbeatEventData is the payload of EventHeartbeat.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewConnectedEvent creates the stream's opening event.
func NewConnectedEvent(clientID, userID string) Event {
	return Event{
		Type:      EventConnected,
		Timestamp: time.Now(),
		Data:      ConnectedEventData{ClientID: clientID, UserID: userID},
	}
}

// NewSnapshotEvent wraps a full read-model state.
func NewSnapshotEvent(st reconcile.State, reason string, partial bool) Event {
	return Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Data:      SnapshotEventData{State: st, Reason: reason, Partial: partial},
	}
}

// NewChangeEvent wraps one reconciler change. The change itself is the payload.
func NewChangeEvent(c reconcile.Change) Event {
	return Event{
		Type:      EventType(c.Kind),
		Timestamp: time.Now(),
		Data:      c,
	}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}

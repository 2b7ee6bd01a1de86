package sse

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/labelsync/internal/id"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/reconcile"
)

// ErrShuttingDown is returned by Connect once Shutdown has begun.
var ErrShuttingDown = errors.New("sse manager is shutting down")

const (
	defaultHeartbeatInterval = 30 * time.Second
	clientBufferSize         = 256
)

// Client is one connected stream. Events for the user arrive on EventChan.
// When the buffer overflows, events are dropped and Resync fires; the
// handler then replaces the client's view with a fresh snapshot.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	resync      chan struct{}
	rec         *reconcile.Reconciler
	release     func()
	unsubscribe func()
	ID          string
	UserID      string
	closeOnce   sync.Once
}

// Reconciler returns the user's reconciler backing this stream.
func (c *Client) Reconciler() *reconcile.Reconciler {
	return c.rec
}

// Resync fires after the client missed events.
func (c *Client) Resync() <-chan struct{} {
	return c.resync
}

// push never blocks; the reconciler calls it from store goroutines.
func (c *Client) push(ev Event) bool {
	select {
	case <-c.Done:
		return false
	default:
	}
	select {
	case c.EventChan <- ev:
		return true
	default:
		select {
		case c.resync <- struct{}{}:
		default:
		}
		return false
	}
}

// Drain discards buffered events. Called before a snapshot, which supersedes them.
func (c *Client) Drain() int {
	n := 0
	for {
		select {
		case <-c.EventChan:
			n++
		default:
			return n
		}
	}
}

// close detaches the client from its reconciler. EventChan is left open so a
// push racing with close cannot panic.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.Done)
		c.unsubscribe()
		c.release()
	})
}

// Manager tracks stream clients and feeds them from the reconciler pool.
type Manager struct {
	pool              *reconcile.Pool
	clients           map[string]*Client
	logger            *slog.Logger
	wg                sync.WaitGroup
	heartbeatInterval time.Duration
	mu                sync.RWMutex
	shutdown          bool
}

// NewManager creates a Manager reading from pool.
func NewManager(pool *reconcile.Pool, log *slog.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		pool:              pool,
		clients:           make(map[string]*Client),
		logger:            log,
		heartbeatInterval: defaultHeartbeatInterval,
	}
}

// SetHeartbeatInterval changes the keepalive period. Call before Start.
func (m *Manager) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		m.heartbeatInterval = d
	}
}

// Start sends heartbeats until ctx is done, then disconnects every client.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("SSE manager starting", "heartbeat", m.heartbeatInterval)

	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.broadcast(NewHeartbeatEvent())
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown refuses new clients, disconnects existing ones and waits for Start to return.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()

	m.closeAllClients()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("SSE manager shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a stream for userID and subscribes it to the user's
// reconciler. Changes emitted from now on are buffered on EventChan.
func (m *Manager) Connect(userID string) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return nil, ErrShuttingDown
	}

	rec, release := m.pool.Acquire(userID)
	client := &Client{
		ID:          clientID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		EventChan:   make(chan Event, clientBufferSize),
		Done:        make(chan struct{}),
		resync:      make(chan struct{}, 1),
		rec:         rec,
		release:     release,
	}
	client.unsubscribe = rec.Subscribe(func(c reconcile.Change) {
		if !client.push(NewChangeEvent(c)) {
			m.logger.Debug("dropped change for slow client", "client_id", clientID, "kind", c.Kind)
		}
	})
	m.clients[clientID] = client

	m.logger.Info("SSE client connected",
		"client_id", clientID,
		"user_id", userID,
		"total_clients", len(m.clients))
	return client, nil
}

// Disconnect removes a client and releases its reconciler.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
	}
	total := len(m.clients)
	m.mu.Unlock()

	if !ok {
		return
	}
	client.close()

	m.logger.Info("SSE client disconnected",
		"client_id", clientID,
		"user_id", client.UserID,
		"duration", time.Since(client.ConnectedAt),
		"total_clients", total)
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) broadcast(ev Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		c.push(ev)
	}
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		m.logger.Info("all SSE clients disconnected", "count", len(clients))
	}
}

package reconcile

import (
	"log/slog"
	"sync"

	"github.com/listenupapp/labelsync/internal/logger"
)

// Pool shares one running Reconciler per user between stream connections and
// API reads. A Reconciler lives while at least one caller holds it.
type Pool struct {
	src     Source
	logger  *slog.Logger
	entries map[string]*poolEntry
	mu      sync.Mutex
	closed  bool
}

type poolEntry struct {
	rec  *Reconciler
	refs int
}

// NewPool creates an empty pool reading from src.
func NewPool(src Source, log *slog.Logger) *Pool {
	if log == nil {
		log = logger.Discard()
	}
	return &Pool{src: src, logger: log, entries: map[string]*poolEntry{}}
}

// Acquire returns the user's Reconciler, starting one if needed. Call release
// exactly once when done; extra calls are ignored.
func (p *Pool) Acquire(userID string) (rec *Reconciler, release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[userID]
	if !ok || p.closed {
		e = &poolEntry{rec: New(p.src, userID, p.logger)}
		if !p.closed {
			p.entries[userID] = e
		}
		e.rec.Start()
	}
	e.refs++

	var once sync.Once
	return e.rec, func() {
		once.Do(func() { p.release(userID, e) })
	}
}

func (p *Pool) release(userID string, e *poolEntry) {
	p.mu.Lock()
	e.refs--
	last := e.refs == 0
	if last && p.entries[userID] == e {
		delete(p.entries, userID)
	}
	p.mu.Unlock()

	if last {
		e.rec.Close()
	}
}

// Len returns the number of users with a live Reconciler.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close stops every Reconciler. Later Acquire calls get unpooled instances.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	entries := p.entries
	p.entries = map[string]*poolEntry{}
	p.mu.Unlock()

	for _, e := range entries {
		e.rec.Close()
	}
	p.logger.Info("reconciler pool closed", "users", len(entries))
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/util"
)

// Collection names. They double as key prefixes in Badger.
const (
	CollectionProfiles  = "profiles"
	CollectionLabels    = "profile_labels_v2"
	CollectionNotes     = "profile_notes_v2"
	CollectionUsers     = "users_v2"
	CollectionTemplates = "message_templates_v2"
)

// EventEmitter receives every committed document change.
// The store uses it to feed side indexes without depending on them.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Change describes one committed document write. Data is nil for deletes.
type Change struct {
	Collection string
	ID         string
	Data       []byte
	Deleted    bool
}

// Option tunes a Store.
type Option func(*Store)

// WithTxRetry sets how many times a conflicting transaction is attempted and
// the initial backoff between attempts.
func WithTxRetry(attempts uint, delay time.Duration) Option {
	return func(s *Store) {
		s.txAttempts = attempts
		s.txDelay = delay
	}
}

// Store wraps a Badger database and exposes it as a small document store with
// transactions and live per-document subscriptions.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	eventEmitter EventEmitter
	hub          *hub

	// commitMu serializes commit+publish so subscribers see per-document
	// changes in commit order and Watch can register without gaps.
	commitMu sync.Mutex

	txAttempts uint
	txDelay    time.Duration

	Profiles  *Entity[domain.Profile]
	Labels    *Entity[domain.Label]
	Notes     *Entity[domain.Note]
	Templates *Entity[domain.MessageTemplate]
	Users     *Entity[domain.UserAccess]
}

// New opens (or creates) the Badger database at path. An empty path opens an
// in-memory database.
func New(path string, log *slog.Logger, emitter EventEmitter, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	if emitter == nil {
		emitter = NoopEmitter{}
	}

	bopts := badger.DefaultOptions(path)
	if path == "" {
		bopts = bopts.WithInMemory(true)
	} else {
		bopts.SyncWrites = true
		bopts.CompactL0OnClose = true
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{
		db:           db,
		logger:       log,
		eventEmitter: emitter,
		hub:          newHub(),
		txAttempts:   8,
		txDelay:      5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Profiles = NewEntity[domain.Profile](s, CollectionProfiles)
	s.Labels = NewEntity[domain.Label](s, CollectionLabels)
	s.Notes = NewEntity[domain.Note](s, CollectionNotes)
	s.Templates = NewEntity[domain.MessageTemplate](s, CollectionTemplates)
	s.Users = NewEntity[domain.UserAccess](s, CollectionUsers).
		WithIndexTransform("email",
			func(u *domain.UserAccess) []string {
				if u.Email == "" {
					return nil
				}
				return []string{util.NormalizeEmail(u.Email)}
			},
			util.NormalizeEmail,
		)

	log.Info("Badger database opened", "path", path, "in_memory", path == "")
	return s, nil
}

// Close ends every live subscription and closes the database.
func (s *Store) Close() error {
	s.hub.closeAll()
	s.logger.Info("Closing database connection")
	return s.db.Close()
}

// UserByEmail looks up an Access Index by email, case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.UserAccess, error) {
	return s.Users.GetByIndex(ctx, "email", email)
}

// RunTransaction runs fn inside a read-write transaction and commits it.
// Badger detects read-write conflicts at commit; the whole function is then
// retried with backoff, so fn must not have side effects outside tx.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	err := retry.Do(
		func() error { return s.runOnce(ctx, fn) },
		retry.Context(ctx),
		retry.Attempts(s.txAttempts),
		retry.Delay(s.txDelay),
		retry.MaxDelay(250*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, badger.ErrConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("transaction conflict, retrying", "attempt", n+1, "error", err)
		}),
	)
	if errors.Is(err, badger.ErrConflict) {
		return ErrConflict.WithCause(err)
	}
	return err
}

func (s *Store) runOnce(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	tx := &Tx{txn: txn, seen: make(map[string]int)}
	if err := fn(tx); err != nil {
		return err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := txn.Commit(); err != nil {
		return err
	}
	s.publish(tx.changes)
	return nil
}

// publish fans committed changes out to watchers and the emitter. Callers hold commitMu.
func (s *Store) publish(changes []Change) {
	for _, c := range changes {
		s.hub.deliver(c.Collection+":"+c.ID, event{data: c.Data})
		s.eventEmitter.Emit(c)
	}
}

// read returns the raw document at key, or nil if it does not exist.
func (s *Store) read(key []byte) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// Tx is a read-write transaction handed to RunTransaction callbacks.
type Tx struct {
	txn     *badger.Txn
	seen    map[string]int
	changes []Change
}

func (tx *Tx) get(key []byte) ([]byte, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return item.ValueCopy(nil)
}

func (tx *Tx) record(c Change) {
	k := c.Collection + ":" + c.ID
	if i, ok := tx.seen[k]; ok {
		tx.changes[i] = c
		return
	}
	tx.seen[k] = len(tx.changes)
	tx.changes = append(tx.changes, c)
}

// Package legacy reads the pre-normalization per-user documents exported from
// the old extension backend. Each collection holds at most one flat JSON
// document per user in the legacy_documents table of a SQLite file.
package legacy

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// Legacy collection names.
const (
	CollectionLabels    = "labels"
	CollectionSettings  = "settings"
	CollectionNotes     = "notes"
	CollectionShortcuts = "shortcuts"
	CollectionSheets    = "sheets"
)

// Store reads legacy documents.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	readOnly bool
}

// Open opens an existing legacy export read-only.
func Open(path string, log *slog.Logger) (*Store, error) {
	return open("file:"+path+"?mode=ro&_pragma=busy_timeout(5000)", true, log)
}

// Create opens or creates a writable legacy file, creating the table if
// needed. It is used to build fixtures and to load exports.
func Create(path string, log *slog.Logger) (*Store, error) {
	s, err := open("file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", false, log)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}
	return s, nil
}

func open(dsn string, readOnly bool, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open legacy sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open legacy sqlite: %w", err)
	}
	return &Store{db: db, logger: log, readOnly: readOnly}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListUsers returns every user id with at least one legacy document, sorted.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM legacy_documents ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list legacy users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan legacy user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Labels returns the user's labels document, empty if absent.
func (s *Store) Labels(ctx context.Context, userID string) (*domain.LegacyLabels, error) {
	return get[domain.LegacyLabels](ctx, s, CollectionLabels, userID)
}

// Settings returns the user's settings document, empty if absent.
func (s *Store) Settings(ctx context.Context, userID string) (*domain.LegacySettings, error) {
	return get[domain.LegacySettings](ctx, s, CollectionSettings, userID)
}

// Notes returns the user's notes document, empty if absent.
func (s *Store) Notes(ctx context.Context, userID string) (*domain.LegacyNotes, error) {
	return get[domain.LegacyNotes](ctx, s, CollectionNotes, userID)
}

// Shortcuts returns the user's shortcuts document, empty if absent.
func (s *Store) Shortcuts(ctx context.Context, userID string) (*domain.LegacyShortcuts, error) {
	return get[domain.LegacyShortcuts](ctx, s, CollectionShortcuts, userID)
}

// Sheets returns the user's sheets document, empty if absent.
func (s *Store) Sheets(ctx context.Context, userID string) (*domain.LegacySheets, error) {
	return get[domain.LegacySheets](ctx, s, CollectionSheets, userID)
}

// Put stores v as the user's document in collection, replacing any previous one.
func (s *Store) Put(ctx context.Context, collection, userID string, v any) error {
	if s.readOnly {
		return errors.New("legacy store is read-only")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal legacy %s: %w", collection, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO legacy_documents (collection, user_id, data) VALUES (?, ?, ?)
		 ON CONFLICT (collection, user_id) DO UPDATE SET data = excluded.data`,
		collection, userID, string(data),
	)
	if err != nil {
		return fmt.Errorf("put legacy %s for %s: %w", collection, userID, err)
	}
	return nil
}

func get[T any](ctx context.Context, s *Store, collection, userID string) (*T, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM legacy_documents WHERE collection = ? AND user_id = ?`,
		collection, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return new(T), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy %s for %s: %w", collection, userID, err)
	}

	v := new(T)
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return nil, fmt.Errorf("decode legacy %s for %s: %w", collection, userID, err)
	}
	return v, nil
}

package search

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/store"
)

// Indexer keeps a ProfileIndex in step with committed profile documents.
// It implements store.EventEmitter; other collections are ignored.
type Indexer struct {
	index  *ProfileIndex
	logger *slog.Logger
}

// NewIndexer creates an Indexer writing into index.
func NewIndexer(index *ProfileIndex, log *slog.Logger) *Indexer {
	if log == nil {
		log = logger.Discard()
	}
	return &Indexer{index: index, logger: log}
}

// Emit implements store.EventEmitter.
func (ix *Indexer) Emit(event any) {
	c, ok := event.(store.Change)
	if !ok || c.Collection != store.CollectionProfiles {
		return
	}

	if c.Deleted {
		if err := ix.index.Delete(c.ID); err != nil {
			ix.logger.Warn("failed to remove profile from search index", "profile_id", c.ID, "error", err)
		}
		return
	}

	var p domain.Profile
	if err := json.Unmarshal(c.Data, &p); err != nil {
		ix.logger.Warn("failed to decode profile for indexing", "profile_id", c.ID, "error", err)
		return
	}
	if err := ix.index.Index(NewProfileDocument(&p)); err != nil {
		ix.logger.Warn("failed to index profile", "profile_id", c.ID, "error", err)
	}
}

// Reindex rebuilds the index from every stored profile.
func (ix *Indexer) Reindex(ctx context.Context, s *store.Store) (int, error) {
	if err := ix.index.Rebuild(); err != nil {
		return 0, err
	}

	var docs []*ProfileDocument
	for p, err := range s.Profiles.List(ctx) {
		if err != nil {
			return 0, err
		}
		docs = append(docs, NewProfileDocument(p))
	}
	if err := ix.index.IndexAll(docs); err != nil {
		return 0, err
	}
	ix.logger.Info("search index rebuilt", "profiles", len(docs))
	return len(docs), nil
}

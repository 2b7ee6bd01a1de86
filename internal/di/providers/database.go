package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/listenupapp/labelsync/internal/config"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/search"
	"github.com/listenupapp/labelsync/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the document store. Committed profile changes flow
// into the search index.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	indexer := do.MustInvoke[*search.Indexer](i)

	dbPath := cfg.Data.StorePath()
	db, err := store.New(dbPath, log.Logger, indexer)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}

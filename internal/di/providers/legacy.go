package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/labelsync/internal/config"
	"github.com/listenupapp/labelsync/internal/legacy"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/migration"
)

// MigratorHandle holds the legacy migrator. Migrator is nil when no legacy
// export is configured.
type MigratorHandle struct {
	*migration.Migrator
	src *legacy.Store
}

// Shutdown implements do.Shutdownable.
func (h *MigratorHandle) Shutdown() error {
	if h.src == nil {
		return nil
	}
	return h.src.Close()
}

// ProvideMigrator opens the legacy export read-only and builds a migrator
// over it.
func ProvideMigrator(i do.Injector) (*MigratorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Legacy.Path == "" {
		log.Info("No legacy export configured, migration disabled")
		return &MigratorHandle{}, nil
	}

	src, err := legacy.Open(cfg.Legacy.Path, log.Component("legacy"))
	if err != nil {
		return nil, err
	}

	log.Info("Legacy export opened", "path", cfg.Legacy.Path)

	return &MigratorHandle{
		Migrator: migration.New(src, storeHandle.Store, log.Component("migration")),
		src:      src,
	}, nil
}

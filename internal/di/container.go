// Package di provides dependency injection configuration for the LabelSync server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/labelsync/internal/auth"
	"github.com/listenupapp/labelsync/internal/config"
	"github.com/listenupapp/labelsync/internal/di/providers"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/search"
	"github.com/listenupapp/labelsync/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideIndexer)

	// Database layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideMigrator)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideProfileService)
	do.Provide(injector, providers.ProvideLabelService)
	do.Provide(injector, providers.ProvideNoteService)
	do.Provide(injector, providers.ProvideTemplateService)
	do.Provide(injector, providers.ProvideSharingService)

	// Sync
	do.Provide(injector, providers.ProvideReconcilerPool)
	do.Provide(injector, providers.ProvideSSEManager)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*search.Indexer](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.MigratorHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.UserService](injector)
	_ = do.MustInvoke[*service.ProfileService](injector)
	_ = do.MustInvoke[*service.LabelService](injector)
	_ = do.MustInvoke[*service.NoteService](injector)
	_ = do.MustInvoke[*service.TemplateService](injector)
	_ = do.MustInvoke[*service.SharingService](injector)

	// Sync
	_ = do.MustInvoke[*providers.PoolHandle](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}

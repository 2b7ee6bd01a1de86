package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/labelsync/internal/config"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/reconcile"
	"github.com/listenupapp/labelsync/internal/service"
	"github.com/listenupapp/labelsync/internal/sse"
)

// ProvideUserService provides the Access Index service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, log.Component("users")), nil
}

// ProvideProfileService provides the profile service.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProfileService(storeHandle.Store, indexHandle.ProfileIndex, log.Component("profiles")), nil
}

// ProvideLabelService provides the label service.
func ProvideLabelService(i do.Injector) (*service.LabelService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	profiles := do.MustInvoke[*service.ProfileService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLabelService(storeHandle.Store, profiles, log.Component("labels")), nil
}

// ProvideNoteService provides the note service.
func ProvideNoteService(i do.Injector) (*service.NoteService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	profiles := do.MustInvoke[*service.ProfileService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNoteService(storeHandle.Store, profiles, log.Component("notes")), nil
}

// ProvideTemplateService provides the message template service.
func ProvideTemplateService(i do.Injector) (*service.TemplateService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTemplateService(storeHandle.Store, log.Component("templates")), nil
}

// ProvideSharingService provides the sharing workflow.
func ProvideSharingService(i do.Injector) (*service.SharingService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSharingService(storeHandle.Store, log.Component("sharing")), nil
}

// PoolHandle wraps the reconciler pool with shutdown capability.
type PoolHandle struct {
	*reconcile.Pool
}

// Shutdown implements do.Shutdownable.
func (h *PoolHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideReconcilerPool provides the per-user reconciler pool.
func ProvideReconcilerPool(i do.Injector) (*PoolHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	pool := reconcile.NewPool(reconcile.NewStoreSource(storeHandle.Store), log.Component("reconcile"))
	return &PoolHandle{Pool: pool}, nil
}

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the sync stream manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	poolHandle := do.MustInvoke[*PoolHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(poolHandle.Pool, log.Component("sse"))
	manager.SetHeartbeatInterval(cfg.Server.HeartbeatInterval)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started", "heartbeat", cfg.Server.HeartbeatInterval)

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

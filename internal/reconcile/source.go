package reconcile

import (
	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/store"
	"github.com/listenupapp/labelsync/internal/subscription"
)

// Source supplies live per-document subscriptions. Implementations deliver the
// current state first and then every change, in order, per document. There is
// no ordering across documents.
type Source interface {
	WatchAccess(userID string, fn func(store.Snapshot[domain.UserAccess])) subscription.Closer
	WatchLabel(id string, fn func(store.Snapshot[domain.Label])) subscription.Closer
	WatchNote(id string, fn func(store.Snapshot[domain.Note])) subscription.Closer
	WatchTemplate(id string, fn func(store.Snapshot[domain.MessageTemplate])) subscription.Closer
	WatchProfile(id string, fn func(store.Snapshot[domain.Profile])) subscription.Closer
}

// StoreSource reads subscriptions from the Badger store.
type StoreSource struct {
	Store *store.Store
}

// NewStoreSource wraps s.
func NewStoreSource(s *store.Store) *StoreSource {
	return &StoreSource{Store: s}
}

// WatchAccess implements Source.
func (s *StoreSource) WatchAccess(userID string, fn func(store.Snapshot[domain.UserAccess])) subscription.Closer {
	return s.Store.Users.Watch(userID, fn)
}

// WatchLabel implements Source.
func (s *StoreSource) WatchLabel(id string, fn func(store.Snapshot[domain.Label])) subscription.Closer {
	return s.Store.Labels.Watch(id, fn)
}

// WatchNote implements Source.
func (s *StoreSource) WatchNote(id string, fn func(store.Snapshot[domain.Note])) subscription.Closer {
	return s.Store.Notes.Watch(id, fn)
}

// WatchTemplate implements Source.
func (s *StoreSource) WatchTemplate(id string, fn func(store.Snapshot[domain.MessageTemplate])) subscription.Closer {
	return s.Store.Templates.Watch(id, fn)
}

// WatchProfile implements Source.
func (s *StoreSource) WatchProfile(id string, fn func(store.Snapshot[domain.Profile])) subscription.Closer {
	return s.Store.Profiles.Watch(id, fn)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic document operations for one collection.
type Entity[T any] struct {
	store      *Store
	collection string
	prefix     string
	indexes    []Index[T]
}

// Index defines a secondary index on an entity.
type Index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string
}

// NewEntity creates an Entity for the named collection.
func NewEntity[T any](s *Store, collection string) *Entity[T] {
	return &Entity[T]{
		store:      s,
		collection: collection,
		prefix:     collection + ":",
	}
}

// WithIndex adds a unique secondary index.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen})
	return e
}

// WithIndexTransform adds a unique secondary index whose lookups are
// normalized by lookupTransform (case folding and the like).
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, lookupTransform: lookupTransform})
	return e
}

// Collection returns the collection name.
func (e *Entity[T]) Collection() string {
	return e.collection
}

func (e *Entity[T]) key(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexKey(name, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value)
}

func (e *Entity[T]) decode(data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s document: %w", e.collection, err)
	}
	return &v, nil
}

// Get retrieves a document by ID. Returns ErrNotFound if it does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := e.store.read(e.key(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return e.decode(data)
}

// Exists reports whether a document exists.
func (e *Entity[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, err := e.store.read(e.key(id))
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// GetByIndex retrieves a document through a secondary index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, idx := range e.indexes {
		if idx.name == indexName && idx.lookupTransform != nil {
			value = idx.lookupTransform(value)
			break
		}
	}

	id, err := e.store.read(e.indexKey(indexName, value))
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrNotFound
	}
	return e.Get(ctx, string(id))
}

// Create writes a new document. Returns ErrAlreadyExists if the ID or any
// unique index value is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, v *T) error {
	return e.store.RunTransaction(ctx, func(tx *Tx) error {
		return e.CreateTx(tx, id, v)
	})
}

// Put creates or replaces a document.
func (e *Entity[T]) Put(ctx context.Context, id string, v *T) error {
	return e.store.RunTransaction(ctx, func(tx *Tx) error {
		return e.PutTx(tx, id, v)
	})
}

// Update replaces an existing document. Returns ErrNotFound if it does not exist.
func (e *Entity[T]) Update(ctx context.Context, id string, v *T) error {
	return e.store.RunTransaction(ctx, func(tx *Tx) error {
		if _, err := e.GetTx(tx, id); err != nil {
			return err
		}
		return e.PutTx(tx, id, v)
	})
}

// Mutate runs a read-modify-write of one document inside a transaction and
// returns the stored result. fn may run more than once on conflict.
func (e *Entity[T]) Mutate(ctx context.Context, id string, fn func(v *T) error) (*T, error) {
	var out *T
	err := e.store.RunTransaction(ctx, func(tx *Tx) error {
		v, err := e.GetTx(tx, id)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		out = v
		return e.PutTx(tx, id, v)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	return e.store.RunTransaction(ctx, func(tx *Tx) error {
		return e.DeleteTx(tx, id)
	})
}

// GetTx reads a document inside tx, registering it for conflict detection.
func (e *Entity[T]) GetTx(tx *Tx, id string) (*T, error) {
	data, err := tx.get(e.key(id))
	if err != nil {
		return nil, err
	}
	return e.decode(data)
}

// ExistsTx reports whether a document exists inside tx.
func (e *Entity[T]) ExistsTx(tx *Tx, id string) (bool, error) {
	_, err := tx.get(e.key(id))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CreateTx writes a new document inside tx.
func (e *Entity[T]) CreateTx(tx *Tx, id string, v *T) error {
	exists, err := e.ExistsTx(tx, id)
	if err != nil {
		return fmt.Errorf("failed to check existing key: %w", err)
	}
	if exists {
		return ErrAlreadyExists
	}
	return e.write(tx, id, nil, v)
}

// PutTx creates or replaces a document inside tx, keeping indexes in step.
func (e *Entity[T]) PutTx(tx *Tx, id string, v *T) error {
	old, err := e.GetTx(tx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return e.write(tx, id, old, v)
}

// DeleteTx removes a document and its index entries inside tx.
func (e *Entity[T]) DeleteTx(tx *Tx, id string) error {
	old, err := e.GetTx(tx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(old) {
			if err := tx.txn.Delete(e.indexKey(idx.name, value)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	if err := tx.txn.Delete(e.key(id)); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	tx.record(Change{Collection: e.collection, ID: id, Deleted: true})
	return nil
}

// write stores v under id, replacing old's index entries with v's.
func (e *Entity[T]) write(tx *Tx, id string, old, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", e.collection, err)
	}

	for _, idx := range e.indexes {
		previous := make(map[string]bool)
		if old != nil {
			for _, value := range idx.keyGen(old) {
				previous[value] = true
			}
		}
		next := make(map[string]bool)
		for _, value := range idx.keyGen(v) {
			next[value] = true
			if previous[value] {
				continue
			}
			owner, err := tx.get(e.indexKey(idx.name, value))
			if err == nil && string(owner) != id {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, value, ErrAlreadyExists)
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("failed to check index key: %w", err)
			}
			if err := tx.txn.Set(e.indexKey(idx.name, value), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
		for value := range previous {
			if next[value] {
				continue
			}
			if err := tx.txn.Delete(e.indexKey(idx.name, value)); err != nil {
				return fmt.Errorf("failed to delete old index key: %w", err)
			}
		}
	}

	if err := tx.txn.Set(e.key(id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	tx.record(Change{Collection: e.collection, ID: id, Data: data})
	return nil
}

// List returns an iterator over all documents in the collection.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.prefix)
		_ = e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				item := it.Item()
				if strings.HasPrefix(string(item.Key()[len(prefix):]), "idx:") {
					continue
				}

				var v *T
				err := item.Value(func(val []byte) error {
					var derr error
					v, derr = e.decode(val)
					return derr
				})
				if err != nil {
					yield(nil, err)
					return err
				}
				if !yield(v, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// Snapshot is one emission of a watched document.
type Snapshot[T any] struct {
	Doc    *T
	Err    error
	ID     string
	Exists bool
}

// Watch subscribes to a single document. fn first receives the current state
// (Exists=false when missing) and then every committed change, in commit
// order, on a goroutine owned by the subscription. Read or decode failures
// arrive as a Snapshot with Err set.
func (e *Entity[T]) Watch(id string, fn func(Snapshot[T])) *Subscription {
	key := e.prefix + id

	e.store.commitMu.Lock()
	defer e.store.commitMu.Unlock()

	sub := e.store.hub.subscribe(key, func(ev event) {
		snap := Snapshot[T]{ID: id, Err: ev.err}
		if ev.err == nil && ev.data != nil {
			snap.Doc, snap.Err = e.decode(ev.data)
			snap.Exists = snap.Err == nil
		}
		fn(snap)
	})

	data, err := e.store.read([]byte(key))
	sub.push(event{data: data, err: err})
	return sub
}

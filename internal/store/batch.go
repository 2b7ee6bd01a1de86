package store

import "context"

// Batch stages writes across collections and commits them atomically.
type Batch struct {
	store *Store
	ops   []func(tx *Tx) error
}

// NewBatch starts an empty batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s}
}

// Stage queues a create-or-replace of v under id. v must not be modified
// until the batch is committed.
func (e *Entity[T]) Stage(b *Batch, id string, v *T) {
	b.ops = append(b.ops, func(tx *Tx) error {
		return e.PutTx(tx, id, v)
	})
}

// Len returns the number of staged writes.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Commit applies every staged write in one transaction.
func (b *Batch) Commit(ctx context.Context) error {
	return b.store.RunTransaction(ctx, func(tx *Tx) error {
		for _, op := range b.ops {
			if err := op(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

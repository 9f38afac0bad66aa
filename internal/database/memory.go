package database

import (
	"context"
	"sync"
)

type journalKey struct{}

type journal struct {
	mu   sync.Mutex
	undo []func()
}

// MemoryTransactor gives in-memory repositories all-or-nothing semantics.
// Writes made inside WithinTx register an undo step with OnRollback; if fn
// fails the steps run in reverse order.
type MemoryTransactor struct{}

// NewMemoryTransactor creates a new MemoryTransactor.
func NewMemoryTransactor() *MemoryTransactor {
	return &MemoryTransactor{}
}

// WithinTx runs fn and reverts recorded writes if it returns an error.
func (t *MemoryTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.mu.Lock()
		defer j.mu.Unlock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}

// OnRollback registers undo to run if the surrounding memory transaction
// fails. Outside a transaction it is a no-op.
func OnRollback(ctx context.Context, undo func()) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	if !ok {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, undo)
	j.mu.Unlock()
}

var _ Transactor = (*MemoryTransactor)(nil)

package storage

import (
	"context"
	"fmt"
	"sync"

	"collections-platform/internal/bills"
	"collections-platform/internal/calls"
)

// MemoryUnitOfWork serializes units over in-memory stores and restores a
// snapshot when fn fails or panics. For tests.
type MemoryUnitOfWork struct {
	mu    sync.Mutex
	Calls *calls.MemoryStore
	Bills *bills.MemoryStore
}

func NewMemoryUnitOfWork(c *calls.MemoryStore, b *bills.MemoryStore) *MemoryUnitOfWork {
	return &MemoryUnitOfWork{Calls: c, Bills: b}
}

func (u *MemoryUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) (err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	callSnap := u.Calls.Snapshot()
	billSnap := u.Bills.Snapshot()
	defer func() {
		if p := recover(); p != nil {
			u.Calls.Restore(callSnap)
			u.Bills.Restore(billSnap)
			panic(p)
		}
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			u.Calls.Restore(callSnap)
			u.Bills.Restore(billSnap)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return fn(ctx, Repos{Calls: u.Calls, Bills: u.Bills})
}

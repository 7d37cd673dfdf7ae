package bills

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory bill store for tests.
type MemoryStore struct {
	mu       sync.Mutex
	bills    map[int64]Bill
	reminder time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bills: map[int64]Bill{}, reminder: DefaultReminderInterval}
}

func (s *MemoryStore) Put(b Bill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Status == "" {
		b.Status = StatusPending
	}
	s.bills[b.ID] = b
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return Bill{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) MarkCalled(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	next := at.Add(s.reminder)
	b.Status = StatusCalled
	b.CallAttempts++
	b.LastCallDate = &at
	b.NextReminderDate = &next
	s.bills[id] = b
	return nil
}

func (s *MemoryStore) AppendNote(_ context.Context, id int64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[id]
	if !ok {
		return ErrNotFound
	}
	b.Notes = appendLine(b.Notes, note)
	s.bills[id] = b
	return nil
}

func (s *MemoryStore) Snapshot() map[int64]Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]Bill, len(s.bills))
	for id, b := range s.bills {
		out[id] = b
	}
	return out
}

func (s *MemoryStore) Restore(snap map[int64]Bill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills = snap
}

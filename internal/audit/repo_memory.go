package audit

import (
	"context"
	"errors"
	"sync"
)

// MemoryRepo keeps audit events in memory for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	// Fail makes Append return an error, to exercise best-effort callers.
	Fail bool
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return errors.New("audit: memory repo failing")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType returns the events of one type in append order.
func (r *MemoryRepo) ByType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

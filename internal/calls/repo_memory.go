package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory call-log store useful for tests.
// It is not intended for production use.
type MemoryStore struct {
	mu      sync.Mutex
	records map[int64]Record
	nextID  int64
	clock   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[int64]Record{}, clock: time.Now}
}

// Create inserts a record, assigning ID and CreatedAt when unset.
func (s *MemoryStore) Create(rec Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == 0 {
		s.nextID++
		rec.ID = s.nextID
	} else if rec.ID > s.nextID {
		s.nextID = rec.ID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = StatusInitiated
	}
	s.records[rec.ID] = rec.Clone()
	return rec.Clone()
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) FindByExternalID(_ context.Context, externalID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ExternalCallID != nil && *r.ExternalCallID == externalID {
			return r.Clone(), nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *MemoryStore) FindMostRecent(_ context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  Record
		found bool
	)
	for _, r := range s.records {
		if !found || newer(r, best) {
			best, found = r, true
		}
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return best.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		return ErrNotFound
	}
	rec.UpdatedAt = s.clock().UTC()
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]Record, error) {
	f = f.withDefaults()
	s.mu.Lock()
	all := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if f.matches(r) {
			all = append(all, r.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return newer(all[i], all[j]) })
	if f.Offset >= len(all) {
		return []Record{}, nil
	}
	all = all[f.Offset:]
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

// Snapshot copies the current contents; Restore puts them back.
func (s *MemoryStore) Snapshot() map[int64]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]Record, len(s.records))
	for id, r := range s.records {
		out[id] = r.Clone()
	}
	return out
}

func (s *MemoryStore) Restore(snap map[int64]Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = snap
}

func newer(a, b Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

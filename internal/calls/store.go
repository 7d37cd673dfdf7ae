package calls

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// Store is the call-log persistence contract.
// Records are never deleted through it.
type Store interface {
	Finder
	FindByID(ctx context.Context, id int64) (Record, error)
	Save(ctx context.Context, rec Record) error
	List(ctx context.Context, f ListFilter) ([]Record, error)
}

// ListFilter narrows List. Zero values mean "no filter".
// Created is a half-open range [From, To).
type ListFilter struct {
	BillID int64
	Status Status
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (f ListFilter) withDefaults() ListFilter {
	out := f
	if out.Limit <= 0 {
		out.Limit = defaultListLimit
	}
	if out.Limit > maxListLimit {
		out.Limit = maxListLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

func (f ListFilter) matches(r Record) bool {
	if f.BillID != 0 && r.BillID != f.BillID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

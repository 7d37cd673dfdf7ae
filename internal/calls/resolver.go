package calls

import (
	"context"
	"errors"

	"collections-platform/internal/events"
)

// Finder is the lookup part of the call-log store used by the resolver.
type Finder interface {
	FindByExternalID(ctx context.Context, externalID string) (Record, error)
	FindMostRecent(ctx context.Context) (Record, error)
}

// FallbackPolicy picks a record for an event whose call id is absent or unmatched.
// Returning ErrNotFound means the event is dropped.
type FallbackPolicy func(ctx context.Context, f Finder, ev events.CallEvent) (Record, error)

// MostRecentCall attributes the event to the newest call record.
// It misattributes events when several calls are in flight at once.
func MostRecentCall(ctx context.Context, f Finder, _ events.CallEvent) (Record, error) {
	return f.FindMostRecent(ctx)
}

// NoFallback drops every event that does not match by call id.
func NoFallback(context.Context, Finder, events.CallEvent) (Record, error) {
	return Record{}, ErrNotFound
}

// Resolver maps events to the call record they concern.
type Resolver struct {
	Fallback FallbackPolicy
}

func NewResolver() Resolver {
	return Resolver{Fallback: MostRecentCall}
}

// Resolve returns the record for ev and whether the fallback policy chose it.
// A nil record means the event should be dropped. Errors are store failures only.
func (r Resolver) Resolve(ctx context.Context, f Finder, ev events.CallEvent) (*Record, bool, error) {
	if ev.CallID != "" {
		rec, err := f.FindByExternalID(ctx, ev.CallID)
		switch {
		case err == nil:
			return &rec, false, nil
		case !errors.Is(err, ErrNotFound):
			return nil, false, err
		}
	}
	if !ev.Kind.RequiresCall() {
		return nil, false, nil
	}

	fallback := r.Fallback
	if fallback == nil {
		fallback = MostRecentCall
	}
	rec, err := fallback(ctx, f, ev)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &rec, true, nil
}

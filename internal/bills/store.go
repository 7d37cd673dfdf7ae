package bills

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("bills: not found")

const DefaultReminderInterval = 24 * time.Hour

// Store is the subset of bill persistence the call pipeline needs.
type Store interface {
	FindByID(ctx context.Context, id int64) (Bill, error)
	// MarkCalled sets status called, increments the attempt counter and stamps
	// the last-call and next-reminder dates relative to at.
	MarkCalled(ctx context.Context, id int64, at time.Time) error
	// AppendNote adds a line to the bill's notes; existing notes are kept.
	AppendNote(ctx context.Context, id int64, note string) error
}

func appendLine(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

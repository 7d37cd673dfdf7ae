package calls

import (
	"strings"
	"time"

	"collections-platform/internal/events"
)

// platformStatuses maps the platform's status strings to call states.
var platformStatuses = map[string]Status{
	"queued":      StatusInitiated,
	"ringing":     StatusRinging,
	"in-progress": StatusInProgress,
	"completed":   StatusCompleted,
	"failed":      StatusFailed,
	"no-answer":   StatusNoAnswer,
	"busy":        StatusBusy,
}

// ParseStatus maps a platform status string, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st, ok := platformStatuses[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// Transition reports what Apply did to a record.
type Transition struct {
	Changed bool
	// MarkBillCalled is set when the owning bill must be marked as called.
	MarkBillCalled bool
}

// StateMachine applies lifecycle events to call records.
//
// Fields are last-write-wins; no transition is rejected for arriving out of
// order because the platform does not guarantee delivery order.
type StateMachine struct {
	Clock func() time.Time
}

func NewStateMachine() StateMachine {
	return StateMachine{Clock: time.Now}
}

func (m StateMachine) now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock().UTC()
}

// Apply mutates rec in place. Function calls are not lifecycle events and
// leave the record untouched.
func (m StateMachine) Apply(rec *Record, ev events.CallEvent) Transition {
	if rec == nil {
		return Transition{}
	}
	switch ev.Kind {
	case events.KindStatusUpdate:
		return m.applyStatus(rec, ev)
	case events.KindTranscript:
		appendTranscript(rec, ev.Role, ev.Transcript)
		return Transition{Changed: true}
	case events.KindEndOfCall:
		m.applyEndOfCall(rec, ev)
		return Transition{Changed: true, MarkBillCalled: true}
	default:
		return Transition{}
	}
}

func (m StateMachine) applyStatus(rec *Record, ev events.CallEvent) Transition {
	st, ok := ParseStatus(ev.Status)
	if !ok {
		return Transition{}
	}
	rec.Status = st
	if st == StatusInProgress && rec.StartedAt == nil {
		now := m.now()
		rec.StartedAt = &now
	}
	return Transition{Changed: true}
}

func appendTranscript(rec *Record, role, text string) {
	line := role + ": " + text
	if rec.Transcript == "" {
		rec.Transcript = line
		return
	}
	rec.Transcript += "\n" + line
}

func (m StateMachine) applyEndOfCall(rec *Record, ev events.CallEvent) {
	now := m.now()
	rec.Status = StatusCompleted
	rec.EndedAt = &now

	if ev.DurationSeconds != nil {
		d := *ev.DurationSeconds
		rec.DurationSeconds = &d
	} else if rec.StartedAt != nil {
		d := int(now.Sub(*rec.StartedAt) / time.Second)
		if d < 0 {
			d = 0
		}
		rec.DurationSeconds = &d
	}
	if ev.RecordingURL != nil {
		rec.RecordingURL = *ev.RecordingURL
	}
	if ev.TranscriptURL != nil {
		rec.TranscriptURL = *ev.TranscriptURL
	}
	if ev.EndedReason != nil {
		rec.EndedReason = *ev.EndedReason
	}
}

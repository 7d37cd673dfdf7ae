package calls

import "time"

// Record is one outbound collection call.
//
// Rows are created when the call is placed. This service only mutates them:
// Status through the state machine, Outcome through function handlers.
// ExternalCallID is the call platform's id and is unique once assigned.
type Record struct {
	ID             int64   `json:"id" db:"id"`
	BillID         int64   `json:"bill_id" db:"bill_id"`
	ExternalCallID *string `json:"vapi_call_id,omitempty" db:"vapi_call_id"`
	CustomerPhone  string  `json:"customer_phone" db:"customer_phone"`

	Status  Status   `json:"status" db:"status"`
	Outcome *Outcome `json:"outcome,omitempty" db:"outcome"`

	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds *int       `json:"duration,omitempty" db:"duration"`

	// Transcript only grows, one "role: text" line per transcript event.
	Transcript    string `json:"transcript,omitempty" db:"transcript"`
	RecordingURL  string `json:"recording_url,omitempty" db:"recording_url"`
	TranscriptURL string `json:"transcript_url,omitempty" db:"transcript_url"`
	EndedReason   string `json:"ended_reason,omitempty" db:"ended_reason"`

	SMSSent      bool   `json:"sms_sent" db:"sms_sent"`
	SMSReference string `json:"sms_sid,omitempty" db:"sms_sid"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (r Record) Clone() Record {
	out := r
	out.ExternalCallID = clonePtr(r.ExternalCallID)
	out.Outcome = clonePtr(r.Outcome)
	out.StartedAt = clonePtr(r.StartedAt)
	out.EndedAt = clonePtr(r.EndedAt)
	out.DurationSeconds = clonePtr(r.DurationSeconds)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusNoAnswer   Status = "no_answer"
	StatusBusy       Status = "busy"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusRinging, StatusInProgress, StatusCompleted, StatusFailed, StatusNoAnswer, StatusBusy:
		return true
	default:
		return false
	}
}

type Outcome string

const (
	OutcomePaymentConfirmed  Outcome = "payment_confirmed"
	OutcomePaymentPromised   Outcome = "payment_promised"
	OutcomeCustomerDisputed  Outcome = "customer_disputed"
	OutcomeNoResponse        Outcome = "no_response"
	OutcomeWrongNumber       Outcome = "wrong_number"
	OutcomeCallbackRequested Outcome = "callback_requested"
)

package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit capture is best-effort; do not block webhook processing on audit failures.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// CallID is the internal call record id, when one was resolved.
	CallID string `json:"call_id,omitempty" db:"call_id"`
	// ExternalCallID is the call platform's id as delivered.
	ExternalCallID string `json:"external_call_id,omitempty" db:"external_call_id"`
	// PlatformType is the raw event type string from the webhook.
	PlatformType string `json:"platform_type,omitempty" db:"platform_type"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeWebhookIgnored EventType = "webhook_ignored"
	EventTypeFunctionCall   EventType = "function_call"
)

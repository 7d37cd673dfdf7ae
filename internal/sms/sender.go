package sms

import "context"

// Result is the outcome of one send attempt.
// Reference is the provider's message id when Success is true.
type Result struct {
	Success   bool
	Reference string
	Error     string
}

// Sender delivers a text message to one recipient.
// A provider rejection is a Result with Success false; err is reserved for
// transport failures, timeouts and an open circuit.
type Sender interface {
	Send(ctx context.Context, to, body string) (Result, error)
}

// Disabled rejects every send. Used when no provider credentials are configured.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string) (Result, error) {
	return Result{Error: "SMS provider not configured"}, nil
}

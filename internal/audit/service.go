package audit

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		// ULIDs sort by creation time, which keeps the audit table index-friendly.
		e.ID = "aud_" + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogIgnored records a webhook event that was acknowledged without being applied.
func (s *Service) LogIgnored(ctx context.Context, platformType, externalCallID, reason string) error {
	return s.Append(ctx, Event{
		Type:           EventTypeWebhookIgnored,
		ExternalCallID: externalCallID,
		PlatformType:   platformType,
		Message:        reason,
	})
}

// LogFunctionCall records the result returned for a function call.
func (s *Service) LogFunctionCall(ctx context.Context, callID int64, externalCallID, function string, success bool, detail string) error {
	meta, err := json.Marshal(map[string]any{"function": function, "success": success})
	if err != nil {
		return err
	}
	return s.Append(ctx, Event{
		Type:           EventTypeFunctionCall,
		CallID:         strconv.FormatInt(callID, 10),
		ExternalCallID: externalCallID,
		Message:        detail,
		Metadata:       string(meta),
	})
}

package reporting

import (
	"context"
	"errors"
	"time"

	"collections-platform/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time, billID int64) ([]calls.Record, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.BillID < 0 {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.Range.From, req.Range.To, req.BillID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{Range: req.Range, BillID: req.BillID, Outcomes: map[string]int{}}
	durations := 0
	for _, c := range rows {
		out.TotalCalls++
		if c.DurationSeconds != nil {
			out.TotalDurationSeconds += *c.DurationSeconds
			durations++
		}
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		if c.SMSSent {
			out.PaymentLinksSent++
		}
		if c.ErrorMessage != "" {
			out.CallsWithErrors++
		}
		if c.Outcome != nil {
			out.Outcomes[string(*c.Outcome)]++
		}
		switch c.Status {
		case calls.StatusInitiated:
			out.InitiatedCalls++
		case calls.StatusRinging:
			out.RingingCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		}
	}
	if durations > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / durations
	}
	if out.CompletedCalls > 0 {
		out.ConfirmationRate = float64(out.Outcomes[string(calls.OutcomePaymentConfirmed)]) / float64(out.CompletedCalls)
	}
	return out, nil
}

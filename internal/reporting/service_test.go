package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"collections-platform/internal/calls"
)

func intPtr(n int) *int { return &n }

func outcome(o calls.Outcome) *calls.Outcome { return &o }

func seeded(now time.Time) *calls.MemoryStore {
	s := calls.NewMemoryStore()
	s.Create(calls.Record{BillID: 1, Status: calls.StatusCompleted, DurationSeconds: intPtr(30), Outcome: outcome(calls.OutcomePaymentConfirmed), SMSSent: true, RecordingURL: "r1", CreatedAt: now})
	s.Create(calls.Record{BillID: 1, Status: calls.StatusCompleted, DurationSeconds: intPtr(50), Outcome: outcome(calls.OutcomeCustomerDisputed), CreatedAt: now})
	s.Create(calls.Record{BillID: 2, Status: calls.StatusNoAnswer, ErrorMessage: "Bill not found", CreatedAt: now})
	s.Create(calls.Record{BillID: 2, Status: calls.StatusCompleted, CreatedAt: now.Add(-48 * time.Hour)})
	return s
}

func TestCallsSummary_Aggregates(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := NewService(StoreRepo{Calls: seeded(now)})

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 || out.CompletedCalls != 2 || out.NoAnswerCalls != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.TotalDurationSeconds != 80 || out.AverageDurationSeconds != 40 {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if out.PaymentLinksSent != 1 || out.RecordedCalls != 1 || out.CallsWithErrors != 1 {
		t.Fatalf("unexpected side counts: %+v", out)
	}
	if out.Outcomes["payment_confirmed"] != 1 || out.Outcomes["customer_disputed"] != 1 {
		t.Fatalf("unexpected outcomes: %v", out.Outcomes)
	}
	if out.ConfirmationRate != 0.5 {
		t.Fatalf("expected 0.5 confirmation rate, got %v", out.ConfirmationRate)
	}
}

func TestCallsSummary_FiltersByBill(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := NewService(StoreRepo{Calls: seeded(now)})

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{BillID: 2, Range: TimeRange{From: now.Add(-72 * time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 2 {
		t.Fatalf("expected 2 calls, got %d", out.TotalCalls)
	}
}

func TestCallsSummary_RejectsBadRange(t *testing.T) {
	svc := NewService(StoreRepo{Calls: calls.NewMemoryStore()})
	now := time.Now()
	for _, r := range []TimeRange{{}, {From: now}, {From: now, To: now.Add(-time.Second)}} {
		if _, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: r}); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected invalid request for %+v, got %v", r, err)
		}
	}
}

func TestStoreRepo_Pages(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	s := calls.NewMemoryStore()
	for i := 0; i < pageSize+7; i++ {
		s.Create(calls.Record{BillID: 3, CreatedAt: now.Add(time.Duration(i) * time.Second)})
	}

	rows, err := StoreRepo{Calls: s}.ListCalls(context.Background(), now.Add(-time.Hour), now.Add(time.Hour), 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != pageSize+7 {
		t.Fatalf("expected %d rows, got %d", pageSize+7, len(rows))
	}
}

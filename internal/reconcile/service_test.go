package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"collections-platform/internal/audit"
	"collections-platform/internal/bills"
	"collections-platform/internal/calls"
	"collections-platform/internal/events"
	"collections-platform/internal/functions"
	"collections-platform/internal/observability"
	"collections-platform/internal/sms"
	"collections-platform/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	sent int
}

func (s *stubSender) Send(context.Context, string, string) (sms.Result, error) {
	s.sent++
	return sms.Result{Success: true, Reference: "SM42"}, nil
}

type fixture struct {
	calls  *calls.MemoryStore
	bills  *bills.MemoryStore
	uow    *storage.MemoryUnitOfWork
	audit  *audit.MemoryRepo
	sender *stubSender
	svc    *Service
	rec    calls.Record
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		calls:  calls.NewMemoryStore(),
		bills:  bills.NewMemoryStore(),
		audit:  audit.NewMemoryRepo(),
		sender: &stubSender{},
	}
	f.bills.Put(bills.Bill{
		ID:            7,
		CustomerPhone: "+919811111111",
		Amount:        499,
		DueDate:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		PaymentLink:   "https://pay/7",
		Status:        bills.StatusPending,
	})
	ext := "call-abc"
	f.rec = f.calls.Create(calls.Record{BillID: 7, ExternalCallID: &ext, CustomerPhone: "+919811111111"})
	f.uow = storage.NewMemoryUnitOfWork(f.calls, f.bills)

	if opts.Audit == nil {
		opts.Audit = audit.NewService(f.audit)
	}
	f.svc = NewService(f.uow, functions.NewDispatcher(functions.Config{SMS: f.sender}), opts)
	return f
}

func (f *fixture) record(t *testing.T) calls.Record {
	t.Helper()
	r, err := f.calls.FindByID(context.Background(), f.rec.ID)
	require.NoError(t, err)
	return r
}

func TestHandle_UnknownKindLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, Options{})
	before := f.calls.Snapshot()
	billsBefore := f.bills.Snapshot()

	out, err := f.svc.Handle(context.Background(), events.CallEvent{Kind: events.KindUnknown, Type: "hang", CallID: "call-abc"})
	require.NoError(t, err)
	assert.Equal(t, observability.ResultDropped, out.Result)
	assert.Equal(t, MessageProcessed, out.Message)
	assert.Nil(t, out.Function)

	assert.Equal(t, before, f.calls.Snapshot())
	assert.Equal(t, billsBefore, f.bills.Snapshot())
	assert.Empty(t, f.audit.Events())
}

func TestHandle_StatusUpdateByExternalID(t *testing.T) {
	f := newFixture(t, Options{})

	out, err := f.svc.Handle(context.Background(), events.CallEvent{Kind: events.KindStatusUpdate, CallID: "call-abc", Status: "in-progress"})
	require.NoError(t, err)
	assert.Equal(t, observability.ResultApplied, out.Result)
	assert.Equal(t, f.rec.ID, out.CallID)

	r := f.record(t)
	assert.Equal(t, calls.StatusInProgress, r.Status)
	require.NotNil(t, r.StartedAt)
}

func TestHandle_EndOfCallMarksBillCalled(t *testing.T) {
	f := newFixture(t, Options{})
	dur := 93

	_, err := f.svc.Handle(context.Background(), events.CallEvent{Kind: events.KindEndOfCall, CallID: "call-abc", DurationSeconds: &dur})
	require.NoError(t, err)

	r := f.record(t)
	assert.Equal(t, calls.StatusCompleted, r.Status)
	require.NotNil(t, r.DurationSeconds)
	assert.Equal(t, 93, *r.DurationSeconds)

	b, err := f.bills.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, bills.StatusCalled, b.Status)
	assert.Equal(t, 1, b.CallAttempts)
	require.NotNil(t, b.LastCallDate)
	assert.True(t, b.LastCallDate.Equal(*r.EndedAt))
}

func TestHandle_EndOfCallAndTranscriptInEitherOrder(t *testing.T) {
	transcript := events.CallEvent{Kind: events.KindTranscript, CallID: "call-abc", Role: "user", Transcript: "I will pay tomorrow"}
	end := events.CallEvent{Kind: events.KindEndOfCall, CallID: "call-abc"}

	for name, order := range map[string][]events.CallEvent{
		"transcript first": {transcript, end},
		"end first":        {end, transcript},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Options{})
			for _, ev := range order {
				_, err := f.svc.Handle(context.Background(), ev)
				require.NoError(t, err)
			}
			r := f.record(t)
			assert.Equal(t, calls.StatusCompleted, r.Status)
			assert.Equal(t, "user: I will pay tomorrow", r.Transcript)
			require.NotNil(t, r.EndedAt)
		})
	}
}

func TestHandle_FallbackToMostRecent(t *testing.T) {
	f := newFixture(t, Options{})
	newer := f.calls.Create(calls.Record{BillID: 7, CreatedAt: f.rec.CreatedAt.Add(time.Minute)})

	out, err := f.svc.Handle(context.Background(), events.CallEvent{Kind: events.KindTranscript, Role: "bot", Transcript: "hello"})
	require.NoError(t, err)
	assert.Equal(t, newer.ID, out.CallID)

	got, err := f.calls.FindByID(context.Background(), newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "bot: hello", got.Transcript)
	assert.Nil(t, got.ExternalCallID)
}

func TestHandle_NoFallbackDrops(t *testing.T) {
	f := newFixture(t, Options{Resolver: calls.Resolver{Fallback: calls.NoFallback}})
	before := f.calls.Snapshot()

	out, err := f.svc.Handle(context.Background(), events.CallEvent{Kind: events.KindTranscript, CallID: "call-missing", Role: "bot", Transcript: "hi"})
	require.NoError(t, err)
	assert.Equal(t, observability.ResultDropped, out.Result)
	assert.Equal(t, MessageSkipped, out.Message)
	assert.Equal(t, before, f.calls.Snapshot())
}

func TestHandle_EmptyStoreDrops(t *testing.T) {
	uow := storage.NewMemoryUnitOfWork(calls.NewMemoryStore(), bills.NewMemoryStore())
	svc := NewService(uow, functions.NewDispatcher(functions.Config{SMS: &stubSender{}}), Options{})

	out, err := svc.Handle(context.Background(), events.CallEvent{Kind: events.KindFunctionCall, FunctionName: functions.ConfirmPayment})
	require.NoError(t, err)
	assert.Equal(t, MessageSkipped, out.Message)
	assert.Nil(t, out.Function)
}

func TestHandle_FunctionCallReturnsResult(t *testing.T) {
	f := newFixture(t, Options{})

	out, err := f.svc.Handle(context.Background(), events.CallEvent{Kind: events.KindFunctionCall, CallID: "call-abc", FunctionName: functions.SendPaymentLink})
	require.NoError(t, err)
	require.NotNil(t, out.Function)
	assert.True(t, out.Function.Success)
	assert.Equal(t, "SM42", out.Function.SID)
	assert.Equal(t, 1, f.sender.sent)

	r := f.record(t)
	assert.True(t, r.SMSSent)
	assert.Equal(t, "SM42", r.SMSReference)
	assert.Len(t, f.audit.ByType(audit.EventTypeFunctionCall), 1)
}

func TestHandle_DisputeAppendsNote(t *testing.T) {
	f := newFixture(t, Options{})

	out, err := f.svc.Handle(context.Background(), events.CallEvent{
		Kind:         events.KindFunctionCall,
		CallID:       "call-abc",
		FunctionName: functions.CustomerDisputed,
		Arguments:    map[string]any{"reason": "already paid"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Function)
	assert.True(t, out.Function.Success)

	b, err := f.bills.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Contains(t, b.Notes, "Customer disputed: already paid")
	r := f.record(t)
	require.NotNil(t, r.Outcome)
	assert.Equal(t, calls.OutcomeCustomerDisputed, *r.Outcome)
}

func TestHandle_AuditFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, Options{})
	f.audit.Fail = true

	_, err := f.svc.Handle(context.Background(), events.CallEvent{Kind: events.KindUnknown, Type: "speech-update"})
	require.NoError(t, err)
	_, err = f.svc.Handle(context.Background(), events.CallEvent{Kind: events.KindFunctionCall, CallID: "call-abc", FunctionName: functions.ConfirmPayment})
	require.NoError(t, err)
}

type failingSave struct{ calls.Store }

func (failingSave) Save(context.Context, calls.Record) error { return errors.New("disk full") }

// failingUoW runs units against the memory stores but fails every call-log save.
type failingUoW struct{ *storage.MemoryUnitOfWork }

func (u failingUoW) Do(ctx context.Context, fn func(ctx context.Context, r storage.Repos) error) error {
	return u.MemoryUnitOfWork.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		r.Calls = failingSave{r.Calls}
		return fn(ctx, r)
	})
}

func TestHandle_PersistenceErrorRollsBack(t *testing.T) {
	f := newFixture(t, Options{})
	svc := NewService(failingUoW{f.uow}, functions.NewDispatcher(functions.Config{SMS: f.sender}), Options{})
	callsBefore := f.calls.Snapshot()
	billsBefore := f.bills.Snapshot()

	_, err := svc.Handle(context.Background(), events.CallEvent{Kind: events.KindEndOfCall, CallID: "call-abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, callsBefore, f.calls.Snapshot())
	assert.Equal(t, billsBefore, f.bills.Snapshot())
}

type panickingNotes struct{ bills.Store }

func (panickingNotes) AppendNote(context.Context, int64, string) error { panic("notes column missing") }

// panickingBillsUoW runs units against the memory stores with a bill store
// whose AppendNote panics.
type panickingBillsUoW struct{ *storage.MemoryUnitOfWork }

func (u panickingBillsUoW) Do(ctx context.Context, fn func(ctx context.Context, r storage.Repos) error) error {
	return u.MemoryUnitOfWork.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		r.Bills = panickingNotes{r.Bills}
		return fn(ctx, r)
	})
}

func TestHandle_FunctionPanicRollsBack(t *testing.T) {
	f := newFixture(t, Options{})
	svc := NewService(panickingBillsUoW{f.uow}, functions.NewDispatcher(functions.Config{SMS: f.sender}), Options{Audit: audit.NewService(f.audit)})
	callsBefore := f.calls.Snapshot()
	billsBefore := f.bills.Snapshot()

	_, err := svc.Handle(context.Background(), events.CallEvent{
		Kind:         events.KindFunctionCall,
		CallID:       "call-abc",
		FunctionName: functions.CustomerDisputed,
		Arguments:    map[string]any{"reason": "already paid"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, functions.ErrHandlerPanic)

	assert.Equal(t, callsBefore, f.calls.Snapshot())
	assert.Nil(t, f.record(t).Outcome)
	assert.Equal(t, billsBefore, f.bills.Snapshot())
	assert.Empty(t, f.audit.ByType(audit.EventTypeFunctionCall))
}

func TestHandle_DuplicateDeliveryAcknowledged(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, Options{Dedup: events.NewProcessedStore(rdb, time.Hour)})
	ev := events.CallEvent{
		Kind:       events.KindTranscript,
		CallID:     "call-abc",
		Timestamp:  "2024-05-01T10:00:00Z",
		Role:       "user",
		Transcript: "hello",
	}

	out, err := f.svc.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, observability.ResultApplied, out.Result)

	out, err = f.svc.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, observability.ResultDuplicate, out.Result)
	assert.Equal(t, "user: hello", f.record(t).Transcript)
}

func TestHandle_FunctionCallsAreNeverDeduplicated(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, Options{Dedup: events.NewProcessedStore(rdb, time.Hour)})
	ev := events.CallEvent{Kind: events.KindFunctionCall, CallID: "call-abc", Timestamp: "1", FunctionName: functions.ConfirmPayment}

	for i := 0; i < 2; i++ {
		out, err := f.svc.Handle(context.Background(), ev)
		require.NoError(t, err)
		require.NotNil(t, out.Function)
	}
}

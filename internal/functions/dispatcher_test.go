package functions

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"collections-platform/internal/bills"
	"collections-platform/internal/calls"
	"collections-platform/internal/events"
	"collections-platform/internal/sms"
	"collections-platform/pkg/logger"
)

type fakeSender struct {
	calls  int
	to     string
	body   string
	result sms.Result
	err    error
	panics bool
}

func (f *fakeSender) Send(_ context.Context, to, body string) (sms.Result, error) {
	f.calls++
	f.to, f.body = to, body
	if f.panics {
		panic("gateway exploded")
	}
	return f.result, f.err
}

func fnEvent(name string, args map[string]any) events.CallEvent {
	return events.CallEvent{Kind: events.KindFunctionCall, FunctionName: name, Arguments: args}
}

func seededBills() *bills.MemoryStore {
	s := bills.NewMemoryStore()
	s.Put(bills.Bill{
		ID:            5,
		CustomerName:  "Asha",
		CustomerPhone: "+919800000000",
		BillNumber:    "B-5",
		Amount:        1250.5,
		DueDate:       time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		PaymentLink:   "https://pay/5",
	})
	return s
}

func TestDispatch_SendPaymentLinkWithoutBill(t *testing.T) {
	sender := &fakeSender{result: sms.Result{Success: true, Reference: "SM1"}}
	d := NewDispatcher(Config{SMS: sender})
	rec := &calls.Record{ID: 1, BillID: 404}

	res, err := d.Dispatch(context.Background(), Call{Record: rec, Event: fnEvent(SendPaymentLink, nil), Bills: bills.NewMemoryStore()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Success || res.Error != "Bill not found" {
		t.Fatalf("unexpected result %+v", res)
	}
	if sender.calls != 0 {
		t.Fatalf("sms port must not be called, got %d calls", sender.calls)
	}
}

func TestDispatch_SendPaymentLinkSuccess(t *testing.T) {
	sender := &fakeSender{result: sms.Result{Success: true, Reference: "SM1"}}
	d := NewDispatcher(Config{SMS: sender})
	rec := &calls.Record{ID: 1, BillID: 5}

	res, err := d.Dispatch(context.Background(), Call{Record: rec, Event: fnEvent(SendPaymentLink, nil), Bills: seededBills()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Success || res.SID != "SM1" || res.Message != "SMS sent successfully" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !rec.SMSSent || rec.SMSReference != "SM1" {
		t.Fatalf("expected sms markers on record, got %+v", rec)
	}
	if sender.to != "+919800000000" {
		t.Fatalf("unexpected recipient %q", sender.to)
	}
	want := "Dear customer, your bill of Rs.1250.50 is due on 15-03-2024. Pay now: https://pay/5"
	if sender.body != want {
		t.Fatalf("unexpected body %q", sender.body)
	}
}

func TestDispatch_SendPaymentLinkFailures(t *testing.T) {
	cases := []struct {
		name    string
		sender  *fakeSender
		wantErr string
	}{
		{"rejected", &fakeSender{result: sms.Result{Success: false, Error: "invalid number"}}, "invalid number"},
		{"rejected without text", &fakeSender{result: sms.Result{Success: false}}, "Unknown error"},
		{"transport error", &fakeSender{err: errors.New("timeout")}, "Error sending SMS: timeout"},
		{"panic", &fakeSender{panics: true}, "Error sending SMS: sms sender panic: gateway exploded"},
	}
	for _, tc := range cases {
		d := NewDispatcher(Config{SMS: tc.sender})
		rec := &calls.Record{ID: 1, BillID: 5}
		res, err := d.Dispatch(context.Background(), Call{Record: rec, Event: fnEvent(SendPaymentLink, nil), Bills: seededBills()})
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.name, err)
		}
		if res.Success || res.Error != tc.wantErr {
			t.Fatalf("%s: unexpected result %+v", tc.name, res)
		}
		if rec.ErrorMessage != tc.wantErr || rec.SMSSent {
			t.Fatalf("%s: unexpected record %+v", tc.name, rec)
		}
	}
}

func TestDispatch_ConfirmPayment(t *testing.T) {
	d := NewDispatcher(Config{})
	rec := &calls.Record{ID: 1, BillID: 5}
	b := seededBills()

	res, err := d.Dispatch(context.Background(), Call{Record: rec, Event: fnEvent(ConfirmPayment, nil), Bills: b})
	if err != nil || !res.Success || res.Message != "Payment confirmed" {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
	if rec.Outcome == nil || *rec.Outcome != calls.OutcomePaymentConfirmed {
		t.Fatalf("expected payment_confirmed outcome")
	}
	bill, _ := b.FindByID(context.Background(), 5)
	if bill.Status != bills.StatusPending {
		t.Fatalf("confirm_payment must not touch the bill, got %q", bill.Status)
	}
}

func TestDispatch_LogsRecordIDWithoutShadowingCallID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "local").With("call_id", "call-abc")
	ctx := logger.With(context.Background(), log)

	d := NewDispatcher(Config{})
	if _, err := d.Dispatch(ctx, Call{Record: &calls.Record{ID: 42, BillID: 5}, Event: fnEvent(ConfirmPayment, nil), Bills: seededBills()}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"record_id":42`) {
		t.Fatalf("expected record_id in log, got %s", out)
	}
	if strings.Contains(out, `"call_id":42`) {
		t.Fatalf("internal id logged under call_id: %s", out)
	}
}

func TestDispatch_CustomerDisputed(t *testing.T) {
	d := NewDispatcher(Config{})
	rec := &calls.Record{ID: 1, BillID: 5}
	b := seededBills()

	res, err := d.Dispatch(context.Background(), Call{Record: rec, Event: fnEvent(CustomerDisputed, map[string]any{"reason": "billed twice"}), Bills: b})
	if err != nil || !res.Success || res.Message != "Dispute recorded" {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
	if rec.Outcome == nil || *rec.Outcome != calls.OutcomeCustomerDisputed {
		t.Fatalf("expected customer_disputed outcome")
	}
	bill, _ := b.FindByID(context.Background(), 5)
	if !strings.Contains(bill.Notes, "billed twice") {
		t.Fatalf("expected dispute note, got %q", bill.Notes)
	}
}

func TestDispatch_CustomerDisputedDefaultReason(t *testing.T) {
	d := NewDispatcher(Config{})
	b := seededBills()
	_, err := d.Dispatch(context.Background(), Call{Record: &calls.Record{BillID: 5}, Event: fnEvent(CustomerDisputed, nil), Bills: b})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	bill, _ := b.FindByID(context.Background(), 5)
	if bill.Notes != "Customer disputed: No reason provided" {
		t.Fatalf("unexpected note %q", bill.Notes)
	}
}

type brokenBills struct{ bills.Store }

func (brokenBills) AppendNote(context.Context, int64, string) error { return errors.New("db down") }

func TestDispatch_CustomerDisputedPersistenceError(t *testing.T) {
	d := NewDispatcher(Config{})
	_, err := d.Dispatch(context.Background(), Call{Record: &calls.Record{BillID: 5}, Event: fnEvent(CustomerDisputed, nil), Bills: brokenBills{}})
	if err == nil {
		t.Fatalf("expected persistence error to surface")
	}
}

type panickingBills struct{ bills.Store }

func (panickingBills) AppendNote(context.Context, int64, string) error { panic("nil pool") }

func TestDispatch_HandlerPanicIsAnError(t *testing.T) {
	d := NewDispatcher(Config{})
	rec := &calls.Record{ID: 1, BillID: 5}

	res, err := d.Dispatch(context.Background(), Call{Record: rec, Event: fnEvent(CustomerDisputed, nil), Bills: panickingBills{seededBills()}})
	if !errors.Is(err, ErrHandlerPanic) {
		t.Fatalf("expected ErrHandlerPanic, got %v", err)
	}
	if !strings.Contains(err.Error(), CustomerDisputed) || !strings.Contains(err.Error(), "nil pool") {
		t.Fatalf("expected function name and panic value in %q", err)
	}
	if res.Success {
		t.Fatalf("expected zero result, got %+v", res)
	}
}

func TestDispatch_UnknownFunction(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(Config{SMS: sender})
	rec := &calls.Record{ID: 1, BillID: 5}

	res, err := d.Dispatch(context.Background(), Call{Record: rec, Event: fnEvent("transfer_to_human", nil), Bills: seededBills()})
	if err != nil || !res.Success || res.Message != "Function processed" {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
	if rec.Outcome != nil || sender.calls != 0 {
		t.Fatalf("unknown function must have no side effect")
	}
}

type denyGuard struct{}

func (denyGuard) Acquire(context.Context, string) (bool, error) { return false, nil }
func (denyGuard) Release(context.Context, string) error         { return nil }

func TestDispatch_SendPaymentLinkGuarded(t *testing.T) {
	sender := &fakeSender{result: sms.Result{Success: true}}
	d := NewDispatcher(Config{SMS: sender, Guard: denyGuard{}})

	res, err := d.Dispatch(context.Background(), Call{Record: &calls.Record{BillID: 5}, Event: fnEvent(SendPaymentLink, nil), Bills: seededBills()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Success || sender.calls != 0 {
		t.Fatalf("expected guarded send to be refused, got %+v", res)
	}
}

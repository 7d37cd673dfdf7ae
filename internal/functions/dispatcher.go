package functions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"collections-platform/internal/bills"
	"collections-platform/internal/calls"
	"collections-platform/internal/events"
	"collections-platform/internal/observability"
	"collections-platform/internal/sms"
	"collections-platform/pkg/logger"
)

// Function names the conversation can invoke.
const (
	SendPaymentLink  = "send_payment_link"
	ConfirmPayment   = "confirm_payment"
	CustomerDisputed = "customer_disputed"
)

const (
	DefaultPaymentLinkTemplate = "Dear customer, your bill of Rs.{amount} is due on {due_date}. Pay now: {payment_link}"
	defaultSendTimeout         = 10 * time.Second
	defaultGuardTTL            = 30 * time.Second
)

// ErrHandlerPanic is returned when a handler panics. The caller must roll back,
// since the record and bill may be partially mutated.
var ErrHandlerPanic = errors.New("functions: handler panic")

// Call is the input to one handler. Record is mutated in place and saved by
// the caller in the same transaction as any bill changes made through Bills.
type Call struct {
	Record *calls.Record
	Event  events.CallEvent
	Bills  bills.Store
}

// HandlerFunc runs one named function. A non-nil error is a persistence
// failure; everything else is reported through Result.
type HandlerFunc func(ctx context.Context, c Call) (Result, error)

// SendGuard serializes payment link sends per bill across processes.
type SendGuard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Config struct {
	SMS         sms.Sender
	Template    string
	SendTimeout time.Duration
	Guard       SendGuard
}

// Dispatcher routes function calls through a closed table of handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc

	sms         sms.Sender
	template    string
	sendTimeout time.Duration
	guard       SendGuard
}

func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		sms:         cfg.SMS,
		template:    cfg.Template,
		sendTimeout: cfg.SendTimeout,
		guard:       cfg.Guard,
	}
	if d.template == "" {
		d.template = DefaultPaymentLinkTemplate
	}
	if d.sendTimeout <= 0 {
		d.sendTimeout = defaultSendTimeout
	}
	d.handlers = map[string]HandlerFunc{
		SendPaymentLink:  d.sendPaymentLink,
		ConfirmPayment:   confirmPayment,
		CustomerDisputed: customerDisputed,
	}
	return d
}

// Dispatch runs the handler named by the event. Unknown names are acknowledged
// with a generic success and no side effect.
func (d *Dispatcher) Dispatch(ctx context.Context, c Call) (res Result, err error) {
	name := c.Event.FunctionName
	log := logger.From(ctx).With("function", name)

	h, found := d.handlers[name]
	if !found {
		log.Info("unhandled function call")
		observability.FunctionCalls.WithLabelValues("unknown", "true").Inc()
		return ok("Function processed"), nil
	}
	if c.Record == nil {
		return failed("Call not found"), nil
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("function handler panic", "panic", p)
			res, err = Result{}, fmt.Errorf("%w: %s: %v", ErrHandlerPanic, name, p)
		}
		if err == nil {
			observability.FunctionCalls.WithLabelValues(name, strconv.FormatBool(res.Success)).Inc()
		}
	}()

	log.Info("function called", "record_id", c.Record.ID, "bill_id", c.Record.BillID)
	return h(ctx, c)
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collections-platform/internal/bills"
	"collections-platform/internal/calls"
	"collections-platform/internal/events"
	"collections-platform/internal/functions"
	"collections-platform/internal/observability"
	"collections-platform/internal/storage"
	"collections-platform/pkg/logger"
	"collections-platform/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Acknowledgement messages returned in the {"status":"ok"} envelope.
const (
	MessageProcessed = "Webhook processed successfully"
	MessageSkipped   = "Call log not found, skipping event"
	MessageDuplicate = "Event already processed"
)

// Deduper remembers deliveries that were already committed.
type Deduper interface {
	AlreadyProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) (bool, error)
}

// Auditor records dropped events and function results. Failures are logged only.
type Auditor interface {
	LogIgnored(ctx context.Context, platformType, externalCallID, reason string) error
	LogFunctionCall(ctx context.Context, callID int64, externalCallID, function string, success bool, detail string) error
}

// Outcome describes what happened to one event.
type Outcome struct {
	Kind    events.Kind
	Result  string
	Message string
	// Function is set for function calls that reached a handler; it is the
	// response body the platform expects.
	Function *functions.Result
	// CallID is the internal record id the event was applied to.
	CallID int64
}

type Options struct {
	Resolver calls.Resolver
	Machine  calls.StateMachine
	Dedup    Deduper
	Audit    Auditor
}

// Service applies normalized webhook events to call records. Each event is
// one unit of work: resolve, mutate, save, commit.
type Service struct {
	uow        storage.UnitOfWork
	dispatcher *functions.Dispatcher
	resolver   calls.Resolver
	machine    calls.StateMachine
	dedup      Deduper
	audit      Auditor
}

func NewService(uow storage.UnitOfWork, dispatcher *functions.Dispatcher, opts Options) *Service {
	s := &Service{
		uow:        uow,
		dispatcher: dispatcher,
		resolver:   opts.Resolver,
		machine:    opts.Machine,
		dedup:      opts.Dedup,
		audit:      opts.Audit,
	}
	if s.resolver.Fallback == nil {
		s.resolver = calls.NewResolver()
	}
	if s.machine.Clock == nil {
		s.machine = calls.NewStateMachine()
	}
	return s
}

// Handle processes one event. A returned error means nothing was committed
// and the platform should retry the delivery.
func (s *Service) Handle(ctx context.Context, ev events.CallEvent) (Outcome, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer("collections-platform/reconcile").Start(ctx, "webhook.handle",
		trace.WithAttributes(
			attribute.String("event.kind", string(ev.Kind)),
			attribute.String("event.type", ev.Type),
			attribute.String("call.external_id", ev.CallID),
		))
	defer span.End()

	log := logger.From(ctx).With("event_type", ev.Type, "call_id", ev.CallID)
	ctx = logger.With(ctx, log)

	out, err := s.handle(ctx, ev)
	observability.WebhookLatency.WithLabelValues(string(ev.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.WebhookEvents.WithLabelValues(string(ev.Kind), observability.ResultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("webhook processing failed", "err", err)
		return Outcome{}, err
	}
	observability.WebhookEvents.WithLabelValues(string(ev.Kind), out.Result).Inc()
	span.SetAttributes(attribute.String("webhook.result", out.Result))
	return out, nil
}

func (s *Service) handle(ctx context.Context, ev events.CallEvent) (Outcome, error) {
	log := logger.From(ctx)

	if !ev.Kind.RequiresCall() {
		log.Info("webhook event not handled")
		return Outcome{Kind: ev.Kind, Result: observability.ResultDropped, Message: MessageProcessed}, nil
	}

	key, keyed := "", false
	if s.dedup != nil {
		key, keyed = events.DeliveryKey(ev)
	}
	if keyed {
		seen, err := s.dedup.AlreadyProcessed(ctx, key)
		switch {
		case err != nil:
			log.Warn("delivery dedup check failed", "err", err)
		case seen:
			log.Info("duplicate delivery acknowledged")
			return Outcome{Kind: ev.Kind, Result: observability.ResultDuplicate, Message: MessageDuplicate}, nil
		}
	}

	var out Outcome
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		var err error
		out, err = s.apply(ctx, r, ev)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case out.Result == observability.ResultDropped:
		log.Warn("call log not found, skipping event")
		s.logIgnored(ctx, ev, "call log not found")
	case keyed:
		if _, err := s.dedup.MarkProcessed(ctx, key); err != nil {
			log.Warn("delivery dedup mark failed", "err", err)
		}
	}
	if out.Function != nil && s.audit != nil {
		detail := out.Function.Message
		if !out.Function.Success {
			detail = out.Function.Error
		}
		if err := s.audit.LogFunctionCall(ctx, out.CallID, ev.CallID, ev.FunctionName, out.Function.Success, detail); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	return out, nil
}

// apply runs inside the unit of work. The record it resolves is locked until commit.
func (s *Service) apply(ctx context.Context, r storage.Repos, ev events.CallEvent) (Outcome, error) {
	log := logger.From(ctx)
	out := Outcome{Kind: ev.Kind}

	rec, fellBack, err := s.resolver.Resolve(ctx, r.Calls, ev)
	if err != nil {
		return out, fmt.Errorf("resolve call: %w", err)
	}
	if rec == nil {
		out.Result = observability.ResultDropped
		out.Message = MessageSkipped
		return out, nil
	}
	if fellBack {
		log.Warn("call resolved by most-recent fallback", "record_id", rec.ID)
	}
	out.CallID = rec.ID

	changed := false
	switch ev.Kind {
	case events.KindFunctionCall:
		res, err := s.dispatcher.Dispatch(ctx, functions.Call{Record: rec, Event: ev, Bills: r.Bills})
		if err != nil {
			return out, fmt.Errorf("dispatch %s: %w", ev.FunctionName, err)
		}
		out.Function = &res
		changed = true
	default:
		tr := s.machine.Apply(rec, ev)
		changed = tr.Changed
		if tr.MarkBillCalled {
			at := time.Now()
			if rec.EndedAt != nil {
				at = *rec.EndedAt
			}
			err := r.Bills.MarkCalled(ctx, rec.BillID, at)
			switch {
			case errors.Is(err, bills.ErrNotFound):
				log.Warn("bill not found at end of call", "bill_id", rec.BillID)
			case err != nil:
				return out, fmt.Errorf("mark bill called: %w", err)
			}
		}
	}

	if changed {
		if err := r.Calls.Save(ctx, *rec); err != nil {
			return out, fmt.Errorf("save call: %w", err)
		}
	}
	out.Result = observability.ResultApplied
	out.Message = MessageProcessed
	return out, nil
}

func (s *Service) logIgnored(ctx context.Context, ev events.CallEvent, reason string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogIgnored(ctx, ev.Type, ev.CallID, reason); err != nil {
		logger.From(ctx).Warn("audit append failed", "err", err)
	}
}

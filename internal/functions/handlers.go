package functions

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"collections-platform/internal/bills"
	"collections-platform/internal/calls"
	"collections-platform/internal/sms"
	"collections-platform/pkg/logger"
)

const dueDateLayout = "02-01-2006"

func (d *Dispatcher) sendPaymentLink(ctx context.Context, c Call) (Result, error) {
	log := logger.From(ctx)
	rec := c.Record

	bill, err := c.Bills.FindByID(ctx, rec.BillID)
	if errors.Is(err, bills.ErrNotFound) {
		log.Error("bill not found for call", "bill_id", rec.BillID)
		rec.ErrorMessage = "Bill not found"
		return failed("Bill not found"), nil
	}
	if err != nil {
		return Result{}, err
	}

	if d.guard != nil {
		key := "sms:payment_link:bill:" + strconv.FormatInt(bill.ID, 10)
		acquired, gerr := d.guard.Acquire(ctx, key)
		switch {
		case gerr != nil:
			log.Warn("payment link guard unavailable", "err", gerr)
		case !acquired:
			return failed("Payment link send already in progress"), nil
		default:
			defer func() {
				if rerr := d.guard.Release(context.WithoutCancel(ctx), key); rerr != nil {
					log.Warn("payment link guard release failed", "err", rerr)
				}
			}()
		}
	}

	body := sms.Render(d.template, map[string]string{
		"customer_name": bill.CustomerName,
		"amount":        strconv.FormatFloat(bill.Amount, 'f', 2, 64),
		"due_date":      bill.DueDate.Format(dueDateLayout),
		"payment_link":  bill.PaymentLink,
		"bill_number":   bill.BillNumber,
	})

	res, err := d.send(ctx, bill.CustomerPhone, body)
	if err != nil {
		msg := "Error sending SMS: " + err.Error()
		log.Error("payment link send failed", "bill_id", bill.ID, "err", err)
		rec.ErrorMessage = msg
		return failed(msg), nil
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Unknown error"
		}
		log.Warn("payment link rejected", "bill_id", bill.ID, "err", msg)
		rec.ErrorMessage = msg
		return failed(msg), nil
	}

	rec.SMSSent = true
	rec.SMSReference = res.Reference
	log.Info("payment link sent", "bill_id", bill.ID, "sms_sid", res.Reference)
	return Result{Success: true, Message: "SMS sent successfully", SID: res.Reference}, nil
}

// send never panics and never outlives the send timeout.
func (d *Dispatcher) send(ctx context.Context, to, body string) (res sms.Result, err error) {
	if d.sms == nil {
		return sms.Result{}, errors.New("sms sender not configured")
	}
	defer func() {
		if p := recover(); p != nil {
			res, err = sms.Result{}, fmt.Errorf("sms sender panic: %v", p)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.sms.Send(ctx, to, body)
}

func confirmPayment(_ context.Context, c Call) (Result, error) {
	setOutcome(c.Record, calls.OutcomePaymentConfirmed)
	return ok("Payment confirmed"), nil
}

func customerDisputed(ctx context.Context, c Call) (Result, error) {
	setOutcome(c.Record, calls.OutcomeCustomerDisputed)

	reason := c.Event.StringArg("reason", "No reason provided")
	err := c.Bills.AppendNote(ctx, c.Record.BillID, "Customer disputed: "+reason)
	switch {
	case errors.Is(err, bills.ErrNotFound):
		logger.From(ctx).Warn("dispute note skipped, bill not found", "bill_id", c.Record.BillID)
	case err != nil:
		return Result{}, err
	}
	return ok("Dispute recorded"), nil
}

func setOutcome(rec *calls.Record, o calls.Outcome) {
	rec.Outcome = &o
}

package sms

import (
	"context"
	"errors"
	"strconv"
	"time"

	"collections-platform/internal/observability"
	"collections-platform/pkg/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const defaultSendTimeout = 10 * time.Second

// MessageClient is the provider call wrapped by TwilioSender.
type MessageClient interface {
	SendSMS(ctx context.Context, req SendRequest) (SendResponse, int, error)
}

// TwilioSender makes exactly one bounded attempt per Send.
// Rate limiting and the circuit breaker protect the provider; there is no retry.
type TwilioSender struct {
	Client  MessageClient
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
	Timeout time.Duration
}

// NewBreaker returns the breaker settings used for the SMS provider.
func NewBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "twilio-sms",
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		// Provider rejections (bad number, unsubscribed) are not outages.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != 429)
		},
	})
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) (Result, error) {
	if s.Client == nil {
		return Result{}, errors.New("sms: client not configured")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := telemetry.Tracer("collections-platform/sms").Start(ctx, "sms.send")
	defer span.End()

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			observability.SMSSend.WithLabelValues("rate_limited_local", "0").Inc()
			span.SetStatus(codes.Error, "rate limited")
			return Result{}, err
		}
	}

	start := time.Now()
	resp, status, err := s.execute(ctx, to, body)
	observability.SMSLatency.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", status))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.SMSSend.WithLabelValues("cb_open", "0").Inc()
		span.SetStatus(codes.Error, "circuit open")
		return Result{}, err
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		observability.SMSSend.WithLabelValues("rejected", strconv.Itoa(apiErr.StatusCode)).Inc()
		span.SetStatus(codes.Error, apiErr.Message)
		return Result{Success: false, Error: apiErr.Message}, nil
	}
	if err != nil {
		observability.SMSSend.WithLabelValues("error", strconv.Itoa(status)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	observability.SMSSend.WithLabelValues("ok", strconv.Itoa(status)).Inc()
	span.SetAttributes(attribute.String("sms.sid", resp.Sid))
	return Result{Success: true, Reference: resp.Sid}, nil
}

type sendResult struct {
	resp   SendResponse
	status int
}

func (s *TwilioSender) execute(ctx context.Context, to, body string) (SendResponse, int, error) {
	var status int
	call := func() (any, error) {
		resp, st, err := s.Client.SendSMS(ctx, SendRequest{To: to, Body: body})
		status = st
		if err != nil {
			return nil, err
		}
		return sendResult{resp: resp, status: st}, nil
	}

	if s.Breaker == nil {
		out, err := call()
		if err != nil {
			return SendResponse{}, status, err
		}
		r := out.(sendResult)
		return r.resp, r.status, nil
	}
	out, err := s.Breaker.Execute(call)
	if err != nil {
		return SendResponse{}, status, err
	}
	r := out.(sendResult)
	return r.resp, r.status, nil
}

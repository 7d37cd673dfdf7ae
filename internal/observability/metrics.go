package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vapi_webhook_events_total", Help: "Call-platform webhook events by kind and result"},
		[]string{"kind", "result"},
	)
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "vapi_webhook_duration_seconds", Help: "Webhook processing latency"},
		[]string{"kind"},
	)
	FunctionCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vapi_function_calls_total", Help: "Function-call dispatch outcomes"},
		[]string{"function", "success"},
	)
	SMSSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sms_send_total", Help: "SMS send outcomes"},
		[]string{"result", "http_status"},
	)
	SMSLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "sms_send_latency_seconds", Help: "SMS provider latency"},
	)
)

// Register adds the collectors to reg. Call it once per registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(WebhookEvents, WebhookLatency, FunctionCalls, SMSSend, SMSLatency)
}

// Webhook results.
const (
	ResultApplied   = "applied"
	ResultDropped   = "dropped"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

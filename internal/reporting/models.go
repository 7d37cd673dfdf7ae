package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics over [From, To).
type CallsSummaryRequest struct {
	Range  TimeRange `json:"range"`
	BillID int64     `json:"bill_id,omitempty"`
}

type CallsSummary struct {
	Range  TimeRange `json:"range"`
	BillID int64     `json:"bill_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	InitiatedCalls  int `json:"initiated_calls"`
	RingingCalls    int `json:"ringing_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
	RecordedCalls          int `json:"recorded_calls"`

	// Outcomes counts calls by recorded outcome; calls without one are not counted.
	Outcomes map[string]int `json:"outcomes"`

	PaymentLinksSent int `json:"payment_links_sent"`
	CallsWithErrors  int `json:"calls_with_errors"`

	// ConfirmationRate is payment confirmations per completed call.
	ConfirmationRate float64 `json:"confirmation_rate"`
}

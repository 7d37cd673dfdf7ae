package events

// Kind is the canonical category of a call-platform webhook event.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindStatusUpdate Kind = "status_update"
	KindTranscript   Kind = "transcript"
	KindFunctionCall Kind = "function_call"
	KindEndOfCall    Kind = "end_of_call"
)

// RequiresCall reports whether events of this kind mutate a call record.
func (k Kind) RequiresCall() bool {
	switch k {
	case KindStatusUpdate, KindTranscript, KindFunctionCall, KindEndOfCall:
		return true
	default:
		return false
	}
}

// CallEvent is the normalized shape of one webhook delivery.
//
// Kind is always set. CallID and Timestamp may be empty.
// Only the payload fields matching Kind are populated; call-report
// fields stay nil when the platform did not send them.
type CallEvent struct {
	Kind      Kind   `json:"kind"`
	Type      string `json:"type,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	// StatusUpdate
	Status string `json:"status,omitempty"`

	// Transcript
	Role       string `json:"role,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	// FunctionCall
	FunctionName string         `json:"function_name,omitempty"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	ToolCallID   string         `json:"tool_call_id,omitempty"`

	// StatusUpdate / EndOfCall report
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	EndedReason     *string `json:"ended_reason,omitempty"`
	RecordingURL    *string `json:"recording_url,omitempty"`
	TranscriptURL   *string `json:"transcript_url,omitempty"`
}

// StringArg returns a non-empty string argument, or def.
func (e CallEvent) StringArg(name, def string) string {
	if e.Arguments == nil {
		return def
	}
	if s, ok := e.Arguments[name].(string); ok && s != "" {
		return s
	}
	return def
}

func kindFromType(t string) Kind {
	switch t {
	case "status-update":
		return KindStatusUpdate
	case "transcript":
		return KindTranscript
	case "function-call", "tool-calls":
		return KindFunctionCall
	case "end-of-call-report":
		return KindEndOfCall
	default:
		return KindUnknown
	}
}

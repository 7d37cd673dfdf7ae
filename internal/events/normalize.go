package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedBody is returned when a webhook body is not valid JSON.
var ErrMalformedBody = errors.New("events: malformed body")

// Parse decodes a webhook body and normalizes it.
// Only bodies that are not JSON at all fail; any JSON value normalizes.
func Parse(body []byte) (CallEvent, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return CallEvent{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return Normalize(raw), nil
}

// Normalize maps an arbitrary decoded JSON value to a CallEvent. It never fails:
// anything it cannot interpret comes back as KindUnknown.
func Normalize(raw any) CallEvent {
	root, ok := raw.(map[string]any)
	if !ok {
		return CallEvent{Kind: KindUnknown}
	}
	v := newView(root)

	ev := CallEvent{Kind: KindUnknown}
	ev.Type, _ = firstOf(v, typeRules)
	ev.Kind = kindFromType(ev.Type)
	ev.CallID, _ = firstOf(v, callIDRules)
	ev.Timestamp, _ = firstOf(v, timestampRules)

	switch ev.Kind {
	case KindStatusUpdate:
		ev.Status, _ = firstOf(v, statusRules)
		readReport(v, &ev)
	case KindTranscript:
		ev.Transcript, _ = firstOf(v, transcriptRules)
		ev.Role, _ = firstOf(v, roleRules)
	case KindFunctionCall:
		ev.FunctionName, _ = firstOf(v, nameRules)
		ev.Arguments, _ = firstOf(v, argumentRules)
		ev.ToolCallID, _ = firstOf(v, toolCallRules)
	case KindEndOfCall:
		readReport(v, &ev)
	}
	return ev
}

func readReport(v view, ev *CallEvent) {
	if d, ok := firstOf(v, durationRules); ok {
		ev.DurationSeconds = &d
	}
	if s, ok := firstOf(v, endedReasonRules); ok {
		ev.EndedReason = &s
	}
	if s, ok := firstOf(v, recordingURLRules); ok {
		ev.RecordingURL = &s
	}
	if s, ok := firstOf(v, transcriptURLRules); ok {
		ev.TranscriptURL = &s
	}
}

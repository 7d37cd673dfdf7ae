package events

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type object = map[string]any

// view is what extraction rules read from: the raw body and the message
// envelope inside it. Bodies without a "message" object use the body itself.
type view struct {
	root object
	msg  object
}

func newView(root object) view {
	v := view{root: root, msg: root}
	if m, ok := root["message"].(map[string]any); ok {
		v.msg = m
	}
	return v
}

// rule extracts one field from a view. The bool is false when the value is absent.
type rule[T any] func(v view) (T, bool)

// firstOf returns the value of the first rule that finds one.
func firstOf[T any](v view, rules []rule[T]) (T, bool) {
	for _, r := range rules {
		if out, ok := r(v); ok {
			return out, true
		}
	}
	var zero T
	return zero, false
}

type scope func(v view) object

func fromRoot(v view) object { return v.root }
func fromMsg(v view) object  { return v.msg }

// fromMsgOnly only yields a nested message envelope, never the body itself.
func fromMsgOnly(v view) object {
	if m, ok := v.root["message"].(map[string]any); ok {
		return m
	}
	return nil
}

// lookup walks maps by key and lists by numeric index.
func lookup(node any, path ...string) (any, bool) {
	cur := node
	for _, step := range path {
		switch n := cur.(type) {
		case map[string]any:
			next, ok := n[step]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(step)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			cur = n[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

func str(in scope, path ...string) rule[string] {
	return func(v view) (string, bool) {
		obj := in(v)
		if obj == nil {
			return "", false
		}
		raw, ok := lookup(obj, path...)
		if !ok {
			return "", false
		}
		s, ok := scalarString(raw)
		if !ok || strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}
}

func seconds(in scope, path ...string) rule[int] {
	return func(v view) (int, bool) {
		obj := in(v)
		if obj == nil {
			return 0, false
		}
		raw, ok := lookup(obj, path...)
		if !ok {
			return 0, false
		}
		switch n := raw.(type) {
		case float64:
			return int(math.Round(n)), true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return 0, false
			}
			return int(math.Round(f)), true
		default:
			return 0, false
		}
	}
}

// args accepts an object, or a string holding a JSON object.
func args(in scope, path ...string) rule[map[string]any] {
	return func(v view) (map[string]any, bool) {
		obj := in(v)
		if obj == nil {
			return nil, false
		}
		raw, ok := lookup(obj, path...)
		if !ok {
			return nil, false
		}
		switch a := raw.(type) {
		case map[string]any:
			return a, len(a) > 0
		case string:
			var decoded map[string]any
			if err := json.Unmarshal([]byte(a), &decoded); err != nil {
				return nil, false
			}
			return decoded, len(decoded) > 0
		default:
			return nil, false
		}
	}
}

func scalarString(raw any) (string, bool) {
	switch s := raw.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// Function-call shapes, in priority order.
var functionShapes = [][]string{
	{"functionCall"},
	{"toolCall"},
	{"toolCalls", "0"},
}

func buildNameRules() []rule[string] {
	var out []rule[string]
	for _, shape := range functionShapes {
		out = append(out,
			str(fromMsg, append(clone(shape), "name")...),
			str(fromMsg, append(clone(shape), "function", "name")...),
		)
	}
	return append(out, str(fromMsg, "name"))
}

func buildArgumentRules() []rule[map[string]any] {
	var out []rule[map[string]any]
	for _, shape := range functionShapes {
		out = append(out,
			args(fromMsg, append(clone(shape), "parameters")...),
			args(fromMsg, append(clone(shape), "arguments")...),
			args(fromMsg, append(clone(shape), "function", "arguments")...),
		)
	}
	return append(out, args(fromMsg, "parameters"), args(fromMsg, "arguments"))
}

func buildToolCallRules() []rule[string] {
	var out []rule[string]
	for _, shape := range functionShapes {
		out = append(out, str(fromMsg, append(clone(shape), "id")...))
	}
	return out
}

func clone(path []string) []string {
	return append([]string(nil), path...)
}

var (
	typeRules = []rule[string]{
		str(fromMsgOnly, "type"),
		str(fromRoot, "type"),
	}
	callIDRules = []rule[string]{
		str(fromRoot, "call", "id"),
		str(fromRoot, "callId"),
		str(fromRoot, "call_id"),
		str(fromMsgOnly, "call", "id"),
	}
	timestampRules = []rule[string]{
		str(fromRoot, "timestamp"),
		str(fromMsgOnly, "timestamp"),
	}
	statusRules     = []rule[string]{str(fromMsg, "status")}
	transcriptRules = []rule[string]{str(fromMsg, "transcript")}
	roleRules       = []rule[string]{str(fromMsg, "role")}

	nameRules     = buildNameRules()
	argumentRules = buildArgumentRules()
	toolCallRules = buildToolCallRules()

	durationRules = []rule[int]{
		seconds(fromRoot, "call", "duration"),
		seconds(fromMsgOnly, "call", "duration"),
		seconds(fromMsgOnly, "durationSeconds"),
	}
	endedReasonRules = []rule[string]{
		str(fromRoot, "call", "endedReason"),
		str(fromMsgOnly, "call", "endedReason"),
		str(fromMsgOnly, "endedReason"),
	}
	recordingURLRules = []rule[string]{
		str(fromRoot, "artifact", "recordingUrl"),
		str(fromMsgOnly, "artifact", "recordingUrl"),
		str(fromMsgOnly, "recordingUrl"),
	}
	transcriptURLRules = []rule[string]{
		str(fromRoot, "artifact", "transcript"),
		str(fromMsgOnly, "artifact", "transcript"),
	}
)

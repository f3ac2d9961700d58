// Package normalize maps decoded log records onto canonical events.
//
// Agent session logs come from several producers whose record shapes overlap.
// Normalize walks a fixed chain of shape matchers; the first match wins:
//
//  1. an explicit discriminator (record_type, then type)
//  2. a reasoning object with a summary
//  3. a function_call or function_call_output / tool_output object
//  4. a role with content (message.role / role, message.content / content)
//
// Records that match nothing are dropped without error. The reasoning content
// of a record is never read.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/bimmerbailey/convolog/internal/event"
)

// Normalizer converts raw records to events. It holds no per-record state
// and is safe for concurrent use.
type Normalizer struct {
	now     func() time.Time
	layouts []string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the clock used for records without a usable timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithTimestampLayouts replaces the extra layouts tried for string timestamps.
func WithTimestampLayouts(layouts []string) Option {
	return func(n *Normalizer) {
		if len(layouts) > 0 {
			n.layouts = layouts
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now:     time.Now,
		layouts: DefaultTimestampLayouts,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize converts record with the default Normalizer.
func Normalize(record any) (event.Event, bool) {
	return defaultNormalizer.Normalize(record)
}

// Normalize converts one decoded JSON value to an event. It returns false
// when the record has no recognizable shape.
func (n *Normalizer) Normalize(record any) (event.Event, bool) {
	r, ok := record.(map[string]any)
	if !ok {
		return event.Event{}, false
	}

	ts, ok := n.pickTimestamp(r)
	if !ok {
		ts = n.now().UnixMilli()
	}

	if ev, ok := matchDiscriminator(r, ts); ok {
		return ev, true
	}
	if ev, ok := matchReasoning(r, ts); ok {
		return ev, true
	}
	if ev, ok := matchToolObjects(r, ts); ok {
		return ev, true
	}
	if ev, ok := matchMessage(r, ts); ok {
		return ev, true
	}
	return event.Event{}, false
}

// matchDiscriminator handles records tagged with record_type or type.
func matchDiscriminator(r map[string]any, ts int64) (event.Event, bool) {
	tag, ok := first(r, "record_type", "type").(string)
	if !ok {
		return event.Event{}, false
	}

	switch strings.ToLower(tag) {
	case "state":
		return event.NewMeta(ts, event.KindInfo, "state"), true
	case "function_call", "tool_call":
		return event.NewToolCall(ts, stringify(r["name"]), first(r, "arguments", "args")), true
	case "function_call_output", "tool_result", "tool_output":
		output := first(r, "output", "result")
		if output == nil {
			output = r
		}
		return event.NewToolResult(ts, stringify(r["name"]), output), true
	case "reasoning":
		if summary, ok := nonBlank(r["summary"]); ok {
			return event.NewMeta(ts, event.KindReasoningSummary, summary), true
		}
	}
	return event.Event{}, false
}

// matchReasoning surfaces reasoning.summary and nothing else from the
// reasoning object.
func matchReasoning(r map[string]any, ts int64) (event.Event, bool) {
	reasoning, ok := r["reasoning"].(map[string]any)
	if !ok {
		return event.Event{}, false
	}
	summary, ok := nonBlank(reasoning["summary"])
	if !ok {
		return event.Event{}, false
	}
	return event.NewMeta(ts, event.KindReasoningSummary, summary), true
}

func matchToolObjects(r map[string]any, ts int64) (event.Event, bool) {
	if fc, ok := r["function_call"].(map[string]any); ok {
		args := first(fc, "arguments", "args")
		if args == nil {
			args = map[string]any{}
		}
		return event.NewToolCall(ts, stringify(fc["name"]), args), true
	}

	if out, ok := first(r, "function_call_output", "tool_output").(map[string]any); ok {
		output := first(out, "output", "result")
		if output == nil {
			output = out
		}
		return event.NewToolResult(ts, stringify(out["name"]), output), true
	}
	return event.Event{}, false
}

func matchMessage(r map[string]any, ts int64) (event.Event, bool) {
	msg, _ := r["message"].(map[string]any)

	var roleValue, content any
	if msg != nil {
		roleValue = msg["role"]
		content = msg["content"]
	}
	if roleValue == nil {
		roleValue = r["role"]
	}
	if content == nil {
		content = r["content"]
	}

	roleName, ok := roleValue.(string)
	if !ok {
		return event.Event{}, false
	}
	role, ok := event.ParseRole(roleName)
	if !ok {
		return event.Event{}, false
	}

	text, attachments := parseContent(content)
	if len(text) == 0 {
		return event.Event{}, false
	}
	return event.NewMessage(role, ts, text, attachments), true
}

// first returns the first non-null value among keys.
func first(r map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// nonBlank returns v when it is a string with non-whitespace content.
func nonBlank(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// stringify renders scalar JSON values as text; null becomes "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return event.MarshalText(t)
	}
}

// Package event defines the canonical event model produced by normalization.
//
// Every log record that survives normalization becomes exactly one Event.
// Event is a tagged union: Type selects which of the remaining fields are
// meaningful, and MarshalJSON emits only those fields.
package event

import (
	"bytes"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Type is the discriminator of a canonical event.
type Type string

const (
	TypeUser       Type = "user"
	TypeAssistant  Type = "assistant"
	TypeSystem     Type = "system"
	TypeToolCall   Type = "tool_call"
	TypeToolResult Type = "tool_result"
	TypeMeta       Type = "meta"
)

// Role is a conversational role. Message events use the role as their Type.
type Role = Type

// ParseRole converts s to a Role. Only user, assistant and system are valid,
// compared case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch Type(strings.ToLower(s)) {
	case TypeUser:
		return TypeUser, true
	case TypeAssistant:
		return TypeAssistant, true
	case TypeSystem:
		return TypeSystem, true
	default:
		return "", false
	}
}

// MetaKind distinguishes meta events.
type MetaKind string

const (
	KindReasoningSummary MetaKind = "reasoning_summary"
	KindInfo             MetaKind = "info"
)

// AttachmentImage is the only attachment kind.
const AttachmentImage = "image"

// Attachment is an inline image carried by a message.
// URL is always a data:image/... or blob: URI.
type Attachment struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
	Alt  string `json:"alt,omitempty"`
}

// AllowedAttachmentURL reports whether url may be surfaced as an attachment.
// Anything a renderer would fetch from the network is refused.
func AllowedAttachmentURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "data:image/") || strings.HasPrefix(lower, "blob:")
}

// Event is one canonical event.
type Event struct {
	Type Type  `json:"type"`
	TS   int64 `json:"ts"` // epoch milliseconds

	// Message
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// ToolCall / ToolResult
	Name   string `json:"name,omitempty"`
	Args   any    `json:"args,omitempty"`
	Output any    `json:"output,omitempty"`

	// Meta
	Kind    MetaKind `json:"kind,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Data    any      `json:"data,omitempty"`
}

// NewMessage builds a message event for role.
func NewMessage(role Role, ts int64, text string, attachments []Attachment) Event {
	ev := Event{Type: role, TS: ts, Text: text}
	if len(attachments) > 0 {
		ev.Attachments = attachments
	}
	return ev
}

// NewToolCall builds a tool call event.
func NewToolCall(ts int64, name string, args any) Event {
	return Event{Type: TypeToolCall, TS: ts, Name: name, Args: args}
}

// NewToolResult builds a tool result event.
func NewToolResult(ts int64, name string, output any) Event {
	return Event{Type: TypeToolResult, TS: ts, Name: name, Output: output}
}

// NewMeta builds a meta event.
func NewMeta(ts int64, kind MetaKind, summary string) Event {
	return Event{Type: TypeMeta, TS: ts, Kind: kind, Summary: summary}
}

// IsMessage reports whether e is a user, assistant or system message.
func (e Event) IsMessage() bool {
	return e.Type == TypeUser || e.Type == TypeAssistant || e.Type == TypeSystem
}

// IsTool reports whether e is a tool call or a tool result.
func (e Event) IsTool() bool {
	return e.Type == TypeToolCall || e.Type == TypeToolResult
}

// IsReasoning reports whether e is a reasoning summary.
func (e Event) IsReasoning() bool {
	return e.Type == TypeMeta && e.Kind == KindReasoningSummary
}

// Time returns TS as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.TS)
}

// DisplayText is the text a renderer shows for e: the message text, the
// indented JSON of tool arguments or output, or the meta summary.
func (e Event) DisplayText() string {
	switch e.Type {
	case TypeToolCall:
		return indentJSON(e.Args)
	case TypeToolResult:
		return indentJSON(e.Output)
	case TypeMeta:
		return e.Summary
	default:
		return e.Text
	}
}

// MarshalJSON emits only the fields of e's variant.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeToolCall:
		return json.Marshal(struct {
			Type Type   `json:"type"`
			TS   int64  `json:"ts"`
			Name string `json:"name"`
			Args any    `json:"args"`
		}{e.Type, e.TS, e.Name, e.Args})
	case TypeToolResult:
		return json.Marshal(struct {
			Type   Type   `json:"type"`
			TS     int64  `json:"ts"`
			Name   string `json:"name"`
			Output any    `json:"output"`
		}{e.Type, e.TS, e.Name, e.Output})
	case TypeMeta:
		return json.Marshal(struct {
			Type    Type     `json:"type"`
			TS      int64    `json:"ts"`
			Kind    MetaKind `json:"kind"`
			Summary string   `json:"summary,omitempty"`
			Data    any      `json:"data,omitempty"`
		}{e.Type, e.TS, e.Kind, e.Summary, e.Data})
	default:
		return json.Marshal(struct {
			Type        Type         `json:"type"`
			TS          int64        `json:"ts"`
			Text        string       `json:"text"`
			Attachments []Attachment `json:"attachments,omitempty"`
		}{e.Type, e.TS, e.Text, e.Attachments})
	}
}

// ParseError is a sampled record decode failure.
type ParseError struct {
	Line    int    `json:"line"`
	Message string `json:"error"`
}

// MarshalText serializes v as compact JSON without HTML escaping.
// It returns "null" for values that cannot be encoded.
func MarshalText(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func indentJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

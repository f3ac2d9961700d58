// Package output renders canonical events for the terminal. It supports
// text, JSON, JSON Lines and table formats. Redaction happens here, on the
// way out, so stored events are never modified.
package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"

	"github.com/bimmerbailey/convolog/internal/event"
	"github.com/bimmerbailey/convolog/internal/redact"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "jsonl", "ndjson":
		return FormatJSONL
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

const timeLayout = "15:04:05.000"

// Writer writes events in one format. Events may arrive in several calls;
// Flush must be called once at the end so buffered formats (json, table)
// are written out.
type Writer struct {
	w        io.Writer
	format   Format
	redactor *redact.Redactor
	color    bool

	pending []event.Event
	table   *tabwriter.Writer
}

// Option configures a Writer.
type Option func(*Writer)

// WithRedactor masks event text with r before it is written.
func WithRedactor(r *redact.Redactor) Option {
	return func(wr *Writer) { wr.redactor = r }
}

// WithColor sets the color mode. The default is ColorNever.
func WithColor(mode ColorMode) Option {
	return func(wr *Writer) { wr.color = shouldColorize(mode, wr.w) }
}

// New creates a new output Writer.
func New(w io.Writer, format Format, opts ...Option) *Writer {
	wr := &Writer{w: w, format: format}
	for _, opt := range opts {
		opt(wr)
	}
	return wr
}

// WriteEvents outputs events in the configured format.
func (wr *Writer) WriteEvents(events []event.Event) error {
	switch wr.format {
	case FormatJSON:
		for _, e := range events {
			wr.pending = append(wr.pending, wr.redacted(e))
		}
		return nil
	case FormatJSONL:
		return wr.writeJSONL(events)
	case FormatTable:
		return wr.writeTable(events)
	default:
		return wr.writeText(events)
	}
}

// Flush writes anything the format buffers.
func (wr *Writer) Flush() error {
	switch wr.format {
	case FormatJSON:
		events := wr.pending
		if events == nil {
			events = []event.Event{}
		}
		wr.pending = nil
		return wr.WriteJSON(events)
	case FormatTable:
		if wr.table == nil {
			return nil
		}
		err := wr.table.Flush()
		wr.table = nil
		return err
	default:
		return nil
	}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(wr.w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (wr *Writer) redacted(e event.Event) event.Event {
	if !wr.redactor.Enabled() {
		return e
	}
	e.Text = wr.redactor.Redact(e.Text)
	e.Summary = wr.redactor.Redact(e.Summary)
	e.Args = wr.redactor.Value(e.Args)
	e.Output = wr.redactor.Value(e.Output)
	return e
}

func (wr *Writer) writeJSONL(events []event.Event) error {
	for _, e := range events {
		if _, err := fmt.Fprintln(wr.w, event.MarshalText(wr.redacted(e))); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) writeText(events []event.Event) error {
	for _, e := range events {
		if _, err := fmt.Fprintln(wr.w, FormatEvent(wr.redacted(e), wr.color)); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) writeTable(events []event.Event) error {
	if wr.table == nil {
		wr.table = tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(wr.table, "TIME\tTYPE\tNAME\tTEXT")
		fmt.Fprintln(wr.table, "----\t----\t----\t----")
	}

	for _, e := range wr.redactAll(events) {
		text := oneLine(tableText(e))
		if len(text) > 80 {
			text = text[:77] + "..."
		}
		fmt.Fprintf(wr.table, "%s\t%s\t%s\t%s\n", formatTime(e.TS), label(e), e.Name, text)
	}
	return nil
}

func (wr *Writer) redactAll(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	for i, e := range events {
		out[i] = wr.redacted(e)
	}
	return out
}

// FormatEvent renders e as a text block: a header line with time and type,
// followed by the display text.
func FormatEvent(e event.Event, colorize bool) string {
	header := fmt.Sprintf("[%s] %s", formatTime(e.TS), label(e))
	if e.IsTool() && e.Name != "" {
		header += " " + e.Name
	}
	if colorize {
		header = ColorizeType(e, header)
	}

	var b strings.Builder
	b.WriteString(header)
	if text := e.DisplayText(); text != "" {
		b.WriteString("\n")
		b.WriteString(indent(text))
	}
	for _, a := range e.Attachments {
		b.WriteString("\n  [")
		b.WriteString(a.Kind)
		if a.Alt != "" {
			b.WriteString(": ")
			b.WriteString(a.Alt)
		}
		b.WriteString("]")
	}
	return b.String()
}

func label(e event.Event) string {
	if e.Type == event.TypeMeta {
		return string(e.Type) + "/" + string(e.Kind)
	}
	return string(e.Type)
}

func tableText(e event.Event) string {
	switch e.Type {
	case event.TypeToolCall:
		return event.MarshalText(e.Args)
	case event.TypeToolResult:
		return event.MarshalText(e.Output)
	default:
		return e.DisplayText()
	}
}

func formatTime(ts int64) string {
	return time.UnixMilli(ts).UTC().Format(timeLayout)
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package analyzer

import (
	"testing"
	"time"

	"github.com/bimmerbailey/convolog/internal/event"
	"github.com/bimmerbailey/convolog/internal/redact"
)

var base = time.Date(2025, 1, 26, 10, 0, 0, 0, time.UTC)

func at(d time.Duration) int64 {
	return base.Add(d).UnixMilli()
}

func sample() []event.Event {
	return []event.Event{
		event.NewMessage(event.TypeSystem, at(0), "be helpful", nil),
		event.NewMessage(event.TypeUser, at(time.Second), "email bob@example.com", []event.Attachment{
			{Kind: event.AttachmentImage, URL: "data:image/png;base64,AAA"},
		}),
		event.NewToolCall(at(2*time.Second), "search", map[string]any{"q": "go"}),
		event.NewToolResult(at(3*time.Second), "search", "found"),
		event.NewToolCall(at(4*time.Second), "read", nil),
		event.NewToolCall(at(5*time.Second), "search", nil),
		event.NewMeta(at(6*time.Second), event.KindReasoningSummary, "plan"),
		event.NewMessage(event.TypeAssistant, at(70*time.Second), "done", nil),
	}
}

func TestComputeStats(t *testing.T) {
	a := New(redact.New(redact.DefaultOptions()))
	stats := a.ComputeStats(sample(), 1)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"total", stats.TotalEvents, 8},
		{"tool calls", stats.TypeCounts[event.TypeToolCall], 3},
		{"users", stats.TypeCounts[event.TypeUser], 1},
		{"attachments", stats.Attachments, 1},
		{"reasoning", stats.Reasoning, 1},
		{"redactable", stats.RedactableSpans, 1},
		{"first", stats.FirstEvent, base},
		{"last", stats.LastEvent, base.Add(70 * time.Second)},
		{"duration", stats.Duration, 70 * time.Second},
		{"top tools len", len(stats.TopTools), 1},
		{"top tool", stats.TopTools[0], NameCount{Name: "search", Count: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := New(nil).ComputeStats(nil, 5)
	if stats.TotalEvents != 0 || !stats.FirstEvent.IsZero() || stats.Duration != 0 || len(stats.TopTools) != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestComputeStats_NilRedactorCountsNothing(t *testing.T) {
	if got := New(nil).ComputeStats(sample(), 5).RedactableSpans; got != 0 {
		t.Errorf("RedactableSpans = %d", got)
	}
}

func TestFilter(t *testing.T) {
	a := New(nil)

	tests := []struct {
		name string
		opts FilterOptions
		want int
	}{
		{"no criteria", FilterOptions{}, 8},
		{"pattern on text", FilterOptions{Pattern: "bob@"}, 1},
		{"pattern on tool name", FilterOptions{Pattern: "^search$"}, 3},
		{"inverted", FilterOptions{Pattern: "^search$", Invert: true}, 5},
		{"types", FilterOptions{Types: []event.Type{event.TypeToolCall, event.TypeMeta}}, 4},
		{"since", FilterOptions{Since: base.Add(5 * time.Second)}, 3},
		{"until", FilterOptions{Until: base.Add(time.Second)}, 2},
		{"window", FilterOptions{Since: base.Add(2 * time.Second), Until: base.Add(4 * time.Second)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Filter(sample(), tt.opts)
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Filter() returned %d events, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := a.Filter(sample(), FilterOptions{Pattern: "("}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestGroupBy(t *testing.T) {
	a := New(nil)

	byType, err := a.GroupBy(sample(), "type", 10)
	if err != nil {
		t.Fatal(err)
	}
	if byType[0].Key != "tool_call" || byType[0].Count != 3 || byType[0].Percent != 37.5 {
		t.Errorf("first type group = %+v", byType[0])
	}

	byTool, err := a.GroupBy(sample(), "tool", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(byTool) != 1 || byTool[0].Key != "search" || byTool[0].Count != 3 || byTool[0].Percent != 75 {
		t.Errorf("tool groups = %+v", byTool)
	}

	byRole, err := a.GroupBy(sample(), "role", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byRole) != 3 {
		t.Errorf("role groups = %+v", byRole)
	}

	if _, err := a.GroupBy(sample(), "level", 10); err == nil {
		t.Error("expected error for unsupported field")
	}

	empty, err := a.GroupBy(nil, "type", 10)
	if err != nil || empty != nil {
		t.Errorf("GroupBy(nil) = %v, %v", empty, err)
	}
}

func TestAnalyzeByWindow(t *testing.T) {
	windows := New(nil).AnalyzeByWindow(sample(), time.Minute)
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	if windows[0].Count != 7 || windows[0].ToolCalls != 3 || windows[0].TypeCounts[event.TypeUser] != 1 {
		t.Errorf("window 0 = %+v", windows[0])
	}
	if windows[1].Count != 1 || !windows[1].Start.Equal(base.Add(time.Minute)) {
		t.Errorf("window 1 = %+v", windows[1])
	}
	want := float64(1-7) * 100 / 7
	if windows[1].ChangePercent != want {
		t.Errorf("ChangePercent = %v, want %v", windows[1].ChangePercent, want)
	}

	if New(nil).AnalyzeByWindow(nil, time.Minute) != nil {
		t.Error("expected nil for no events")
	}
	if New(nil).AnalyzeByWindow(sample(), 0) != nil {
		t.Error("expected nil for zero window")
	}
}

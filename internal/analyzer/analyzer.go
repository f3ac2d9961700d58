// Package analyzer computes summaries over canonical events: per-type
// counts, tool usage, time windows and filtered views.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/bimmerbailey/convolog/internal/event"
	"github.com/bimmerbailey/convolog/internal/redact"
)

// Stats holds aggregate statistics for one run.
type Stats struct {
	Source          string             `json:"source,omitempty"`
	TotalEvents     int                `json:"total_events"`
	TypeCounts      map[event.Type]int `json:"type_counts"`
	FirstEvent      time.Time          `json:"first_event,omitempty"`
	LastEvent       time.Time          `json:"last_event,omitempty"`
	Duration        time.Duration      `json:"duration_ns"`
	TopTools        []NameCount        `json:"top_tools,omitempty"`
	Attachments     int                `json:"attachments"`
	Reasoning       int                `json:"reasoning_summaries"`
	RedactableSpans int                `json:"redactable_spans"`

	// Filled from the run's terminal message.
	BytesRead    int64              `json:"bytes_read"`
	ErrorCount   int                `json:"error_count"`
	ErrorSamples []event.ParseError `json:"error_samples,omitempty"`
}

// NameCount tracks a name and how often it appears.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GroupedResult represents events grouped by a field value.
type GroupedResult struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// TimeWindowStats holds statistics for a time window.
type TimeWindowStats struct {
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	Count         int                `json:"count"`
	TypeCounts    map[event.Type]int `json:"type_counts"`
	ToolCalls     int                `json:"tool_calls"`
	ChangePercent float64            `json:"change_percent"` // Change from previous window
}

// Analyzer performs analysis on canonical events.
type Analyzer struct {
	redactor *redact.Redactor
}

// New creates a new Analyzer. r counts redactable spans; it may be nil.
func New(r *redact.Redactor) *Analyzer {
	return &Analyzer{redactor: r}
}

// ComputeStats calculates aggregate statistics from events.
func (a *Analyzer) ComputeStats(events []event.Event, topN int) Stats {
	stats := Stats{
		TotalEvents: len(events),
		TypeCounts:  make(map[event.Type]int),
	}

	toolCounts := make(map[string]int)

	for _, e := range events {
		stats.TypeCounts[e.Type]++
		stats.Attachments += len(e.Attachments)

		if e.TS > 0 {
			ts := e.Time().UTC()
			if stats.FirstEvent.IsZero() || ts.Before(stats.FirstEvent) {
				stats.FirstEvent = ts
			}
			if stats.LastEvent.IsZero() || ts.After(stats.LastEvent) {
				stats.LastEvent = ts
			}
		}

		if e.Type == event.TypeToolCall {
			toolCounts[e.Name]++
		}
		if e.IsReasoning() {
			stats.Reasoning++
		}
		stats.RedactableSpans += a.countSpans(e)
	}

	stats.Duration = stats.LastEvent.Sub(stats.FirstEvent)
	stats.TopTools = topNames(toolCounts, topN)

	return stats
}

func (a *Analyzer) countSpans(e event.Event) int {
	if a.redactor == nil {
		return 0
	}
	switch e.Type {
	case event.TypeToolCall:
		return a.redactor.Count(event.MarshalText(e.Args))
	case event.TypeToolResult:
		return a.redactor.Count(event.MarshalText(e.Output))
	default:
		return a.redactor.Count(e.DisplayText())
	}
}

// FilterOptions defines the criteria for filtering events.
type FilterOptions struct {
	Pattern string // regex matched against the display text and tool name
	Types   []event.Type
	Since   time.Time
	Until   time.Time
	Invert  bool
}

// Filter returns events matching the given criteria.
func (a *Analyzer) Filter(events []event.Event, opts FilterOptions) ([]event.Event, error) {
	var re *regexp.Regexp
	if opts.Pattern != "" {
		var err error
		re, err = regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	types := make(map[event.Type]bool, len(opts.Types))
	for _, t := range opts.Types {
		types[t] = true
	}

	var result []event.Event
	for _, e := range events {
		if len(types) > 0 && !types[e.Type] {
			continue
		}

		ts := e.Time()
		if !opts.Since.IsZero() && ts.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && ts.After(opts.Until) {
			continue
		}

		if re != nil {
			matched := re.MatchString(e.DisplayText()) || (e.Name != "" && re.MatchString(e.Name))
			if opts.Invert {
				matched = !matched
			}
			if !matched {
				continue
			}
		}

		result = append(result, e)
	}

	return result, nil
}

// topNames extracts the N most frequent names. Ties sort by name.
func topNames(counts map[string]int, n int) []NameCount {
	names := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		names = append(names, NameCount{Name: name, Count: count})
	}

	sort.Slice(names, func(i, j int) bool {
		if names[i].Count != names[j].Count {
			return names[i].Count > names[j].Count
		}
		return names[i].Name < names[j].Name
	})

	if n > 0 && len(names) > n {
		names = names[:n]
	}

	return names
}

// GroupBy groups events by a field and returns the top N groups.
// Supported fields: "type", "tool", "role". "tool" considers only tool
// events and "role" only messages.
func (a *Analyzer) GroupBy(events []event.Event, field string, topN int) ([]GroupedResult, error) {
	groups := make(map[string]int)
	total := 0

	for _, e := range events {
		var key string
		switch field {
		case "type":
			key = string(e.Type)
		case "tool":
			if !e.IsTool() {
				continue
			}
			key = e.Name
			if key == "" {
				key = "(unnamed)"
			}
		case "role":
			if !e.IsMessage() {
				continue
			}
			key = string(e.Type)
		default:
			return nil, fmt.Errorf("unsupported group-by field: %s (must be 'type', 'tool', or 'role')", field)
		}

		groups[key]++
		total++
	}

	if total == 0 {
		return nil, nil
	}

	result := make([]GroupedResult, 0, len(groups))
	for key, count := range groups {
		result = append(result, GroupedResult{
			Key:     key,
			Count:   count,
			Percent: float64(count) * 100 / float64(total),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})

	if topN > 0 && len(result) > topN {
		result = result[:topN]
	}

	return result, nil
}

// AnalyzeByWindow splits events into time windows and counts each one.
func (a *Analyzer) AnalyzeByWindow(events []event.Event, window time.Duration) []TimeWindowStats {
	if len(events) == 0 || window <= 0 {
		return nil
	}

	var minTime, maxTime time.Time
	for _, e := range events {
		if e.TS <= 0 {
			continue
		}
		ts := e.Time().UTC()
		if minTime.IsZero() || ts.Before(minTime) {
			minTime = ts
		}
		if maxTime.IsZero() || ts.After(maxTime) {
			maxTime = ts
		}
	}

	if minTime.IsZero() {
		return nil
	}

	windowStart := minTime.Truncate(window)
	var windows []TimeWindowStats

	for current := windowStart; !current.After(maxTime); current = current.Add(window) {
		windows = append(windows, TimeWindowStats{
			Start:      current,
			End:        current.Add(window),
			TypeCounts: make(map[event.Type]int),
		})
	}

	for _, e := range events {
		if e.TS <= 0 {
			continue
		}
		idx := int(e.Time().Sub(windowStart) / window)
		if idx < 0 || idx >= len(windows) {
			continue
		}
		windows[idx].Count++
		windows[idx].TypeCounts[e.Type]++
		if e.Type == event.TypeToolCall {
			windows[idx].ToolCalls++
		}
	}

	for i := 1; i < len(windows); i++ {
		if prev := windows[i-1].Count; prev > 0 {
			windows[i].ChangePercent = float64(windows[i].Count-prev) * 100 / float64(prev)
		}
	}

	return windows
}

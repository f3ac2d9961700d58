package client

import "github.com/bimmerbailey/convolog/internal/event"

// Filter selects which events a viewer shows. Messages are always shown.
type Filter struct {
	ShowTools     bool
	ShowReasoning bool
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev event.Event) bool {
	switch {
	case ev.IsMessage():
		return true
	case ev.IsTool():
		return f.ShowTools
	case ev.IsReasoning():
		return f.ShowReasoning
	default:
		return false
	}
}

// Apply returns the events that pass the filter, in order.
func (f Filter) Apply(events []event.Event) []event.Event {
	out := make([]event.Event, 0, len(events))
	for _, ev := range events {
		if f.Match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

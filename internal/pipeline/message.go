package pipeline

import (
	json "github.com/goccy/go-json"

	"github.com/bimmerbailey/convolog/internal/event"
)

// Op names a protocol message.
type Op string

const (
	OpBatch    Op = "batch"
	OpProgress Op = "progress"
	OpDone     Op = "done"
	OpError    Op = "error"
)

// Message is one unit of pipeline output. Every message carries the
// generation and run ID of the run that produced it; which other fields are
// meaningful depends on Op.
type Message struct {
	Op         Op
	Generation uint64
	RunID      string

	Events []event.Event // batch

	BytesRead  int64 // progress
	TotalBytes int64 // progress; 0 when unknown

	ErrorCount   int                // done, error
	ErrorSamples []event.ParseError // done, error

	Err string // error
}

// Terminal reports whether m ends its run.
func (m Message) Terminal() bool {
	return m.Op == OpDone || m.Op == OpError
}

// MarshalJSON encodes the wire form, which only carries the fields of the
// message's op.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Op {
	case OpBatch:
		events := m.Events
		if events == nil {
			events = []event.Event{}
		}
		return json.Marshal(struct {
			Op     Op            `json:"op"`
			Gen    uint64        `json:"gen"`
			RunID  string        `json:"runId,omitempty"`
			Events []event.Event `json:"events"`
		}{m.Op, m.Generation, m.RunID, events})
	case OpProgress:
		return json.Marshal(struct {
			Op         Op     `json:"op"`
			Gen        uint64 `json:"gen"`
			RunID      string `json:"runId,omitempty"`
			BytesRead  int64  `json:"bytesRead"`
			TotalBytes int64  `json:"totalBytes"`
		}{m.Op, m.Generation, m.RunID, m.BytesRead, m.TotalBytes})
	case OpDone:
		return json.Marshal(struct {
			Op           Op                 `json:"op"`
			Gen          uint64             `json:"gen"`
			RunID        string             `json:"runId,omitempty"`
			ErrorCount   int                `json:"errorCount"`
			ErrorSamples []event.ParseError `json:"errorSamples"`
		}{m.Op, m.Generation, m.RunID, m.ErrorCount, samplesOrEmpty(m.ErrorSamples)})
	default:
		return json.Marshal(struct {
			Op           Op                 `json:"op"`
			Gen          uint64             `json:"gen"`
			RunID        string             `json:"runId,omitempty"`
			Message      string             `json:"message"`
			ErrorCount   int                `json:"errorCount,omitempty"`
			ErrorSamples []event.ParseError `json:"errorSamples,omitempty"`
		}{m.Op, m.Generation, m.RunID, m.Err, m.ErrorCount, m.ErrorSamples})
	}
}

func samplesOrEmpty(s []event.ParseError) []event.ParseError {
	if s == nil {
		return []event.ParseError{}
	}
	return s
}

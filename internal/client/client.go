// Package client consumes pipeline messages into an observable run state.
//
// A Client owns one pipeline Worker. Each Start begins a new generation: the
// previous run is abandoned, its state discarded, and any message it still
// had in flight is dropped on arrival because its generation no longer
// matches. All state changes happen on the client's own goroutine.
package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/bimmerbailey/convolog/internal/event"
	"github.com/bimmerbailey/convolog/internal/pipeline"
	"github.com/bimmerbailey/convolog/internal/source"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("client closed")

// Status is the lifecycle of a run as seen by the client.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Finished reports whether the run reached a terminal status.
func (s Status) Finished() bool {
	return s == StatusDone || s == StatusError
}

// State is the accumulated result of the current run.
type State struct {
	Generation   uint64
	RunID        string
	Source       string
	Events       []event.Event
	ErrorCount   int
	ErrorSamples []event.ParseError
	BytesRead    int64
	TotalBytes   int64
	Status       Status
	Err          string
}

func (s State) clone() State {
	s.Events = append([]event.Event(nil), s.Events...)
	s.ErrorSamples = append([]event.ParseError(nil), s.ErrorSamples...)
	return s
}

type command struct {
	src   source.Source // nil means reset
	reply chan uint64
}

// Client drives runs and holds their state.
type Client struct {
	worker *pipeline.Worker
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan command
	loopWG sync.WaitGroup

	mu      sync.RWMutex
	state   State
	changed chan struct{}

	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client running p and starts its message loop.
func New(p *pipeline.Pipeline, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		worker:  pipeline.NewWorker(p, 64),
		log:     zlog.Logger,
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan command),
		state:   State{Status: StatusIdle},
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.loopWG.Add(1)
	go c.loop()
	return c
}

// Start abandons the current run and begins a new one over src. It returns
// the new generation.
func (c *Client) Start(src source.Source) (uint64, error) {
	if src == nil {
		return 0, errors.New("nil source")
	}
	return c.do(command{src: src})
}

// Reset abandons the current run and returns to the idle state.
func (c *Client) Reset() error {
	_, err := c.do(command{})
	return err
}

func (c *Client) do(cmd command) (uint64, error) {
	cmd.reply = make(chan uint64, 1)
	select {
	case c.cmds <- cmd:
	case <-c.ctx.Done():
		return 0, ErrClosed
	}
	return <-cmd.reply, nil
}

// State returns a copy of the current state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Snapshot returns the current state without its events; use Events to
// read them incrementally.
func (c *Client) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.state
	st.Events = nil
	st.ErrorSamples = append([]event.ParseError(nil), st.ErrorSamples...)
	return st
}

// Events returns a copy of the current run's events starting at index from.
func (c *Client) Events(from int) []event.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(c.state.Events) {
		return nil
	}
	return append([]event.Event(nil), c.state.Events[from:]...)
}

// Changed returns a channel that is closed at the next state change.
func (c *Client) Changed() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

// Wait blocks until the current run finishes or ctx is done, and returns the
// state at that point. An idle client returns at once.
func (c *Client) Wait(ctx context.Context) (State, error) {
	for {
		c.mu.RLock()
		st := c.state
		ch := c.changed
		c.mu.RUnlock()

		if st.Status != StatusLoading {
			return st.clone(), nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}
}

// Close abandons the current run and stops the client.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.loopWG.Wait()
	})
}

func (c *Client) loop() {
	defer c.loopWG.Done()
	defer c.worker.Close()

	var gen uint64
	for {
		select {
		case <-c.ctx.Done():
			return

		case cmd := <-c.cmds:
			gen++
			if cmd.src == nil {
				c.worker.Stop()
				c.update(func(s *State) { *s = State{Generation: gen, Status: StatusIdle} })
				cmd.reply <- gen
				continue
			}

			tag := pipeline.RunTag{Generation: gen, ID: uuid.NewString()}
			c.update(func(s *State) {
				*s = State{
					Generation: gen,
					RunID:      tag.ID,
					Source:     cmd.src.Name(),
					Status:     StatusLoading,
				}
			})
			if err := c.worker.Start(c.ctx, tag, cmd.src); err != nil {
				c.update(func(s *State) {
					s.Status = StatusError
					s.Err = err.Error()
				})
			}
			cmd.reply <- gen

		case m, ok := <-c.worker.Messages():
			if !ok {
				return
			}
			c.apply(m)
		}
	}
}

// apply folds one message into the state. Messages from other generations
// and messages arriving after the terminal one are dropped.
func (c *Client) apply(m pipeline.Message) {
	c.mu.RLock()
	current, status := c.state.Generation, c.state.Status
	c.mu.RUnlock()

	if m.Generation != current || status != StatusLoading {
		c.log.Debug().
			Uint64("gen", m.Generation).
			Uint64("current", current).
			Str("op", string(m.Op)).
			Msg("dropping stale message")
		return
	}

	c.update(func(s *State) {
		switch m.Op {
		case pipeline.OpBatch:
			s.Events = append(s.Events, m.Events...)
		case pipeline.OpProgress:
			s.BytesRead = m.BytesRead
			s.TotalBytes = m.TotalBytes
		case pipeline.OpDone:
			s.ErrorCount = m.ErrorCount
			s.ErrorSamples = m.ErrorSamples
			s.Status = StatusDone
		case pipeline.OpError:
			if m.ErrorCount > 0 {
				s.ErrorCount = m.ErrorCount
				s.ErrorSamples = m.ErrorSamples
			}
			s.Err = m.Err
			s.Status = StatusError
		}
	})
}

// update mutates the state and wakes everyone waiting on Changed.
func (c *Client) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

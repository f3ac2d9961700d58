package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/bimmerbailey/convolog/internal/source"
)

// ErrWorkerClosed is returned by Start after Close.
var ErrWorkerClosed = errors.New("worker closed")

// Worker executes at most one run at a time on its own goroutine and
// publishes the run's messages on a single channel. Starting a new run
// abandons the current one. The consumer and the run share nothing but the
// channel.
type Worker struct {
	p   *Pipeline
	out chan Message

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewWorker creates a Worker whose message channel holds buffer messages.
func NewWorker(p *Pipeline, buffer int) *Worker {
	return &Worker{
		p:   p,
		out: make(chan Message, buffer),
	}
}

// Messages returns the outbound channel. It is closed by Close.
func (w *Worker) Messages() <-chan Message {
	return w.out
}

// Start abandons any current run, waits for it to stop, then begins a run
// over src tagged with tag.
func (w *Worker) Start(ctx context.Context, tag RunTag, src source.Source) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWorkerClosed
	}
	w.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		defer cancel()
		_ = w.p.Run(runCtx, tag, src, w.out)
	}()
	return nil
}

// Stop abandons the current run, if any, and waits for it to stop.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Worker) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	w.done = nil
}

// Close stops the current run and closes the message channel.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.stopLocked()
	w.closed = true
	close(w.out)
}

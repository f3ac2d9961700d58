package pipeline

import (
	"time"

	"github.com/bimmerbailey/convolog/internal/event"
)

// batcher buffers events until the batch is full or the oldest buffered
// event has waited for the batch interval.
type batcher struct {
	size     int
	interval time.Duration
	now      func() time.Time

	buf     []event.Event
	firstAt time.Time
	timer   *time.Timer
}

func newBatcher(size int, interval time.Duration, now func() time.Time) *batcher {
	return &batcher{size: size, interval: interval, now: now}
}

// add buffers ev and reports whether the batch is due.
func (b *batcher) add(ev event.Event) bool {
	if len(b.buf) == 0 {
		b.firstAt = b.now()
		b.arm()
	}
	b.buf = append(b.buf, ev)
	return b.due()
}

func (b *batcher) due() bool {
	if len(b.buf) == 0 {
		return false
	}
	return len(b.buf) >= b.size || b.now().Sub(b.firstAt) >= b.interval
}

// take returns the buffered events and empties the buffer.
func (b *batcher) take() []event.Event {
	out := b.buf
	b.buf = nil
	b.disarm()
	return out
}

// C fires once the oldest buffered event has waited for the interval. It is
// nil while the buffer is empty.
func (b *batcher) C() <-chan time.Time {
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

func (b *batcher) arm() {
	b.disarm()
	b.timer = time.NewTimer(b.interval)
}

func (b *batcher) disarm() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *batcher) len() int {
	return len(b.buf)
}

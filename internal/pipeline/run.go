package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/bimmerbailey/convolog/internal/event"
	"github.com/bimmerbailey/convolog/internal/framer"
	"github.com/bimmerbailey/convolog/internal/source"
)

type mode int

const (
	modeUndecided mode = iota
	modeStreamed
	modeDocument
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// chunk is one read result handed from the reader goroutine to the run loop.
type chunk struct {
	data []byte
	err  error
}

// run is the state of a single Run call. It is owned by one goroutine.
type run struct {
	p   *Pipeline
	tag RunTag
	out chan<- Message
	log zerolog.Logger

	name  string
	size  int64
	mode  mode
	head  []byte // bytes seen before the mode was decided
	doc   bytes.Buffer
	frame *framer.Framer
	batch *batcher

	bytesRead  int64
	records    int
	events     int
	errorCount int
	samples    []event.ParseError
}

func newRun(p *Pipeline, tag RunTag, out chan<- Message, log zerolog.Logger) *run {
	return &run{
		p:     p,
		tag:   tag,
		out:   out,
		log:   log,
		frame: framer.New(),
		batch: newBatcher(p.cfg.BatchSize, p.cfg.BatchInterval, p.now),
	}
}

func (r *run) execute(ctx context.Context, src source.Source) error {
	defer r.batch.disarm()

	st, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return r.fail(ctx, fmt.Errorf("open source: %w", err))
	}
	r.name = src.Name()
	r.size = st.Size

	readCtx, stopReading := context.WithCancel(ctx)
	defer func() {
		stopReading()
		st.Close()
	}()

	chunks := make(chan chunk)
	go r.read(readCtx, st, chunks)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-r.batch.C():
			if err := r.flush(ctx); err != nil {
				return err
			}

		case c := <-chunks:
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					return r.finish(ctx)
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return r.fail(ctx, fmt.Errorf("read source: %w", c.err))
			}
			if err := r.consume(ctx, c.data); err != nil {
				return err
			}
		}
	}
}

// read pumps the stream into chunks until EOF, an error or cancellation.
func (r *run) read(ctx context.Context, st io.Reader, chunks chan<- chunk) {
	for {
		buf := make([]byte, r.p.cfg.ChunkSize)
		n, err := st.Read(buf)
		if n > 0 {
			select {
			case chunks <- chunk{data: buf[:n]}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case chunks <- chunk{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// consume processes one chunk and reports progress.
func (r *run) consume(ctx context.Context, data []byte) error {
	r.bytesRead += int64(len(data))
	r.p.metrics.BytesRead(len(data))

	if r.mode == modeUndecided {
		r.head = append(r.head, data...)
		r.decide()
		data = nil
		if r.mode != modeUndecided {
			data, r.head = r.head, nil
		}
	}

	switch r.mode {
	case modeStreamed:
		if err := r.lines(ctx, r.frame.Write(data)); err != nil {
			return err
		}
	case modeDocument:
		if err := r.buffer(data); err != nil {
			return r.fail(ctx, err)
		}
	}

	return r.send(ctx, Message{
		Op:         OpProgress,
		BytesRead:  r.bytesRead,
		TotalBytes: r.size,
	})
}

// decide picks the mode once the first non-whitespace byte is known.
func (r *run) decide() {
	lead := bytes.TrimPrefix(r.head, utf8BOM)
	lead = bytes.TrimLeft(lead, " \t\r\n")
	if len(lead) == 0 {
		return
	}

	switch {
	case lead[0] == '[':
		r.mode = modeDocument
	case strings.HasSuffix(strings.ToLower(r.name), ".json") && r.size > 0 && r.size <= r.p.cfg.WholeDocumentLimit:
		r.mode = modeDocument
	default:
		r.mode = modeStreamed
	}
	r.log.Debug().Bool("whole_document", r.mode == modeDocument).Msg("ingestion mode decided")
}

func (r *run) buffer(data []byte) error {
	if int64(r.doc.Len()+len(data)) > r.p.cfg.WholeDocumentLimit {
		return fmt.Errorf("document exceeds %d bytes", r.p.cfg.WholeDocumentLimit)
	}
	r.doc.Write(data)
	return nil
}

// lines decodes and normalizes framed records.
func (r *run) lines(ctx context.Context, recs []framer.Record) error {
	for _, rec := range recs {
		r.records++
		r.p.metrics.RecordRead()

		var v any
		if err := json.Unmarshal([]byte(rec.Text), &v); err != nil {
			r.errorCount++
			r.p.metrics.ParseError()
			if len(r.samples) < r.p.cfg.MaxErrorSamples {
				r.samples = append(r.samples, event.ParseError{Line: rec.Line, Message: err.Error()})
			}
			continue
		}
		if err := r.emit(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) emit(ctx context.Context, record any) error {
	ev, ok := r.p.normalizer.Normalize(record)
	if !ok {
		return nil
	}
	r.events++
	r.p.metrics.Event(string(ev.Type))

	if r.batch.add(ev) {
		return r.flush(ctx)
	}
	return nil
}

func (r *run) flush(ctx context.Context) error {
	if r.batch.len() == 0 {
		return nil
	}
	events := r.batch.take()
	r.p.metrics.Batch()
	return r.send(ctx, Message{Op: OpBatch, Events: events})
}

// finish handles end of input for the decided mode and sends done.
func (r *run) finish(ctx context.Context) error {
	switch r.mode {
	case modeDocument:
		if err := r.decodeDocument(ctx); err != nil {
			return err
		}
	default:
		if rec, ok := r.frame.Flush(); ok {
			if err := r.lines(ctx, []framer.Record{rec}); err != nil {
				return err
			}
		}
	}

	if err := r.flush(ctx); err != nil {
		return err
	}
	return r.send(ctx, Message{
		Op:           OpDone,
		ErrorCount:   r.errorCount,
		ErrorSamples: r.samples,
	})
}

// decodeDocument decodes the buffered whole document. A decode failure is
// fatal to the run.
func (r *run) decodeDocument(ctx context.Context) error {
	data := bytes.TrimPrefix(r.doc.Bytes(), utf8BOM)

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		r.log.Debug().Err(err).Msg("whole document decode failed")
		if err := r.flush(ctx); err != nil {
			return err
		}
		r.errorCount = 1
		r.samples = []event.ParseError{{Line: 1, Message: InvalidDocument}}
		r.p.metrics.ParseError()
		if err := r.send(ctx, Message{
			Op:           OpError,
			Err:          InvalidDocument,
			ErrorCount:   r.errorCount,
			ErrorSamples: r.samples,
		}); err != nil {
			return err
		}
		return ErrInvalidDocument
	}

	records, ok := v.([]any)
	if !ok {
		records = []any{v}
	}
	for _, rec := range records {
		r.records++
		r.p.metrics.RecordRead()
		if err := r.emit(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// fail flushes buffered events and reports err as the terminal message.
func (r *run) fail(ctx context.Context, err error) error {
	if ferr := r.flush(ctx); ferr != nil {
		return ferr
	}
	if serr := r.send(ctx, Message{Op: OpError, Err: err.Error()}); serr != nil {
		return serr
	}
	return err
}

// send delivers m unless the run is abandoned first.
func (r *run) send(ctx context.Context, m Message) error {
	m.Generation = r.tag.Generation
	m.RunID = r.tag.ID

	select {
	case r.out <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

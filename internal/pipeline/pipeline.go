// Package pipeline turns a byte source into a stream of canonical events.
//
// A run reads its source in chunks, frames the bytes into records, decodes
// and normalizes each record and delivers the events in batches, interleaved
// with progress reports and followed by exactly one terminal message (done or
// error). Abandoning a run by cancelling its context closes the source and
// ends delivery without a terminal message.
//
// Two ingestion modes exist. Streamed mode treats the input as JSON Lines and
// tolerates malformed lines, counting them and keeping a few samples.
// Whole-document mode decodes the entire input as one JSON value; an array
// yields one record per element. The mode is picked from the first
// non-whitespace byte of the stream and the source's name and size.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/bimmerbailey/convolog/internal/metrics"
	"github.com/bimmerbailey/convolog/internal/normalize"
	"github.com/bimmerbailey/convolog/internal/source"
)

// InvalidDocument is the message reported when whole-document decoding fails.
const InvalidDocument = "Invalid JSON content"

// ErrInvalidDocument is returned by Run when whole-document decoding fails.
var ErrInvalidDocument = errors.New("invalid JSON document")

// Config tunes a pipeline. Zero fields take the defaults.
type Config struct {
	BatchSize          int           `mapstructure:"batch_size"`
	BatchInterval      time.Duration `mapstructure:"batch_interval"`
	WholeDocumentLimit int64         `mapstructure:"whole_document_limit"`
	MaxErrorSamples    int           `mapstructure:"max_error_samples"`
	ChunkSize          int           `mapstructure:"chunk_size"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:          200,
		BatchInterval:      50 * time.Millisecond,
		WholeDocumentLimit: 32 << 20,
		MaxErrorSamples:    5,
		ChunkSize:          32 << 10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = d.BatchInterval
	}
	if c.WholeDocumentLimit <= 0 {
		c.WholeDocumentLimit = d.WholeDocumentLimit
	}
	if c.MaxErrorSamples <= 0 {
		c.MaxErrorSamples = d.MaxErrorSamples
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	return c
}

// RunTag identifies a run in every message it emits.
type RunTag struct {
	Generation uint64
	ID         string
}

// Pipeline runs ingestion. It keeps no per-run state and may run several
// sources concurrently.
type Pipeline struct {
	cfg        Config
	normalizer *normalize.Normalizer
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

// WithMetrics records run metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger; the global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// withClock sets the clock used for batch deadlines.
func withClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg.withDefaults(),
		normalizer: normalize.New(),
		log:        zlog.Logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run performs one run over src, sending messages to out. It returns nil
// after delivering done, the reported error after delivering error, and the
// context's error when the run was abandoned.
func (p *Pipeline) Run(ctx context.Context, tag RunTag, src source.Source, out chan<- Message) error {
	start := time.Now()
	log := p.log.With().
		Str("run_id", tag.ID).
		Uint64("gen", tag.Generation).
		Str("source", src.Name()).
		Logger()

	p.metrics.RunStarted()
	log.Debug().Msg("run started")

	r := newRun(p, tag, out, log)
	err := r.execute(ctx, src)

	outcome := metrics.OutcomeDone
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		outcome = metrics.OutcomeAbandoned
		log.Debug().Msg("run abandoned")
	case err != nil:
		outcome = metrics.OutcomeError
		log.Warn().Err(err).Int64("bytes", r.bytesRead).Msg("run failed")
	default:
		log.Info().
			Int64("bytes", r.bytesRead).
			Int("records", r.records).
			Int("events", r.events).
			Int("parse_errors", r.errorCount).
			Dur("elapsed", time.Since(start)).
			Msg("run done")
	}
	p.metrics.RunFinished(outcome, time.Since(start))
	return err
}

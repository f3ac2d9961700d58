package cmd

import (
	"context"
	"net/http"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bimmerbailey/convolog/internal/client"
	"github.com/bimmerbailey/convolog/internal/config"
	"github.com/bimmerbailey/convolog/internal/event"
	"github.com/bimmerbailey/convolog/internal/metrics"
	"github.com/bimmerbailey/convolog/internal/normalize"
	"github.com/bimmerbailey/convolog/internal/pipeline"
	"github.com/bimmerbailey/convolog/internal/source"
)

// commandContext returns cmd's context, or Background when the command was
// not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newPipeline(cfg config.Config, m *metrics.Metrics) *pipeline.Pipeline {
	return pipeline.New(cfg.Pipeline,
		pipeline.WithNormalizer(normalize.New(normalize.WithTimestampLayouts(cfg.TimestampFormats))),
		pipeline.WithMetrics(m),
		pipeline.WithLogger(zlog.Logger),
	)
}

func sourceOptions(cfg config.Config, follow bool, stop <-chan struct{}) source.Options {
	return source.Options{
		HTTPClient: http.DefaultClient,
		S3Region:   cfg.S3.Region,
		Follow:     follow,
		Stop:       stop,
	}
}

// runHandler receives a run's output as it arrives.
type runHandler struct {
	// events is called with each new slice of events, in order.
	events func([]event.Event) error
	// progress is called after every state change.
	progress func(client.State)
}

// consume runs src to completion on a fresh client and streams its events
// to h. It returns the final state without events.
func consume(ctx context.Context, p *pipeline.Pipeline, src source.Source, h runHandler) (client.State, error) {
	c := client.New(p, client.WithLogger(zlog.Logger))
	defer c.Close()

	if _, err := c.Start(src); err != nil {
		return client.State{}, err
	}

	next := 0
	drain := func() error {
		evs := c.Events(next)
		next += len(evs)
		if len(evs) == 0 || h.events == nil {
			return nil
		}
		return h.events(evs)
	}

	for {
		changed := c.Changed()
		st := c.Snapshot()

		if err := drain(); err != nil {
			return st, err
		}
		if h.progress != nil {
			h.progress(st)
		}
		if st.Status.Finished() {
			return st, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

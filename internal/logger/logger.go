// Package logger configures the global zerolog logger.
package logger

import (
	"io"
	stdlog "log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Options select the log level and output style.
type Options struct {
	Level   string // zerolog level name; unknown values mean info
	Pretty  bool   // human-readable console output instead of JSON
	Service string
	Out     io.Writer // defaults to stderr; stdout carries command output
}

// Init builds the logger described by opts and installs it as the global
// zerolog logger and as the output of the standard library logger.
func Init(opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level))); err == nil && opts.Level != "" {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	l := ctx.Logger()

	zlog.Logger = l
	stdlog.SetFlags(0)
	stdlog.SetOutput(l)
	return l
}

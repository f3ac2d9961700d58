package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/convolog/internal/analyzer"
	"github.com/bimmerbailey/convolog/internal/client"
	"github.com/bimmerbailey/convolog/internal/config"
	"github.com/bimmerbailey/convolog/internal/event"
	"github.com/bimmerbailey/convolog/internal/output"
	"github.com/bimmerbailey/convolog/internal/redact"
	"github.com/bimmerbailey/convolog/internal/source"
)

var viewCmd = &cobra.Command{
	Use:   "view [flags] <source>...",
	Short: "Render the canonical events of one or more logs",
	Long: `Parse each source and print its canonical events as they are decoded.

A source is a local path or glob, an http(s) URL, an s3://bucket/key URL, or
"-" for standard input. Gzip-compressed input is detected automatically.
Each source is parsed as its own run; sources are never merged.

Tool calls, tool results and reasoning summaries are hidden unless asked for.
Emails, long tokens and long digit runs are masked unless --no-redact is set.

Examples:
  convolog view session.jsonl
  convolog view --show-tools --show-reasoning logs/*.jsonl
  convolog view --pattern "timeout" --since 2h session.jsonl
  convolog view --follow --show-tools live.jsonl
  curl -s https://example.com/run.jsonl | convolog view -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runView,
}

func init() {
	addViewFlags(viewCmd)

	_ = viper.BindPFlag("view.show_tools", viewCmd.Flags().Lookup("show-tools"))
	_ = viper.BindPFlag("view.show_reasoning", viewCmd.Flags().Lookup("show-reasoning"))

	rootCmd.AddCommand(viewCmd)
}

func addViewFlags(c *cobra.Command) {
	c.Flags().Bool("show-tools", false, "show tool calls and tool results")
	c.Flags().Bool("show-reasoning", false, "show reasoning summaries")
	c.Flags().Bool("no-redact", false, "show sensitive text unmasked")
	c.Flags().String("since", "", "show events since timestamp (RFC3339 or relative like '1h')")
	c.Flags().String("until", "", "show events until timestamp (RFC3339 or relative like '1h')")
	c.Flags().StringP("pattern", "p", "", "regex matched against event text and tool names")
	c.Flags().BoolP("invert", "V", false, "invert match (show non-matching events)")
	c.Flags().BoolP("follow", "F", false, "keep reading appended lines of local files until interrupted")
	c.Flags().String("color", "auto", "color output (auto, always, never)")
	c.Flags().Bool("no-color", false, "disable color output")
	c.Flags().Bool("progress", false, "report bytes read on stderr")
}

type viewOptions struct {
	filter   client.Filter
	match    analyzer.FilterOptions
	redactor *redact.Redactor
	color    output.ColorMode
	follow   bool
	progress bool
}

func parseViewOptions(cmd *cobra.Command, cfg config.Config) (viewOptions, error) {
	showTools, _ := cmd.Flags().GetBool("show-tools")
	showReasoning, _ := cmd.Flags().GetBool("show-reasoning")
	noRedact, _ := cmd.Flags().GetBool("no-redact")
	sinceStr, _ := cmd.Flags().GetString("since")
	untilStr, _ := cmd.Flags().GetString("until")
	pattern, _ := cmd.Flags().GetString("pattern")
	invert, _ := cmd.Flags().GetBool("invert")
	follow, _ := cmd.Flags().GetBool("follow")
	colorStr, _ := cmd.Flags().GetString("color")
	noColor, _ := cmd.Flags().GetBool("no-color")
	progress, _ := cmd.Flags().GetBool("progress")

	if invert && pattern == "" {
		return viewOptions{}, fmt.Errorf("--invert requires --pattern")
	}

	window, err := config.ParseTimeRange(sinceStr, untilStr)
	if err != nil {
		return viewOptions{}, err
	}

	opts := viewOptions{
		filter: client.Filter{
			ShowTools:     showTools || viper.GetBool("view.show_tools"),
			ShowReasoning: showReasoning || viper.GetBool("view.show_reasoning"),
		},
		match: analyzer.FilterOptions{
			Pattern: pattern,
			Since:   window.Since,
			Until:   window.Until,
			Invert:  invert,
		},
		color:    output.ParseColorMode(colorStr),
		follow:   follow,
		progress: progress,
	}
	if noColor {
		opts.color = output.ColorNever
	}
	if !noRedact {
		opts.redactor = redact.New(cfg.Redaction.Options())
	}

	// Fail on a bad pattern before any source is opened.
	if _, err := analyzer.New(nil).Filter(nil, opts.match); err != nil {
		return viewOptions{}, err
	}
	return opts, nil
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := parseViewOptions(cmd, cfg)
	if err != nil {
		return err
	}

	sources, err := config.ExpandSources(args)
	if err != nil {
		return err
	}

	ctx, stopSignals := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stopSignals()

	// A followed file ends cleanly on interrupt: closing stop lets the run
	// drain and finish with done instead of being abandoned.
	waitCtx := ctx
	stop := make(chan struct{})
	if opts.follow {
		waitCtx = context.Background()
		go func() {
			<-ctx.Done()
			close(stop)
		}()
	}

	format := output.ParseFormat(viper.GetString("format"))
	wr := output.New(cmd.OutOrStdout(), format,
		output.WithRedactor(opts.redactor),
		output.WithColor(opts.color),
	)
	p := newPipeline(cfg, nil)
	an := analyzer.New(nil)
	srcOpts := sourceOptions(cfg, opts.follow, stop)
	srcOpts.Stdin = cmd.InOrStdin()

	var failed int
	for _, arg := range sources {
		src, err := source.FromArg(arg, srcOpts)
		if err != nil {
			return err
		}

		st, err := consume(waitCtx, p, src, runHandler{
			events: func(evs []event.Event) error {
				evs, err := an.Filter(opts.filter.Apply(evs), opts.match)
				if err != nil {
					return err
				}
				return wr.WriteEvents(evs)
			},
			progress: func(st client.State) {
				if opts.progress {
					writeProgress(cmd.ErrOrStderr(), st)
				}
			},
		})
		if err != nil {
			return err
		}

		writeRunErrors(cmd.ErrOrStderr(), arg, st, opts.color)
		if st.Status == client.StatusError {
			failed++
		}
	}

	if err := wr.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(sources))
	}
	return nil
}

func writeProgress(w io.Writer, st client.State) {
	if st.TotalBytes > 0 {
		fmt.Fprintf(w, "%s: %d/%d bytes (%.0f%%)\n", st.Source, st.BytesRead, st.TotalBytes,
			float64(st.BytesRead)*100/float64(st.TotalBytes))
		return
	}
	fmt.Fprintf(w, "%s: %d bytes\n", st.Source, st.BytesRead)
}

// writeRunErrors reports parse errors and the failure of a run.
func writeRunErrors(w io.Writer, name string, st client.State, mode output.ColorMode) {
	colorize := mode == output.ColorAlways
	paint := func(s string) string {
		if colorize {
			return output.ColorizeError(s)
		}
		return s
	}

	if st.ErrorCount > 0 {
		fmt.Fprintf(w, "%s: %d malformed record(s)\n", name, st.ErrorCount)
		for _, s := range st.ErrorSamples {
			fmt.Fprintf(w, "  line %d: %s\n", s.Line, paint(s.Message))
		}
	}
	if st.Status == client.StatusError {
		fmt.Fprintf(w, "%s: %s\n", name, paint(st.Err))
	}
}

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

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

var statsCmd = &cobra.Command{
	Use:   "stats [flags] <source>",
	Short: "Show log statistics",
	Long: `Parse a log and display a summary: events per type, the time span,
the most used tools, attachments, parse errors with samples, and how many
spans the redactor would mask.

Examples:
  convolog stats session.jsonl
  convolog stats --format json https://example.com/run.jsonl.gz
  convolog stats --group-by tool --top 5 session.jsonl
  convolog stats --window 5m session.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	addStatsFlags(statsCmd)

	rootCmd.AddCommand(statsCmd)
}

func addStatsFlags(c *cobra.Command) {
	c.Flags().String("since", "", "only include events since timestamp")
	c.Flags().String("until", "", "only include events until timestamp")
	c.Flags().Int("top", 10, "number of top tools or groups to show")
	c.Flags().String("group-by", "", "group events by field (type, tool, role)")
	c.Flags().String("window", "", "bucket events into time windows (e.g. 1m, 1h)")
}

// statsReport is the JSON shape of the stats command.
type statsReport struct {
	analyzer.Stats
	Groups  []analyzer.GroupedResult   `json:"groups,omitempty"`
	GroupBy string                     `json:"group_by,omitempty"`
	Windows []analyzer.TimeWindowStats `json:"time_windows,omitempty"`
	Status  client.Status              `json:"status"`
	Error   string                     `json:"error,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	sinceStr, _ := cmd.Flags().GetString("since")
	untilStr, _ := cmd.Flags().GetString("until")
	topN, _ := cmd.Flags().GetInt("top")
	groupBy, _ := cmd.Flags().GetString("group-by")
	windowStr, _ := cmd.Flags().GetString("window")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	window, err := config.ParseTimeRange(sinceStr, untilStr)
	if err != nil {
		return err
	}

	var bucket time.Duration
	if windowStr != "" {
		bucket, err = config.ParseDuration(windowStr)
		if err != nil || bucket <= 0 {
			return fmt.Errorf("invalid --window value: %s", windowStr)
		}
	}

	src, err := source.FromArg(args[0], sourceOptions(cfg, false, nil))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	var events []event.Event
	st, err := consume(ctx, newPipeline(cfg, nil), src, runHandler{
		events: func(evs []event.Event) error {
			events = append(events, evs...)
			return nil
		},
	})
	if err != nil {
		return err
	}

	an := analyzer.New(redact.New(redact.DefaultOptions()))
	if !window.IsZero() {
		events, _ = an.Filter(events, analyzer.FilterOptions{Since: window.Since, Until: window.Until})
	}

	report := statsReport{
		Stats:  an.ComputeStats(events, topN),
		Status: st.Status,
		Error:  st.Err,
	}
	report.Source = st.Source
	report.BytesRead = st.BytesRead
	report.ErrorCount = st.ErrorCount
	report.ErrorSamples = st.ErrorSamples

	if groupBy != "" {
		report.GroupBy = groupBy
		report.Groups, err = an.GroupBy(events, groupBy, topN)
		if err != nil {
			return err
		}
	}
	if bucket > 0 {
		report.Windows = an.AnalyzeByWindow(events, bucket)
	}

	out := cmd.OutOrStdout()
	if output.ParseFormat(viper.GetString("format")) == output.FormatJSON {
		if err := output.New(out, output.FormatJSON).WriteJSON(report); err != nil {
			return err
		}
	} else {
		writeStatsText(out, report)
	}

	if st.Status == client.StatusError {
		return fmt.Errorf("%s: %s", args[0], st.Err)
	}
	return nil
}

func writeStatsText(w io.Writer, r statsReport) {
	fmt.Fprintf(w, "Source: %s\n", r.Source)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	fmt.Fprintf(w, "Bytes Read: %d\n", r.BytesRead)
	fmt.Fprintf(w, "Total Events: %d\n", r.TotalEvents)

	if !r.FirstEvent.IsZero() {
		fmt.Fprintf(w, "Time Range: %s - %s (%s)\n",
			r.FirstEvent.Format(time.RFC3339), r.LastEvent.Format(time.RFC3339), r.Duration)
	}

	fmt.Fprintln(w, "Events by Type:")
	types := make([]string, 0, len(r.TypeCounts))
	for t := range r.TypeCounts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, r.TypeCounts[event.Type(t)])
	}

	fmt.Fprintf(w, "Attachments: %d\n", r.Attachments)
	fmt.Fprintf(w, "Reasoning Summaries: %d\n", r.Reasoning)
	fmt.Fprintf(w, "Redactable Spans: %d\n", r.RedactableSpans)

	if len(r.TopTools) > 0 {
		fmt.Fprintln(w, "Top Tools:")
		for _, tc := range r.TopTools {
			fmt.Fprintf(w, "  [%d] %s\n", tc.Count, tc.Name)
		}
	}

	fmt.Fprintf(w, "Parse Errors: %d\n", r.ErrorCount)
	for _, s := range r.ErrorSamples {
		fmt.Fprintf(w, "  line %d: %s\n", s.Line, s.Message)
	}

	if len(r.Groups) > 0 {
		fmt.Fprintf(w, "Grouped by %s:\n", r.GroupBy)
		for _, g := range r.Groups {
			fmt.Fprintf(w, "  %s: %d (%.1f%%)\n", g.Key, g.Count, g.Percent)
		}
	}

	if len(r.Windows) > 0 {
		fmt.Fprintln(w, "Time Windows:")
		for _, win := range r.Windows {
			fmt.Fprintf(w, "  %s  %d events  %d tool calls  %+.1f%%\n",
				win.Start.Format(time.RFC3339), win.Count, win.ToolCalls, win.ChangePercent)
		}
	}
}

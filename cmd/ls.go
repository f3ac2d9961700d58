package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/convolog/internal/fsource"
	"github.com/bimmerbailey/convolog/internal/output"
)

var lsCmd = &cobra.Command{
	Use:   "ls [flags] [path]",
	Short: "List log files under the data directory",
	Long: `List the directories and .json/.jsonl(.gz) files below the data
directory. Paths are relative to the data directory and cannot escape it.

Examples:
  convolog ls
  convolog ls --sort date agents/
  convolog ls --data-dir /srv/logs --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().String("sort", "name", "sort entries by name or date")

	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	sortStr, _ := cmd.Flags().GetString("sort")

	key, err := fsource.ParseSortKey(sortStr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := fsource.New(cfg.DataDir)
	if err != nil {
		return err
	}

	rel := ""
	if len(args) == 1 {
		rel = args[0]
	}
	listing, err := root.List(rel, key)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if output.ParseFormat(viper.GetString("format")) == output.FormatJSON {
		return output.New(out, output.FormatJSON).WriteJSON(listing)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tSIZE\tMODIFIED\tNAME")
	for _, e := range listing.Entries {
		size := "-"
		if e.Type == fsource.TypeFile {
			size = fmt.Sprint(e.Size)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Type, size, time.UnixMilli(e.MTime).UTC().Format(time.RFC3339), e.Name)
	}
	return tw.Flush()
}

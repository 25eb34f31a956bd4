package main

import (
	"fmt"
	"time"

	"github.com/dugoutlabs/scorebook"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Long: `Display statistics about the local store.

Example:
  scorebook stats
  scorebook stats --json`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := scorebook.New(loadConfig())
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer engine.Close()

	stats, err := engine.Store().Stats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Store Statistics")
	fmt.Fprintln(out, "----------------")
	for _, entity := range engine.Store().Schemas().Entities() {
		fmt.Fprintf(out, "%-14s %d\n", entity+":", stats.RecordCounts[entity])
	}
	fmt.Fprintf(out, "Change log:    %d entries\n", stats.ChangeLogSize)
	fmt.Fprintf(out, "Active jobs:   %d\n", stats.ActiveJobs)
	fmt.Fprintf(out, "Schema:        v%s\n", stats.SchemaVersion)

	if !stats.LastSync.IsZero() {
		fmt.Fprintf(out, "Last sync:     %s (%s ago)\n",
			stats.LastSync.Format(time.RFC3339),
			time.Since(stats.LastSync).Round(time.Minute))
	} else {
		fmt.Fprintln(out, "Last sync:     never")
	}

	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dugoutlabs/scorebook"
	"github.com/spf13/cobra"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v interface{}) error {
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputCounters prints job counters in human-readable format.
func outputCounters(cmd *cobra.Command, c scorebook.Counters) {
	out := cmd.OutOrStdout()
	printLabel(out, "  processed: ")
	fmt.Fprintf(out, "%d (inserted %d, updated %d, unchanged %d)\n",
		c.Processed, c.Inserted, c.Updated, c.Unchanged)
	printLabel(out, "  changes:   ")
	fmt.Fprintf(out, "%d detected, %d corrections\n", c.ChangesDetected, c.Corrections)
	if c.Errors > 0 {
		printWarning(out, "  errors:    %d", c.Errors)
	}
}

// outputJob prints a one-line job summary.
func outputJob(cmd *cobra.Command, job scorebook.Job) {
	out := cmd.OutOrStdout()
	ended := "-"
	if job.EndedAt != nil {
		ended = job.EndedAt.Format(time.RFC3339)
	}
	fmt.Fprintf(out, "%s  %-22s %-10s %s  %s\n",
		job.ID, job.Type, job.Status, job.StartedAt.Format(time.RFC3339), ended)
	if job.Error != "" {
		printMuted(out, "    error: %s", job.Error)
	}
}

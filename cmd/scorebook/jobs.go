package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dugoutlabs/scorebook"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and maintain ingestion jobs",
	Long: `List recent jobs or reap stale RUNNING jobs.

A crashed collector leaves its job RUNNING forever; reaping marks such
jobs FAILED after the staleness threshold so the unique-active-job
policy cannot block new runs.

Example:
  scorebook jobs
  scorebook jobs --limit 50
  scorebook jobs --reap`,
	RunE: runJobs,
}

var (
	jobsLimit int
	jobsReap  bool
)

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Maximum jobs to list")
	jobsCmd.Flags().BoolVar(&jobsReap, "reap", false, "Mark stale RUNNING jobs as FAILED")
}

func runJobs(cmd *cobra.Command, args []string) error {
	engine, err := scorebook.New(loadConfig())
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if jobsReap {
		reaped, err := engine.Jobs().ReapStale(ctx)
		if err != nil {
			return fmt.Errorf("reap stale jobs: %w", err)
		}
		if reaped > 0 {
			printSuccess(cmd.OutOrStdout(), "Reaped %d stale job(s)", reaped)
		} else {
			printInfo(cmd.OutOrStdout(), "No stale jobs")
		}
		return nil
	}

	jobs, err := engine.Jobs().ListJobs(ctx, jobsLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, jobs)
	}

	if len(jobs) == 0 {
		printInfo(cmd.OutOrStdout(), "No jobs recorded")
		return nil
	}

	for _, job := range jobs {
		outputJob(cmd, job)
	}
	return nil
}

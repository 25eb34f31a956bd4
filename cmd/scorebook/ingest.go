package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dugoutlabs/scorebook"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a batch of collector records",
	Long: `Ingest a JSON file of raw collector records as one auditable job.

The file holds a JSON array of raw payloads for a single entity. Each
record is fingerprinted and classified against the store: new records are
inserted, corrections are applied with a field-level diff in the change
log, and unchanged records only bump their last-fetched timestamp.

Example:
  scorebook ingest --entity player_stats stats-2025-08-01.json
  scorebook ingest --entity transactions --job-type manual-backfill --resume txns.json`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var (
	ingestEntity  string
	ingestJobType string
	ingestResume  bool
)

func init() {
	ingestCmd.Flags().StringVar(&ingestEntity, "entity", "", "Entity the records belong to (required)")
	ingestCmd.Flags().StringVar(&ingestJobType, "job-type", "", "Job type label (default: ingest-<entity>)")
	ingestCmd.Flags().BoolVar(&ingestResume, "resume", false, "Resume from the last interrupted run's checkpoint")

	ingestCmd.MarkFlagRequired("entity")
}

func runIngest(cmd *cobra.Command, args []string) error {
	engine, err := scorebook.New(loadConfig())
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer engine.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read records file: %w", err)
	}

	var raws []map[string]any
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("parse records file: %w", err)
	}

	// Coerce up front so schema failures surface before the job starts;
	// payloads that fail coercion are reported and skipped.
	var records []*scorebook.Record
	var rejected int
	for i, raw := range raws {
		rec, err := engine.Coerce(ingestEntity, raw)
		if err != nil {
			var invalid *scorebook.InvalidRecordError
			if errors.As(err, &invalid) {
				rejected++
				printWarning(cmd.ErrOrStderr(), "record %d rejected: %v", i, err)
				continue
			}
			return err
		}
		records = append(records, rec)
	}

	jobType := ingestJobType
	if jobType == "" {
		jobType = "ingest-" + ingestEntity
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	spin := newSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Ingesting %d %s records...", len(records), ingestEntity))
	spin.Start()
	job, err := engine.RunIngest(ctx, jobType, records, scorebook.IngestOptions{
		ResumeFromCheckpoint: ingestResume,
	})
	spin.Stop()
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, job)
	}

	switch job.Status {
	case scorebook.JobCompleted:
		printSuccess(cmd.OutOrStdout(), "Job %s completed", job.ID)
	default:
		printError(cmd.OutOrStdout(), "Job %s %s: %s", job.ID, job.Status, job.Error)
	}
	outputCounters(cmd, job.Counters)
	if rejected > 0 {
		printWarning(cmd.OutOrStdout(), "%d payload(s) rejected before the job started", rejected)
	}
	return nil
}

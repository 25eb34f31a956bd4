package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dugoutlabs/scorebook"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replicate changes to a downstream store",
	Long: `Replicate committed changes from this store to a downstream copy.

The target re-derives its own metadata and change log by replaying
changes through the same upsert path, so interrupted syncs resume from
the last committed cursor and re-applied records are no-ops.

Example:
  scorebook sync --target /srv/serving/scorebook.db
  scorebook sync --target serving.db --scope player_stats,transactions`,
	RunE: runSync,
}

var (
	syncTarget string
	syncScope  []string
)

func init() {
	syncCmd.Flags().StringVar(&syncTarget, "target", "", "Path to target store database (required)")
	syncCmd.Flags().StringSliceVar(&syncScope, "scope", nil, "Entities to sync (default: all)")

	syncCmd.MarkFlagRequired("target")
}

func runSync(cmd *cobra.Command, args []string) error {
	engine, err := scorebook.New(loadConfig())
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer engine.Close()

	target, err := scorebook.NewStore(syncTarget)
	if err != nil {
		return fmt.Errorf("open target store: %w", err)
	}
	defer target.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	spin := newSpinner(cmd.ErrOrStderr(), "Synchronizing...")
	spin.Start()
	rec, err := engine.NewSyncer(target).Sync(ctx, syncScope)
	spin.Stop()

	var syncErr *scorebook.SyncError
	if err != nil && !errors.As(err, &syncErr) {
		return fmt.Errorf("sync: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, rec)
	}

	if rec.Status == scorebook.SyncCompleted {
		printSuccess(cmd.OutOrStdout(), "Sync %s completed: %d record(s) in %s",
			rec.ID, rec.Synced, rec.Duration.Round(time.Millisecond))
	} else {
		printError(cmd.OutOrStdout(), "Sync %s failed: %d applied, %d failed: %s",
			rec.ID, rec.Synced, rec.Failed, rec.Error)
	}
	return nil
}

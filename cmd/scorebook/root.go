package main

import (
	"github.com/dugoutlabs/scorebook"
	"github.com/spf13/cobra"
)

var (
	cfgDBPath      string
	cfgEnvironment string
	outputJSON     bool
)

var rootCmd = &cobra.Command{
	Use:   "scorebook",
	Short: "Scorebook - fantasy-sports change tracking and sync",
	Long: `Scorebook tracks roster, transaction, and player-statistics data as it
arrives from collectors, detecting corrections against previously stored
records and replicating verified changes to downstream stores.

Every ingestion run is an auditable job; every sync attempt is recorded.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db-path", "", "Path to store database (default: derived from environment)")
	rootCmd.PersistentFlags().StringVar(&cfgEnvironment, "env", "", "Target environment (default: SCOREBOOK_ENV or \"default\")")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
}

func loadConfig() scorebook.Config {
	cfg := scorebook.ConfigFromEnv()

	// Flags override environment
	if cfgDBPath != "" {
		cfg.Path = cfgDBPath
	}
	if cfgEnvironment != "" {
		cfg.Environment = cfgEnvironment
	}

	return cfg.WithDefaults()
}

package main

import (
	"fmt"

	"github.com/dugoutlabs/scorebook"
	"github.com/dugoutlabs/scorebook/internal/store"
	"github.com/spf13/cobra"
)

var envsCmd = &cobra.Command{
	Use:   "envs",
	Short: "List environment stores",
	Long: `List the environment stores under the store root.

Example:
  scorebook envs
  scorebook envs create league/prod`,
	RunE: runEnvsList,
}

var envsCreateCmd = &cobra.Command{
	Use:   "create <environment>",
	Short: "Create and initialize a new environment store",
	Long: `Create the store for a new environment and run its migrations.

Environment IDs are lowercase alphanumeric segments with hyphens, up to
four segments deep (e.g. "league/prod"). The reserved IDs "default" and
"_system" cannot be created explicitly.

Example:
  scorebook envs create league/prod`,
	Args: cobra.ExactArgs(1),
	RunE: runEnvsCreate,
}

func init() {
	envsCmd.AddCommand(envsCreateCmd)
	rootCmd.AddCommand(envsCmd)
}

func runEnvsList(cmd *cobra.Command, args []string) error {
	envs, err := store.ListEnvs()
	if err != nil {
		return fmt.Errorf("list environments: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, envs)
	}

	if len(envs) == 0 {
		printInfo(cmd.OutOrStdout(), "No environment stores")
		return nil
	}
	for _, env := range envs {
		label := env.ID
		if env.Reserved {
			label += " (reserved)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", label, env.Path)
	}
	return nil
}

func runEnvsCreate(cmd *cobra.Command, args []string) error {
	envID := args[0]
	if err := store.ValidateEnvIDForCreation(envID); err != nil {
		return err
	}

	path := store.EnvDBPath(envID)
	s, err := scorebook.NewStore(path)
	if err != nil {
		return fmt.Errorf("create environment store: %w", err)
	}
	if err := s.Close(); err != nil {
		return err
	}

	printSuccess(cmd.OutOrStdout(), "Created environment %s at %s", envID, path)
	return nil
}

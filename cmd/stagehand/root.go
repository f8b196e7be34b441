package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Multi-role task orchestration engine",
	Long: `Stagehand decomposes high-level objectives into subtasks and
dispatches them across specialized executors.

Core capabilities:
- Decomposes objectives into a dependency-ordered subtask plan
- Routes subtasks to per-workspace implementation executors
- Answers read-only project queries through a librarian executor
- Retries failed subtasks up to a budget, then freezes them as failed
- Records every finished run for later inspection`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// Package cmd implements the strata command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata - retention tiering for vector-backed document memory",
	Long: `Strata scores stored content by importance, classifies it into
retention tiers, and reconciles each collection in the background:
expiring stale documents, aging scores, merging near-duplicates, and
consolidating related documents.

Run "strata serve" to start the maintenance daemon, or "strata add" and
"strata query" to work with a collection directly.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/strata-ai/strata/internal/memory"
)

var (
	sweepKind       string
	sweepCollection string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one maintenance sweep and exit",
	Long: `Runs a single maintenance sweep of the given kind, either for one
collection or for all configured collections, without starting the daemon.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepKind, "kind", memory.SweepDeep,
		"sweep kind (cleanup, consolidation, statistics, deep)")
	sweepCmd.Flags().StringVar(&sweepCollection, "collection", "",
		"sweep a single collection (default: all configured)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	kinds := []string{
		memory.SweepCleanup, memory.SweepConsolidation,
		memory.SweepStatistics, memory.SweepDeep,
	}
	if !slices.Contains(kinds, sweepKind) {
		return fmt.Errorf("unknown sweep kind %q (valid: %v)", sweepKind, kinds)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	maintainer := a.newMaintainer()

	if sweepCollection != "" {
		return maintainer.Sweep(cmd.Context(), sweepCollection, sweepKind)
	}
	maintainer.SweepAll(cmd.Context(), sweepKind)
	return nil
}

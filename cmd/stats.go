package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-ai/strata/internal/memory"
)

var statsCmd = &cobra.Command{
	Use:   "stats [collection]",
	Short: "Show per-tier document counts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	collections := a.cfg.Collections
	if len(args) == 1 {
		collections = args[:1]
	}

	tiers := []memory.Tier{
		memory.TierShortTerm, memory.TierLongTerm,
		memory.TierPermanent, memory.TierConsolidated,
	}

	for _, collection := range collections {
		counts, err := a.store.CountByTier(cmd.Context(), collection)
		if err != nil {
			return err
		}

		total := 0
		for _, n := range counts {
			total += n
		}

		fmt.Printf("%s (%d documents)\n", collection, total)
		for _, tier := range tiers {
			fmt.Printf("  %-14s %d\n", tier, counts[tier])
		}
	}
	return nil
}

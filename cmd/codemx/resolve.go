package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swapnilprakashpatil/codemx/internal/conflict"
)

var (
	resolveLimit        int
	resolveDryRun       bool
	resolveFuzzy        float64
	resolveSkipFuzzy    bool
	resolvePlaceholders bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Auto-resolve open mapping conflicts",
	Long: `Run the resolution chain over open conflicts. Each conflict is offered
to the resolvers in order: invalid-code detection, ICD-10 fuzzy matching,
and optionally placeholder creation. The first resolver that claims a
conflict wins.`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 0, "Process at most N conflicts (0 = all open)")
	resolveCmd.Flags().BoolVar(&resolveDryRun, "dry-run", false, "Report what would be resolved without writing")
	resolveCmd.Flags().Float64Var(&resolveFuzzy, "fuzzy-threshold", 0, "Override the fuzzy match threshold (0 = config value)")
	resolveCmd.Flags().BoolVar(&resolveSkipFuzzy, "skip-fuzzy", false, "Disable the ICD-10 fuzzy matcher")
	resolveCmd.Flags().BoolVar(&resolvePlaceholders, "create-placeholders", false, "Create inactive placeholder ICD-10 codes for unmatched targets")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, _, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := conflict.OptionsFromConfig(db, cfg, logger)
	opts.DryRun = resolveDryRun
	opts.SkipFuzzy = resolveSkipFuzzy
	if resolveFuzzy > 0 {
		opts.FuzzyThreshold = resolveFuzzy
	}
	if resolvePlaceholders {
		opts.CreatePlaceholders = true
	}

	engine, err := conflict.NewEngine(opts)
	if err != nil {
		return err
	}
	stats, err := engine.Run(resolveLimit)
	if err != nil {
		return err
	}

	mode := ""
	if resolveDryRun {
		mode = " (dry run)"
	}
	fmt.Printf("Processed %d conflicts%s: %d resolved, %d ignored, %d unresolved\n",
		stats.Processed, mode, stats.Resolved, stats.Ignored, stats.Unresolved)
	for name, n := range stats.ByResolver {
		fmt.Printf("  %-16s %d\n", name, n)
	}
	return nil
}

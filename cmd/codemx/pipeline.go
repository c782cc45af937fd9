package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/swapnilprakashpatil/codemx/internal/pipeline"
)

var (
	pipelineClean        bool
	pipelineNoOrganize   bool
	pipelineValidate     bool
	pipelineStrict       bool
	pipelineOnly         []string
	pipelineSkip         []string
	pipelineAutoResolve  bool
	pipelineResolveLimit int
	pipelineFuzzy        float64
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full ingestion pipeline",
	Long: `Run the ingestion pipeline: organize staged source files, optionally
validate them, load every vocabulary, build the mapping tables, and
optionally auto-resolve the conflicts the mapping phase recorded.

Step failures do not abort the run; they are reported in the summary.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)

	pipelineCmd.Flags().BoolVar(&pipelineClean, "clean", false, "Wipe all loaded data before running")
	pipelineCmd.Flags().BoolVar(&pipelineNoOrganize, "no-organize", false, "Skip the staging organization phase")
	pipelineCmd.Flags().BoolVar(&pipelineValidate, "validate", false, "Run source validation before loading")
	pipelineCmd.Flags().BoolVar(&pipelineStrict, "strict", false, "Abort the run when validation fails")
	pipelineCmd.Flags().StringSliceVar(&pipelineOnly, "only", nil, "Run only these steps (e.g. snomed,icd10,snomed-icd10)")
	pipelineCmd.Flags().StringSliceVar(&pipelineSkip, "skip", nil, "Skip these steps")
	pipelineCmd.Flags().BoolVar(&pipelineAutoResolve, "auto-resolve", false, "Run conflict auto-resolution after mapping")
	pipelineCmd.Flags().IntVar(&pipelineResolveLimit, "resolve-limit", 0, "Cap auto-resolution to N conflicts (0 = all)")
	pipelineCmd.Flags().Float64Var(&pipelineFuzzy, "fuzzy-threshold", 0, "Override the fuzzy match threshold (0 = config value)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, sources, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	if pipelineFuzzy > 0 {
		cfg.Resolve.FuzzyThreshold = pipelineFuzzy
	}

	runner := pipeline.NewRunner(db, cfg, sources, logger)
	summary, err := runner.Run(pipeline.Options{
		Clean:        pipelineClean,
		Organize:     !pipelineNoOrganize,
		Validate:     pipelineValidate || pipelineStrict,
		Strict:       pipelineStrict,
		Only:         pipelineOnly,
		Skip:         pipelineSkip,
		AutoResolve:  pipelineAutoResolve,
		ResolveLimit: pipelineResolveLimit,
	})
	if err != nil {
		return err
	}

	printSummary(summary)
	if len(summary.FailedSteps) > 0 {
		return fmt.Errorf("%d step(s) failed: %v", len(summary.FailedSteps), summary.FailedSteps)
	}
	return nil
}

func printSummary(summary *pipeline.Summary) {
	fmt.Println("Pipeline summary:")
	for _, step := range summary.Steps {
		status := "ok"
		if step.Error != "" {
			status = "FAILED: " + step.Error
		}
		fmt.Printf("  %-16s %8d  %-12s %s\n", step.Name, step.Count, step.Duration.Round(time.Millisecond), status)
	}

	if len(summary.Records) > 0 {
		fmt.Println("Records:")
		for _, key := range []string{"snomed", "icd10", "hcc", "cpt", "hcpcs", "rxnorm", "ndc"} {
			if n, ok := summary.Records[key]; ok {
				fmt.Printf("  %-16s %8d\n", key, n)
			}
		}
	}
	if len(summary.Mappings) > 0 {
		fmt.Println("Mappings:")
		for table, n := range summary.Mappings {
			fmt.Printf("  %-24s %8d\n", table, n)
		}
	}
	if summary.Conflicts != nil {
		fmt.Printf("Conflicts: %d total", summary.Conflicts.Total)
		if open, ok := summary.Conflicts.ByStatus["open"]; ok {
			fmt.Printf(" (%d open)", open)
		}
		fmt.Println()
	}
	if summary.Resolution != nil {
		fmt.Printf("Auto-resolution: %d resolved, %d ignored, %d unresolved\n",
			summary.Resolution.Resolved, summary.Resolution.Ignored, summary.Resolution.Unresolved)
	}
}

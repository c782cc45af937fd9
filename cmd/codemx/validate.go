package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swapnilprakashpatil/codemx/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check staged source files before loading",
	Long: `Inspect the staging directory for each vocabulary and report whether
the expected files are present and readable. Exits non-zero when any
check fails.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, sources, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	results := validate.RunAll(validate.Deps{
		Sources: sources,
		Staging: cfg.StagingDir(),
		Logger:  logger,
	})

	for _, res := range results {
		status := "ok"
		if !res.OK {
			status = "FAILED"
		}
		fmt.Printf("  %-8s %s\n", res.System, status)
		for _, msg := range res.Messages {
			fmt.Printf("           %s\n", msg)
		}
	}

	if !validate.AllOK(results) {
		return fmt.Errorf("source validation failed")
	}
	fmt.Println("All sources look loadable")
	return nil
}

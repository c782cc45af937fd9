package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swapnilprakashpatil/codemx/internal/export"
	"github.com/swapnilprakashpatil/codemx/internal/query"
	"github.com/swapnilprakashpatil/codemx/internal/version"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a static JSON snapshot of the store",
	Long: `Write paginated JSON listings for every vocabulary, detail files for
codes that carry mappings, and a manifest.yaml describing the snapshot.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOut, "out", "export", "Output directory for the snapshot")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, _, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := query.NewEngine(db, cfg.Graph)
	exporter := export.NewExporter(db, engine, logger)
	manifest, err := exporter.Run(exportOut, version.Version)
	if err != nil {
		return err
	}

	fmt.Printf("Snapshot written to %s\n", exportOut)
	for system, counts := range manifest.Systems {
		fmt.Printf("  %-8s %8d records, %d pages, %d detail files\n",
			system, counts.Records, counts.Pages, counts.Details)
	}
	return nil
}

package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/swapnilprakashpatil/codemx/internal/query"
)

var lookupGraph bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <system> <code>",
	Short: "Look up a code and its mappings",
	Long: `Print a code's canonical record plus every mapping it participates in
as JSON. Systems: snomed, icd10, hcc, cpt, hcpcs, rxnorm, ndc.`,
	Args: cobra.ExactArgs(2),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().BoolVar(&lookupGraph, "graph", false, "Print the mapping graph rooted at the code instead")
}

func runLookup(cmd *cobra.Command, args []string) error {
	cfg, _, _, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := query.NewEngine(db, cfg.Graph)

	var out interface{}
	if lookupGraph {
		out, err = engine.BuildGraph(args[1])
	} else {
		out, err = engine.GetCodeDetail(args[0], args[1])
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

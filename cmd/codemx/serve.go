package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/swapnilprakashpatil/codemx/internal/api"
	"github.com/swapnilprakashpatil/codemx/internal/query"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve code listings, code detail, cross-vocabulary mapping lookups,
mapping graphs, and the conflict review workflow over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config, e.g. 127.0.0.1:8750)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, _, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	addr := cfg.API.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	engine := query.NewEngine(db, cfg.Graph)
	server := api.NewServer(addr, engine, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}

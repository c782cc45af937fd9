package main

import (
	"github.com/spf13/cobra"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
	"github.com/swapnilprakashpatil/codemx/internal/version"
)

var (
	configFlag    string
	sourcesFlag   string
	dataDirFlag   string
	logFormatFlag string
	logLevelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "codemx",
	Short: "codemx - medical terminology ingestion and reconciliation",
	Long: `codemx ingests bulk releases of the major medical coding vocabularies
(SNOMED CT, ICD-10-CM, HCC, CPT, HCPCS, RxNorm, NDC) into a canonical SQLite
store, builds cross-vocabulary mappings, records and resolves mapping
conflicts, and serves lookups over HTTP.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("codemx version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default: ./codemx.{json,yaml})")
	rootCmd.PersistentFlags().StringVar(&sourcesFlag, "sources", "", "Path to sources.toml registry override")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: human or json")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the config file and applies CLI flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if logFormatFlag != "" {
		cfg.Logging.Format = logFormatFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	return cfg, nil
}

// newLogger builds a logger from the effective configuration
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})
}

// setup loads config, sources, the logger, and opens the database.
// The caller owns the returned DB.
func setup() (*config.Config, config.SourceRegistry, *logging.Logger, *storage.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	sources, err := config.LoadSources(sourcesFlag)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := newLogger(cfg)
	db, err := storage.Open(cfg.DBPath(), logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, sources, logger, db, nil
}

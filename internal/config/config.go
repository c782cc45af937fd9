package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete codemx configuration
type Config struct {
	DataDir string `json:"dataDir" mapstructure:"dataDir"`

	Pipeline PipelineConfig `json:"pipeline" mapstructure:"pipeline"`
	Resolve  ResolveConfig  `json:"resolve" mapstructure:"resolve"`
	Graph    GraphConfig    `json:"graph" mapstructure:"graph"`
	API      APIConfig      `json:"api" mapstructure:"api"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// PipelineConfig controls ingestion behaviour
type PipelineConfig struct {
	BatchSize int `json:"batchSize" mapstructure:"batchSize"`
	// RowErrorLogCap bounds how many per-row decode failures are logged per file
	RowErrorLogCap int `json:"rowErrorLogCap" mapstructure:"rowErrorLogCap"`
}

// ResolveConfig controls automated conflict resolution
type ResolveConfig struct {
	FuzzyThreshold     float64 `json:"fuzzyThreshold" mapstructure:"fuzzyThreshold"`
	CommitInterval     int     `json:"commitInterval" mapstructure:"commitInterval"`
	CreatePlaceholders bool    `json:"createPlaceholders" mapstructure:"createPlaceholders"`
}

// GraphConfig holds the per-edge-type fan-out caps for the mapping graph.
// These are tuning knobs, not contracts.
type GraphConfig struct {
	RxNormFanOut  int `json:"rxnormFanOut" mapstructure:"rxnormFanOut"`
	NDCFanOut     int `json:"ndcFanOut" mapstructure:"ndcFanOut"`
	ReverseFanOut int `json:"reverseFanOut" mapstructure:"reverseFanOut"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "data",
		Pipeline: PipelineConfig{
			BatchSize:      5000,
			RowErrorLogCap: 10,
		},
		Resolve: ResolveConfig{
			FuzzyThreshold:     0.85,
			CommitInterval:     1000,
			CreatePlaceholders: false,
		},
		Graph: GraphConfig{
			RxNormFanOut:  25,
			NDCFanOut:     10,
			ReverseFanOut: 50,
		},
		API: APIConfig{
			Addr: "127.0.0.1:8750",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads configuration from the given file (JSON or YAML), falling back
// to defaults when the file is absent. Environment variables prefixed with
// CODEMX_ override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("CODEMX")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	} else {
		v.SetConfigName("codemx")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // optional
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Pipeline.BatchSize <= 0 {
		cfg.Pipeline.BatchSize = 5000
	}
	if cfg.Resolve.FuzzyThreshold < 0 || cfg.Resolve.FuzzyThreshold > 1 {
		return nil, fmt.Errorf("resolve.fuzzyThreshold must be between 0.0 and 1.0, got %v", cfg.Resolve.FuzzyThreshold)
	}

	return cfg, nil
}

// StagingDir returns the staging directory under the data dir
func (c *Config) StagingDir() string {
	return filepath.Join(c.DataDir, "staging")
}

// ArchiveDir returns the archive directory under the data dir
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "archive")
}

// DownloadDir returns the downloads directory under the data dir
func (c *Config) DownloadDir() string {
	return filepath.Join(c.DataDir, "downloads")
}

// DBPath returns the SQLite database path
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "codemx.db")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Pipeline.BatchSize != 5000 {
		t.Errorf("batch size = %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Resolve.FuzzyThreshold != 0.85 {
		t.Errorf("fuzzy threshold = %v", cfg.Resolve.FuzzyThreshold)
	}
	if cfg.Resolve.CreatePlaceholders {
		t.Error("placeholder creation must be off by default")
	}
	if cfg.DBPath() != filepath.Join("data", "codemx.db") {
		t.Errorf("db path = %s", cfg.DBPath())
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing config file should fall back to defaults: %v", err)
	}
	if cfg.Pipeline.BatchSize != 5000 {
		t.Errorf("batch size = %d", cfg.Pipeline.BatchSize)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codemx.json")
	content := `{"dataDir": "/tmp/vocab", "resolve": {"fuzzyThreshold": 0.9}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/tmp/vocab" {
		t.Errorf("dataDir = %s", cfg.DataDir)
	}
	if cfg.Resolve.FuzzyThreshold != 0.9 {
		t.Errorf("fuzzy threshold = %v", cfg.Resolve.FuzzyThreshold)
	}
	// untouched sections keep their defaults
	if cfg.Pipeline.BatchSize != 5000 {
		t.Errorf("batch size = %d", cfg.Pipeline.BatchSize)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codemx.json")
	if err := os.WriteFile(path, []byte(`{"resolve": {"fuzzyThreshold": 1.5}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("out-of-range threshold should be rejected")
	}
}

func TestSourceRuleKeep(t *testing.T) {
	rule := DefaultSources()["icd10"]

	if !rule.Keep("icd10cm-order-2026.txt") {
		t.Error("order file should be kept")
	}
	if rule.Keep("icd10cm-order-addenda-2026.txt") {
		t.Error("addenda files are excluded")
	}
	if rule.Keep("icd10cm-order-2026.pdf") {
		t.Error("wrong suffix should be dropped")
	}
}

func TestSourceRuleMatchesZip(t *testing.T) {
	rule := DefaultSources()["rxnorm"]
	if !rule.MatchesZip("RxNorm_full_07072026.zip") {
		t.Error("release archive should match")
	}
	if rule.MatchesZip("RxNorm_weekly_07072026.zip") {
		t.Error("weekly archive should not match the full-release rule")
	}
}

func TestLoadSourcesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	content := "[icd10]\nsubdir = \"icd10-custom\"\nkeep_suffix = \".txt\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadSources(path)
	if err != nil {
		t.Fatal(err)
	}
	if reg["icd10"].Subdir != "icd10-custom" {
		t.Errorf("override ignored: %+v", reg["icd10"])
	}
	// untouched keys keep the built-in rule
	if reg["rxnorm"].Subdir != "rxnorm" {
		t.Errorf("rxnorm rule lost: %+v", reg["rxnorm"])
	}
}

func TestLoadSourcesMissingFile(t *testing.T) {
	reg, err := LoadSources(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reg) == 0 {
		t.Error("missing file should yield the built-in registry")
	}
}

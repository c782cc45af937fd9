package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

func setupRunner(t *testing.T) (*Runner, *storage.DB, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")

	db, err := storage.Open(cfg.DBPath(), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewRunner(db, cfg, config.DefaultSources(), logging.Discard()), db, cfg
}

func writeICD10Fixture(t *testing.T, cfg *config.Config, lines ...string) {
	t.Helper()
	dir := filepath.Join(cfg.StagingDir(), "icd10cm")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "icd10cm-order-2026.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func orderLine(order int, code, flag, short, long string) string {
	return fmt.Sprintf("%05d %-8s%-2s%-61s%s", order, code, flag, short, long)
}

func TestRunLoadsAvailableSources(t *testing.T) {
	runner, db, cfg := setupRunner(t)
	writeICD10Fixture(t, cfg,
		orderLine(1, "A000", "1", "Cholera", "Cholera"),
		orderLine(2, "A001", "1", "Cholera eltor", "Cholera eltor"),
	)

	summary, err := runner.Run(Options{Only: []string{"icd10"}})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(summary.FailedSteps) != 0 {
		t.Errorf("failed steps: %v", summary.FailedSteps)
	}
	if summary.Records["icd10"] != 2 {
		t.Errorf("records = %v", summary.Records)
	}

	if n, _ := db.CountCodes(storage.TableICD10); n != 2 {
		t.Errorf("stored %d codes", n)
	}
}

func TestRunMissingSourcesAreNotFailures(t *testing.T) {
	runner, _, _ := setupRunner(t)

	// nothing staged at all: every loader warns and reports zero
	summary, err := runner.Run(Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(summary.FailedSteps) != 0 {
		t.Errorf("missing sources marked as failures: %v", summary.FailedSteps)
	}
	for _, step := range summary.Steps {
		if step.Count != 0 {
			t.Errorf("step %s loaded %d from nothing", step.Name, step.Count)
		}
	}
}

func TestRunContainsStepFailure(t *testing.T) {
	runner, db, cfg := setupRunner(t)

	// a line past the scanner's buffer limit makes the ICD-10 step fail
	huge := orderLine(1, "A000", "1", "Cholera", strings.Repeat("x", 2*1024*1024))
	writeICD10Fixture(t, cfg, huge)

	summary, err := runner.Run(Options{})
	if err != nil {
		t.Fatalf("a step failure must not abort the run: %v", err)
	}
	if len(summary.FailedSteps) != 1 || summary.FailedSteps[0] != "icd10" {
		t.Errorf("failed steps = %v, want [icd10]", summary.FailedSteps)
	}

	// the rest of the pipeline still ran
	names := make(map[string]bool)
	for _, step := range summary.Steps {
		names[step.Name] = true
	}
	for _, want := range []string{"snomed", "hcc", "rxnorm", "snomed-icd10", "snomed-hcc"} {
		if !names[want] {
			t.Errorf("step %s did not run after the icd10 failure", want)
		}
	}

	if n, _ := db.CountCodes(storage.TableICD10); n != 0 {
		t.Errorf("failed load left %d rows", n)
	}
}

func TestRunStrictValidationAborts(t *testing.T) {
	runner, _, _ := setupRunner(t)

	_, err := runner.Run(Options{Validate: true, Strict: true})
	if !apperrors.Is(err, apperrors.ValidationFailed) {
		t.Errorf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestRunCleanWipesData(t *testing.T) {
	runner, db, cfg := setupRunner(t)
	writeICD10Fixture(t, cfg,
		orderLine(1, "A000", "1", "Cholera", "Cholera"),
	)

	if _, err := runner.Run(Options{Only: []string{"icd10"}}); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.CountCodes(storage.TableICD10); n != 1 {
		t.Fatalf("expected 1 row before clean, got %d", n)
	}

	// remove the fixture, then clean: the store ends up empty
	if err := os.RemoveAll(cfg.StagingDir()); err != nil {
		t.Fatal(err)
	}
	summary, err := runner.Run(Options{Clean: true, Only: []string{"icd10"}})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Records["icd10"] != 0 {
		t.Errorf("records after clean = %v", summary.Records)
	}
}

func TestSelectedFilters(t *testing.T) {
	r := &Runner{}
	opts := Options{Only: []string{"icd10", "hcc"}, Skip: []string{"hcc"}}

	if !r.selected(opts, "icd10") {
		t.Error("icd10 should be selected")
	}
	if r.selected(opts, "hcc") {
		t.Error("skip must win over only")
	}
	if r.selected(opts, "snomed") {
		t.Error("snomed is outside the only list")
	}
}

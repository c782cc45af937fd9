package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

func setupDeps(t *testing.T) Deps {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return Deps{
		DB:      db,
		Config:  config.Default(),
		Sources: config.DefaultSources(),
		Staging: filepath.Join(dir, "staging"),
		Logger:  logging.Discard(),
	}
}

// orderLine renders one fixed-width row of the CMS order file
func orderLine(order int, code, flag, short, long string) string {
	return fmt.Sprintf("%05d %-8s%-2s%-61s%s", order, code, flag, short, long)
}

func writeOrderFile(t *testing.T, deps Deps, lines ...string) {
	t.Helper()
	dir := filepath.Join(deps.Staging, deps.Sources["icd10"].Subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, "icd10cm-order-2026.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestICD10LoaderParsesOrderFile(t *testing.T) {
	deps := setupDeps(t)
	writeOrderFile(t, deps,
		orderLine(1, "A00", "0", "Cholera", "Cholera"),
		orderLine(2, "A000", "1", "Cholera due to V. cholerae 01, biovar cholerae", "Cholera due to Vibrio cholerae 01, biovar cholerae"),
		orderLine(3, "A001", "1", "Cholera due to V. cholerae 01, biovar eltor", "Cholera due to Vibrio cholerae 01, biovar eltor"),
	)

	n, err := NewICD10Loader(deps).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if n != 3 {
		t.Errorf("loaded %d codes, want 3", n)
	}

	header, err := deps.DB.GetICD10("A00")
	if err != nil {
		t.Fatal(err)
	}
	if !header.IsHeader {
		t.Error("A00 should be flagged as a category header")
	}
	if header.Chapter != "Certain infectious and parasitic diseases" {
		t.Errorf("chapter = %q", header.Chapter)
	}

	leaf, err := deps.DB.GetICD10("A00.0")
	if err != nil {
		t.Fatalf("A000 should be stored dotted as A00.0: %v", err)
	}
	if leaf.IsHeader {
		t.Error("A00.0 should not be a header")
	}
	if leaf.Category != "A00" {
		t.Errorf("category = %q, want A00", leaf.Category)
	}
	if leaf.Description != "Cholera due to Vibrio cholerae 01, biovar cholerae" {
		t.Errorf("description = %q", leaf.Description)
	}

	if _, err := deps.DB.GetICD10("A00.1"); err != nil {
		t.Errorf("A00.1 missing: %v", err)
	}
}

func TestICD10LoaderSkipsPreambleAndMalformedLines(t *testing.T) {
	deps := setupDeps(t)
	writeOrderFile(t, deps,
		"ICD-10-CM TABULAR ORDER FILE",
		"",
		orderLine(1, "A000", "1", "Cholera", "Cholera"),
		"      12345   1 not a code line",
	)

	n, err := NewICD10Loader(deps).Load()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("loaded %d codes, want 1", n)
	}
}

func TestICD10LoaderRerunIsIdempotent(t *testing.T) {
	deps := setupDeps(t)
	writeOrderFile(t, deps,
		orderLine(1, "A000", "1", "Cholera", "Cholera"),
		orderLine(2, "A001", "1", "Cholera eltor", "Cholera eltor"),
	)

	loader := NewICD10Loader(deps)
	if _, err := loader.Load(); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load(); err != nil {
		t.Fatal(err)
	}

	count, err := deps.DB.CountCodes(storage.TableICD10)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows after rerun, got %d", count)
	}
}

func TestICD10LoaderMissingSourceIsSkipped(t *testing.T) {
	deps := setupDeps(t)
	// staging dir never created; the loader warns and reports zero

	n, err := NewICD10Loader(deps).Load()
	if err != nil {
		t.Errorf("missing source should not be an error: %v", err)
	}
	if n != 0 {
		t.Errorf("loaded %d from nothing", n)
	}
}

func TestLatin1String(t *testing.T) {
	// 0xE9 is é in latin-1; naive UTF-8 decoding would mangle it
	got := latin1String([]byte{'c', 'a', 'f', 0xE9})
	if got != "café" {
		t.Errorf("latin1String = %q", got)
	}
}

func TestField(t *testing.T) {
	line := "abcdef"
	if got := field(line, 0, 3); got != "abc" {
		t.Errorf("field(0,3) = %q", got)
	}
	if got := field(line, 4, 100); got != "ef" {
		t.Errorf("field beyond end = %q", got)
	}
	if got := field(line, 10, 12); got != "" {
		t.Errorf("field past end = %q, want empty", got)
	}
}

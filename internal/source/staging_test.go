package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
)

func testLayout(t *testing.T) Layout {
	t.Helper()
	dir := t.TempDir()
	return Layout{
		DownloadDir: filepath.Join(dir, "downloads"),
		StagingDir:  filepath.Join(dir, "staging"),
		ArchiveDir:  filepath.Join(dir, "archive"),
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOrganizeRoutesDownloads(t *testing.T) {
	layout := testLayout(t)
	registry := config.DefaultSources()

	touch(t, filepath.Join(layout.DownloadDir, "RxNorm_full_07072026.zip"))
	touch(t, filepath.Join(layout.DownloadDir, "SnomedCT_ManagedServiceUS_PRODUCTION_20260301.zip"))
	touch(t, filepath.Join(layout.DownloadDir, "random-notes.pdf"))

	res, err := Organize(layout, registry, logging.Discard())
	if err != nil {
		t.Fatalf("organize failed: %v", err)
	}
	if res.Staged != 2 {
		t.Errorf("staged = %d, want 2", res.Staged)
	}
	if res.Archived != 1 {
		t.Errorf("archived = %d, want 1", res.Archived)
	}

	if _, err := os.Stat(filepath.Join(layout.StagingDir, "rxnorm", "RxNorm_full_07072026.zip")); err != nil {
		t.Error("rxnorm archive not staged")
	}
	if _, err := os.Stat(filepath.Join(layout.ArchiveDir, "random-notes.pdf")); err != nil {
		t.Error("unmatched download not archived")
	}
	if entries, _ := os.ReadDir(layout.DownloadDir); len(entries) != 0 {
		t.Errorf("downloads not emptied: %d left", len(entries))
	}
}

func TestOrganizePrunesStaging(t *testing.T) {
	layout := testLayout(t)
	registry := config.DefaultSources()

	// icd10 staging keeps order .txt files and excludes addenda
	touch(t, filepath.Join(layout.StagingDir, "icd10cm", "icd10cm-order-2026.txt"))
	touch(t, filepath.Join(layout.StagingDir, "icd10cm", "icd10cm-addenda-2026.txt"))
	touch(t, filepath.Join(layout.StagingDir, "icd10cm", "readme.pdf"))

	res, err := Organize(layout, registry, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if res.Pruned != 2 {
		t.Errorf("pruned = %d, want 2", res.Pruned)
	}
	if _, err := os.Stat(filepath.Join(layout.StagingDir, "icd10cm", "icd10cm-order-2026.txt")); err != nil {
		t.Error("kept file was pruned")
	}
}

func TestFindFilePicksNewest(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "icd10cm-order-2025.txt"))
	touch(t, filepath.Join(dir, "icd10cm-order-2026.txt"))

	path, err := FindFile(dir, "order", ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "icd10cm-order-2026.txt" {
		t.Errorf("picked %s, want the 2026 release", filepath.Base(path))
	}
}

func TestFindFileMissing(t *testing.T) {
	_, err := FindFile(t.TempDir(), "order")
	if !apperrors.Is(err, apperrors.SourceMissing) {
		t.Errorf("expected SOURCE_MISSING, got %v", err)
	}

	_, err = FindFile(filepath.Join(t.TempDir(), "nope"), "order")
	if !apperrors.Is(err, apperrors.SourceMissing) {
		t.Errorf("unreadable dir: expected SOURCE_MISSING, got %v", err)
	}
}

func TestOpenZipCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	touch(t, path)

	_, err := OpenZip(path)
	if !apperrors.Is(err, apperrors.SourceCorrupt) {
		t.Errorf("expected SOURCE_CORRUPT, got %v", err)
	}
}

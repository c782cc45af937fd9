package conflict

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testOptions(db *storage.DB) Options {
	return Options{
		DB:             db,
		Logger:         logging.Discard(),
		FuzzyThreshold: 0.85,
		CommitInterval: 1000,
	}
}

func loadICD10(t *testing.T, db *storage.DB, codes ...string) {
	t.Helper()
	w := db.NewICD10Writer(100)
	for _, code := range codes {
		if err := w.Add(storage.ICD10Code{Code: code, Description: "desc " + code, Active: true}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
}

func openConflict(t *testing.T, db *storage.DB, source, target string) int64 {
	t.Helper()
	cw := storage.NewConflictWriter(db, 10)
	if err := cw.Add(storage.Conflict{
		SourceSystem: "SNOMED",
		TargetSystem: "ICD-10",
		SourceCode:   source,
		TargetCode:   target,
		Reason:       storage.ReasonTargetNotFound,
	}); err != nil {
		t.Fatal(err)
	}
	if err := cw.Flush(); err != nil {
		t.Fatal(err)
	}

	var id int64
	if err := db.QueryRow(
		"SELECT id FROM mapping_conflicts WHERE source_code = ? AND target_code = ? AND status = 'open'",
		source, target).Scan(&id); err != nil {
		t.Fatalf("failed to look up conflict id: %v", err)
	}
	return id
}

func TestInvalidCodeRejector(t *testing.T) {
	db := setupTestDB(t)
	rejector := NewInvalidCodeRejector(testOptions(db))

	ignored := []string{"XXX", "X", "000", "0", "N/A", "NA", "NONE", "TBD", "E11?9"}
	for _, target := range ignored {
		id := openConflict(t, db, "1000"+target, target)
		c, _ := db.GetConflict(id)
		outcome, err := rejector.Attempt(c)
		if err != nil {
			t.Fatal(err)
		}
		if outcome != Ignored {
			t.Errorf("target %q: outcome = %v, want Ignored", target, outcome)
			continue
		}
		after, _ := db.GetConflict(id)
		if after.Status != storage.StatusIgnored {
			t.Errorf("target %q: status = %q", target, after.Status)
		}
	}

	id := openConflict(t, db, "44054006", "E11.9")
	c, _ := db.GetConflict(id)
	outcome, err := rejector.Attempt(c)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != None {
		t.Errorf("well-formed target should not be claimed, got %v", outcome)
	}
}

func TestInvalidCodeRejectorChecksSource(t *testing.T) {
	db := setupTestDB(t)
	rejector := NewInvalidCodeRejector(testOptions(db))

	for _, source := range []string{"XXXXX", "00000", "N/A", "TBD"} {
		id := openConflict(t, db, source, "A00.0")
		c, _ := db.GetConflict(id)
		outcome, err := rejector.Attempt(c)
		if err != nil {
			t.Fatal(err)
		}
		if outcome != Ignored {
			t.Errorf("source %q: outcome = %v, want Ignored", source, outcome)
			continue
		}
		after, _ := db.GetConflict(id)
		if after.Status != storage.StatusIgnored {
			t.Errorf("source %q: status = %q", source, after.Status)
		}
		if !strings.Contains(after.Resolution, "source") {
			t.Errorf("source %q: resolution = %q", source, after.Resolution)
		}
	}
}

func TestFuzzyMatcherVariantBeforeSimilarity(t *testing.T) {
	db := setupTestDB(t)
	loadICD10(t, db, "E11.65", "E11.9")
	id := openConflict(t, db, "44054006", "E1165")

	matcher, err := NewICD10FuzzyMatcher(testOptions(db))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := db.GetConflict(id)
	outcome, err := matcher.Attempt(c)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Resolved {
		t.Fatalf("outcome = %v, want Resolved", outcome)
	}

	after, _ := db.GetConflict(id)
	if after.ResolvedCode != "E11.65" {
		t.Errorf("resolved code = %q, want E11.65", after.ResolvedCode)
	}
	if !strings.Contains(after.Resolution, "variant") {
		t.Errorf("an exact undotted hit must resolve as a variant, got %q", after.Resolution)
	}
}

func TestFuzzyMatcherSimilarityFallback(t *testing.T) {
	db := setupTestDB(t)
	loadICD10(t, db, "Z00.129", "E11.9")
	id := openConflict(t, db, "44054006", "Z00.12")

	matcher, err := NewICD10FuzzyMatcher(testOptions(db))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := db.GetConflict(id)
	outcome, err := matcher.Attempt(c)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Resolved {
		t.Fatalf("outcome = %v, want Resolved", outcome)
	}

	after, _ := db.GetConflict(id)
	if after.ResolvedCode != "Z00.129" {
		t.Errorf("resolved code = %q, want Z00.129", after.ResolvedCode)
	}
	if !strings.Contains(after.Resolution, "similarity") {
		t.Errorf("resolution = %q", after.Resolution)
	}
}

func TestFuzzyMatcherRespectsThreshold(t *testing.T) {
	db := setupTestDB(t)
	loadICD10(t, db, "Z00.129")
	id := openConflict(t, db, "44054006", "Z00.12")

	opts := testOptions(db)
	opts.FuzzyThreshold = 0.95
	matcher, err := NewICD10FuzzyMatcher(opts)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := db.GetConflict(id)
	outcome, err := matcher.Attempt(c)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != None {
		t.Errorf("a match below the threshold must not be claimed, got %v", outcome)
	}
}

func TestFuzzyMatcherWritesRepairedEdge(t *testing.T) {
	db := setupTestDB(t)
	loadICD10(t, db, "E11.65")
	id := openConflict(t, db, "44054006", "E1165")

	matcher, err := NewICD10FuzzyMatcher(testOptions(db))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := db.GetConflict(id)
	if _, err := matcher.Attempt(c); err != nil {
		t.Fatal(err)
	}

	maps, err := db.ICD10ForSnomed("44054006")
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 {
		t.Fatalf("expected 1 repaired edge, got %d", len(maps))
	}
	if maps[0].ICD10Code != "E11.65" {
		t.Errorf("edge target = %q", maps[0].ICD10Code)
	}
	if !strings.HasPrefix(maps[0].MapAdvice, "AUTO-RESOLVED") {
		t.Errorf("map advice = %q", maps[0].MapAdvice)
	}
}

func TestFuzzyMatcherSkipsOtherSystems(t *testing.T) {
	db := setupTestDB(t)
	loadICD10(t, db, "E11.65")

	matcher, err := NewICD10FuzzyMatcher(testOptions(db))
	if err != nil {
		t.Fatal(err)
	}
	outcome, err := matcher.Attempt(&storage.Conflict{
		SourceSystem: "RxNorm",
		TargetSystem: "SNOMED",
		SourceCode:   "1049221",
		TargetCode:   "44054006",
		Reason:       storage.ReasonTargetNotFound,
		Status:       storage.StatusOpen,
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != None {
		t.Errorf("non-ICD-10 conflicts must pass through, got %v", outcome)
	}
}

func TestSimilarityRatio(t *testing.T) {
	if r := similarityRatio("E11.65", "E11.65"); r != 1.0 {
		t.Errorf("identical strings: %v", r)
	}
	if r := similarityRatio("", "E11"); r != 0 {
		t.Errorf("empty string: %v", r)
	}
	// longer shared prefix scores higher
	near := similarityRatio("Z00.12", "Z00.129")
	far := similarityRatio("Z00.12", "A41.9")
	if near <= far {
		t.Errorf("near %v should beat far %v", near, far)
	}
	if near < 0.85 {
		t.Errorf("one-character extension should clear the default threshold, got %v", near)
	}
}

func TestEngineChainAndStats(t *testing.T) {
	db := setupTestDB(t)
	loadICD10(t, db, "E11.65")

	openConflict(t, db, "1001", "XXX")    // pattern rejection
	openConflict(t, db, "1002", "E1165")  // fuzzy variant
	openConflict(t, db, "1003", "M99.99") // unmatched, stays open

	engine, err := NewEngine(testOptions(db))
	if err != nil {
		t.Fatal(err)
	}
	stats, err := engine.Run(0)
	if err != nil {
		t.Fatal(err)
	}

	if stats.Processed != 3 {
		t.Errorf("processed = %d, want 3", stats.Processed)
	}
	if stats.Ignored != 1 || stats.Resolved != 1 || stats.Unresolved != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByResolver["invalid-code"] != 1 || stats.ByResolver["icd10-fuzzy"] != 1 {
		t.Errorf("byResolver = %v", stats.ByResolver)
	}

	remaining, err := db.OpenConflicts(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].SourceCode != "1003" {
		t.Errorf("open set after run: %+v", remaining)
	}
}

func TestEngineDryRunWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	loadICD10(t, db, "E11.65")
	openConflict(t, db, "44054006", "E1165")

	opts := testOptions(db)
	opts.DryRun = true
	engine, err := NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := engine.Run(0)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Resolved != 1 {
		t.Errorf("dry run should still report the would-be resolution, got %+v", stats)
	}

	open, _ := db.OpenConflicts(10, 0)
	if len(open) != 1 {
		t.Errorf("dry run closed a conflict: %d open", len(open))
	}
	maps, _ := db.ICD10ForSnomed("44054006")
	if len(maps) != 0 {
		t.Errorf("dry run wrote %d edges", len(maps))
	}
}

func TestEngineLimit(t *testing.T) {
	db := setupTestDB(t)
	openConflict(t, db, "1001", "XXX")
	openConflict(t, db, "1002", "000")
	openConflict(t, db, "1003", "N/A")

	opts := testOptions(db)
	opts.SkipFuzzy = true
	engine, err := NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := engine.Run(2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 2 {
		t.Errorf("processed = %d, want 2", stats.Processed)
	}
}

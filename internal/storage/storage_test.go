package storage

import (
	"path/filepath"
	"testing"

	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func addTestICD10(t *testing.T, db *DB, codes ...string) {
	t.Helper()
	w := db.NewICD10Writer(100)
	for _, code := range codes {
		if err := w.Add(ICD10Code{Code: code, Description: "desc " + code, Active: true}); err != nil {
			t.Fatalf("failed to add %s: %v", code, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
}

func addTestConflict(t *testing.T, db *DB, source, target string) int64 {
	t.Helper()
	cw := NewConflictWriter(db, 100)
	err := cw.Add(Conflict{
		SourceSystem: "SNOMED",
		TargetSystem: "ICD-10",
		SourceCode:   source,
		TargetCode:   target,
		Reason:       ReasonTargetNotFound,
	})
	if err != nil {
		t.Fatalf("failed to add conflict: %v", err)
	}
	if err := cw.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	var id int64
	if err := db.QueryRow(
		"SELECT id FROM mapping_conflicts WHERE source_code = ? AND target_code = ?",
		source, target).Scan(&id); err != nil {
		t.Fatalf("failed to look up conflict id: %v", err)
	}
	return id
}

func TestBatchWriterRerunIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	addTestICD10(t, db, "A00.0", "A00.1", "E11.65")

	n, err := db.CountCodes(TableICD10)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 codes after first load, got %d", n)
	}

	// second pass over the same rows must not insert anything
	w := db.NewICD10Writer(100)
	for _, code := range []string{"A00.0", "A00.1", "E11.65"} {
		if err := w.Add(ICD10Code{Code: code, Description: "desc " + code, Active: true}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.Inserted() != 0 {
		t.Errorf("rerun inserted %d rows, want 0", w.Inserted())
	}

	n, _ = db.CountCodes(TableICD10)
	if n != 3 {
		t.Errorf("expected 3 codes after rerun, got %d", n)
	}
}

func TestBatchWriterRejectsColumnMismatch(t *testing.T) {
	db := setupTestDB(t)
	w := NewBatchWriter(db, TableICD10, []string{"code", "description"}, 10)
	if err := w.Add("A00"); err == nil {
		t.Error("expected an error for a short row")
	}
}

func TestConflictWriterDedupWithinRun(t *testing.T) {
	db := setupTestDB(t)
	cw := NewConflictWriter(db, 100)

	c := Conflict{
		SourceSystem: "SNOMED", TargetSystem: "ICD-10",
		SourceCode: "12345", TargetCode: "Q99.99",
		Reason: ReasonTargetNotFound,
	}
	for i := 0; i < 3; i++ {
		if err := cw.Add(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := cw.Flush(); err != nil {
		t.Fatal(err)
	}

	if cw.Count() != 1 {
		t.Errorf("conflict writer recorded %d, want 1", cw.Count())
	}
	_, total, err := db.ListConflicts(ConflictFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("expected 1 stored conflict, got %d", total)
	}
}

func TestConflictDedupAcrossRuns(t *testing.T) {
	db := setupTestDB(t)
	addTestConflict(t, db, "12345", "Q99.99")

	// a fresh writer (new run) sees the same gap again
	cw := NewConflictWriter(db, 100)
	if err := cw.Add(Conflict{
		SourceSystem: "SNOMED", TargetSystem: "ICD-10",
		SourceCode: "12345", TargetCode: "Q99.99",
		Reason: ReasonTargetNotFound,
	}); err != nil {
		t.Fatal(err)
	}
	if err := cw.Flush(); err != nil {
		t.Fatal(err)
	}

	_, total, err := db.ListConflicts(ConflictFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("open conflict duplicated across runs: got %d rows, want 1", total)
	}
}

func TestResolvedConflictCanRecur(t *testing.T) {
	db := setupTestDB(t)
	id := addTestConflict(t, db, "12345", "Q99.99")

	if err := db.MarkConflictResolved(id, "manually mapped", "Q99.9"); err != nil {
		t.Fatal(err)
	}

	// once closed, the same gap in a later run is a new conflict
	cw := NewConflictWriter(db, 100)
	if err := cw.Add(Conflict{
		SourceSystem: "SNOMED", TargetSystem: "ICD-10",
		SourceCode: "12345", TargetCode: "Q99.99",
		Reason: ReasonTargetNotFound,
	}); err != nil {
		t.Fatal(err)
	}
	if err := cw.Flush(); err != nil {
		t.Fatal(err)
	}

	_, total, err := db.ListConflicts(ConflictFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("expected a second conflict row after resolution, got %d", total)
	}
}

func TestUpdateConflictActions(t *testing.T) {
	db := setupTestDB(t)
	id := addTestConflict(t, db, "12345", "Q99.99")

	c, err := db.UpdateConflict(id, ActionResolve, "mapped by hand", "Q99.9")
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusResolved || c.Resolution != "mapped by hand" || c.ResolvedCode != "Q99.9" {
		t.Errorf("resolve left unexpected state: %+v", c)
	}
	if c.ResolvedAt == "" {
		t.Error("resolve should set resolved_at")
	}

	c, err = db.UpdateConflict(id, ActionReopen, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusOpen {
		t.Errorf("reopen left status %q", c.Status)
	}
	if c.Resolution != "" || c.ResolvedCode != "" || c.ResolvedAt != "" {
		t.Errorf("reopen should clear resolution fields: %+v", c)
	}

	c, err = db.UpdateConflict(id, ActionIgnore, "not actionable", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusIgnored {
		t.Errorf("ignore left status %q", c.Status)
	}
}

func TestUpdateConflictRejectsUnknownAction(t *testing.T) {
	db := setupTestDB(t)
	id := addTestConflict(t, db, "12345", "Q99.99")

	_, err := db.UpdateConflict(id, "delete", "", "")
	if !apperrors.Is(err, apperrors.InvalidAction) {
		t.Errorf("expected INVALID_ACTION, got %v", err)
	}

	c, _ := db.GetConflict(id)
	if c.Status != StatusOpen {
		t.Errorf("rejected action must not change state, got %q", c.Status)
	}
}

func TestBulkUpdateConflicts(t *testing.T) {
	db := setupTestDB(t)
	ids := []int64{
		addTestConflict(t, db, "111", "Q99.91"),
		addTestConflict(t, db, "222", "Q99.92"),
		addTestConflict(t, db, "333", "Q99.93"),
	}

	n, err := db.BulkUpdateConflicts(ids, ActionResolve, "batch reviewed", "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("bulk resolve updated %d, want 3", n)
	}
	for _, id := range ids {
		c, err := db.GetConflict(id)
		if err != nil {
			t.Fatal(err)
		}
		if c.Status != StatusResolved {
			t.Errorf("conflict %d still %q", id, c.Status)
		}
	}
}

func TestBulkUpdateCountsOnlyExistingRows(t *testing.T) {
	db := setupTestDB(t)
	ids := []int64{
		addTestConflict(t, db, "111", "Q99.91"),
		addTestConflict(t, db, "222", "Q99.92"),
		9999, // no such conflict
	}

	n, err := db.BulkUpdateConflicts(ids, ActionIgnore, "batch reviewed", "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("bulk ignore reported %d updates, want 2", n)
	}
}

func TestBulkUpdateRejectsEmptyAndInvalid(t *testing.T) {
	db := setupTestDB(t)
	id := addTestConflict(t, db, "111", "Q99.91")

	if _, err := db.BulkUpdateConflicts(nil, ActionResolve, "", ""); !apperrors.Is(err, apperrors.InvalidAction) {
		t.Errorf("empty id list: expected INVALID_ACTION, got %v", err)
	}
	if _, err := db.BulkUpdateConflicts([]int64{id}, "nonsense", "", ""); !apperrors.Is(err, apperrors.InvalidAction) {
		t.Errorf("unknown action: expected INVALID_ACTION, got %v", err)
	}

	c, _ := db.GetConflict(id)
	if c.Status != StatusOpen {
		t.Errorf("rejected bulk action must not change state, got %q", c.Status)
	}
}

func TestGetConflictNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetConflict(9999)
	if !apperrors.Is(err, apperrors.ConflictNotFound) {
		t.Errorf("expected CONFLICT_NOT_FOUND, got %v", err)
	}
}

func TestGetConflictStats(t *testing.T) {
	db := setupTestDB(t)
	addTestConflict(t, db, "111", "Q99.91")
	id := addTestConflict(t, db, "222", "Q99.92")
	if err := db.MarkConflictIgnored(id, "noise"); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetConflictStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByStatus[StatusOpen] != 1 || stats.ByStatus[StatusIgnored] != 1 {
		t.Errorf("byStatus = %v", stats.ByStatus)
	}
	if stats.ByPair["SNOMED -> ICD-10"] != 2 {
		t.Errorf("byPair = %v", stats.ByPair)
	}
	if stats.ByReason[ReasonTargetNotFound] != 2 {
		t.Errorf("byReason = %v", stats.ByReason)
	}
}

func TestGetCodeNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetICD10("Z99.99")
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("expected CODE_NOT_FOUND, got %v", err)
	}
}

func TestCodeSetAndLookup(t *testing.T) {
	db := setupTestDB(t)
	addTestICD10(t, db, "A00.0", "E11.65")

	set, err := db.CodeSet(TableICD10)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := set["A00.0"]; !ok {
		t.Error("A00.0 missing from code set")
	}
	if _, ok := set["Z99.99"]; ok {
		t.Error("unexpected code in set")
	}

	rec, err := db.GetICD10("E11.65")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Description != "desc E11.65" {
		t.Errorf("description = %q", rec.Description)
	}
}

func TestClearData(t *testing.T) {
	db := setupTestDB(t)
	addTestICD10(t, db, "A00.0")
	addTestConflict(t, db, "111", "Q99.91")

	if err := db.ClearData(); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.CountCodes(TableICD10); n != 0 {
		t.Errorf("icd10 rows remain after clear: %d", n)
	}
	_, total, _ := db.ListConflicts(ConflictFilter{})
	if total != 0 {
		t.Errorf("conflicts remain after clear: %d", total)
	}
}

func TestMappingRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	if err := db.InsertSnomedICD10(SnomedICD10Map{
		SnomedCode: "44054006", ICD10Code: "E11.9", MapGroup: 1, MapPriority: 1, Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	maps, err := db.ICD10ForSnomed("44054006")
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 || maps[0].ICD10Code != "E11.9" {
		t.Fatalf("unexpected mappings: %+v", maps)
	}

	// the unique pair constraint makes re-insertion a no-op
	if err := db.InsertSnomedICD10(SnomedICD10Map{
		SnomedCode: "44054006", ICD10Code: "E11.9", Active: true,
	}); err != nil {
		t.Fatal(err)
	}
	maps, _ = db.ICD10ForSnomed("44054006")
	if len(maps) != 1 {
		t.Errorf("duplicate edge inserted: %d rows", len(maps))
	}
}

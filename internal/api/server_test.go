package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/query"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

func setupServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine := query.NewEngine(db, config.Default().Graph)
	return NewServer("127.0.0.1:0", engine, db, logging.Discard()), db
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

func insertConflict(t *testing.T, db *storage.DB, source, target string) int64 {
	t.Helper()
	cw := storage.NewConflictWriter(db, 10)
	if err := cw.Add(storage.Conflict{
		SourceSystem: "SNOMED", TargetSystem: "ICD-10",
		SourceCode: source, TargetCode: target,
		Reason: storage.ReasonTargetNotFound,
	}); err != nil {
		t.Fatal(err)
	}
	if err := cw.Flush(); err != nil {
		t.Fatal(err)
	}
	var id int64
	if err := db.QueryRow(
		"SELECT id FROM mapping_conflicts WHERE source_code = ?", source).Scan(&id); err != nil {
		t.Fatal(err)
	}
	return id
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := setupServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestListCodes(t *testing.T) {
	s, db := setupServer(t)
	loadICD10(t, db, "A00.0", "A00.1", "E11.65")

	rec := doRequest(t, s, http.MethodGet, "/codes/icd10?page=1&perPage=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Items []storage.CodeSummary `json:"items"`
		Total int                   `json:"total"`
	}
	decode(t, rec, &body)
	if body.Total != 3 {
		t.Errorf("total = %d", body.Total)
	}
	if len(body.Items) != 2 {
		t.Errorf("page size = %d", len(body.Items))
	}
}

func TestListCodesUnknownSystem(t *testing.T) {
	s, _ := setupServer(t)
	rec := doRequest(t, s, http.MethodGet, "/codes/loinc", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetCode(t *testing.T) {
	s, db := setupServer(t)
	loadICD10(t, db, "E11.65")

	rec := doRequest(t, s, http.MethodGet, "/codes/icd10/E11.65", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/codes/icd10/Z99.99", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing code: status = %d, want 404", rec.Code)
	}
	var body ErrorResponse
	decode(t, rec, &body)
	if body.Code != "CODE_NOT_FOUND" {
		t.Errorf("error code = %q", body.Code)
	}
}

func TestMapLookup(t *testing.T) {
	s, db := setupServer(t)
	loadICD10(t, db, "E11.9")
	if err := db.InsertSnomedICD10(storage.SnomedICD10Map{
		SnomedCode: "44054006", ICD10Code: "E11.9", Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodGet, "/map/snomed/icd10/44054006", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Mappings []query.MappedCode `json:"mappings"`
	}
	decode(t, rec, &body)
	if len(body.Mappings) != 1 || body.Mappings[0].Code != "E11.9" {
		t.Errorf("mappings = %+v", body.Mappings)
	}
}

func TestMapLookupUnsupportedDirection(t *testing.T) {
	s, _ := setupServer(t)
	rec := doRequest(t, s, http.MethodGet, "/map/cpt/ndc/99213", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestConflictActionEndpoint(t *testing.T) {
	s, db := setupServer(t)
	id := insertConflict(t, db, "44054006", "Q99.99")

	rec := doRequest(t, s, http.MethodPost, fmt.Sprintf("/conflicts/%d", id), map[string]interface{}{
		"action":       "resolve",
		"resolution":   "manually mapped",
		"resolvedCode": "Q99.9",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var c storage.Conflict
	decode(t, rec, &c)
	if c.Status != storage.StatusResolved || c.ResolvedCode != "Q99.9" {
		t.Errorf("conflict = %+v", c)
	}
}

func TestConflictActionRejectsUnknown(t *testing.T) {
	s, db := setupServer(t)
	id := insertConflict(t, db, "44054006", "Q99.99")

	rec := doRequest(t, s, http.MethodPost, fmt.Sprintf("/conflicts/%d", id), map[string]interface{}{
		"action": "obliterate",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body ErrorResponse
	decode(t, rec, &body)
	if body.Code != "INVALID_ACTION" {
		t.Errorf("error code = %q", body.Code)
	}
}

func TestBulkConflictAction(t *testing.T) {
	s, db := setupServer(t)
	ids := []int64{
		insertConflict(t, db, "111", "Q99.91"),
		insertConflict(t, db, "222", "Q99.92"),
	}

	rec := doRequest(t, s, http.MethodPost, "/conflicts/bulk", map[string]interface{}{
		"action": "ignore",
		"ids":    ids,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Updated int `json:"updated"`
	}
	decode(t, rec, &body)
	if body.Updated != 2 {
		t.Errorf("updated = %d", body.Updated)
	}

	// empty id list rejects the whole request
	rec = doRequest(t, s, http.MethodPost, "/conflicts/bulk", map[string]interface{}{
		"action": "ignore",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty ids: status = %d, want 400", rec.Code)
	}
}

func TestConflictStatsEndpoint(t *testing.T) {
	s, db := setupServer(t)
	insertConflict(t, db, "111", "Q99.91")

	rec := doRequest(t, s, http.MethodGet, "/conflicts/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats storage.ConflictStats
	decode(t, rec, &stats)
	if stats.Total != 1 {
		t.Errorf("total = %d", stats.Total)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(logging.Discard())(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

package query

import (
	"path/filepath"
	"testing"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

func setupEngine(t *testing.T) (*Engine, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEngine(db, config.Default().Graph), db
}

// seedClinicalChain loads a SNOMED concept mapped to an ICD-10 code that
// risk-adjusts to an HCC.
func seedClinicalChain(t *testing.T, db *storage.DB) {
	t.Helper()

	sw := db.NewSnomedWriter(10)
	if err := sw.Add(storage.SnomedCode{Code: "44054006", Description: "Diabetes mellitus type 2", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := sw.Flush(); err != nil {
		t.Fatal(err)
	}

	iw := db.NewICD10Writer(10)
	if err := iw.Add(storage.ICD10Code{Code: "E11.9", Description: "Type 2 diabetes mellitus without complications", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := iw.Flush(); err != nil {
		t.Fatal(err)
	}

	hw := db.NewHCCWriter(10)
	if err := hw.Add(storage.HCCCode{Code: "HCC38", Description: "Diabetes with Chronic Complications", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := hw.Flush(); err != nil {
		t.Fatal(err)
	}

	if err := db.InsertSnomedICD10(storage.SnomedICD10Map{
		SnomedCode: "44054006", ICD10Code: "E11.9", MapGroup: 1, MapPriority: 1, Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	mw := db.NewICD10HCCWriter(10)
	if err := mw.Add(storage.ICD10HCCMap{ICD10Code: "E11.9", HCCCode: "HCC38", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := mw.Flush(); err != nil {
		t.Fatal(err)
	}
}

func TestSnomedToICD10Lookup(t *testing.T) {
	engine, db := setupEngine(t)
	seedClinicalChain(t, db)

	mapped, err := engine.SnomedToICD10("44054006")
	if err != nil {
		t.Fatal(err)
	}
	if len(mapped) != 1 {
		t.Fatalf("got %d mappings", len(mapped))
	}
	if mapped[0].Code != "E11.9" || mapped[0].System != "icd10" {
		t.Errorf("mapped = %+v", mapped[0])
	}
	if mapped[0].Description == "" {
		t.Error("target description not resolved")
	}
}

func TestSnomedToHCCTransitiveLookup(t *testing.T) {
	engine, db := setupEngine(t)
	seedClinicalChain(t, db)

	hw := db.NewSnomedHCCWriter(10)
	if err := hw.Add(storage.SnomedHCCMap{
		SnomedCode: "44054006", HCCCode: "HCC38", ViaICD10Code: "E11.9", Active: true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := hw.Flush(); err != nil {
		t.Fatal(err)
	}

	mapped, err := engine.SnomedToHCC("44054006")
	if err != nil {
		t.Fatal(err)
	}
	if len(mapped) != 1 || mapped[0].Code != "HCC38" {
		t.Fatalf("mapped = %+v", mapped)
	}
	if via, _ := mapped[0].Attributes["viaIcd10"].(string); via != "E11.9" {
		t.Errorf("pivot attribute = %v", mapped[0].Attributes)
	}
}

func TestGetCodeDetailAttachesMappings(t *testing.T) {
	engine, db := setupEngine(t)
	seedClinicalChain(t, db)

	detail, err := engine.GetCodeDetail("icd10", "E11.9")
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Mappings["hcc"]) != 1 {
		t.Errorf("hcc mappings = %+v", detail.Mappings)
	}
	if len(detail.Mappings["snomed"]) != 1 {
		t.Errorf("snomed mappings = %+v", detail.Mappings)
	}
}

func TestBuildGraphFromSnomedRoot(t *testing.T) {
	engine, db := setupEngine(t)
	seedClinicalChain(t, db)

	graph, err := engine.BuildGraph("44054006")
	if err != nil {
		t.Fatal(err)
	}
	if graph.Root.System != "snomed" {
		t.Errorf("root system = %s", graph.Root.System)
	}
	if len(graph.Nodes) != 3 {
		t.Errorf("nodes = %d, want snomed + icd10 + hcc", len(graph.Nodes))
	}

	types := make(map[string]bool)
	for _, e := range graph.Edges {
		types[e.Type] = true
	}
	if !types["maps-to"] || !types["risk-adjusts-to"] {
		t.Errorf("edge types = %v", types)
	}
}

func TestBuildGraphRootDetection(t *testing.T) {
	engine, db := setupEngine(t)
	seedClinicalChain(t, db)

	graph, err := engine.BuildGraph("E11.9")
	if err != nil {
		t.Fatal(err)
	}
	if graph.Root.System != "icd10" {
		t.Errorf("root system = %s, want icd10", graph.Root.System)
	}

	_, err = engine.BuildGraph("does-not-exist")
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("expected CODE_NOT_FOUND, got %v", err)
	}
}

func TestListCodesUnknownSystem(t *testing.T) {
	engine, _ := setupEngine(t)
	_, _, err := engine.ListCodes("loinc", 1, 10, "")
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Errorf("expected CODE_NOT_FOUND, got %v", err)
	}
}

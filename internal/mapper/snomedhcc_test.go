package mapper

import (
	"testing"

	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

func addICD10HCC(t *testing.T, db *storage.DB, edges ...storage.ICD10HCCMap) {
	t.Helper()
	w := db.NewICD10HCCWriter(100)
	for _, e := range edges {
		if err := w.Add(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
}

func addSnomedICD10(t *testing.T, db *storage.DB, edges ...storage.SnomedICD10Map) {
	t.Helper()
	for _, e := range edges {
		if err := db.InsertSnomedICD10(e); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSnomedHCCBuilderDerivesEdges(t *testing.T) {
	deps := setupDeps(t)
	addSnomedICD10(t, deps.DB,
		storage.SnomedICD10Map{SnomedCode: "44054006", ICD10Code: "E11.9", Active: true},
	)
	addICD10HCC(t, deps.DB,
		storage.ICD10HCCMap{ICD10Code: "E11.9", HCCCode: "HCC38", ModelVersion: "V28", Active: true},
	)

	n, err := NewSnomedHCCBuilder(deps).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if n != 1 {
		t.Errorf("derived %d edges, want 1", n)
	}

	maps, err := deps.DB.HCCForSnomed("44054006")
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 {
		t.Fatalf("got %d derived mappings", len(maps))
	}
	if maps[0].HCCCode != "HCC38" {
		t.Errorf("hcc = %q", maps[0].HCCCode)
	}
	if maps[0].ViaICD10Code != "E11.9" {
		t.Errorf("pivot = %q, want E11.9", maps[0].ViaICD10Code)
	}
}

func TestSnomedHCCBuilderDedupsAcrossPivots(t *testing.T) {
	deps := setupDeps(t)
	// two ICD-10 pivots reach the same HCC
	addSnomedICD10(t, deps.DB,
		storage.SnomedICD10Map{SnomedCode: "44054006", ICD10Code: "E11.9", Active: true},
		storage.SnomedICD10Map{SnomedCode: "44054006", ICD10Code: "E11.65", Active: true},
	)
	addICD10HCC(t, deps.DB,
		storage.ICD10HCCMap{ICD10Code: "E11.9", HCCCode: "HCC38", Active: true},
		storage.ICD10HCCMap{ICD10Code: "E11.65", HCCCode: "HCC38", Active: true},
	)

	n, err := NewSnomedHCCBuilder(deps).Build()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("derived %d edges, want 1 after pair dedup", n)
	}
}

func TestSnomedHCCBuilderIgnoresInactiveEdges(t *testing.T) {
	deps := setupDeps(t)
	addSnomedICD10(t, deps.DB,
		storage.SnomedICD10Map{SnomedCode: "44054006", ICD10Code: "E11.9", Active: true},
	)
	addICD10HCC(t, deps.DB,
		storage.ICD10HCCMap{ICD10Code: "E11.9", HCCCode: "HCC38", Active: false},
	)

	n, err := NewSnomedHCCBuilder(deps).Build()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("derived %d edges through an inactive pivot, want 0", n)
	}
}

func TestSnomedHCCBuilderNoHCCEdges(t *testing.T) {
	deps := setupDeps(t)
	addSnomedICD10(t, deps.DB,
		storage.SnomedICD10Map{SnomedCode: "44054006", ICD10Code: "E11.9", Active: true},
	)

	n, err := NewSnomedHCCBuilder(deps).Build()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("derived %d edges with no HCC index", n)
	}
}

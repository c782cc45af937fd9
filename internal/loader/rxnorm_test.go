package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// consoRow renders one RXNCONSO.RRF row (18 pipe-delimited columns)
func consoRow(rxcui, sab, tty, name, suppress string) string {
	cols := make([]string, 18)
	cols[0], cols[11], cols[12], cols[14], cols[16] = rxcui, sab, tty, name, suppress
	return strings.Join(cols, "|")
}

// satRow renders one RXNSAT.RRF row (13 pipe-delimited columns)
func satRow(rxcui, atn, sab, atv string) string {
	cols := make([]string, 13)
	cols[0], cols[8], cols[9], cols[10] = rxcui, atn, sab, atv
	return strings.Join(cols, "|")
}

// relRow renders one RXNREL.RRF row (16 pipe-delimited columns)
func relRow(rxcui1, rxcui2, rela, sab string) string {
	cols := make([]string, 16)
	cols[0], cols[4], cols[7], cols[10] = rxcui1, rxcui2, rela, sab
	return strings.Join(cols, "|")
}

func writeRxNormArchive(t *testing.T, deps Deps, conso, sat, rel []string) {
	t.Helper()
	dir := filepath.Join(deps.Staging, deps.Sources["rxnorm"].Subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	f, err := os.Create(filepath.Join(dir, "RxNorm_full_07072026.zip"))
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, rows := range map[string][]string{
		"rrf/RXNCONSO.RRF": conso,
		"rrf/RXNSAT.RRF":   sat,
		"rrf/RXNREL.RRF":   rel,
	} {
		entry, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) > 0 {
			if _, err := entry.Write([]byte(strings.Join(rows, "\n") + "\n")); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRxNormLoaderSuppressionAndSourceFilter(t *testing.T) {
	deps := setupDeps(t)
	writeRxNormArchive(t, deps, []string{
		consoRow("100", "RXNORM", "IN", "Metformin", ""),
		consoRow("200", "RXNORM", "SCD", "Metformin 500 MG Oral Tablet", "O"),
		consoRow("300", "RXNORM", "IN", "Aspirin", "Y"),
		consoRow("400", "MTHSPL", "IN", "Not an RXNORM row", ""),
		consoRow("500", "RXNORM", "SY", "Synonym term type", ""),
	}, nil, nil)

	n, err := NewRxNormLoader(deps).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if n != 3 {
		t.Errorf("loaded %d concepts, want 3", n)
	}

	obsolete, err := deps.DB.GetRxNorm("200")
	if err != nil {
		t.Fatal(err)
	}
	if obsolete.Active {
		t.Error("SUPPRESS=O concept must be inactive")
	}

	suppressed, err := deps.DB.GetRxNorm("300")
	if err != nil {
		t.Fatal(err)
	}
	if !suppressed.Active {
		t.Error("SUPPRESS=Y concept stays active; only O marks obsolete")
	}

	if _, err := deps.DB.GetRxNorm("400"); err == nil {
		t.Error("non-RXNORM concept row must not load")
	}
}

func TestRxNormLoaderAttributesKeepRxNormSourceOnly(t *testing.T) {
	deps := setupDeps(t)
	writeRxNormArchive(t, deps, []string{
		consoRow("100", "RXNORM", "SCD", "Metformin 500 MG Oral Tablet", ""),
	}, []string{
		satRow("100", "NDC", "RXNORM", "00002322730"),
		satRow("100", "NDC", "MTHSPL", "99999999999"),
		satRow("100", "AVAILABLE_STRENGTH", "RXNORM", "500 MG"),
		satRow("100", "RXTERM_FORM", "VANDF", "Tab"),
	}, nil)

	if _, err := NewRxNormLoader(deps).Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	c, err := deps.DB.GetRxNorm("100")
	if err != nil {
		t.Fatal(err)
	}
	if c.NDCCodes != "00002322730" {
		t.Errorf("ndc list = %q, want the RXNORM-sourced entry only", c.NDCCodes)
	}
	if c.AvailableStrength != "500 MG" {
		t.Errorf("available strength = %q", c.AvailableStrength)
	}
	if c.RxTermForm != "" {
		t.Errorf("non-RXNORM attribute applied: %q", c.RxTermForm)
	}
}

func TestRxNormLoaderRelationships(t *testing.T) {
	deps := setupDeps(t)
	writeRxNormArchive(t, deps, []string{
		consoRow("100", "RXNORM", "IN", "Metformin", ""),
		consoRow("200", "RXNORM", "SCD", "Metformin 500 MG Oral Tablet", ""),
	}, nil, []string{
		relRow("200", "100", "has_ingredient", "RXNORM"),
		relRow("200", "100", "has_tradename", "SNOMEDCT_US"),
		relRow("200", "999", "has_ingredient", "RXNORM"),
		relRow("200", "100", "isa", "RXNORM"),
	})

	if _, err := NewRxNormLoader(deps).Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	rels, err := deps.DB.RelationshipsFrom("200")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 1 {
		t.Fatalf("got %d relationships, want 1", len(rels))
	}
	if rels[0].TargetCode != "100" || rels[0].Relationship != "has_ingredient" {
		t.Errorf("relationship = %+v", rels[0])
	}
}

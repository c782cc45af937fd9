package codes

import "testing"

func TestNormalizeDrugName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Metformin Hydrochloride 500 MG Oral Tablet", "metformin hydrochloride"},
		{"Lisinopril 10mg Tablets", "lisinopril"},
		{"ASPIRIN (acetylsalicylic acid)", "aspirin"},
		{"amoxicillin", "amoxicillin"},
		{"Insulin Glargine 100 UNT/ML Injectable Solution", "insulin glargine"},
	}
	for _, tt := range tests {
		if got := NormalizeDrugName(tt.in); got != tt.want {
			t.Errorf("NormalizeDrugName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDrugNameSymmetric(t *testing.T) {
	a := NormalizeDrugName("Metformin hydrochloride 500 MG Oral Tablet")
	b := NormalizeDrugName("METFORMIN HYDROCHLORIDE 500mg tablets")
	if a != b {
		t.Errorf("equivalent names normalize differently: %q vs %q", a, b)
	}
}

func TestUsableDrugName(t *testing.T) {
	if UsableDrugName("abc") {
		t.Error("3-character names are too short to match on")
	}
	if !UsableDrugName("aspirin") {
		t.Error("aspirin should be usable")
	}
}

// Package codes holds the per-vocabulary code formatting and normalization
// rules shared by loaders, mappers, and the conflict resolution engine.
package codes

import (
	"regexp"
	"strings"
)

// System tags one coding vocabulary. Values match the labels persisted on
// mapping conflicts.
type System string

const (
	Snomed System = "SNOMED"
	ICD10  System = "ICD-10"
	HCC    System = "HCC"
	CPT    System = "CPT"
	HCPCS  System = "HCPCS"
	RxNorm System = "RxNorm"
	NDC    System = "NDC"
)

// Systems lists every vocabulary in load order
var Systems = []System{Snomed, ICD10, HCC, CPT, HCPCS, RxNorm, NDC}

var (
	icd10Pattern = regexp.MustCompile(`^[A-Z]\d{2,}`)
	cptPattern   = regexp.MustCompile(`^\d{5}$`)
	hcpcsPattern = regexp.MustCompile(`^[A-V]\d{4}$`)
	semanticTag  = regexp.MustCompile(`\(([^)]+)\)\s*$`)
)

// ValidICD10Shape reports whether a raw order-file token looks like an
// ICD-10-CM code (letter followed by at least two digits). Lines failing
// this are treated as non-data, not errors.
func ValidICD10Shape(code string) bool {
	return icd10Pattern.MatchString(code)
}

// ValidCPT reports whether a token is a 5-digit CPT code
func ValidCPT(code string) bool {
	return cptPattern.MatchString(code)
}

// ValidHCPCS reports whether a token is a HCPCS Level II code (alpha + 4 digits)
func ValidHCPCS(code string) bool {
	return hcpcsPattern.MatchString(code)
}

// FormatICD10 formats an ICD-10-CM code with the decimal point after the
// third character: "E1165" -> "E11.65", "A000" -> "A00.0". Three-character
// category codes ("A00") are returned unchanged. Any existing decimal point
// is stripped first, so the function is idempotent.
func FormatICD10(code string) string {
	code = strings.ReplaceAll(strings.TrimSpace(code), ".", "")
	if len(code) > 3 {
		return code[:3] + "." + code[3:]
	}
	return code
}

// NormalizeNDC normalizes an NDC code to the 11-digit format: dashes and
// spaces removed, left-padded with zeros, truncated past 11 digits.
func NormalizeNDC(ndc string) string {
	if ndc == "" {
		return ""
	}
	ndc = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(ndc, "-", ""), " ", ""))
	if len(ndc) < 11 {
		ndc = strings.Repeat("0", 11-len(ndc)) + ndc
	} else if len(ndc) > 11 {
		ndc = ndc[:11]
	}
	return ndc
}

// FormatNDCDisplay renders an 11-digit NDC in 5-4-2 form for display
func FormatNDCDisplay(ndc string) string {
	if len(ndc) == 11 {
		return ndc[:5] + "-" + ndc[5:9] + "-" + ndc[9:]
	}
	return ndc
}

// SemanticTag extracts the trailing parenthetical from a SNOMED fully
// specified name, e.g. "Diabetes mellitus (disorder)" -> "disorder".
func SemanticTag(fsn string) string {
	m := semanticTag.FindStringSubmatch(fsn)
	if m == nil {
		return ""
	}
	return m[1]
}

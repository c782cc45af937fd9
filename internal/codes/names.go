package codes

import (
	"regexp"
	"strings"
)

// Tokens stripped from drug names before similarity matching. These carry
// formulation and packaging detail, not identity.
var drugStopwords = map[string]bool{
	"tablet": true, "tablets": true, "capsule": true, "capsules": true,
	"oral": true, "solution": true, "suspension": true, "injection": true,
	"injectable": true, "cream": true, "ointment": true, "gel": true,
	"spray": true, "syrup": true, "lotion": true, "patch": true,
	"film": true, "chewable": true, "extended": true, "delayed": true,
	"release": true, "pack": true, "kit": true, "box": true,
	"bottle": true, "vial": true, "syringe": true, "topical": true,
	"ophthalmic": true, "nasal": true, "product": true, "containing": true,
	"only": true, "precisely": true,
	"mg": true, "mcg": true, "ml": true, "unt": true, "meq": true,
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	dosageToken   = regexp.MustCompile(`^\d+(\.\d+)?(mg|mcg|ml|g|l|hr|unt|meq|%)?(/(mg|mcg|ml|g|l|hr|unt|meq))?$`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9 ]+`)
)

// NormalizeDrugName reduces a drug display name to its identity tokens:
// lower-cased, parentheticals and punctuation removed, dosage-strength and
// packaging tokens dropped, whitespace collapsed. Used by the name-match
// mapping builders on both sides of the comparison.
func NormalizeDrugName(name string) string {
	s := strings.ToLower(name)
	s = parenthetical.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if drugStopwords[f] || dosageToken.MatchString(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// UsableDrugName reports whether a normalized name is long enough to be a
// meaningful match key. Very short names collide constantly.
func UsableDrugName(normalized string) bool {
	return len(normalized) > 3
}

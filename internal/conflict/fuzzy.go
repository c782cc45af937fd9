package conflict

import (
	"sort"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// fuzzyCandidateCap bounds the whole-vocabulary fallback scan
const fuzzyCandidateCap = 100

// ICD10FuzzyMatcher repairs SNOMED to ICD-10 conflicts whose target is a
// near-miss of a real code. Cheap deterministic variants (decimal point
// shifted or missing, case) are checked first; only if none hit does it
// fall back to a bounded similarity search.
type ICD10FuzzyMatcher struct {
	opts Options
	// normalized (undotted, upper) form to canonical code
	normalized map[string]string
	// canonical codes grouped by 3-character category
	byPrefix map[string][]string
	// every canonical code, sorted, for the fallback scan
	all []string
}

// NewICD10FuzzyMatcher loads the ICD-10 code universe once at construction
func NewICD10FuzzyMatcher(opts Options) (*ICD10FuzzyMatcher, error) {
	codeSet, err := opts.DB.CodeSet(storage.TableICD10)
	if err != nil {
		return nil, err
	}

	m := &ICD10FuzzyMatcher{
		opts:       opts,
		normalized: make(map[string]string, len(codeSet)),
		byPrefix:   make(map[string][]string),
		all:        make([]string, 0, len(codeSet)),
	}
	for code := range codeSet {
		m.normalized[normalizeICD10(code)] = code
		if len(code) >= 3 {
			m.byPrefix[code[:3]] = append(m.byPrefix[code[:3]], code)
		}
		m.all = append(m.all, code)
	}
	sort.Strings(m.all)
	for _, group := range m.byPrefix {
		sort.Strings(group)
	}
	return m, nil
}

// Name implements Resolver
func (m *ICD10FuzzyMatcher) Name() string { return "icd10-fuzzy" }

// Attempt handles target_not_found conflicts aimed at ICD-10 only
func (m *ICD10FuzzyMatcher) Attempt(c *storage.Conflict) (Outcome, error) {
	if c.TargetSystem != string(codes.ICD10) || c.Reason != storage.ReasonTargetNotFound {
		return None, nil
	}
	target := strings.ToUpper(strings.TrimSpace(c.TargetCode))
	if target == "" {
		return None, nil
	}

	match := m.matchVariant(target)
	method := "variant"
	if match == "" {
		match = m.matchSimilar(target)
		method = "similarity"
	}
	if match == "" {
		return None, nil
	}

	if !m.opts.DryRun {
		if err := m.resolve(c, match, method); err != nil {
			return None, err
		}
	}
	m.opts.Logger.Debug("fuzzy matched conflict target", map[string]interface{}{
		"conflict": c.ID,
		"target":   c.TargetCode,
		"matched":  match,
		"method":   method,
	})
	return Resolved, nil
}

// matchVariant tries deterministic rewrites of the target: normalized
// (undotted) lookup covers decimal points missing, misplaced, or doubled.
func (m *ICD10FuzzyMatcher) matchVariant(target string) string {
	if code, ok := m.normalized[normalizeICD10(target)]; ok {
		return code
	}
	return ""
}

// matchSimilar scans a bounded candidate set for the highest-ratio code at
// or above the threshold. Candidates share the target's 3-character
// category and differ in length by at most 2; if the category has none,
// any code within length 1 is considered, capped.
func (m *ICD10FuzzyMatcher) matchSimilar(target string) string {
	var candidates []string
	if len(target) >= 3 {
		for _, code := range m.byPrefix[target[:3]] {
			if absInt(len(code)-len(target)) <= 2 {
				candidates = append(candidates, code)
			}
		}
	}
	if len(candidates) == 0 {
		for _, code := range m.all {
			if absInt(len(code)-len(target)) <= 1 {
				candidates = append(candidates, code)
				if len(candidates) >= fuzzyCandidateCap {
					break
				}
			}
		}
	}

	best := ""
	bestRatio := m.opts.FuzzyThreshold
	for _, code := range candidates {
		r := similarityRatio(target, code)
		if r > bestRatio || (r == bestRatio && best == "") {
			if r >= m.opts.FuzzyThreshold {
				best = code
				bestRatio = r
			}
		}
	}
	return best
}

// resolve writes the repaired edge and closes the conflict
func (m *ICD10FuzzyMatcher) resolve(c *storage.Conflict, match, method string) error {
	if c.SourceSystem == string(codes.Snomed) {
		err := m.opts.DB.InsertSnomedICD10(storage.SnomedICD10Map{
			SnomedCode: c.SourceCode,
			ICD10Code:  match,
			MapAdvice:  "AUTO-RESOLVED: fuzzy matched " + c.TargetCode + " to " + match,
			Active:     true,
		})
		if err != nil {
			return err
		}
	}
	return m.opts.DB.MarkConflictResolved(c.ID,
		"auto-resolved: fuzzy "+method+" match", match)
}

func normalizeICD10(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), ".", ""))
}

// similarityRatio is the classic 2*LCS/(len(a)+len(b)) measure, 1.0 for
// identical strings.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

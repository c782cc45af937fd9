package conflict

import (
	"regexp"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

var (
	allPlaceholder = regexp.MustCompile(`^X+$`)
	allZero        = regexp.MustCompile(`^0+$`)
	legalChars     = regexp.MustCompile(`^[A-Z0-9.]+$`)
)

// notACodeValues are literal sentinels publishers leave in mapping columns
var notACodeValues = map[string]bool{
	"": true, "N-A": true, "N/A": true, "NA": true,
	"NONE": true, "TBD": true, "UNKNOWN": true,
}

// InvalidCodeRejector closes conflicts whose target or source is not a
// real code: placeholder runs, all zeros, blank or sentinel values, or
// characters no coding system uses. These cannot be matched to anything
// and are noise.
type InvalidCodeRejector struct {
	opts Options
}

// NewInvalidCodeRejector creates the pattern-rejection strategy
func NewInvalidCodeRejector(opts Options) *InvalidCodeRejector {
	return &InvalidCodeRejector{opts: opts}
}

// Name implements Resolver
func (r *InvalidCodeRejector) Name() string { return "invalid-code" }

// invalidCodeReason reports why a code is not a real code, or "" if it
// passes every pattern check.
func invalidCodeReason(code string) string {
	switch {
	case notACodeValues[code]:
		return "a blank or sentinel value"
	case allPlaceholder.MatchString(code):
		return "a placeholder run of X characters"
	case allZero.MatchString(code):
		return "all zeros"
	case !legalChars.MatchString(code):
		return "made of characters no coding system uses"
	default:
		return ""
	}
}

// Attempt ignores the conflict when either endpoint matches an invalid
// pattern. The target is checked first, then the source.
func (r *InvalidCodeRejector) Attempt(c *storage.Conflict) (Outcome, error) {
	target := strings.ToUpper(strings.TrimSpace(c.TargetCode))
	source := strings.ToUpper(strings.TrimSpace(c.SourceCode))

	reason := ""
	if why := invalidCodeReason(target); why != "" {
		reason = "target is " + why
	} else if why := invalidCodeReason(source); why != "" {
		reason = "source is " + why
	}
	if reason == "" {
		return None, nil
	}

	if !r.opts.DryRun {
		if err := r.opts.DB.MarkConflictIgnored(c.ID, "auto-ignored: "+reason); err != nil {
			return None, err
		}
	}
	r.opts.Logger.Debug("ignored conflict with invalid code", map[string]interface{}{
		"conflict": c.ID,
		"source":   c.SourceCode,
		"target":   c.TargetCode,
		"reason":   reason,
	})
	return Ignored, nil
}

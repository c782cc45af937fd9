package conflict

import (
	"github.com/swapnilprakashpatil/codemx/internal/codes"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// PlaceholderCreator closes ICD-10 target_not_found conflicts by creating
// an inactive stub record for the missing code and writing the edge that
// referenced it. Opt-in: stubs pollute the vocabulary and are only wanted
// when downstream consumers need every mapping row represented.
type PlaceholderCreator struct {
	opts Options
}

// NewPlaceholderCreator creates the placeholder strategy
func NewPlaceholderCreator(opts Options) *PlaceholderCreator {
	return &PlaceholderCreator{opts: opts}
}

// Name implements Resolver
func (p *PlaceholderCreator) Name() string { return "icd10-placeholder" }

// Attempt handles what the earlier strategies left: a plausibly shaped
// ICD-10 target that simply is not in the published order file.
func (p *PlaceholderCreator) Attempt(c *storage.Conflict) (Outcome, error) {
	if c.TargetSystem != string(codes.ICD10) || c.Reason != storage.ReasonTargetNotFound {
		return None, nil
	}
	target := codes.FormatICD10(c.TargetCode)
	if !codes.ValidICD10Shape(target) {
		return None, nil
	}

	if !p.opts.DryRun {
		description := "Placeholder for unpublished code referenced by mappings"
		if err := p.opts.DB.InsertICD10Placeholder(target, description); err != nil {
			return None, err
		}
		if c.SourceSystem == string(codes.Snomed) {
			err := p.opts.DB.InsertSnomedICD10(storage.SnomedICD10Map{
				SnomedCode: c.SourceCode,
				ICD10Code:  target,
				MapAdvice:  "AUTO-RESOLVED: placeholder target created",
				Active:     true,
			})
			if err != nil {
				return None, err
			}
		}
		if err := p.opts.DB.MarkConflictResolved(c.ID,
			"auto-resolved: placeholder record created", target); err != nil {
			return None, err
		}
	}

	p.opts.Logger.Debug("created placeholder for missing target", map[string]interface{}{
		"conflict": c.ID,
		"target":   target,
	})
	return Resolved, nil
}

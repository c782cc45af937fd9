package mapper

import (
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// SnomedHCCBuilder derives SNOMED to HCC edges by joining the persisted
// SNOMED to ICD-10 edges against the ICD-10 to HCC edges. No source file
// is re-read; the join runs over the canonical store only.
type SnomedHCCBuilder struct {
	deps Deps
}

// NewSnomedHCCBuilder creates the transitive SNOMED to HCC builder
func NewSnomedHCCBuilder(deps Deps) *SnomedHCCBuilder {
	return &SnomedHCCBuilder{deps: deps}
}

// Name implements Builder
func (b *SnomedHCCBuilder) Name() string { return "snomed-hcc" }

// Build loads the ICD-10 to HCC edges as an in-memory index, then streams
// the SNOMED to ICD-10 edges through it. Each derived edge records the
// ICD-10 pivot code as provenance; (snomed, hcc) pairs reachable through
// several pivots keep the first one encountered.
func (b *SnomedHCCBuilder) Build() (int, error) {
	hccIndex, err := b.deps.DB.ICD10HCCIndex()
	if err != nil {
		return 0, err
	}
	if len(hccIndex) == 0 {
		b.deps.Logger.Warn("no ICD-10 to HCC edges, nothing to derive", map[string]interface{}{
			"builder": b.Name(),
		})
		return 0, nil
	}

	writer := b.deps.DB.NewSnomedHCCWriter(b.deps.Config.Pipeline.BatchSize)
	seen := make(map[string]struct{})
	count := 0

	err = b.deps.DB.ForEachSnomedICD10(func(snomedCode, icd10Code string) error {
		for _, hccCode := range hccIndex[icd10Code] {
			key := snomedCode + "|" + hccCode
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if err := writer.Add(storage.SnomedHCCMap{
				SnomedCode:   snomedCode,
				HCCCode:      hccCode,
				ViaICD10Code: icd10Code,
				Active:       true,
			}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return count, err
	}
	if err := writer.Flush(); err != nil {
		return count, err
	}

	b.deps.Logger.Info("derived SNOMED to HCC mapping", map[string]interface{}{
		"edges": count,
	})
	return count, nil
}

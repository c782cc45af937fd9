package mapper

import (
	"bufio"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// extendedMapRefset is the US ExtendedMap refset mapping SNOMED CT to
// ICD-10-CM.
const extendedMapRefset = "6011000124106"

// SnomedICD10Builder parses the ExtendedMap refset from the SNOMED release
// archive into snomed_icd10_mapping.
type SnomedICD10Builder struct {
	deps Deps
}

// NewSnomedICD10Builder creates the SNOMED to ICD-10 builder
func NewSnomedICD10Builder(deps Deps) *SnomedICD10Builder {
	return &SnomedICD10Builder{deps: deps}
}

// Name implements Builder
func (b *SnomedICD10Builder) Name() string { return "snomed-icd10" }

// Build streams the refset snapshot. The map target gets the same decimal
// formatting as loaded ICD-10 codes, so membership checks and edge writes
// agree. A row whose endpoint is missing yields a conflict, deduplicated
// within the run.
func (b *SnomedICD10Builder) Build() (int, error) {
	dir := b.deps.stagingDir("snomed")
	path, err := source.FindZip(dir, "snomedct")
	if err != nil {
		if skipMissingSource(b.deps.Logger, b.Name(), err) {
			return 0, nil
		}
		return 0, err
	}

	zr, err := source.OpenZip(path)
	if err != nil {
		if skipMissingSource(b.deps.Logger, b.Name(), err) {
			return 0, nil
		}
		return 0, err
	}
	defer zr.Close()

	entry := source.FindZipEntry(&zr.Reader, "extendedmap", "snapshot")
	if entry == nil {
		b.deps.Logger.Warn("ExtendedMap refset not found in release archive", map[string]interface{}{
			"builder": b.Name(),
		})
		return 0, nil
	}

	snomedSet, err := b.deps.DB.CodeSet(storage.TableSnomed)
	if err != nil {
		return 0, err
	}
	icd10Set, err := b.deps.DB.CodeSet(storage.TableICD10)
	if err != nil {
		return 0, err
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.SourceCorrupt, "cannot open "+entry.Name, err)
	}
	defer rc.Close()

	batch := b.deps.Config.Pipeline.BatchSize
	edges := b.deps.DB.NewSnomedICD10Writer(batch)
	conflicts := storage.NewConflictWriter(b.deps.DB, batch)
	seen := make(map[string]struct{})
	count := 0

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		// id, effectiveTime, active, moduleId, refsetId, referencedComponentId,
		// mapGroup, mapPriority, mapRule, mapAdvice, mapTarget, correlationId, mapCategoryId
		cols := strings.Split(scanner.Text(), "\t")
		if len(cols) < 13 || cols[2] != "1" || cols[4] != extendedMapRefset {
			continue
		}
		snomedCode := cols[5]
		rawTarget := strings.TrimSpace(cols[10])
		if rawTarget == "" {
			// Rule rows without a target code carry advice only
			continue
		}
		icd10Code := codes.FormatICD10(rawTarget)

		if _, ok := snomedSet[snomedCode]; !ok {
			if err := conflicts.Add(storage.Conflict{
				SourceSystem: string(codes.Snomed),
				TargetSystem: string(codes.ICD10),
				SourceCode:   snomedCode,
				TargetCode:   icd10Code,
				Reason:       storage.ReasonSourceNotFound,
				Details:      "refset references a SNOMED concept absent from the concept load",
			}); err != nil {
				return count, err
			}
			continue
		}
		if _, ok := icd10Set[icd10Code]; !ok {
			if err := conflicts.Add(storage.Conflict{
				SourceSystem: string(codes.Snomed),
				TargetSystem: string(codes.ICD10),
				SourceCode:   snomedCode,
				TargetCode:   icd10Code,
				Reason:       storage.ReasonTargetNotFound,
				Details:      "map target is not in the ICD-10-CM order file",
			}); err != nil {
				return count, err
			}
			continue
		}

		key := snomedCode + "|" + icd10Code
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		mapGroup, _ := strconv.Atoi(cols[6])
		mapPriority, _ := strconv.Atoi(cols[7])
		edge := storage.SnomedICD10Map{
			SnomedCode:    snomedCode,
			ICD10Code:     icd10Code,
			MapGroup:      mapGroup,
			MapPriority:   mapPriority,
			MapRule:       cols[8],
			MapAdvice:     cols[9],
			CorrelationID: cols[11],
			MapCategoryID: cols[12],
			Active:        true,
			EffectiveDate: cols[1],
		}
		if err := edges.Add(edge); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, apperrors.Wrap(apperrors.SourceCorrupt, "failed reading "+entry.Name, err)
	}

	if err := edges.Flush(); err != nil {
		return count, err
	}
	if err := conflicts.Flush(); err != nil {
		return count, err
	}

	b.deps.Logger.Info("built SNOMED to ICD-10 mapping", map[string]interface{}{
		"edges":     count,
		"conflicts": conflicts.Count(),
	})
	return count, nil
}

// skipMissingSource mirrors the loader policy: a missing or corrupt
// artifact downgrades to a warning.
func skipMissingSource(logger *logging.Logger, name string, err error) bool {
	var ce *apperrors.CodingError
	if stderrors.As(err, &ce) &&
		(ce.Code == apperrors.SourceMissing || ce.Code == apperrors.SourceCorrupt) {
		logger.Warn("source unavailable, skipping", map[string]interface{}{
			"builder": name,
			"reason":  ce.Message,
		})
		return true
	}
	return false
}

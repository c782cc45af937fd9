package mapper

import (
	"encoding/csv"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

var hccFileYear = regexp.MustCompile(`20\d{2}`)

// ICD10HCCBuilder parses the CMS risk-adjustment mappings CSV into
// icd10_hcc_mapping. The "Final" release is preferred over midyear files
// when both are staged.
type ICD10HCCBuilder struct {
	deps Deps
}

// NewICD10HCCBuilder creates the ICD-10 to HCC builder
func NewICD10HCCBuilder(deps Deps) *ICD10HCCBuilder {
	return &ICD10HCCBuilder{deps: deps}
}

// Name implements Builder
func (b *ICD10HCCBuilder) Name() string { return "icd10-hcc" }

// Build scans the CSV below its "Diagnosis" header row: column 0 is the
// undotted diagnosis code, column 6 the model category number.
func (b *ICD10HCCBuilder) Build() (int, error) {
	dir := b.deps.stagingDir("hcc")
	path, err := source.FindFile(dir, "final", "mappings", ".csv")
	if err != nil {
		path, err = source.FindFile(dir, "mappings", ".csv")
	}
	if err != nil {
		if skipMissingSource(b.deps.Logger, b.Name(), err) {
			return 0, nil
		}
		return 0, err
	}

	f, err := source.OpenFile(path)
	if err != nil {
		if skipMissingSource(b.deps.Logger, b.Name(), err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	icd10Set, err := b.deps.DB.CodeSet(storage.TableICD10)
	if err != nil {
		return 0, err
	}
	hccSet, err := b.deps.DB.CodeSet(storage.TableHCC)
	if err != nil {
		return 0, err
	}

	paymentYear := 0
	if m := hccFileYear.FindString(filepath.Base(path)); m != "" {
		paymentYear, _ = strconv.Atoi(m)
	}

	batch := b.deps.Config.Pipeline.BatchSize
	edges := b.deps.DB.NewICD10HCCWriter(batch)
	conflicts := storage.NewConflictWriter(b.deps.DB, batch)
	seen := make(map[string]struct{})
	count := 0

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	inData := false
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		if len(row) == 0 {
			continue
		}
		if !inData {
			if strings.Contains(row[0], "Diagnosis") {
				inData = true
			}
			continue
		}
		if len(row) < 7 {
			continue
		}

		rawDiag := strings.TrimSpace(row[0])
		if rawDiag == "" || !codes.ValidICD10Shape(rawDiag) {
			continue
		}
		icd10Code := codes.FormatICD10(rawDiag)

		n, convErr := strconv.Atoi(strings.TrimSpace(row[6]))
		if convErr != nil || n <= 0 {
			continue
		}
		hccCode := "HCC" + strconv.Itoa(n)

		if _, ok := icd10Set[icd10Code]; !ok {
			if err := conflicts.Add(storage.Conflict{
				SourceSystem: string(codes.ICD10),
				TargetSystem: string(codes.HCC),
				SourceCode:   icd10Code,
				TargetCode:   hccCode,
				Reason:       storage.ReasonSourceNotFound,
				Details:      "mapping diagnosis code is not in the ICD-10-CM order file",
			}); err != nil {
				return count, err
			}
			continue
		}
		if _, ok := hccSet[hccCode]; !ok {
			if err := conflicts.Add(storage.Conflict{
				SourceSystem: string(codes.ICD10),
				TargetSystem: string(codes.HCC),
				SourceCode:   icd10Code,
				TargetCode:   hccCode,
				Reason:       storage.ReasonTargetNotFound,
				Details:      "model category was not loaded as an HCC code",
			}); err != nil {
				return count, err
			}
			continue
		}

		key := icd10Code + "|" + hccCode
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if err := edges.Add(storage.ICD10HCCMap{
			ICD10Code:    icd10Code,
			HCCCode:      hccCode,
			PaymentYear:  paymentYear,
			ModelVersion: "V28",
			Active:       true,
		}); err != nil {
			return count, err
		}
		count++
	}

	if err := edges.Flush(); err != nil {
		return count, err
	}
	if err := conflicts.Flush(); err != nil {
		return count, err
	}

	b.deps.Logger.Info("built ICD-10 to HCC mapping", map[string]interface{}{
		"edges":     count,
		"conflicts": conflicts.Count(),
		"year":      paymentYear,
	})
	return count, nil
}

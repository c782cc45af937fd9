package loader

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// hccModelVersion is the CMS-HCC model the mappings CSV column belongs to
const hccModelVersion = "V28"

var hccYearPattern = regexp.MustCompile(`20\d{2}`)

// HCCLoader extracts the distinct HCC categories from the CMS
// ICD-10 to HCC mappings CSV.
type HCCLoader struct {
	deps Deps
}

// NewHCCLoader creates the HCC loader
func NewHCCLoader(deps Deps) *HCCLoader {
	return &HCCLoader{deps: deps}
}

// Name implements Loader
func (l *HCCLoader) Name() string { return "hcc" }

// Load scans the mappings CSV. The header row is located by searching for
// "Diagnosis" in the first column; column 6 carries the model category
// number, which becomes code HCC<N>.
func (l *HCCLoader) Load() (int, error) {
	dir := l.deps.stagingDir("hcc")
	path, err := source.FindFile(dir, "mappings", ".csv")
	if err != nil {
		if n, ok := skipMissing(l.deps.Logger, l.Name(), err); ok {
			return n, nil
		}
		return 0, err
	}

	f, err := source.OpenFile(path)
	if err != nil {
		if n, ok := skipMissing(l.deps.Logger, l.Name(), err); ok {
			return n, nil
		}
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	paymentYear := 0
	if m := hccYearPattern.FindString(filepath.Base(path)); m != "" {
		paymentYear, _ = strconv.Atoi(m)
	}

	categories := make(map[int]struct{})
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
		n, err := strconv.Atoi(strings.TrimSpace(row[6]))
		if err != nil || n <= 0 {
			continue
		}
		categories[n] = struct{}{}
	}

	ordered := make([]int, 0, len(categories))
	for n := range categories {
		ordered = append(ordered, n)
	}
	sort.Ints(ordered)

	writer := l.deps.DB.NewHCCWriter(l.deps.Config.Pipeline.BatchSize)
	for _, n := range ordered {
		rec := storage.HCCCode{
			Code:         fmt.Sprintf("HCC%d", n),
			Description:  fmt.Sprintf("Hierarchical Condition Category %d (%s)", n, hccModelVersion),
			Category:     strconv.Itoa(n),
			ModelVersion: hccModelVersion,
			PaymentYear:  paymentYear,
			Active:       true,
		}
		if err := writer.Add(rec); err != nil {
			return 0, err
		}
	}
	if err := writer.Flush(); err != nil {
		return 0, err
	}

	l.deps.Logger.Info("loaded HCC categories", map[string]interface{}{
		"file":  path,
		"count": len(ordered),
		"year":  paymentYear,
	})
	return len(ordered), nil
}

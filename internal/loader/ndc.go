package loader

import (
	"bufio"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// ndcColumnKeys maps logical fields to header substrings. The FDA renames
// header cells across releases (spacing, underscores, casing), so columns
// are located by normalized substring match rather than position.
var ndcColumnKeys = map[string]string{
	"product_ndc":        "productndc",
	"product_type":       "producttypename",
	"proprietary_name":   "proprietaryname",
	"nonproprietary":     "nonproprietaryname",
	"dosage_form":        "dosageformname",
	"route":              "routename",
	"substance":          "substancename",
	"strength_number":    "activenumeratorstrength",
	"strength_unit":      "activeingredunit",
	"marketing_category": "marketingcategoryname",
	"application_number": "applicationnumber",
	"labeler":            "labelername",
	"dea_schedule":       "deaschedule",
	"exclude_flag":       "excludeflag",
}

// NDCLoader parses the FDA NDC product file from the ndctext archive
type NDCLoader struct {
	deps Deps
}

// NewNDCLoader creates the NDC loader
func NewNDCLoader(deps Deps) *NDCLoader {
	return &NDCLoader{deps: deps}
}

// Name implements Loader
func (l *NDCLoader) Name() string { return "ndc" }

// Load reads product.txt. The header row is mapped dynamically; data rows
// shorter than the required column set are skipped, and per-row failures
// are logged up to a cap.
func (l *NDCLoader) Load() (int, error) {
	dir := l.deps.stagingDir("ndc")
	path, err := source.FindZip(dir, "ndctext")
	if err != nil {
		if n, ok := skipMissing(l.deps.Logger, l.Name(), err); ok {
			return n, nil
		}
		return 0, err
	}

	zr, err := source.OpenZip(path)
	if err != nil {
		if n, ok := skipMissing(l.deps.Logger, l.Name(), err); ok {
			return n, nil
		}
		return 0, err
	}
	defer zr.Close()

	entry := source.FindZipEntry(&zr.Reader, "product")
	if entry == nil {
		n, _ := skipMissing(l.deps.Logger, l.Name(),
			apperrors.New(apperrors.SourceCorrupt, "product file not found in ndctext archive"))
		return n, nil
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.SourceCorrupt, "cannot open "+entry.Name, err)
	}
	defer rc.Close()

	writer := l.deps.DB.NewNDCWriter(l.deps.Config.Pipeline.BatchSize)
	seen := make(map[string]struct{})
	count := 0
	rowErrors := 0
	errorCap := l.deps.Config.Pipeline.RowErrorLogCap

	var colIndex map[string]int

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := latin1String(scanner.Bytes())
		cols := strings.Split(line, "\t")

		if colIndex == nil {
			colIndex = mapNDCHeader(cols)
			if _, ok := colIndex["product_ndc"]; !ok {
				return 0, apperrors.New(apperrors.SourceCorrupt,
					"product file header is missing the product NDC column")
			}
			continue
		}

		rec, ok := l.parseNDCRow(cols, colIndex)
		if !ok {
			rowErrors++
			if rowErrors <= errorCap {
				l.deps.Logger.Debug("skipped malformed NDC row", map[string]interface{}{
					"columns": len(cols),
				})
			}
			continue
		}
		if _, dup := seen[rec.Code]; dup {
			continue
		}
		seen[rec.Code] = struct{}{}

		if err := writer.Add(rec); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, apperrors.Wrap(apperrors.SourceCorrupt, "failed reading "+entry.Name, err)
	}
	if err := writer.Flush(); err != nil {
		return count, err
	}

	l.deps.Logger.Info("loaded NDC products", map[string]interface{}{
		"file":       path,
		"count":      count,
		"row_errors": rowErrors,
	})
	return count, nil
}

// mapNDCHeader locates each logical field's column index by normalized
// substring match.
func mapNDCHeader(header []string) map[string]int {
	index := make(map[string]int)
	for i, cell := range header {
		normalized := normalizeHeaderCell(cell)
		for key, substr := range ndcColumnKeys {
			if _, taken := index[key]; taken {
				continue
			}
			if strings.Contains(normalized, substr) {
				index[key] = i
			}
		}
	}
	return index
}

// normalizeHeaderCell lowercases and strips everything but letters and digits
func normalizeHeaderCell(cell string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(cell) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (l *NDCLoader) parseNDCRow(cols []string, index map[string]int) (storage.NDCCode, bool) {
	get := func(key string) string {
		i, ok := index[key]
		if !ok || i >= len(cols) {
			return ""
		}
		return strings.TrimSpace(cols[i])
	}

	productNDC := get("product_ndc")
	if productNDC == "" {
		return storage.NDCCode{}, false
	}
	code := codes.NormalizeNDC(productNDC)

	strength := get("strength_number")
	if unit := get("strength_unit"); unit != "" && strength != "" {
		strength += " " + unit
	}

	return storage.NDCCode{
		Code:               code,
		DisplayCode:        codes.FormatNDCDisplay(code),
		ProductNDC:         productNDC,
		ProprietaryName:    get("proprietary_name"),
		NonProprietaryName: get("nonproprietary"),
		DosageForm:         get("dosage_form"),
		Route:              get("route"),
		SubstanceName:      get("substance"),
		Strength:           strength,
		ProductType:        get("product_type"),
		MarketingCategory:  get("marketing_category"),
		ApplicationNumber:  get("application_number"),
		LabelerName:        get("labeler"),
		DEASchedule:        get("dea_schedule"),
		Active:             get("exclude_flag") != "E",
	}, true
}

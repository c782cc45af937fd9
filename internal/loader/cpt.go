package loader

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// CPTLoader parses the CMS DHS Code List addendum. The addendum mixes
// 5-digit CPT codes and HCPCS Level II codes under all-caps category
// headers, so this loader feeds both tables.
type CPTLoader struct {
	deps Deps
}

// NewCPTLoader creates the CPT/DHS loader
func NewCPTLoader(deps Deps) *CPTLoader {
	return &CPTLoader{deps: deps}
}

// Name implements Loader
func (l *CPTLoader) Name() string { return "cpt" }

type dhsEnrichment struct {
	code     string
	category string
	isCPT    bool
}

// Load scans the addendum line by line. An all-caps line (no leading code
// token) sets the current DHS category; data lines are tab-split into
// code and description. Codes already present keep their descriptions and
// only gain the DHS category.
func (l *CPTLoader) Load() (int, error) {
	dir := l.deps.stagingDir("cpt")
	path, err := source.FindZip(dir, "dhs_code_list")
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

	entry := source.FindZipEntry(&zr.Reader, ".txt")
	if entry == nil {
		n, _ := skipMissing(l.deps.Logger, l.Name(),
			apperrors.New(apperrors.SourceCorrupt, "no text entry in DHS code list archive"))
		return n, nil
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.SourceCorrupt, "cannot open "+entry.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.SourceCorrupt, "cannot read "+entry.Name, err)
	}

	cptWriter := l.deps.DB.NewCPTWriter(l.deps.Config.Pipeline.BatchSize)
	hcpcsWriter := l.deps.DB.NewHCPCSWriter(l.deps.Config.Pipeline.BatchSize)

	currentCategory := ""
	count := 0
	var enrichments []dhsEnrichment

	scanner := bufio.NewScanner(strings.NewReader(latin1String(raw)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if isCategoryHeader(line) {
			currentCategory = strings.TrimSpace(line)
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		code := strings.TrimSpace(parts[0])
		description := ""
		if len(parts) > 1 {
			description = strings.TrimSpace(parts[1])
		}

		switch {
		case codes.ValidCPT(code):
			rec := storage.CPTCode{
				Code:            code,
				LongDescription: description,
				DHSCategory:     currentCategory,
				Active:          true,
			}
			if err := cptWriter.Add(rec); err != nil {
				return count, err
			}
			enrichments = append(enrichments, dhsEnrichment{code, currentCategory, true})
			count++
		case codes.ValidHCPCS(code):
			rec := storage.HCPCSCode{
				Code:            code,
				LongDescription: description,
				DHSCategory:     currentCategory,
				Active:          true,
			}
			if err := hcpcsWriter.Add(rec); err != nil {
				return count, err
			}
			enrichments = append(enrichments, dhsEnrichment{code, currentCategory, false})
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return count, apperrors.Wrap(apperrors.SourceCorrupt, "failed reading "+entry.Name, err)
	}

	if err := cptWriter.Flush(); err != nil {
		return count, err
	}
	if err := hcpcsWriter.Flush(); err != nil {
		return count, err
	}

	// INSERT OR IGNORE left pre-existing rows untouched; apply the DHS
	// category to those as well.
	for _, e := range enrichments {
		if e.category == "" {
			continue
		}
		if e.isCPT {
			err = l.deps.DB.SetCPTDHSCategory(e.code, e.category)
		} else {
			err = l.deps.DB.SetHCPCSDHSCategory(e.code, e.category)
		}
		if err != nil {
			return count, err
		}
	}

	l.deps.Logger.Info("loaded DHS code list", map[string]interface{}{
		"file":  path,
		"count": count,
	})
	return count, nil
}

// isCategoryHeader reports whether a line is a DHS category heading:
// letters all upper-case, at least one letter, and no leading code token.
func isCategoryHeader(line string) bool {
	if strings.Contains(line, "\t") {
		return false
	}
	first := strings.Fields(line)
	if len(first) > 0 && (codes.ValidCPT(first[0]) || codes.ValidHCPCS(first[0])) {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// Package validate runs pre-flight checks over staged source artifacts
// before the pipeline spends time parsing them.
package validate

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	"github.com/swapnilprakashpatil/codemx/internal/config"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/source"
)

// Result is the verdict for one source
type Result struct {
	System   string   `json:"system"`
	OK       bool     `json:"ok"`
	Messages []string `json:"messages,omitempty"`
}

// Deps carries what the validators need
type Deps struct {
	Sources config.SourceRegistry
	Staging string
	Logger  *logging.Logger
}

func (d Deps) stagingDir(key string) string {
	return d.Staging + "/" + d.Sources[key].Subdir
}

// RunAll validates every source and returns one result per vocabulary.
// A missing artifact is reported but is not fatal; the loaders skip
// missing sources the same way.
func RunAll(deps Deps) []Result {
	checks := []struct {
		system string
		fn     func(Deps) []string
	}{
		{"snomed", checkSnomed},
		{"icd10", checkICD10},
		{"hcc", checkHCC},
		{"cpt", checkCPT},
		{"hcpcs", checkHCPCS},
		{"rxnorm", checkRxNorm},
		{"ndc", checkNDC},
	}

	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		messages := c.fn(deps)
		r := Result{System: c.system, OK: len(messages) == 0, Messages: messages}
		if !r.OK {
			deps.Logger.Warn("source validation failed", map[string]interface{}{
				"system":   r.System,
				"messages": strings.Join(messages, "; "),
			})
		}
		results = append(results, r)
	}
	return results
}

// AllOK reports whether every result passed
func AllOK(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

func checkSnomed(deps Deps) []string {
	path, err := source.FindZip(deps.stagingDir("snomed"), "snomedct")
	if err != nil {
		return []string{err.Error()}
	}
	zr, err := source.OpenZip(path)
	if err != nil {
		return []string{err.Error()}
	}
	defer zr.Close()

	var messages []string
	if source.FindZipEntry(&zr.Reader, "snapshot", "sct2_concept") == nil {
		messages = append(messages, "concept snapshot missing from archive")
	}
	if source.FindZipEntry(&zr.Reader, "snapshot", "sct2_description", "-en") == nil {
		messages = append(messages, "English description snapshot missing from archive")
	}
	if source.FindZipEntry(&zr.Reader, "extendedmap", "snapshot") == nil {
		messages = append(messages, "ExtendedMap refset missing from archive")
	}
	return messages
}

func checkICD10(deps Deps) []string {
	path, err := source.FindFile(deps.stagingDir("icd10"), "order", ".txt")
	if err != nil {
		return []string{err.Error()}
	}
	f, err := source.OpenFile(path)
	if err != nil {
		return []string{err.Error()}
	}
	defer f.Close()

	// Spot-check: some early line must carry a code-shaped token at the
	// fixed offset.
	scanner := bufio.NewScanner(f)
	for i := 0; i < 50 && scanner.Scan(); i++ {
		line := scanner.Text()
		if len(line) > 14 && codes.ValidICD10Shape(strings.TrimSpace(line[6:14])) {
			return nil
		}
	}
	return []string{fmt.Sprintf("no code-shaped tokens in the first lines of %s", path)}
}

func checkHCC(deps Deps) []string {
	path, err := source.FindFile(deps.stagingDir("hcc"), "mappings", ".csv")
	if err != nil {
		return []string{err.Error()}
	}
	f, err := source.OpenFile(path)
	if err != nil {
		return []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	for i := 0; i < 50; i++ {
		row, err := reader.Read()
		if err != nil {
			break
		}
		if len(row) > 0 && strings.Contains(row[0], "Diagnosis") {
			return nil
		}
	}
	return []string{fmt.Sprintf("no Diagnosis header row found in %s", path)}
}

func checkCPT(deps Deps) []string {
	path, err := source.FindZip(deps.stagingDir("cpt"), "dhs_code_list")
	if err != nil {
		return []string{err.Error()}
	}
	zr, err := source.OpenZip(path)
	if err != nil {
		return []string{err.Error()}
	}
	defer zr.Close()

	if source.FindZipEntry(&zr.Reader, ".txt") == nil {
		return []string{"no text entry in DHS code list archive"}
	}
	return nil
}

func checkHCPCS(deps Deps) []string {
	path, err := source.FindFile(deps.stagingDir("hcpcs"), "anweb", ".txt")
	if err != nil {
		return []string{err.Error()}
	}
	f, err := source.OpenFile(path)
	if err != nil {
		return []string{err.Error()}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < 50 && scanner.Scan(); i++ {
		line := scanner.Text()
		if len(line) >= 5 && codes.ValidHCPCS(strings.TrimSpace(line[0:5])) {
			return nil
		}
	}
	return []string{fmt.Sprintf("no HCPCS-shaped codes in the first lines of %s", path)}
}

func checkRxNorm(deps Deps) []string {
	path, err := source.FindZip(deps.stagingDir("rxnorm"), "rxnorm_full")
	if err != nil {
		return []string{err.Error()}
	}
	zr, err := source.OpenZip(path)
	if err != nil {
		return []string{err.Error()}
	}
	defer zr.Close()

	var messages []string
	if source.FindZipEntry(&zr.Reader, "rxnconso.rrf") == nil {
		messages = append(messages, "RXNCONSO.RRF missing from archive")
	}
	entry := source.FindZipEntry(&zr.Reader, "rxnconso.rrf")
	if entry != nil {
		// Delimiter sniff on the first line
		rc, err := entry.Open()
		if err == nil {
			scanner := bufio.NewScanner(rc)
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			if scanner.Scan() && strings.Count(scanner.Text(), "|") < 10 {
				messages = append(messages, "RXNCONSO.RRF is not pipe-delimited")
			}
			rc.Close()
		}
	}
	return messages
}

func checkNDC(deps Deps) []string {
	path, err := source.FindZip(deps.stagingDir("ndc"), "ndctext")
	if err != nil {
		return []string{err.Error()}
	}
	zr, err := source.OpenZip(path)
	if err != nil {
		return []string{err.Error()}
	}
	defer zr.Close()

	entry := source.FindZipEntry(&zr.Reader, "product")
	if entry == nil {
		return []string{"product file missing from ndctext archive"}
	}
	rc, err := entry.Open()
	if err != nil {
		return []string{fmt.Sprintf("cannot open %s: %v", entry.Name, err)}
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if scanner.Scan() && !strings.Contains(strings.ToLower(scanner.Text()), "productndc") {
		return []string{"product file header is missing the product NDC column"}
	}
	return nil
}

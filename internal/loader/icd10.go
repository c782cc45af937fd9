package loader

import (
	"bufio"
	"fmt"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// Fixed column offsets of the CMS "order" file. The order number occupies
// bytes 0-5, then one space, then the layout below.
const (
	icd10CodeStart  = 6
	icd10CodeEnd    = 14
	icd10FlagStart  = 14
	icd10FlagEnd    = 16
	icd10ShortStart = 16
	icd10ShortEnd   = 77
	icd10LongStart  = 77
)

// ICD10Loader parses the ICD-10-CM code descriptions order file
type ICD10Loader struct {
	deps Deps
}

// NewICD10Loader creates the ICD-10-CM loader
func NewICD10Loader(deps Deps) *ICD10Loader {
	return &ICD10Loader{deps: deps}
}

// Name implements Loader
func (l *ICD10Loader) Name() string { return "icd10" }

// Load parses the order file. The flag column after the code is "1" when
// the code is valid for HIPAA submission and "0" for non-billable category
// headers; headers are kept so chapter navigation works, flagged is_header.
func (l *ICD10Loader) Load() (int, error) {
	dir := l.deps.stagingDir("icd10")
	path, err := source.FindFile(dir, "order", ".txt")
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

	writer := l.deps.DB.NewICD10Writer(l.deps.Config.Pipeline.BatchSize)
	seen := make(map[string]struct{})
	count := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		raw := field(line, icd10CodeStart, icd10CodeEnd)
		if raw == "" || !codes.ValidICD10Shape(raw) {
			// Preamble and malformed lines are not data
			continue
		}

		code := codes.FormatICD10(raw)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		flag := field(line, icd10FlagStart, icd10FlagEnd)
		short := field(line, icd10ShortStart, icd10ShortEnd)
		long := field(line, icd10LongStart, len(line))
		if long == "" {
			long = short
		}

		chapter := ""
		if ch := codes.ChapterFor(code); ch != nil {
			chapter = ch.Name
		}

		rec := storage.ICD10Code{
			Code:             code,
			Description:      long,
			ShortDescription: short,
			Category:         code[:3],
			Chapter:          chapter,
			IsHeader:         flag == "0",
			Active:           true,
		}
		if err := writer.Add(rec); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed reading %s: %w", path, err)
	}
	if err := writer.Flush(); err != nil {
		return count, err
	}

	l.deps.Logger.Info("loaded ICD-10-CM codes", map[string]interface{}{
		"file":  path,
		"count": count,
	})
	return count, nil
}

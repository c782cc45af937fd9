package loader

import (
	"bufio"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// ANWEB fixed-width layout
const (
	hcpcsCodeStart  = 0
	hcpcsCodeEnd    = 5
	hcpcsLongStart  = 11
	hcpcsLongEnd    = 82
	hcpcsShortStart = 82
	hcpcsShortEnd   = 110
)

// hcpcsCategories maps the leading letter of a HCPCS Level II code to its
// published section.
var hcpcsCategories = map[byte]string{
	'A': "Transportation, Medical Supplies",
	'B': "Enteral and Parenteral Therapy",
	'C': "Outpatient PPS",
	'D': "Dental Procedures",
	'E': "Durable Medical Equipment",
	'G': "Procedures and Professional Services",
	'H': "Alcohol and Drug Abuse Treatment",
	'J': "Drugs Administered Other Than Oral Method",
	'K': "DME MAC Temporary Codes",
	'L': "Orthotic and Prosthetic Procedures",
	'M': "Medical Services",
	'P': "Pathology and Laboratory Services",
	'Q': "Temporary Codes",
	'R': "Diagnostic Radiology Services",
	'S': "Private Payer Temporary Codes",
	'T': "State Medicaid Agency Codes",
	'U': "Coronavirus Lab Tests",
	'V': "Vision and Hearing Services",
}

// HCPCSLoader parses the CMS ANWEB alpha-numeric HCPCS file
type HCPCSLoader struct {
	deps Deps
}

// NewHCPCSLoader creates the HCPCS loader
func NewHCPCSLoader(deps Deps) *HCPCSLoader {
	return &HCPCSLoader{deps: deps}
}

// Name implements Loader
func (l *HCPCSLoader) Name() string { return "hcpcs" }

// Load parses the fixed-width file. Lines repeating the previous code are
// long-description continuations and are appended.
func (l *HCPCSLoader) Load() (int, error) {
	dir := l.deps.stagingDir("hcpcs")
	path, err := source.FindFile(dir, "anweb", ".txt")
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

	writer := l.deps.DB.NewHCPCSWriter(l.deps.Config.Pipeline.BatchSize)
	count := 0

	var current *storage.HCPCSCode
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := writer.Add(*current); err != nil {
			return err
		}
		count++
		current = nil
		return nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := latin1String(scanner.Bytes())
		code := field(line, hcpcsCodeStart, hcpcsCodeEnd)
		if !codes.ValidHCPCS(code) {
			continue
		}
		long := field(line, hcpcsLongStart, hcpcsLongEnd)
		short := field(line, hcpcsShortStart, hcpcsShortEnd)

		if current != nil && current.Code == code {
			// Continuation row: extend the long description
			if long != "" {
				current.LongDescription = strings.TrimSpace(current.LongDescription + " " + long)
			}
			if current.ShortDescription == "" {
				current.ShortDescription = short
			}
			continue
		}

		if err := flush(); err != nil {
			return count, err
		}
		current = &storage.HCPCSCode{
			Code:             code,
			ShortDescription: short,
			LongDescription:  long,
			Category:         hcpcsCategories[code[0]],
			Active:           true,
		}
	}
	if err := scanner.Err(); err != nil {
		return count, err
	}
	if err := flush(); err != nil {
		return count, err
	}
	if err := writer.Flush(); err != nil {
		return count, err
	}

	l.deps.Logger.Info("loaded HCPCS codes", map[string]interface{}{
		"file":  path,
		"count": count,
	})
	return count, nil
}

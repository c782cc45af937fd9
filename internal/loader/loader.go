// Package loader contains the per-vocabulary bulk file parsers. Each
// loader reads its published release artifact from staging and batch
// inserts canonical records.
package loader

import (
	stderrors "errors"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// Loader ingests one vocabulary. Load returns the number of records
// parsed and queued; rerunning against the same inputs is idempotent.
type Loader interface {
	Name() string
	Load() (int, error)
}

// Deps carries everything a loader needs
type Deps struct {
	DB      *storage.DB
	Config  *config.Config
	Sources config.SourceRegistry
	Staging string // staging root directory
	Logger  *logging.Logger
}

func (d Deps) stagingDir(sourceKey string) string {
	rule := d.Sources[sourceKey]
	return d.Staging + "/" + rule.Subdir
}

// All returns every loader in dependency order. SNOMED, ICD-10, and HCC
// feed the mapping builders; the rest are independent.
func All(deps Deps) []Loader {
	return []Loader{
		NewSnomedLoader(deps),
		NewICD10Loader(deps),
		NewHCCLoader(deps),
		NewCPTLoader(deps),
		NewHCPCSLoader(deps),
		NewRxNormLoader(deps),
		NewNDCLoader(deps),
	}
}

// skipMissing converts a missing or unreadable source into a warning and
// a zero count. An absent artifact is an expected condition, not a run
// failure.
func skipMissing(logger *logging.Logger, name string, err error) (int, bool) {
	var ce *apperrors.CodingError
	if stderrors.As(err, &ce) &&
		(ce.Code == apperrors.SourceMissing || ce.Code == apperrors.SourceCorrupt) {
		logger.Warn("source unavailable, skipping", map[string]interface{}{
			"loader": name,
			"reason": ce.Message,
		})
		return 0, true
	}
	return 0, false
}

// latin1String decodes ISO-8859-1 bytes. CMS publishes CPT and HCPCS
// artifacts in latin-1, and a byte-per-rune mapping is exact for it.
func latin1String(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// field extracts a trimmed fixed-width column, tolerating short lines
func field(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

// Package mapper builds the cross-vocabulary mapping tables from published
// mapping artifacts and from edges already persisted by earlier builders.
// Mapping rows that reference codes absent from the canonical store become
// conflicts instead of edges.
package mapper

import (
	"github.com/swapnilprakashpatil/codemx/internal/config"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// Builder derives one mapping table. Build returns the number of edges
// written; rerunning is idempotent.
type Builder interface {
	Name() string
	Build() (int, error)
}

// Deps carries everything a builder needs
type Deps struct {
	DB      *storage.DB
	Config  *config.Config
	Sources config.SourceRegistry
	Staging string
	Logger  *logging.Logger
}

func (d Deps) stagingDir(sourceKey string) string {
	rule := d.Sources[sourceKey]
	return d.Staging + "/" + rule.Subdir
}

// Direct returns the builders that parse published mapping artifacts
func Direct(deps Deps) []Builder {
	return []Builder{
		NewSnomedICD10Builder(deps),
		NewICD10HCCBuilder(deps),
		NewRxNormSnomedBuilder(deps),
	}
}

// Derived returns the builders that join or match already-loaded data
func Derived(deps Deps) []Builder {
	return []Builder{
		NewSnomedHCCBuilder(deps),
		NewNDCRxNormBuilder(deps),
	}
}

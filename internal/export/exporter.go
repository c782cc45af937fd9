// Package export writes a static JSON snapshot of the canonical store:
// paginated listing files per vocabulary, detail files for mapped codes,
// and a YAML manifest describing the snapshot.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/query"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// exportPageSize is the number of codes per listing page file
const exportPageSize = 500

// detailCap bounds how many per-code detail files one vocabulary emits
const detailCap = 10000

// Manifest describes a completed snapshot
type Manifest struct {
	GeneratedAt string                  `yaml:"generatedAt"`
	Version     string                  `yaml:"version"`
	Systems     map[string]SystemCounts `yaml:"systems"`
	Mappings    map[string]int          `yaml:"mappings"`
	Conflicts   int                     `yaml:"conflicts"`
}

// SystemCounts summarizes one vocabulary in the manifest
type SystemCounts struct {
	Records int `yaml:"records"`
	Pages   int `yaml:"pages"`
	Details int `yaml:"details"`
}

// Exporter writes snapshots
type Exporter struct {
	db     *storage.DB
	engine *query.Engine
	logger *logging.Logger
}

// NewExporter creates an exporter
func NewExporter(db *storage.DB, engine *query.Engine, logger *logging.Logger) *Exporter {
	return &Exporter{db: db, engine: engine, logger: logger}
}

// Run exports every vocabulary into outDir and writes manifest.yaml
func (e *Exporter) Run(outDir, appVersion string) (*Manifest, error) {
	manifest := &Manifest{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Version:     appVersion,
		Systems:     make(map[string]SystemCounts),
	}

	systems := []string{"snomed", "icd10", "hcc", "cpt", "hcpcs", "rxnorm", "ndc"}
	for _, system := range systems {
		counts, err := e.exportSystem(outDir, system)
		if err != nil {
			return nil, fmt.Errorf("export of %s failed: %w", system, err)
		}
		manifest.Systems[system] = counts
	}

	mappings, err := e.db.MappingCounts()
	if err != nil {
		return nil, err
	}
	manifest.Mappings = mappings

	if stats, err := e.db.GetConflictStats(); err == nil {
		manifest.Conflicts = stats.Total
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outDir, "manifest.yaml"), data, 0o644); err != nil {
		return nil, err
	}

	e.logger.Info("export complete", map[string]interface{}{
		"dir": outDir,
	})
	return manifest, nil
}

// exportSystem pages through one vocabulary, writing page-N.json files
// and per-code detail files for codes that carry mappings.
func (e *Exporter) exportSystem(outDir, system string) (SystemCounts, error) {
	dir := filepath.Join(outDir, system)
	if err := os.MkdirAll(filepath.Join(dir, "codes"), 0o755); err != nil {
		return SystemCounts{}, err
	}

	counts := SystemCounts{}
	for page := 1; ; page++ {
		items, total, err := e.engine.ListCodes(system, page, exportPageSize, "")
		if err != nil {
			return counts, err
		}
		counts.Records = total
		if len(items) == 0 {
			break
		}

		if err := writeJSONFile(filepath.Join(dir, fmt.Sprintf("page-%d.json", page)), map[string]interface{}{
			"system": system,
			"page":   page,
			"total":  total,
			"items":  items,
		}); err != nil {
			return counts, err
		}
		counts.Pages++

		for _, item := range items {
			if counts.Details >= detailCap {
				continue
			}
			detail, err := e.engine.GetCodeDetail(system, item.Code)
			if err != nil {
				continue
			}
			if len(detail.Mappings) == 0 {
				continue
			}
			name := filepath.Join(dir, "codes", sanitizeFileName(item.Code)+".json")
			if err := writeJSONFile(name, detail); err != nil {
				return counts, err
			}
			counts.Details++
		}

		if len(items) < exportPageSize {
			break
		}
	}
	return counts, nil
}

func writeJSONFile(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sanitizeFileName keeps code characters safe for the filesystem
func sanitizeFileName(code string) string {
	out := make([]rune, 0, len(code))
	for _, r := range code {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

package loader

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// SNOMED CT description type identifiers
const (
	snomedTypeFSN     = "900000000000003001"
	snomedTypeSynonym = "900000000000013009"
)

// SnomedLoader parses a SNOMED CT RF2 release archive
type SnomedLoader struct {
	deps Deps
}

// NewSnomedLoader creates the SNOMED CT loader
func NewSnomedLoader(deps Deps) *SnomedLoader {
	return &SnomedLoader{deps: deps}
}

// Name implements Loader
func (l *SnomedLoader) Name() string { return "snomed" }

type snomedConcept struct {
	moduleID      string
	effectiveDate string
	fsn           string
	synonym       string
}

// Load runs two passes over the release snapshot: pass 1 collects active
// concept ids with their module and effective time, pass 2 attaches English
// descriptions. The synonym is preferred for display; the FSN is kept in
// full and also supplies the semantic tag.
func (l *SnomedLoader) Load() (int, error) {
	dir := l.deps.stagingDir("snomed")
	path, err := source.FindZip(dir, "snomedct")
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

	concepts := make(map[string]*snomedConcept)

	if err := l.loadConcepts(&zr.Reader, concepts); err != nil {
		return 0, err
	}
	if err := l.loadDescriptions(&zr.Reader, concepts); err != nil {
		return 0, err
	}

	writer := l.deps.DB.NewSnomedWriter(l.deps.Config.Pipeline.BatchSize)
	count := 0
	for id, c := range concepts {
		description := c.synonym
		if description == "" {
			description = c.fsn
		}
		if description == "" {
			// Concept with no English description, nothing to show
			continue
		}
		rec := storage.SnomedCode{
			Code:               id,
			Description:        description,
			FullySpecifiedName: c.fsn,
			SemanticTag:        codes.SemanticTag(c.fsn),
			Active:             true,
			ModuleID:           c.moduleID,
			EffectiveDate:      c.effectiveDate,
		}
		if err := writer.Add(rec); err != nil {
			return count, err
		}
		count++
	}
	if err := writer.Flush(); err != nil {
		return count, err
	}

	l.deps.Logger.Info("loaded SNOMED CT concepts", map[string]interface{}{
		"file":  path,
		"count": count,
	})
	return count, nil
}

// loadConcepts reads the Concept snapshot and keeps active concepts only
func (l *SnomedLoader) loadConcepts(zr *zip.Reader, concepts map[string]*snomedConcept) error {
	entry := source.FindZipEntry(zr, "snapshot", "sct2_concept")
	if entry == nil {
		return apperrors.New(apperrors.SourceCorrupt, "concept snapshot not found in release archive")
	}
	return l.scanEntry(entry, func(cols []string) {
		// id, effectiveTime, active, moduleId, definitionStatusId
		if len(cols) < 5 || cols[2] != "1" {
			return
		}
		concepts[cols[0]] = &snomedConcept{
			moduleID:      cols[3],
			effectiveDate: cols[1],
		}
	})
}

// loadDescriptions reads the English description snapshot for active concepts
func (l *SnomedLoader) loadDescriptions(zr *zip.Reader, concepts map[string]*snomedConcept) error {
	entry := source.FindZipEntry(zr, "snapshot", "sct2_description", "-en")
	if entry == nil {
		return apperrors.New(apperrors.SourceCorrupt, "description snapshot not found in release archive")
	}
	return l.scanEntry(entry, func(cols []string) {
		// id, effectiveTime, active, moduleId, conceptId, languageCode, typeId, term, caseSignificanceId
		if len(cols) < 9 || cols[2] != "1" || cols[5] != "en" {
			return
		}
		c, ok := concepts[cols[4]]
		if !ok {
			return
		}
		switch cols[6] {
		case snomedTypeFSN:
			c.fsn = cols[7]
		case snomedTypeSynonym:
			if c.synonym == "" {
				c.synonym = cols[7]
			}
		}
	})
}

// scanEntry streams a tab-delimited RF2 file, skipping the header row
func (l *SnomedLoader) scanEntry(entry *zip.File, fn func(cols []string)) error {
	rc, err := entry.Open()
	if err != nil {
		return apperrors.Wrap(apperrors.SourceCorrupt, "cannot open "+entry.Name, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fn(strings.Split(scanner.Text(), "\t"))
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("failed reading %s: %w", entry.Name, err)
	}
	return nil
}

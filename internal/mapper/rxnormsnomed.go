package mapper

import (
	"bufio"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// snomedDrugTags are the SNOMED semantic tags in the drug domain, the only
// concepts the name matcher may pair with RxNorm.
var snomedDrugTags = []string{
	"substance", "product", "medicinal product",
	"medicinal product form", "clinical drug",
}

// rxnormNameTermTypes are the term types whose names are distinctive
// enough for name matching.
var rxnormNameTermTypes = []string{"IN", "PIN", "MIN", "BN"}

// RxNormSnomedBuilder maps RxNorm concepts to SNOMED drug concepts, first
// from the explicit SNOMEDCT_US cross-references in RXNCONSO, then by
// normalized name match for concepts the cross-references missed.
type RxNormSnomedBuilder struct {
	deps Deps
}

// NewRxNormSnomedBuilder creates the RxNorm to SNOMED builder
func NewRxNormSnomedBuilder(deps Deps) *RxNormSnomedBuilder {
	return &RxNormSnomedBuilder{deps: deps}
}

// Name implements Builder
func (b *RxNormSnomedBuilder) Name() string { return "rxnorm-snomed" }

// Build runs the cross-reference pass then the name-match pass. Both share
// one (rxnorm, snomed) seen-set so the supplement never duplicates an
// explicit edge.
func (b *RxNormSnomedBuilder) Build() (int, error) {
	rxSet, err := b.deps.DB.CodeSet(storage.TableRxNorm)
	if err != nil {
		return 0, err
	}
	snomedSet, err := b.deps.DB.CodeSet(storage.TableSnomed)
	if err != nil {
		return 0, err
	}

	writer := b.deps.DB.NewRxNormSnomedWriter(b.deps.Config.Pipeline.BatchSize)
	seen := make(map[string]struct{})

	explicit, err := b.buildCrossReferences(writer, seen, rxSet, snomedSet)
	if err != nil {
		return explicit, err
	}
	matched, err := b.buildNameMatches(writer, seen)
	if err != nil {
		return explicit + matched, err
	}
	if err := writer.Flush(); err != nil {
		return explicit + matched, err
	}

	b.deps.Logger.Info("built RxNorm to SNOMED mapping", map[string]interface{}{
		"cross_reference": explicit,
		"name_match":      matched,
	})
	return explicit + matched, nil
}

// buildCrossReferences scans RXNCONSO for SAB=SNOMEDCT_US rows, which pair
// an RXCUI with a SNOMED concept id in the SCUI column. Rows whose endpoint
// did not load are skipped; cross-references cover far more concepts than
// the key term types kept by the loader.
func (b *RxNormSnomedBuilder) buildCrossReferences(
	writer *storage.RxNormSnomedWriter,
	seen map[string]struct{},
	rxSet, snomedSet map[string]struct{},
) (int, error) {
	dir := b.deps.stagingDir("rxnorm")
	path, err := source.FindZip(dir, "rxnorm_full")
	if err != nil {
		if skipMissingSource(b.deps.Logger, b.Name(), err) {
			return 0, nil
		}
		return 0, err
	}

	zr, err := source.OpenZip(path)
	if err != nil {
		if skipMissingSource(b.deps.Logger, b.Name(), err) {
			return 0, nil
		}
		return 0, err
	}
	defer zr.Close()

	entry := source.FindZipEntry(&zr.Reader, "rxnconso.rrf")
	if entry == nil {
		b.deps.Logger.Warn("RXNCONSO.RRF not found, skipping cross-references", nil)
		return 0, nil
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.SourceCorrupt, "cannot open "+entry.Name, err)
	}
	defer rc.Close()

	count := 0
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		// RXCUI|LAT|TS|LUI|STT|SUI|ISPREF|RXAUI|SAUI|SCUI|SDUI|SAB|TTY|CODE|STR|SRL|SUPPRESS|CVF
		cols := strings.Split(scanner.Text(), "|")
		if len(cols) < 15 || cols[11] != "SNOMEDCT_US" {
			continue
		}
		rxcui, scui := cols[0], cols[9]
		if scui == "" {
			continue
		}
		if _, ok := rxSet[rxcui]; !ok {
			continue
		}
		if _, ok := snomedSet[scui]; !ok {
			continue
		}

		key := rxcui + "|" + scui
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if err := writer.Add(storage.RxNormSnomedMap{
			RxNormCode: rxcui,
			SnomedCode: scui,
			MatchType:  storage.MatchCrossReference,
			Active:     true,
		}); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, apperrors.Wrap(apperrors.SourceCorrupt, "failed reading "+entry.Name, err)
	}
	return count, nil
}

// buildNameMatches indexes SNOMED drug concepts by normalized name and
// probes it with RxNorm ingredient and brand names.
func (b *RxNormSnomedBuilder) buildNameMatches(
	writer *storage.RxNormSnomedWriter,
	seen map[string]struct{},
) (int, error) {
	snomedNames, err := b.deps.DB.ActiveSnomedDrugNames(snomedDrugTags)
	if err != nil {
		return 0, err
	}
	if len(snomedNames) == 0 {
		return 0, nil
	}

	index := make(map[string][]string, len(snomedNames))
	for _, cn := range snomedNames {
		norm := codes.NormalizeDrugName(cn.Name)
		if !codes.UsableDrugName(norm) {
			continue
		}
		index[norm] = append(index[norm], cn.Code)
	}

	rxNames, err := b.deps.DB.ActiveRxNormNames(rxnormNameTermTypes)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, cn := range rxNames {
		norm := codes.NormalizeDrugName(cn.Name)
		if !codes.UsableDrugName(norm) {
			continue
		}
		for _, snomedCode := range index[norm] {
			key := cn.Code + "|" + snomedCode
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if err := writer.Add(storage.RxNormSnomedMap{
				RxNormCode: cn.Code,
				SnomedCode: snomedCode,
				MatchType:  storage.MatchName,
				Active:     true,
			}); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

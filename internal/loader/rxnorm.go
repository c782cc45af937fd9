package loader

import (
	"archive/zip"
	"bufio"
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// rxnormKeyTermTypes are the RXNCONSO term types worth keeping: ingredients,
// brand names, and clinical/branded drug forms.
var rxnormKeyTermTypes = map[string]bool{
	"IN": true, "PIN": true, "MIN": true, "BN": true,
	"SCD": true, "SBD": true, "SCDC": true, "SBDC": true,
	"SCDF": true, "SBDF": true, "GPCK": true, "BPCK": true,
	"DF": true,
}

// rxnormWantedRelas are the RXNREL relationship attributes persisted for
// graph expansion.
var rxnormWantedRelas = map[string]bool{
	"has_ingredient": true, "ingredient_of": true,
	"has_tradename": true, "tradename_of": true,
	"has_dose_form": true, "dose_form_of": true,
	"consists_of": true, "constitutes": true,
}

// rxnormAttrMap maps RXNSAT attribute names onto rxnorm_codes columns
var rxnormAttrMap = map[string]string{
	"RXTERM_FORM":                 "rx_term_form",
	"AVAILABLE_STRENGTH":          "available_strength",
	"RXN_STRENGTH":                "strength",
	"RXN_BN_CARDINALITY":          "bn_cardinality",
	"RXN_QUANTITY":                "quantity",
	"RXN_QUALITATIVE_DISTINCTION": "qualitative_distinction",
}

// RxNormLoader parses the pipe-delimited RRF files in an RxNorm full
// release archive: RXNCONSO for concepts, RXNSAT for attribute
// enrichment, RXNREL for relationships.
type RxNormLoader struct {
	deps Deps
}

// NewRxNormLoader creates the RxNorm loader
func NewRxNormLoader(deps Deps) *RxNormLoader {
	return &RxNormLoader{deps: deps}
}

// Name implements Loader
func (l *RxNormLoader) Name() string { return "rxnorm" }

// Load ingests concepts, then enriches them with attributes, then records
// relationships whose endpoints both loaded.
func (l *RxNormLoader) Load() (int, error) {
	dir := l.deps.stagingDir("rxnorm")
	path, err := source.FindZip(dir, "rxnorm_full")
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

	loaded, count, err := l.loadConcepts(&zr.Reader)
	if err != nil {
		return count, err
	}
	if err := l.loadAttributes(&zr.Reader, loaded); err != nil {
		return count, err
	}
	relCount, err := l.loadRelationships(&zr.Reader, loaded)
	if err != nil {
		return count, err
	}

	l.deps.Logger.Info("loaded RxNorm concepts", map[string]interface{}{
		"file":          path,
		"count":         count,
		"relationships": relCount,
	})
	return count, nil
}

// loadConcepts reads RXNCONSO, keeping SAB=RXNORM rows with key term types.
// Returns the set of loaded RXCUIs for endpoint checks downstream.
func (l *RxNormLoader) loadConcepts(zr *zip.Reader) (map[string]struct{}, int, error) {
	entry := source.FindZipEntry(zr, "rxnconso.rrf")
	if entry == nil {
		return nil, 0, apperrors.New(apperrors.SourceCorrupt, "RXNCONSO.RRF not found in release archive")
	}

	writer := l.deps.DB.NewRxNormWriter(l.deps.Config.Pipeline.BatchSize)
	loaded := make(map[string]struct{})
	count := 0

	err := l.scanRRF(entry, func(cols []string) error {
		// RXCUI|LAT|TS|LUI|STT|SUI|ISPREF|RXAUI|SAUI|SCUI|SDUI|SAB|TTY|CODE|STR|SRL|SUPPRESS|CVF
		if len(cols) < 17 || cols[11] != "RXNORM" || !rxnormKeyTermTypes[cols[12]] {
			return nil
		}
		rxcui := cols[0]
		if _, dup := loaded[rxcui]; dup {
			return nil
		}
		loaded[rxcui] = struct{}{}
		rec := storage.RxNormCode{
			Code:     rxcui,
			Name:     cols[14],
			TermType: cols[12],
			Suppress: cols[16],
			// Only obsolete rows (SUPPRESS=O) count as inactive
			Active: cols[16] != "O",
		}
		count++
		return writer.Add(rec)
	})
	if err != nil {
		return nil, count, err
	}
	return loaded, count, writer.Flush()
}

// loadAttributes reads the RXNORM-asserted rows of RXNSAT and applies the
// allow-listed attributes.
// NDC values accumulate into a pipe-joined normalized list; the human/vet
// drug markers come from RXN_HUMAN_DRUG / RXN_VET_DRUG.
func (l *RxNormLoader) loadAttributes(zr *zip.Reader, loaded map[string]struct{}) error {
	entry := source.FindZipEntry(zr, "rxnsat.rrf")
	if entry == nil {
		// Attribute file is optional enrichment
		l.deps.Logger.Warn("RXNSAT.RRF not found, skipping attribute enrichment", nil)
		return nil
	}

	type attrs struct {
		cols map[string]interface{}
		ndcs []string
	}
	pending := make(map[string]*attrs)
	get := func(rxcui string) *attrs {
		a, ok := pending[rxcui]
		if !ok {
			a = &attrs{cols: make(map[string]interface{})}
			pending[rxcui] = a
		}
		return a
	}

	err := l.scanRRF(entry, func(cols []string) error {
		// RXCUI|LUI|SUI|RXAUI|STYPE|CODE|ATUI|SATUI|ATN|SAB|ATV|SUPPRESS|CVF
		if len(cols) < 11 || cols[9] != "RXNORM" {
			return nil
		}
		rxcui, atn, atv := cols[0], cols[8], cols[10]
		if _, ok := loaded[rxcui]; !ok {
			return nil
		}
		switch atn {
		case "NDC":
			ndc := codes.NormalizeNDC(atv)
			if ndc != "" {
				get(rxcui).ndcs = append(get(rxcui).ndcs, ndc)
			}
		case "RXN_HUMAN_DRUG":
			get(rxcui).cols["human_drug"] = 1
		case "RXN_VET_DRUG":
			get(rxcui).cols["vet_drug"] = 1
		default:
			if col, ok := rxnormAttrMap[atn]; ok && atv != "" {
				get(rxcui).cols[col] = atv
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for rxcui, a := range pending {
		if len(a.ndcs) > 0 {
			a.cols["ndc_codes"] = strings.Join(dedupStrings(a.ndcs), "|")
		}
		if err := l.deps.DB.UpdateRxNormAttributes(rxcui, a.cols); err != nil {
			return err
		}
	}
	return nil
}

// loadRelationships reads RXNREL, keeping RXNORM-asserted rows with wanted
// relas between loaded concepts. Edges are stored (RXCUI1, RXCUI2).
func (l *RxNormLoader) loadRelationships(zr *zip.Reader, loaded map[string]struct{}) (int, error) {
	entry := source.FindZipEntry(zr, "rxnrel.rrf")
	if entry == nil {
		l.deps.Logger.Warn("RXNREL.RRF not found, skipping relationships", nil)
		return 0, nil
	}

	writer := l.deps.DB.NewRxNormRelWriter(l.deps.Config.Pipeline.BatchSize)
	count := 0
	err := l.scanRRF(entry, func(cols []string) error {
		// RXCUI1|RXAUI1|STYPE1|REL|RXCUI2|RXAUI2|STYPE2|RELA|RUI|SRUI|SAB|SL|DIR|RG|SUPPRESS|CVF
		if len(cols) < 11 || cols[10] != "RXNORM" || !rxnormWantedRelas[cols[7]] {
			return nil
		}
		src, dst := cols[0], cols[4]
		if _, ok := loaded[src]; !ok {
			return nil
		}
		if _, ok := loaded[dst]; !ok {
			return nil
		}
		count++
		return writer.Add(storage.RxNormRelationship{
			SourceCode:   src,
			TargetCode:   dst,
			Relationship: cols[7],
		})
	})
	if err != nil {
		return count, err
	}
	return count, writer.Flush()
}

// scanRRF streams a pipe-delimited RRF file. RRF has no header row.
func (l *RxNormLoader) scanRRF(entry *zip.File, fn func(cols []string) error) error {
	rc, err := entry.Open()
	if err != nil {
		return apperrors.Wrap(apperrors.SourceCorrupt, "cannot open "+entry.Name, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := fn(strings.Split(scanner.Text(), "|")); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

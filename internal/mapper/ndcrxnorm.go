package mapper

import (
	"strings"

	"github.com/swapnilprakashpatil/codemx/internal/codes"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// NDCRxNormBuilder maps NDC packages to RxNorm concepts. The primary pass
// expands the pipe-joined NDC lists the RxNorm loader captured from
// RXNSAT; the supplement pass matches on normalized drug names.
type NDCRxNormBuilder struct {
	deps Deps
}

// NewNDCRxNormBuilder creates the NDC to RxNorm builder
func NewNDCRxNormBuilder(deps Deps) *NDCRxNormBuilder {
	return &NDCRxNormBuilder{deps: deps}
}

// Name implements Builder
func (b *NDCRxNormBuilder) Name() string { return "ndc-rxnorm" }

// Build runs both passes over the canonical store; no source file is read
func (b *NDCRxNormBuilder) Build() (int, error) {
	ndcSet, err := b.deps.DB.CodeSet(storage.TableNDC)
	if err != nil {
		return 0, err
	}
	if len(ndcSet) == 0 {
		b.deps.Logger.Warn("no NDC codes loaded, nothing to map", map[string]interface{}{
			"builder": b.Name(),
		})
		return 0, nil
	}

	writer := b.deps.DB.NewNDCRxNormWriter(b.deps.Config.Pipeline.BatchSize)
	seen := make(map[string]struct{})

	fromLists, err := b.buildFromNDCLists(writer, seen, ndcSet)
	if err != nil {
		return fromLists, err
	}
	matched, err := b.buildNameMatches(writer, seen)
	if err != nil {
		return fromLists + matched, err
	}
	if err := writer.Flush(); err != nil {
		return fromLists + matched, err
	}

	b.deps.Logger.Info("built NDC to RxNorm mapping", map[string]interface{}{
		"from_ndc_lists": fromLists,
		"name_match":     matched,
	})
	return fromLists + matched, nil
}

// buildFromNDCLists splits each concept's NDC list, normalizes every entry
// to 11 digits, and writes an edge for entries present in the NDC load.
func (b *NDCRxNormBuilder) buildFromNDCLists(
	writer *storage.NDCRxNormWriter,
	seen map[string]struct{},
	ndcSet map[string]struct{},
) (int, error) {
	count := 0
	err := b.deps.DB.RxNormNDCLists(func(rxnormCode, ndcList string) error {
		for _, raw := range strings.Split(ndcList, "|") {
			ndc := codes.NormalizeNDC(raw)
			if ndc == "" {
				continue
			}
			if _, ok := ndcSet[ndc]; !ok {
				continue
			}
			key := ndc + "|" + rxnormCode
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if err := writer.Add(storage.NDCRxNormMap{
				NDCCode:    ndc,
				RxNormCode: rxnormCode,
				MatchType:  storage.MatchNDCList,
				Active:     true,
			}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// buildNameMatches indexes RxNorm names and probes with both NDC name
// fields. Proprietary and non-proprietary names are tried independently.
func (b *NDCRxNormBuilder) buildNameMatches(
	writer *storage.NDCRxNormWriter,
	seen map[string]struct{},
) (int, error) {
	rxNames, err := b.deps.DB.ActiveRxNormNames(rxnormNameTermTypes)
	if err != nil {
		return 0, err
	}
	if len(rxNames) == 0 {
		return 0, nil
	}

	index := make(map[string][]string, len(rxNames))
	for _, cn := range rxNames {
		norm := codes.NormalizeDrugName(cn.Name)
		if !codes.UsableDrugName(norm) {
			continue
		}
		index[norm] = append(index[norm], cn.Code)
	}

	ndcNames, err := b.deps.DB.NDCNames()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, n := range ndcNames {
		for _, name := range []string{n.ProprietaryName, n.NonProprietaryName} {
			norm := codes.NormalizeDrugName(name)
			if !codes.UsableDrugName(norm) {
				continue
			}
			for _, rxnormCode := range index[norm] {
				key := n.Code + "|" + rxnormCode
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if err := writer.Add(storage.NDCRxNormMap{
					NDCCode:    n.Code,
					RxNormCode: rxnormCode,
					MatchType:  storage.MatchName,
					Active:     true,
				}); err != nil {
					return count, err
				}
				count++
			}
		}
	}
	return count, nil
}

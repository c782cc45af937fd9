// Package query is the read side: paginated code listings, per-code
// detail with attached mappings, directional lookups, and the bounded
// mapping graph.
package query

import (
	"github.com/swapnilprakashpatil/codemx/internal/config"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// systemTables routes URL system keys to vocabulary tables
var systemTables = map[string]string{
	"snomed": storage.TableSnomed,
	"icd10":  storage.TableICD10,
	"hcc":    storage.TableHCC,
	"cpt":    storage.TableCPT,
	"hcpcs":  storage.TableHCPCS,
	"rxnorm": storage.TableRxNorm,
	"ndc":    storage.TableNDC,
}

// Engine answers lookups against the canonical store
type Engine struct {
	db    *storage.DB
	graph config.GraphConfig
}

// NewEngine creates a query engine
func NewEngine(db *storage.DB, graph config.GraphConfig) *Engine {
	return &Engine{db: db, graph: graph}
}

// MappedCode is one resolved mapping target
type MappedCode struct {
	System      string                 `json:"system"`
	Code        string                 `json:"code"`
	Description string                 `json:"description,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

// CodeDetail is a record with its attached mappings
type CodeDetail struct {
	System   string                  `json:"system"`
	Record   interface{}             `json:"record"`
	Mappings map[string][]MappedCode `json:"mappings,omitempty"`
}

// ListCodes returns one page of a vocabulary
func (e *Engine) ListCodes(system string, page, perPage int, search string) ([]storage.CodeSummary, int, error) {
	table, ok := systemTables[system]
	if !ok {
		return nil, 0, apperrors.Newf(apperrors.CodeNotFound, "unknown vocabulary: %s", system)
	}
	return e.db.ListCodes(table, page, perPage, search)
}

// GetCodeDetail fetches a record and resolves its mapping edges to target
// records.
func (e *Engine) GetCodeDetail(system, code string) (*CodeDetail, error) {
	detail := &CodeDetail{System: system, Mappings: make(map[string][]MappedCode)}

	switch system {
	case "snomed":
		rec, err := e.db.GetSnomed(code)
		if err != nil {
			return nil, err
		}
		detail.Record = rec
		icd10, err := e.SnomedToICD10(code)
		if err != nil {
			return nil, err
		}
		if len(icd10) > 0 {
			detail.Mappings["icd10"] = icd10
		}
		hcc, err := e.SnomedToHCC(code)
		if err != nil {
			return nil, err
		}
		if len(hcc) > 0 {
			detail.Mappings["hcc"] = hcc
		}

	case "icd10":
		rec, err := e.db.GetICD10(code)
		if err != nil {
			return nil, err
		}
		detail.Record = rec
		hcc, err := e.ICD10ToHCC(code)
		if err != nil {
			return nil, err
		}
		if len(hcc) > 0 {
			detail.Mappings["hcc"] = hcc
		}
		snomed, err := e.ICD10ToSnomed(code)
		if err != nil {
			return nil, err
		}
		if len(snomed) > 0 {
			detail.Mappings["snomed"] = snomed
		}

	case "hcc":
		rec, err := e.db.GetHCC(code)
		if err != nil {
			return nil, err
		}
		detail.Record = rec
		icd10, err := e.HCCToICD10(code)
		if err != nil {
			return nil, err
		}
		if len(icd10) > 0 {
			detail.Mappings["icd10"] = icd10
		}

	case "cpt":
		rec, err := e.db.GetCPT(code)
		if err != nil {
			return nil, err
		}
		detail.Record = rec

	case "hcpcs":
		rec, err := e.db.GetHCPCS(code)
		if err != nil {
			return nil, err
		}
		detail.Record = rec

	case "rxnorm":
		rec, err := e.db.GetRxNorm(code)
		if err != nil {
			return nil, err
		}
		detail.Record = rec
		snomed, err := e.RxNormToSnomed(code)
		if err != nil {
			return nil, err
		}
		if len(snomed) > 0 {
			detail.Mappings["snomed"] = snomed
		}
		ndc, err := e.RxNormToNDC(code)
		if err != nil {
			return nil, err
		}
		if len(ndc) > 0 {
			detail.Mappings["ndc"] = ndc
		}
		rels, err := e.Relationships(code)
		if err != nil {
			return nil, err
		}
		if len(rels) > 0 {
			detail.Mappings["related"] = rels
		}

	case "ndc":
		rec, err := e.db.GetNDC(code)
		if err != nil {
			return nil, err
		}
		detail.Record = rec
		rxnorm, err := e.NDCToRxNorm(code)
		if err != nil {
			return nil, err
		}
		if len(rxnorm) > 0 {
			detail.Mappings["rxnorm"] = rxnorm
		}

	default:
		return nil, apperrors.Newf(apperrors.CodeNotFound, "unknown vocabulary: %s", system)
	}

	return detail, nil
}

// SnomedToICD10 resolves a SNOMED code's ICD-10 edges
func (e *Engine) SnomedToICD10(code string) ([]MappedCode, error) {
	edges, err := e.db.ICD10ForSnomed(code)
	if err != nil {
		return nil, err
	}
	out := make([]MappedCode, 0, len(edges))
	for _, edge := range edges {
		m := MappedCode{
			System:      "icd10",
			Code:        edge.ICD10Code,
			Description: e.icd10Label(edge.ICD10Code),
			Attributes: map[string]interface{}{
				"mapGroup":    edge.MapGroup,
				"mapPriority": edge.MapPriority,
			},
		}
		if edge.MapAdvice != "" {
			m.Attributes["mapAdvice"] = edge.MapAdvice
		}
		if edge.MapRule != "" {
			m.Attributes["mapRule"] = edge.MapRule
		}
		out = append(out, m)
	}
	return out, nil
}

// SnomedToHCC resolves a SNOMED code's derived HCC edges
func (e *Engine) SnomedToHCC(code string) ([]MappedCode, error) {
	edges, err := e.db.HCCForSnomed(code)
	if err != nil {
		return nil, err
	}
	out := make([]MappedCode, 0, len(edges))
	for _, edge := range edges {
		out = append(out, MappedCode{
			System:      "hcc",
			Code:        edge.HCCCode,
			Description: e.hccLabel(edge.HCCCode),
			Attributes:  map[string]interface{}{"viaIcd10": edge.ViaICD10Code},
		})
	}
	return out, nil
}

// ICD10ToHCC resolves an ICD-10 code's HCC edges
func (e *Engine) ICD10ToHCC(code string) ([]MappedCode, error) {
	edges, err := e.db.HCCForICD10(code)
	if err != nil {
		return nil, err
	}
	out := make([]MappedCode, 0, len(edges))
	for _, edge := range edges {
		m := MappedCode{
			System:      "hcc",
			Code:        edge.HCCCode,
			Description: e.hccLabel(edge.HCCCode),
		}
		if edge.ModelVersion != "" {
			m.Attributes = map[string]interface{}{
				"modelVersion": edge.ModelVersion,
				"paymentYear":  edge.PaymentYear,
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// ICD10ToSnomed resolves reverse SNOMED edges, capped by config
func (e *Engine) ICD10ToSnomed(code string) ([]MappedCode, error) {
	edges, err := e.db.SnomedForICD10(code, e.graph.ReverseFanOut)
	if err != nil {
		return nil, err
	}
	out := make([]MappedCode, 0, len(edges))
	for _, edge := range edges {
		out = append(out, MappedCode{
			System:      "snomed",
			Code:        edge.SnomedCode,
			Description: e.snomedLabel(edge.SnomedCode),
		})
	}
	return out, nil
}

// HCCToICD10 resolves reverse ICD-10 edges, capped by config
func (e *Engine) HCCToICD10(code string) ([]MappedCode, error) {
	edges, err := e.db.ICD10ForHCC(code, e.graph.ReverseFanOut)
	if err != nil {
		return nil, err
	}
	out := make([]MappedCode, 0, len(edges))
	for _, edge := range edges {
		out = append(out, MappedCode{
			System:      "icd10",
			Code:        edge.ICD10Code,
			Description: e.icd10Label(edge.ICD10Code),
		})
	}
	return out, nil
}

// RxNormToSnomed resolves an RxNorm concept's SNOMED edges
func (e *Engine) RxNormToSnomed(code string) ([]MappedCode, error) {
	edges, err := e.db.SnomedForRxNorm(code)
	if err != nil {
		return nil, err
	}
	out := make([]MappedCode, 0, len(edges))
	for _, edge := range edges {
		out = append(out, MappedCode{
			System:      "snomed",
			Code:        edge.SnomedCode,
			Description: e.snomedLabel(edge.SnomedCode),
			Attributes:  map[string]interface{}{"matchType": edge.MatchType},
		})
	}
	return out, nil
}

// NDCToRxNorm resolves an NDC package's RxNorm edges
func (e *Engine) NDCToRxNorm(code string) ([]MappedCode, error) {
	edges, err := e.db.RxNormForNDC(code)
	if err != nil {
		return nil, err
	}
	out := make([]MappedCode, 0, len(edges))
	for _, edge := range edges {
		out = append(out, MappedCode{
			System:      "rxnorm",
			Code:        edge.RxNormCode,
			Description: e.rxnormLabel(edge.RxNormCode),
			Attributes:  map[string]interface{}{"matchType": edge.MatchType},
		})
	}
	return out, nil
}

// RxNormToNDC resolves reverse NDC edges, capped by config
func (e *Engine) RxNormToNDC(code string) ([]MappedCode, error) {
	edges, err := e.db.NDCForRxNorm(code, e.graph.NDCFanOut)
	if err != nil {
		return nil, err
	}
	out := make([]MappedCode, 0, len(edges))
	for _, edge := range edges {
		out = append(out, MappedCode{
			System:      "ndc",
			Code:        edge.NDCCode,
			Description: e.ndcLabel(edge.NDCCode),
			Attributes:  map[string]interface{}{"matchType": edge.MatchType},
		})
	}
	return out, nil
}

// Relationships expands an RxNorm concept's intra-vocabulary links:
// outbound fully, inbound capped by the reverse fan-out.
func (e *Engine) Relationships(code string) ([]MappedCode, error) {
	outbound, err := e.db.RelationshipsFrom(code)
	if err != nil {
		return nil, err
	}
	inbound, err := e.db.RelationshipsTo(code, e.graph.ReverseFanOut)
	if err != nil {
		return nil, err
	}

	out := make([]MappedCode, 0, len(outbound)+len(inbound))
	for _, rel := range outbound {
		out = append(out, MappedCode{
			System:      "rxnorm",
			Code:        rel.TargetCode,
			Description: e.rxnormLabel(rel.TargetCode),
			Attributes:  map[string]interface{}{"relationship": rel.Relationship},
		})
	}
	for _, rel := range inbound {
		if rel.SourceCode == code {
			continue
		}
		out = append(out, MappedCode{
			System:      "rxnorm",
			Code:        rel.SourceCode,
			Description: e.rxnormLabel(rel.SourceCode),
			Attributes: map[string]interface{}{
				"relationship": rel.Relationship,
				"direction":    "inbound",
			},
		})
	}
	return out, nil
}

// Label helpers swallow lookup misses; a mapping row can outlive its
// target record and the edge is still worth returning.

func (e *Engine) snomedLabel(code string) string {
	if rec, err := e.db.GetSnomed(code); err == nil {
		return rec.Description
	}
	return ""
}

func (e *Engine) icd10Label(code string) string {
	if rec, err := e.db.GetICD10(code); err == nil {
		return rec.Description
	}
	return ""
}

func (e *Engine) hccLabel(code string) string {
	if rec, err := e.db.GetHCC(code); err == nil {
		return rec.Description
	}
	return ""
}

func (e *Engine) rxnormLabel(code string) string {
	if rec, err := e.db.GetRxNorm(code); err == nil {
		return rec.Name
	}
	return ""
}

func (e *Engine) ndcLabel(code string) string {
	if rec, err := e.db.GetNDC(code); err == nil {
		if rec.ProprietaryName != "" {
			return rec.ProprietaryName
		}
		return rec.NonProprietaryName
	}
	return ""
}

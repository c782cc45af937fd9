package query

import (
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
)

// GraphNode is one code in the mapping graph
type GraphNode struct {
	System string `json:"system"`
	Code   string `json:"code"`
	Label  string `json:"label,omitempty"`
}

// GraphEdge links two nodes with a typed relation
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Graph is the bounded neighborhood of one code
type Graph struct {
	Root  GraphNode   `json:"root"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// graphBuilder accumulates nodes and edges without duplicates
type graphBuilder struct {
	graph Graph
	seen  map[string]struct{}
}

func newGraphBuilder(root GraphNode) *graphBuilder {
	b := &graphBuilder{seen: make(map[string]struct{})}
	b.graph.Root = root
	b.addNode(root)
	return b
}

func nodeKey(system, code string) string { return system + ":" + code }

func (b *graphBuilder) addNode(n GraphNode) {
	key := nodeKey(n.System, n.Code)
	if _, ok := b.seen[key]; ok {
		return
	}
	b.seen[key] = struct{}{}
	b.graph.Nodes = append(b.graph.Nodes, n)
}

func (b *graphBuilder) addEdge(from GraphNode, to GraphNode, edgeType string) {
	b.addNode(to)
	b.graph.Edges = append(b.graph.Edges, GraphEdge{
		From: nodeKey(from.System, from.Code),
		To:   nodeKey(to.System, to.Code),
		Type: edgeType,
	})
}

// BuildGraph finds the code's vocabulary and expands its mapping
// neighborhood with per-edge-type fan-out caps. Expansion is two hops at
// most: clinical codes walk SNOMED -> ICD-10 -> HCC, drug codes walk
// NDC -> RxNorm -> SNOMED.
func (e *Engine) BuildGraph(code string) (*Graph, error) {
	root, ok := e.detectRoot(code)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "code %s not found in any vocabulary", code)
	}

	b := newGraphBuilder(root)
	switch root.System {
	case "snomed":
		if err := e.expandSnomed(b, root); err != nil {
			return nil, err
		}
	case "icd10":
		if err := e.expandICD10(b, root); err != nil {
			return nil, err
		}
	case "hcc":
		if err := e.expandHCC(b, root); err != nil {
			return nil, err
		}
	case "rxnorm":
		if err := e.expandRxNorm(b, root); err != nil {
			return nil, err
		}
	case "ndc":
		if err := e.expandNDC(b, root); err != nil {
			return nil, err
		}
	}
	return &b.graph, nil
}

// detectRoot probes the vocabularies in specificity order. SNOMED and
// RxNorm ids are both numeric, so SNOMED (longer ids) is tried first.
func (e *Engine) detectRoot(code string) (GraphNode, bool) {
	if rec, err := e.db.GetSnomed(code); err == nil {
		return GraphNode{System: "snomed", Code: code, Label: rec.Description}, true
	}
	if rec, err := e.db.GetICD10(code); err == nil {
		return GraphNode{System: "icd10", Code: code, Label: rec.Description}, true
	}
	if rec, err := e.db.GetHCC(code); err == nil {
		return GraphNode{System: "hcc", Code: code, Label: rec.Description}, true
	}
	if rec, err := e.db.GetRxNorm(code); err == nil {
		return GraphNode{System: "rxnorm", Code: code, Label: rec.Name}, true
	}
	if rec, err := e.db.GetCPT(code); err == nil {
		return GraphNode{System: "cpt", Code: code, Label: rec.LongDescription}, true
	}
	if rec, err := e.db.GetHCPCS(code); err == nil {
		return GraphNode{System: "hcpcs", Code: code, Label: rec.LongDescription}, true
	}
	if rec, err := e.db.GetNDC(code); err == nil {
		label := rec.ProprietaryName
		if label == "" {
			label = rec.NonProprietaryName
		}
		return GraphNode{System: "ndc", Code: code, Label: label}, true
	}
	return GraphNode{}, false
}

func (e *Engine) expandSnomed(b *graphBuilder, root GraphNode) error {
	icd10, err := e.SnomedToICD10(root.Code)
	if err != nil {
		return err
	}
	for _, m := range icd10 {
		node := GraphNode{System: "icd10", Code: m.Code, Label: m.Description}
		b.addEdge(root, node, "maps-to")

		hcc, err := e.ICD10ToHCC(m.Code)
		if err != nil {
			return err
		}
		for _, h := range hcc {
			b.addEdge(node, GraphNode{System: "hcc", Code: h.Code, Label: h.Description}, "risk-adjusts-to")
		}
	}

	rx, err := e.db.RxNormForSnomed(root.Code, e.graph.RxNormFanOut)
	if err != nil {
		return err
	}
	for _, edge := range rx {
		b.addEdge(root, GraphNode{
			System: "rxnorm",
			Code:   edge.RxNormCode,
			Label:  e.rxnormLabel(edge.RxNormCode),
		}, "mapped-from")
	}
	return nil
}

func (e *Engine) expandICD10(b *graphBuilder, root GraphNode) error {
	hcc, err := e.ICD10ToHCC(root.Code)
	if err != nil {
		return err
	}
	for _, h := range hcc {
		b.addEdge(root, GraphNode{System: "hcc", Code: h.Code, Label: h.Description}, "risk-adjusts-to")
	}

	snomed, err := e.ICD10ToSnomed(root.Code)
	if err != nil {
		return err
	}
	for _, s := range snomed {
		b.addEdge(root, GraphNode{System: "snomed", Code: s.Code, Label: s.Description}, "mapped-from")
	}
	return nil
}

func (e *Engine) expandHCC(b *graphBuilder, root GraphNode) error {
	icd10, err := e.HCCToICD10(root.Code)
	if err != nil {
		return err
	}
	for _, m := range icd10 {
		b.addEdge(root, GraphNode{System: "icd10", Code: m.Code, Label: m.Description}, "mapped-from")
	}
	return nil
}

func (e *Engine) expandRxNorm(b *graphBuilder, root GraphNode) error {
	snomed, err := e.RxNormToSnomed(root.Code)
	if err != nil {
		return err
	}
	limit := e.graph.RxNormFanOut
	for i, s := range snomed {
		if limit > 0 && i >= limit {
			break
		}
		b.addEdge(root, GraphNode{System: "snomed", Code: s.Code, Label: s.Description}, "maps-to")
	}

	ndc, err := e.RxNormToNDC(root.Code)
	if err != nil {
		return err
	}
	for _, n := range ndc {
		b.addEdge(root, GraphNode{System: "ndc", Code: n.Code, Label: n.Description}, "packaged-as")
	}

	rels, err := e.Relationships(root.Code)
	if err != nil {
		return err
	}
	for i, r := range rels {
		if limit > 0 && i >= limit {
			break
		}
		relType := "related"
		if rel, ok := r.Attributes["relationship"].(string); ok {
			relType = rel
		}
		b.addEdge(root, GraphNode{System: "rxnorm", Code: r.Code, Label: r.Description}, relType)
	}
	return nil
}

func (e *Engine) expandNDC(b *graphBuilder, root GraphNode) error {
	rxnorm, err := e.NDCToRxNorm(root.Code)
	if err != nil {
		return err
	}
	for _, m := range rxnorm {
		node := GraphNode{System: "rxnorm", Code: m.Code, Label: m.Description}
		b.addEdge(root, node, "identifies")

		snomed, err := e.RxNormToSnomed(m.Code)
		if err != nil {
			return err
		}
		limit := e.graph.RxNormFanOut
		for i, s := range snomed {
			if limit > 0 && i >= limit {
				break
			}
			b.addEdge(node, GraphNode{System: "snomed", Code: s.Code, Label: s.Description}, "maps-to")
		}
	}
	return nil
}

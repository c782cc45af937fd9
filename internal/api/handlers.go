package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/query"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
	"github.com/swapnilprakashpatil/codemx/internal/version"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	system := r.PathValue("system")
	page, perPage := pageParams(r)
	search := r.URL.Query().Get("search")

	items, total, err := s.engine.ListCodes(system, page, perPage, search)
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"system":  system,
		"items":   items,
		"total":   total,
		"page":    page,
		"perPage": perPage,
	})
}

func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	detail, err := s.engine.GetCodeDetail(r.PathValue("system"), r.PathValue("code"))
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// mapRoutes wires direction pairs to engine lookups
var mapRoutes = map[string]func(*query.Engine, string) ([]query.MappedCode, error){
	"snomed/icd10": (*query.Engine).SnomedToICD10,
	"snomed/hcc":   (*query.Engine).SnomedToHCC,
	"icd10/hcc":    (*query.Engine).ICD10ToHCC,
	"icd10/snomed": (*query.Engine).ICD10ToSnomed,
	"hcc/icd10":    (*query.Engine).HCCToICD10,
	"rxnorm/snomed": (*query.Engine).RxNormToSnomed,
	"rxnorm/ndc":    (*query.Engine).RxNormToNDC,
	"ndc/rxnorm":    (*query.Engine).NDCToRxNorm,
}

func (s *Server) handleMapLookup(w http.ResponseWriter, r *http.Request) {
	from, to := r.PathValue("from"), r.PathValue("to")
	code := r.PathValue("code")

	lookup, ok := mapRoutes[from+"/"+to]
	if !ok {
		WriteCodedError(w, apperrors.Newf(apperrors.InvalidAction,
			"unsupported mapping direction: %s to %s", from, to))
		return
	}

	mappings, err := lookup(s.engine, code)
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":     from,
		"to":       to,
		"code":     code,
		"mappings": mappings,
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := s.engine.BuildGraph(r.PathValue("code"))
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

func (s *Server) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	q := r.URL.Query()
	filter := storage.ConflictFilter{
		Status:       q.Get("status"),
		SourceSystem: q.Get("sourceSystem"),
		TargetSystem: q.Get("targetSystem"),
		Reason:       q.Get("reason"),
		Search:       q.Get("search"),
		Page:         page,
		PerPage:      perPage,
	}

	items, total, err := s.db.ListConflicts(filter)
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":   items,
		"total":   total,
		"page":    page,
		"perPage": perPage,
	})
}

func (s *Server) handleConflictStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetConflictStats()
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetConflict(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteCodedError(w, apperrors.New(apperrors.InvalidAction, "conflict id must be numeric"))
		return
	}
	c, err := s.db.GetConflict(id)
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// conflictActionRequest is the body for single and bulk conflict actions
type conflictActionRequest struct {
	Action       string  `json:"action"`
	Resolution   string  `json:"resolution,omitempty"`
	ResolvedCode string  `json:"resolvedCode,omitempty"`
	IDs          []int64 `json:"ids,omitempty"`
}

func (s *Server) handleConflictAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteCodedError(w, apperrors.New(apperrors.InvalidAction, "conflict id must be numeric"))
		return
	}

	var req conflictActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteCodedError(w, apperrors.Wrap(apperrors.InvalidAction, "malformed request body", err))
		return
	}

	c, err := s.db.UpdateConflict(id, req.Action, req.Resolution, req.ResolvedCode)
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleBulkConflictAction(w http.ResponseWriter, r *http.Request) {
	var req conflictActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteCodedError(w, apperrors.Wrap(apperrors.InvalidAction, "malformed request body", err))
		return
	}

	updated, err := s.db.BulkUpdateConflicts(req.IDs, req.Action, req.Resolution, req.ResolvedCode)
	if err != nil {
		WriteCodedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
		"action":  req.Action,
	})
}

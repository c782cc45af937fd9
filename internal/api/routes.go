package api

import "net/http"

// registerRoutes attaches all endpoints to the mux
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /codes/{system}", s.handleListCodes)
	mux.HandleFunc("GET /codes/{system}/{code}", s.handleGetCode)

	mux.HandleFunc("GET /map/{from}/{to}/{code}", s.handleMapLookup)
	mux.HandleFunc("GET /graph/{code}", s.handleGraph)

	mux.HandleFunc("GET /conflicts", s.handleListConflicts)
	mux.HandleFunc("GET /conflicts/stats", s.handleConflictStats)
	mux.HandleFunc("GET /conflicts/{id}", s.handleGetConflict)
	mux.HandleFunc("POST /conflicts/{id}", s.handleConflictAction)
	mux.HandleFunc("POST /conflicts/bulk", s.handleBulkConflictAction)
}

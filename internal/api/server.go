// Package api exposes the lookup engine and conflict workflow over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/query"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// Server is the HTTP API server
type Server struct {
	engine *query.Engine
	db     *storage.DB
	logger *logging.Logger
	server *http.Server
}

// NewServer creates the API server bound to the given address
func NewServer(addr string, engine *query.Engine, db *storage.DB, logger *logging.Logger) *Server {
	s := &Server{
		engine: engine,
		db:     db,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route mux wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	handler = CORSMiddleware()(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}

// Start runs the server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", map[string]interface{}{
			"addr": s.server.Addr,
		})
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// Package server exposes the advisor over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/internal/app"
	"github.com/dyike/CortexAdvisor/internal/metrics"
)

// Backend hands out the engine current at request time and holds it until
// release is called. *app.Runtime satisfies it.
type Backend interface {
	Acquire() (eng *app.Engine, release func())
}

type Server struct {
	backend Backend
	metrics *metrics.Manager
	router  *http.ServeMux
	server  *http.Server
}

func New(addr string, backend Backend, m *metrics.Manager) *Server {
	s := &Server{
		backend: backend,
		metrics: m,
	}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// a full analysis waits on four model calls
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler is the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

func (s *Server) Start() error {
	log.Info().Str("address", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}

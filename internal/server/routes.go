package server

import (
	"net/http"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/analyze/{symbol}", s.handleAnalyze)
	mux.HandleFunc("GET /api/report/{symbol}", s.handleReport)
	mux.HandleFunc("GET /api/rank/{sector}", s.handleRank)
	mux.HandleFunc("GET /api/sectors", s.handleSectors)
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/runs", s.handleRuns)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

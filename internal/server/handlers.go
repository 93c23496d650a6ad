package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/internal/advisor"
	"github.com/dyike/CortexAdvisor/internal/app"
	"github.com/dyike/CortexAdvisor/internal/dataflows"
	"github.com/dyike/CortexAdvisor/internal/report"
)

const maxRunsPage = 200

type analyzeRequest struct {
	Identifier string `json:"identifier"`
	Strategy   string `json:"strategy"`
	Horizon    string `json:"horizon"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// engine pins the current engine for the rest of the request. release is
// never nil.
func (s *Server) engine(w http.ResponseWriter) (*app.Engine, func()) {
	eng, release := s.backend.Acquire()
	if eng == nil || eng.Advisor == nil {
		release()
		writeError(w, http.StatusServiceUnavailable, "engine not ready")
		return nil, func() {}
	}
	return eng, release
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	eng, release := s.backend.Acquire()
	defer release()
	if eng != nil {
		body["engine_version"] = eng.Version
		body["built_at"] = eng.BuiltAt.UTC()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleAnalyze accepts a JSON body on POST, or the path symbol plus
// strategy and horizon query parameters on GET.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	eng, release := s.engine(w)
	defer release()
	if eng == nil {
		return
	}

	var req analyzeRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	} else {
		q := r.URL.Query()
		req = analyzeRequest{Identifier: r.PathValue("symbol"), Strategy: q.Get("strategy"), Horizon: q.Get("horizon")}
	}
	if strings.TrimSpace(req.Strategy) == "" {
		req.Strategy = eng.Config.WatchStrategy
	}

	rec, err := eng.Advisor.RunAnalysis(r.Context(), req.Identifier, req.Strategy, req.Horizon)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleReport runs an analysis and answers with the HTML report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	eng, release := s.engine(w)
	defer release()
	if eng == nil {
		return
	}

	q := r.URL.Query()
	strategy := q.Get("strategy")
	if strategy == "" {
		strategy = eng.Config.WatchStrategy
	}
	rec, err := eng.Advisor.RunAnalysis(r.Context(), r.PathValue("symbol"), strategy, q.Get("horizon"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	page, err := report.HTML(rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	eng, release := s.engine(w)
	defer release()
	if eng == nil {
		return
	}

	q := r.URL.Query()
	top, err := intParam(q.Get("top"), advisor.TopPerSector)
	if err != nil {
		writeError(w, http.StatusBadRequest, "top must be a positive integer")
		return
	}
	strategy := q.Get("strategy")
	if strategy == "" {
		strategy = eng.Config.WatchStrategy
	}

	recs, err := eng.Advisor.Rank(r.Context(), r.PathValue("sector"), strategy, q.Get("horizon"), top)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSectors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, advisor.Sectors())
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	eng, release := s.engine(w)
	defer release()
	if eng == nil {
		return
	}
	book := eng.Advisor.Book()
	writeJSON(w, http.StatusOK, map[string]any{
		"thresholds": book.Thresholds(),
		"strategies": book.Strategies(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	eng, release := s.engine(w)
	defer release()
	if eng == nil {
		return
	}
	if eng.Runs == nil {
		writeError(w, http.StatusNotImplemented, "run store "+eng.Config.RunStore+" cannot list runs")
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxRunsPage)

	runs, err := eng.Runs.List(r.Context(), dataflows.NormalizeSymbol(q.Get("symbol")), limit)
	if err != nil {
		log.Error().Err(err).Msg("list runs")
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

// writeFailure maps pipeline errors onto status codes. Anything not caused
// by the request itself is treated as an upstream failure.
func writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, advisor.ErrUnknownStrategy),
		errors.Is(err, advisor.ErrUnknownSector),
		errors.Is(err, dataflows.ErrInvalidSymbol):
		status = http.StatusBadRequest
	case errors.Is(err, dataflows.ErrInsufficientHistory):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

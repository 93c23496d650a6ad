package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAdvisor/config"
	"github.com/dyike/CortexAdvisor/internal/advisor"
	"github.com/dyike/CortexAdvisor/internal/app"
	"github.com/dyike/CortexAdvisor/internal/dataflows"
	"github.com/dyike/CortexAdvisor/internal/metrics"
	"github.com/dyike/CortexAdvisor/models"
)

type stubPrices map[string]models.PriceMetrics

func (s stubPrices) PriceMetrics(_ context.Context, symbol string) (models.PriceMetrics, error) {
	m, ok := s[symbol]
	if !ok {
		return models.PriceMetrics{}, fmt.Errorf("%w: %s", dataflows.ErrInsufficientHistory, symbol)
	}
	return m, nil
}

type stubRuns struct {
	gotIdentifier string
	gotLimit      int
}

func (s *stubRuns) List(_ context.Context, identifier string, limit int) ([]models.RunRecord, error) {
	s.gotIdentifier, s.gotLimit = identifier, limit
	return []models.RunRecord{{RunID: "r1"}}, nil
}

type stubBackend struct{ eng *app.Engine }

func (b stubBackend) Acquire() (*app.Engine, func()) { return b.eng, func() {} }

func newTestServer(t *testing.T, runs *stubRuns) *httptest.Server {
	t.Helper()
	prices := stubPrices{"ACME": {Momentum: 10, Volatility: 12, LastClose: 100}}
	for _, sym := range advisor.SectorUniverse["Energy"] {
		prices[sym] = models.PriceMetrics{Momentum: 5, Volatility: 20}
	}
	eng := &app.Engine{
		Advisor: advisor.New(nil, &dataflows.Providers{Prices: prices, News: dataflows.NoNews()}, nil),
		Config:  config.Config{WatchStrategy: "Balanced", RunStore: "json"},
		Version: 7,
	}
	if runs != nil {
		eng.Runs = runs
	}

	srv := httptest.NewServer(New(":0", stubBackend{eng: eng}, metrics.NewManager()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 7.0, body["engine_version"])
}

func TestAnalyzePost(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/api/analyze", "application/json",
		strings.NewReader(`{"identifier":"acme","strategy":"Balanced","horizon":"3 Months"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec models.Recommendation
	decode(t, resp, &rec)
	assert.Equal(t, "ACME", rec.Identifier)
	assert.Equal(t, "Balanced", rec.Strategy)
	assert.Len(t, rec.FactorMatrix, 6)
	assert.NotEmpty(t, rec.Narrative)
}

func TestAnalyzeGetDefaultsStrategy(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/analyze/ACME")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec models.Recommendation
	decode(t, resp, &rec)
	assert.Equal(t, "Balanced", rec.Strategy)
}

func TestAnalyzeErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	cases := []struct {
		name   string
		url    string
		status int
	}{
		{"unknown strategy", "/api/analyze/ACME?strategy=Momentum", http.StatusBadRequest},
		{"short history", "/api/analyze/NOPE", http.StatusUnprocessableEntity},
		{"unknown sector", "/api/rank/Crypto", http.StatusBadRequest},
		{"bad top", "/api/rank/Energy?top=-1", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tc.url)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			var body errorResponse
			decode(t, resp, &body)
			assert.NotEmpty(t, body.Error)
		})
	}

	resp, err := http.Post(srv.URL+"/api/analyze", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRank(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/rank/energy?top=3&strategy=Value")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recs []models.Recommendation
	decode(t, resp, &recs)
	assert.Len(t, recs, 3)
	assert.Equal(t, "Value", recs[0].Strategy)
}

func TestRuns(t *testing.T) {
	runs := &stubRuns{}
	srv := newTestServer(t, runs)
	resp, err := http.Get(srv.URL + "/api/runs?symbol=acme&limit=500")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []models.RunRecord
	decode(t, resp, &got)
	assert.Len(t, got, 1)
	assert.Equal(t, "ACME", runs.gotIdentifier)
	assert.Equal(t, maxRunsPage, runs.gotLimit)

	bare := newTestServer(t, nil)
	resp, err = http.Get(bare.URL + "/api/runs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	resp.Body.Close()
}

func TestCatalogAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/sectors")
	require.NoError(t, err)
	var sectors []string
	decode(t, resp, &sectors)
	assert.Equal(t, advisor.Sectors(), sectors)

	resp, err = http.Get(srv.URL + "/api/strategies")
	require.NoError(t, err)
	var book struct {
		Strategies []struct{ Name string } `json:"strategies"`
	}
	decode(t, resp, &book)
	assert.NotEmpty(t, book.Strategies)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `cortex_http_requests_total{code="200",route="GET /api/sectors"} 1`)
}

func TestEngineNotReady(t *testing.T) {
	srv := httptest.NewServer(New(":0", stubBackend{}, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/analyze/ACME")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestReport(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/report/acme?horizon=1+Year")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<h1>ACME: ")
	assert.Contains(t, string(body), "Horizon: 1 Year")
}

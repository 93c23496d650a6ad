package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAdvisor/config"
	"github.com/dyike/CortexAdvisor/internal/advisor"
	"github.com/dyike/CortexAdvisor/internal/app"
	"github.com/dyike/CortexAdvisor/internal/dataflows"
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
	runs          []models.RunRecord
}

func (s *stubRuns) List(_ context.Context, identifier string, limit int) ([]models.RunRecord, error) {
	s.gotIdentifier, s.gotLimit = identifier, limit
	return s.runs, nil
}

type stubBackend struct{ eng *app.Engine }

func (b stubBackend) Acquire() (*app.Engine, func()) { return b.eng, func() {} }

func testHandlers(runs *stubRuns) *handlers {
	prices := stubPrices{"ACME": {Momentum: 10, Volatility: 12, LastClose: 100}}
	for _, sym := range advisor.SectorUniverse["Energy"] {
		prices[sym] = models.PriceMetrics{Momentum: 5, Volatility: 20}
	}
	eng := &app.Engine{
		Advisor: advisor.New(nil, &dataflows.Providers{Prices: prices, News: dataflows.NoNews()}, nil),
		Config:  config.Config{WatchStrategy: "Balanced"},
	}
	if runs != nil {
		eng.Runs = runs
	}
	return &handlers{backend: stubBackend{eng: eng}}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestAnalyzeTool(t *testing.T) {
	h := testHandlers(nil)

	res, err := h.analyze(context.Background(), call(map[string]any{"symbol": "acme", "horizon": "1 Year"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "# ACME: ")
	assert.Contains(t, out, "- Strategy: Balanced")
	assert.Contains(t, out, "- Horizon: 1 Year")

	res, err = h.analyze(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.analyze(context.Background(), call(map[string]any{"symbol": "GONE"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "analysis failed")

	res, err = h.analyze(context.Background(), call(map[string]any{"symbol": "ACME", "strategy": "Momentum"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRankTool(t *testing.T) {
	h := testHandlers(nil)

	res, err := h.rank(context.Background(), call(map[string]any{"sector": "energy", "top": 3}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "| 1 | COP |")
	assert.Contains(t, out, "| 3 | ")
	assert.NotContains(t, out, "| 4 | ")

	res, err = h.rank(context.Background(), call(map[string]any{"sector": "Crypto"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStrategiesTool(t *testing.T) {
	res, err := testHandlers(nil).strategies(context.Background(), call(nil))
	require.NoError(t, err)
	out := text(t, res)
	assert.Contains(t, out, "Buy >= 80")
	assert.Contains(t, out, "## Balanced")
	assert.Contains(t, out, "- value: 0.20")
}

func TestRunsTool(t *testing.T) {
	runs := &stubRuns{runs: []models.RunRecord{{
		RunID:        "r1",
		Timestamp:    time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
		Identifier:   "ACME",
		Strategy:     "Value",
		OverallScore: 62.5,
		Rating:       models.RatingWatch,
	}}}
	h := testHandlers(runs)

	res, err := h.runs(context.Background(), call(map[string]any{"symbol": "acme", "limit": 500}))
	require.NoError(t, err)
	assert.Equal(t, "- 2026-03-02 14:30 ACME Value 62.50 Watch (r1)\n", text(t, res))
	assert.Equal(t, "ACME", runs.gotIdentifier)
	assert.Equal(t, 100, runs.gotLimit)

	runs.runs = nil
	res, err = h.runs(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "No recorded runs.", text(t, res))
	assert.Equal(t, 10, runs.gotLimit)

	res, err = testHandlers(nil).runs(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestEngineNotReady(t *testing.T) {
	h := &handlers{backend: stubBackend{}}
	res, err := h.strategies(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "engine not ready", text(t, res))
}

func TestToolsList(t *testing.T) {
	s := New(testHandlers(nil).backend, "test")
	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"analyze_security", "rank_sector", "list_strategies", "recent_runs"} {
		assert.Contains(t, string(raw), `"`+name+`"`)
	}
}

package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/internal/app"
	"github.com/dyike/CortexAdvisor/internal/dataflows"
	"github.com/dyike/CortexAdvisor/internal/report"
	"github.com/dyike/CortexAdvisor/models"
)

// Backend pins the current engine until release; *app.Runtime satisfies it.
type Backend interface {
	Acquire() (eng *app.Engine, release func())
}

// New registers every tool on a fresh MCP server.
func New(backend Backend, version string) *server.MCPServer {
	s := server.NewMCPServer("cortex-advisor", version, server.WithToolCapabilities(true))
	h := &handlers{backend: backend}

	s.AddTool(analyzeTool(), h.analyze)
	s.AddTool(rankTool(), h.rank)
	s.AddTool(strategiesTool(), h.strategies)
	s.AddTool(runsTool(), h.runs)
	return s
}

// ServeStdio blocks serving the protocol on stdin and stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type handlers struct {
	backend Backend
}

func (h *handlers) engine() (*app.Engine, func(), *mcp.CallToolResult) {
	eng, release := h.backend.Acquire()
	if eng == nil || eng.Advisor == nil {
		release()
		return nil, func() {}, mcp.NewToolResultError("engine not ready")
	}
	return eng, release, nil
}

func (h *handlers) analyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := request.RequireString("symbol")
	if err != nil || strings.TrimSpace(symbol) == "" {
		return mcp.NewToolResultError("symbol parameter is required"), nil
	}
	eng, release, fail := h.engine()
	defer release()
	if fail != nil {
		return fail, nil
	}

	strategy := request.GetString("strategy", eng.Config.WatchStrategy)
	rec, err := eng.Advisor.RunAnalysis(ctx, symbol, strategy, request.GetString("horizon", ""))
	if err != nil {
		log.Warn().Err(err).Str("ticker", symbol).Msg("mcp analysis failed")
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	return mcp.NewToolResultText(report.Markdown(rec)), nil
}

func (h *handlers) rank(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sector, err := request.RequireString("sector")
	if err != nil {
		return mcp.NewToolResultError("sector parameter is required"), nil
	}
	eng, release, fail := h.engine()
	defer release()
	if fail != nil {
		return fail, nil
	}

	strategy := request.GetString("strategy", eng.Config.WatchStrategy)
	recs, err := eng.Advisor.Rank(ctx, sector, strategy, "", request.GetInt("top", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ranking failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s picks (%s)\n\n", sector, strategy)
	b.WriteString("| # | Ticker | Score | Rating | Confidence |\n|---:|---|---:|---|---|\n")
	for i, rec := range recs {
		fmt.Fprintf(&b, "| %d | %s | %.2f | %s | %s |\n", i+1, rec.Identifier, rec.OverallScore, rec.Rating, rec.Confidence.Label)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *handlers) strategies(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, release, fail := h.engine()
	defer release()
	if fail != nil {
		return fail, nil
	}
	book := eng.Advisor.Book()
	t := book.Thresholds()

	var b strings.Builder
	fmt.Fprintf(&b, "Ratings: Buy >= %.0f, Hold >= %.0f, Watch >= %.0f, otherwise Avoid.\n\n", t.Buy, t.Hold, t.Watch)
	for _, s := range book.Strategies() {
		fmt.Fprintf(&b, "## %s\n", s.Name)
		for _, factor := range models.FactorOrder {
			if w, ok := s.Weights[factor]; ok {
				fmt.Fprintf(&b, "- %s: %.2f\n", factor, w)
			}
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *handlers) runs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, release, fail := h.engine()
	defer release()
	if fail != nil {
		return fail, nil
	}
	if eng.Runs == nil {
		return mcp.NewToolResultError("the configured run store cannot list runs"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, 100)
	runs, err := eng.Runs.List(ctx, dataflows.NormalizeSymbol(request.GetString("symbol", "")), limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list runs: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No recorded runs."), nil
	}

	var b strings.Builder
	for _, run := range runs {
		fmt.Fprintf(&b, "- %s %s %s %.2f %s (%s)\n", run.Timestamp.UTC().Format("2006-01-02 15:04"),
			run.Identifier, run.Strategy, run.OverallScore, run.Rating, run.RunID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// Package mcpserver exposes the advisor as Model Context Protocol tools.
package mcpserver

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dyike/CortexAdvisor/internal/advisor"
)

func analyzeTool() mcp.Tool {
	return mcp.NewTool("analyze_security",
		mcp.WithDescription("Score, rate and explain one security. Returns a Markdown report with the factor matrix, narrative and confidence."),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Ticker symbol, e.g. AAPL or BRK.B"),
		),
		mcp.WithString("strategy",
			mcp.Description("Strategy profile name (default from config)"),
		),
		mcp.WithString("horizon",
			mcp.Description("Holding horizon, e.g. 3 Months"),
		),
	)
}

func rankTool() mcp.Tool {
	return mcp.NewTool("rank_sector",
		mcp.WithDescription("Analyze every member of a sector and return the best picks"),
		mcp.WithString("sector",
			mcp.Required(),
			mcp.Description("One of: "+strings.Join(advisor.Sectors(), ", ")),
		),
		mcp.WithString("strategy",
			mcp.Description("Strategy profile name (default from config)"),
		),
		mcp.WithNumber("top",
			mcp.Description("Number of picks (default: 5)"),
		),
	)
}

func strategiesTool() mcp.Tool {
	return mcp.NewTool("list_strategies",
		mcp.WithDescription("List strategy profiles with their factor weights and the rating thresholds"),
	)
}

func runsTool() mcp.Tool {
	return mcp.NewTool("recent_runs",
		mcp.WithDescription("List recorded analysis runs, newest first"),
		mcp.WithString("symbol",
			mcp.Description("Only runs for this ticker"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 100)"),
		),
	)
}

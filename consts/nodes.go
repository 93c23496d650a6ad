package consts

const (
	// 分析师节点
	MarketAnalyst       = "market_analyst"
	FundamentalsAnalyst = "fundamentals_analyst"
	RiskAnalyst         = "risk_analyst"

	// 汇总节点
	Synthesizer = "synthesizer"
)

// AnalystRoles are the roles that each write their own report.
var AnalystRoles = []string{MarketAnalyst, FundamentalsAnalyst, RiskAnalyst}

// Roles lists the narrative roles in dispatch order.
var Roles = []string{MarketAnalyst, FundamentalsAnalyst, RiskAnalyst, Synthesizer}

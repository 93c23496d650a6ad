package consts

const (
	Agent_MarketAnalyst       = "Market Analyst"
	Agent_FundamentalsAnalyst = "Fundamentals Analyst"
	Agent_RiskAnalyst         = "Risk Analyst"
	Agent_Synthesizer         = "Chief Investment Strategist"
)

const (
	State_Pending      = "pending"
	State_Synthesizing = "synthesizing"
	State_Complete     = "complete"
	State_Fallback     = "fallback"
)

const (
	Source_Model    = "model"
	Source_Fallback = "fallback"
)

// DisplayName maps a role node key to its human-readable title.
func DisplayName(role string) string {
	switch role {
	case MarketAnalyst:
		return Agent_MarketAnalyst
	case FundamentalsAnalyst:
		return Agent_FundamentalsAnalyst
	case RiskAnalyst:
		return Agent_RiskAnalyst
	case Synthesizer:
		return Agent_Synthesizer
	default:
		return role
	}
}

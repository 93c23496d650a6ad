package narrative

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexAdvisor/consts"
)

type roleSpec struct {
	system string
	user   string
}

var roleSpecs = map[string]roleSpec{
	consts.MarketAnalyst: {
		system: `You are a quantitative technical market analyst.
Your goal is to explain momentum, trend, and price behavior. Work only from the metrics given.`,
		user: `Ticker: {ticker}
Investment Horizon: {horizon}
Price Metrics: {price}

Explain:
- Momentum strength
- Trend direction
- What the price action implies for this horizon`,
	},
	consts.FundamentalsAnalyst: {
		system: `You are an equity research analyst focused on fundamentals.
Your goal is to explain valuation, quality, and growth. Work only from the metrics given.`,
		user: `Ticker: {ticker}
Investment Horizon: {horizon}
Fundamentals: {fundamentals}

Explain:
- Valuation attractiveness
- Quality and balance sheet strength
- Growth outlook relevant to this horizon`,
	},
	consts.RiskAnalyst: {
		system: `You are a portfolio risk manager.
Your goal is to identify downside risks and uncertainty.`,
		user: `Ticker: {ticker}
Investment Horizon: {horizon}
Risk Score: {risk_score}
Sentiment Score: {sentiment_score}
Recent News Headlines:
{headlines}

Explain:
- Key downside risks
- Volatility considerations
- What could invalidate the thesis`,
	},
	consts.Synthesizer: {
		system: `You are the Chief Investment Strategist.
You synthesize multi-analyst work into a coherent, horizon-aware investment narrative.`,
		user: `Ticker: {ticker}
Investment Horizon: {horizon}
Rating: {rating} (overall score {overall_score})
Factor Matrix:
{matrix}

Market analysis:
{market_report}

Fundamentals analysis:
{fundamentals_report}

Risk analysis:
{risk_report}

Combine ALL analyses into a detailed investment narrative including:
- Clear investment thesis
- Horizon-specific drivers
- Key risks and mitigants
- How recent news factors in
- An overall confidence assessment`,
	},
}

// roleVariables exposes to each role only its own slice of the brief.
func roleVariables(role string, b *Brief, reports map[string]string) map[string]any {
	vars := map[string]any{
		"ticker":  b.Identifier,
		"horizon": b.Horizon,
	}
	switch role {
	case consts.MarketAnalyst:
		vars["price"] = formatPrice(b.Price)
	case consts.FundamentalsAnalyst:
		vars["fundamentals"] = formatFundamentals(b.Fundamentals)
	case consts.RiskAnalyst:
		vars["risk_score"] = fmt.Sprintf("%.1f", b.RiskScore)
		vars["sentiment_score"] = fmt.Sprintf("%.1f", b.SentimentScore)
		vars["headlines"] = formatHeadlines(b.Headlines)
	case consts.Synthesizer:
		vars["rating"] = string(b.Rating)
		vars["overall_score"] = fmt.Sprintf("%.2f", b.OverallScore)
		vars["matrix"] = formatMatrix(b.Matrix)
		vars["market_report"] = reports[consts.MarketAnalyst]
		vars["fundamentals_report"] = reports[consts.FundamentalsAnalyst]
		vars["risk_report"] = reports[consts.RiskAnalyst]
	}
	return vars
}

func renderRole(ctx context.Context, role string, vars map[string]any) ([]*schema.Message, error) {
	spec, ok := roleSpecs[role]
	if !ok {
		return nil, fmt.Errorf("no prompt for role %s", role)
	}
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(spec.system),
		schema.UserMessage(spec.user),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("format %s prompt: %w", role, err)
	}
	return msgs, nil
}

package narrative

import (
	"fmt"
	"strings"

	"github.com/dyike/CortexAdvisor/models"
)

// Brief carries the already-computed quantities the roles narrate.
type Brief struct {
	Identifier     string
	Horizon        string
	Price          models.PriceMetrics
	Fundamentals   models.Fundamentals
	RiskScore      float64
	SentimentScore float64
	Headlines      []models.Headline
	Rating         models.Rating
	OverallScore   float64
	Matrix         []models.FactorMatrixRow
}

// Result is what Narrate hands back. Text is never empty.
type Result struct {
	Text    string
	Source  string
	Phase   string
	Reports map[string]string
	Err     error
}

func formatPrice(p models.PriceMetrics) string {
	return fmt.Sprintf("momentum %.2f%%, annualized volatility %.2f%%, last close %.2f", p.Momentum, p.Volatility, p.LastClose)
}

func formatFundamentals(f models.Fundamentals) string {
	pe := "n/a"
	if f.PERatio > 0 {
		pe = fmt.Sprintf("%.2f", f.PERatio)
	}
	return fmt.Sprintf("P/E %s, ROE %.2f%%, revenue growth %.2f%%", pe, f.ROE, f.RevenueGrowth)
}

func formatHeadlines(hs []models.Headline) string {
	if len(hs) == 0 {
		return "none"
	}
	titles := make([]string, 0, len(hs))
	for _, h := range hs {
		titles = append(titles, "- "+h.Title)
	}
	return strings.Join(titles, "\n")
}

func formatMatrix(rows []models.FactorMatrixRow) string {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "- %s: score %.2f x weight %.4f = %.2f\n", r.Factor, r.Score, r.Weight, r.Contribution)
	}
	return strings.TrimRight(b.String(), "\n")
}

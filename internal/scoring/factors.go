package scoring

import (
	"strings"

	"github.com/dyike/CortexAdvisor/models"
)

// Domain bounds for the price and fundamentals factors.
const (
	peCap = 200.0

	valueLow, valueHigh       = 0.0, 0.1
	qualityLow, qualityHigh   = 0.0, 30.0
	growthLow, growthHigh     = 0.0, 25.0
	momentumLow, momentumHigh = -20.0, 40.0
)

var (
	positiveHeadlineWords = []string{"beat", "growth", "strong", "up", "surge", "record"}
	negativeHeadlineWords = []string{"miss", "weak", "down", "drop", "risk", "cut"}
)

// ScoreFactors scores value, quality, growth and momentum from metrics.
// Scores are rounded to two decimals.
func ScoreFactors(metrics models.RawMetrics) models.FactorScores {
	value := neutralScore
	if pe := metrics.Value(models.MetricPERatio); pe > 0 {
		// invert so a cheaper ratio scores higher; the cap keeps tiny ratios bounded
		value = Normalize(1/minFloat(pe, peCap), valueLow, valueHigh)
	}

	return models.FactorScores{
		{Name: models.FactorValue, Score: Round(value, 2)},
		{Name: models.FactorQuality, Score: Round(Normalize(metrics.Value(models.MetricROE), qualityLow, qualityHigh), 2)},
		{Name: models.FactorGrowth, Score: Round(Normalize(metrics.Value(models.MetricRevenueGrowth), growthLow, growthHigh), 2)},
		{Name: models.FactorMomentum, Score: Round(Normalize(metrics.Value(models.MetricMomentum), momentumLow, momentumHigh), 2)},
	}
}

// RiskScore bands annualized volatility (percent). Calmer names score higher.
func RiskScore(volatility float64) float64 {
	if !finite(volatility) {
		return neutralScore
	}
	switch {
	case volatility < 15:
		return 90
	case volatility < 25:
		return 70
	case volatility < 40:
		return 50
	default:
		return 30
	}
}

// SentimentScore counts headlines with positive and negative keywords.
// No headlines is neutral.
func SentimentScore(headlines []models.Headline) float64 {
	if len(headlines) == 0 {
		return neutralScore
	}

	var pos, neg int
	for _, h := range headlines {
		title := strings.ToLower(h.Title)
		if containsAny(title, positiveHeadlineWords) {
			pos++
		}
		if containsAny(title, negativeHeadlineWords) {
			neg++
		}
	}
	return clamp(neutralScore+float64(pos-neg)*10, 0, 100)
}

// Score produces the full factor set in canonical order. Missing
// volatility resolves risk to neutral.
func Score(metrics models.RawMetrics, headlines []models.Headline) models.FactorScores {
	scores := ScoreFactors(metrics)

	risk := neutralScore
	if metrics.Has(models.MetricVolatility) {
		risk = RiskScore(metrics.Value(models.MetricVolatility))
	}
	scores = scores.Set(models.FactorRisk, risk)
	scores = scores.Set(models.FactorSentiment, SentimentScore(headlines))

	for i := range scores {
		scores[i].Score = clamp(scores[i].Score, 0, 100)
	}
	return scores
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

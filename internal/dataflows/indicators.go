package dataflows

import (
	"fmt"
	"math"

	"github.com/dyike/CortexAdvisor/internal/scoring"
	"github.com/dyike/CortexAdvisor/models"
)

const (
	momentumWindow = 126 // six months of trading days
	minMomentum    = 5
	tradingDays    = 252
)

// Closes extracts the close series of bars, skipping non-finite values.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			continue
		}
		out = append(out, b.Close)
	}
	return out
}

// ComputePriceMetrics derives momentum, annualized volatility and the last
// close from daily closes, oldest first.
func ComputePriceMetrics(closes []float64) (models.PriceMetrics, error) {
	n := len(closes)
	if n < MinHistory {
		return models.PriceMetrics{}, fmt.Errorf("%w: %d closes, need %d", ErrInsufficientHistory, n, MinHistory)
	}

	lookback := momentumWindow
	if n <= momentumWindow {
		lookback = max(minMomentum, n-1)
	}
	last := closes[n-1]
	var momentum float64
	if base := closes[n-lookback]; base != 0 {
		momentum = (last/base - 1) * 100
	}

	return models.PriceMetrics{
		Momentum:   scoring.Round(momentum, 2),
		Volatility: scoring.Round(annualizedVolatility(closes), 2),
		LastClose:  scoring.Round(last, 2),
	}, nil
}

// annualizedVolatility is the sample standard deviation of daily returns
// scaled to a trading year, in percent.
func annualizedVolatility(closes []float64) float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	return std * math.Sqrt(tradingDays) * 100
}

// NormalizeFundamentals keeps a positive P/E only and rounds every field to
// four places. ROE and revenue growth are expected in percent.
func NormalizeFundamentals(pe, roePct, growthPct float64) models.Fundamentals {
	if !(pe > 0) || math.IsInf(pe, 0) {
		pe = 0
	}
	return models.Fundamentals{
		PERatio:       scoring.Round(pe, 4),
		ROE:           scoring.Round(finiteOrZero(roePct), 4),
		RevenueGrowth: scoring.Round(finiteOrZero(growthPct), 4),
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

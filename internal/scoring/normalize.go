// Package scoring turns raw metrics into factor scores, weights them into an
// explainable matrix and classifies the result into a rating.
package scoring

import "math"

const neutralScore = 50.0

// Normalize maps value from [low, high] onto [0, 100]. A degenerate range
// yields the neutral 50 and a non-finite value is read as 0.
func Normalize(value, low, high float64) float64 {
	if low == high {
		return neutralScore
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	if value <= low {
		return 0
	}
	if value >= high {
		return 100
	}
	return (value - low) / (high - low) * 100
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package models

import (
	"math"
	"sort"
)

// Metric keys carried by RawMetrics.
const (
	MetricMomentum      = "momentum"
	MetricVolatility    = "volatility"
	MetricLastClose     = "last_close"
	MetricPERatio       = "pe_ratio"
	MetricROE           = "roe"
	MetricRevenueGrowth = "revenue_growth"
)

// RawMetrics maps a metric name to the value reported by a provider.
// An absent or non-finite value reads as 0.0.
type RawMetrics map[string]float64

// Value returns the finite value for key or 0.
func (m RawMetrics) Value(key string) float64 {
	v, ok := m[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Has reports whether key holds a finite value.
func (m RawMetrics) Has(key string) bool {
	v, ok := m[key]
	return ok && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (m RawMetrics) Clone() RawMetrics {
	if m == nil {
		return nil
	}
	out := make(RawMetrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the metric names in lexical order.
func (m RawMetrics) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bar is a single daily close taken from a price provider.
type Bar struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// PriceMetrics are derived from daily closes.
type PriceMetrics struct {
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
	LastClose  float64 `json:"last_close"`
}

// Fundamentals holds valuation and quality inputs. ROE and revenue growth
// are percentages; a zero PERatio means no usable ratio was reported.
type Fundamentals struct {
	PERatio       float64 `json:"pe_ratio"`
	ROE           float64 `json:"roe"`
	RevenueGrowth float64 `json:"revenue_growth"`
}

type Headline struct {
	Title     string `json:"title"`
	Publisher string `json:"publisher"`
	Link      string `json:"link"`
}

// MergeMetrics flattens price and fundamentals into one snapshot.
func MergeMetrics(price PriceMetrics, fund Fundamentals) RawMetrics {
	return RawMetrics{
		MetricMomentum:      price.Momentum,
		MetricVolatility:    price.Volatility,
		MetricLastClose:     price.LastClose,
		MetricPERatio:       fund.PERatio,
		MetricROE:           fund.ROE,
		MetricRevenueGrowth: fund.RevenueGrowth,
	}
}

func CloneHeadlines(in []Headline) []Headline {
	if in == nil {
		return nil
	}
	out := make([]Headline, len(in))
	copy(out, in)
	return out
}

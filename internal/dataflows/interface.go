// Package dataflows fetches the market inputs of an analysis: daily price
// history, fundamentals and recent headlines.
package dataflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/CortexAdvisor/models"
)

var (
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrInvalidSymbol       = errors.New("invalid symbol")
)

// MinHistory is the fewest daily closes a price provider accepts.
const MinHistory = 30

// historyBars is roughly one trading year.
const historyBars = 252

// PriceProvider derives price metrics for a symbol. Failure is fatal to an
// analysis.
type PriceProvider interface {
	PriceMetrics(ctx context.Context, symbol string) (models.PriceMetrics, error)
}

// FundamentalsProvider reports valuation and quality inputs. Fields the
// source does not know are 0.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error)
}

// NewsProvider returns up to limit recent headlines and never fails; an
// unavailable source yields no headlines.
type NewsProvider interface {
	RecentNews(ctx context.Context, symbol string, limit int) []models.Headline
}

// BarSource returns up to count of the most recent daily bars, oldest first.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, count int) ([]models.Bar, error)
}

type barPrices struct {
	source BarSource
	count  int
}

// NewPriceProvider computes price metrics from the bars of src.
func NewPriceProvider(src BarSource) PriceProvider {
	return &barPrices{source: src, count: historyBars}
}

func (p *barPrices) PriceMetrics(ctx context.Context, symbol string) (models.PriceMetrics, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return models.PriceMetrics{}, err
	}
	symbol = NormalizeSymbol(symbol)

	bars, err := p.source.DailyBars(ctx, symbol, p.count)
	if err != nil {
		return models.PriceMetrics{}, fmt.Errorf("fetch price history for %s: %w", symbol, err)
	}
	metrics, err := ComputePriceMetrics(Closes(bars))
	if err != nil {
		return models.PriceMetrics{}, fmt.Errorf("%s: %w", symbol, err)
	}
	return metrics, nil
}

type noNews struct{}

// NoNews is a NewsProvider that never returns headlines.
func NoNews() NewsProvider { return noNews{} }

func (noNews) RecentNews(context.Context, string, int) []models.Headline { return nil }

// limitHeadlines keeps the first limit items and drops untitled ones.
func limitHeadlines(items []models.Headline, limit int) []models.Headline {
	if limit <= 0 {
		return nil
	}
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]models.Headline, 0, len(items))
	for _, h := range items {
		if h.Title == "" {
			continue
		}
		if h.Publisher == "" {
			h.Publisher = "Unknown"
		}
		out = append(out, h)
	}
	return out
}

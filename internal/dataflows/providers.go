package dataflows

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dyike/CortexAdvisor/config"
)

// Providers groups the data sources one engine reads from.
type Providers struct {
	Prices       PriceProvider
	Fundamentals FundamentalsProvider
	News         NewsProvider
}

// NewProviders wires the sources selected in cfg.
func NewProviders(cfg *config.Config) (*Providers, error) {
	fundCache := NewCacheManager(filepath.Join(cfg.DataCacheDir, "fundamentals"), 24*time.Hour, cfg.CacheEnabled)
	newsCache := NewCacheManager(filepath.Join(cfg.DataCacheDir, "news"), time.Hour, cfg.CacheEnabled)
	yahoo := NewYahooFinanceClient(fundCache)

	p := &Providers{}

	switch cfg.PriceSource {
	case "longport":
		lp, err := NewLongportClient(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken)
		if err != nil {
			return nil, fmt.Errorf("longport price source: %w", err)
		}
		p.Prices = NewPriceProvider(lp)
	case "yahoo", "":
		p.Prices = NewPriceProvider(yahoo)
	default:
		return nil, fmt.Errorf("unsupported price source %q", cfg.PriceSource)
	}

	switch cfg.FundamentalsSource {
	case "finnhub":
		p.Fundamentals = NewFinnhubClient(cfg.FinnhubAPIKey, fundCache)
	case "auto", "":
		if cfg.FinnhubAPIKey != "" {
			p.Fundamentals = NewFinnhubClient(cfg.FinnhubAPIKey, fundCache)
		} else {
			p.Fundamentals = yahoo
		}
	case "yahoo":
		p.Fundamentals = yahoo
	default:
		return nil, fmt.Errorf("unsupported fundamentals source %q", cfg.FundamentalsSource)
	}

	switch cfg.NewsSource {
	case "finnhub":
		p.News = NewFinnhubClient(cfg.FinnhubAPIKey, newsCache)
	case "yahoo", "":
		p.News = NewYahooNewsClient(newsCache)
	case "none":
		p.News = NoNews()
	default:
		return nil, fmt.Errorf("unsupported news source %q", cfg.NewsSource)
	}

	return p, nil
}

package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexAdvisor/models"
)

const finnhubURL = "https://finnhub.io/api/v1"

// newsWindow is how far back company news is requested.
const newsWindow = 7 * 24 * time.Hour

// finnhubRatePerSecond stays under the free tier's 60 calls per minute
// while allowing a short burst for one analysis.
const (
	finnhubRatePerSecond = 1
	finnhubBurst         = 5
)

// FinnhubClient handles Finnhub API operations
type FinnhubClient struct {
	client  *resty.Client
	cache   *CacheManager
	limiter *rate.Limiter
	apiKey  string
	now     func() time.Time
}

type FinnhubOption func(*FinnhubClient)

func WithFinnhubBaseURL(u string) FinnhubOption {
	return func(fc *FinnhubClient) { fc.client.SetBaseURL(u) }
}

// WithFinnhubRateLimit overrides the request rate; rps <= 0 disables limiting.
func WithFinnhubRateLimit(rps float64, burst int) FinnhubOption {
	return func(fc *FinnhubClient) {
		if rps <= 0 {
			fc.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		fc.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// NewFinnhubClient creates a new Finnhub client
func NewFinnhubClient(apiKey string, cache *CacheManager, opts ...FinnhubOption) *FinnhubClient {
	client := resty.New()
	client.SetBaseURL(finnhubURL)
	client.SetTimeout(30 * time.Second)

	fc := &FinnhubClient{
		client:  client,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(finnhubRatePerSecond), finnhubBurst),
		apiKey:  apiKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// finnhubMetrics is the subset of /stock/metric the scorer uses. Finnhub
// reports ROE and growth in percent already.
type finnhubMetrics struct {
	Metric struct {
		PETTM               *float64 `json:"peTTM"`
		ROETTM              *float64 `json:"roeTTM"`
		RevenueGrowthTTMYoy *float64 `json:"revenueGrowthTTMYoy"`
	} `json:"metric"`
}

// FinnhubNews represents news from Finnhub API
type FinnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

func (fc *FinnhubClient) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	if fc.apiKey == "" {
		return nil, errors.New("finnhub API key not configured")
	}
	if err := fc.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("finnhub rate limit: %w", err)
	}
	resp, err := fc.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("token", fc.apiKey).
		Get(path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

// Fundamentals reads trailing P/E, ROE and year-over-year revenue growth.
func (fc *FinnhubClient) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return models.Fundamentals{}, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached models.Fundamentals
	if fc.cache.Get("finnhub", "metric", symbol, &cached) {
		return cached, nil
	}

	body, err := fc.get(ctx, "/stock/metric", map[string]string{"symbol": symbol, "metric": "all"})
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("finnhub metrics for %s: %w", symbol, err)
	}
	var m finnhubMetrics
	if err := json.Unmarshal(body, &m); err != nil {
		return models.Fundamentals{}, fmt.Errorf("failed to parse metric response: %w", err)
	}

	fund := NormalizeFundamentals(deref(m.Metric.PETTM), deref(m.Metric.ROETTM), deref(m.Metric.RevenueGrowthTTMYoy))
	if err := fc.cache.Set("finnhub", "metric", symbol, fund); err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	return fund, nil
}

// RecentNews returns company news from the last week.
func (fc *FinnhubClient) RecentNews(ctx context.Context, symbol string, limit int) []models.Headline {
	symbol = NormalizeSymbol(symbol)
	to := fc.now()
	from := to.Add(-newsWindow)

	cacheKey := symbol + "_" + from.Format("20060102") + "_" + to.Format("20060102")
	var cached []models.Headline
	if fc.cache.Get("finnhub", "company_news", cacheKey, &cached) {
		return limitHeadlines(cached, limit)
	}

	body, err := fc.get(ctx, "/company-news", map[string]string{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("finnhub news unavailable")
		return nil
	}
	var items []FinnhubNews
	if err := json.Unmarshal(body, &items); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("failed to parse news response")
		return nil
	}

	headlines := make([]models.Headline, 0, len(items))
	for _, n := range items {
		headlines = append(headlines, models.Headline{Title: n.Headline, Publisher: n.Source, Link: n.URL})
	}
	if err := fc.cache.Set("finnhub", "company_news", cacheKey, headlines); err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	return limitHeadlines(headlines, limit)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phuslu/log"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"github.com/dyike/CortexAdvisor/models"
)

const yahooQueryURL = "https://query1.finance.yahoo.com"

// YahooFinanceClient reads daily history through finance-go and
// fundamentals from the quoteSummary endpoint.
type YahooFinanceClient struct {
	client *resty.Client
	cache  *CacheManager
}

type YahooOption func(*YahooFinanceClient)

// WithYahooBaseURL points the quoteSummary requests at another host.
func WithYahooBaseURL(u string) YahooOption {
	return func(yf *YahooFinanceClient) { yf.client.SetBaseURL(u) }
}

func NewYahooFinanceClient(cache *CacheManager, opts ...YahooOption) *YahooFinanceClient {
	client := resty.New()
	client.SetBaseURL(yahooQueryURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0")

	yf := &YahooFinanceClient{client: client, cache: cache}
	for _, opt := range opts {
		opt(yf)
	}
	return yf
}

// DailyBars fetches about count trading days of daily bars.
func (yf *YahooFinanceClient) DailyBars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	symbol = NormalizeSymbol(symbol)

	end := time.Now()
	// calendar span covering count trading days plus holidays
	start := end.AddDate(0, 0, -(count*7/5 + 10))

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	bars := make([]models.Bar, 0, count)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := iter.Bar()
		bars = append(bars, models.Bar{
			Symbol:    symbol,
			Timestamp: int64(bar.Timestamp),
			Open:      bar.Open.InexactFloat64(),
			High:      bar.High.InexactFloat64(),
			Low:       bar.Low.InexactFloat64(),
			Close:     bar.Close.InexactFloat64(),
			Volume:    int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v rawValue) value() float64 {
	if v.Raw == nil {
		return 0
	}
	return *v.Raw
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				TrailingPE rawValue `json:"trailingPE"`
			} `json:"summaryDetail"`
			FinancialData struct {
				ReturnOnEquity rawValue `json:"returnOnEquity"`
				RevenueGrowth  rawValue `json:"revenueGrowth"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Fundamentals reads trailing P/E, ROE and revenue growth. Yahoo reports the
// latter two as fractions.
func (yf *YahooFinanceClient) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return models.Fundamentals{}, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached models.Fundamentals
	if yf.cache.Get("yahoo", "fundamentals", symbol, &cached) {
		return cached, nil
	}

	resp, err := yf.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("modules", "summaryDetail,financialData").
		Get("/v10/finance/quoteSummary/{symbol}")
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("yahoo fundamentals %s: %w", symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return models.Fundamentals{}, fmt.Errorf("yahoo fundamentals %s: status %d", symbol, resp.StatusCode())
	}

	var body quoteSummaryResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return models.Fundamentals{}, fmt.Errorf("parse yahoo fundamentals %s: %w", symbol, err)
	}
	if e := body.QuoteSummary.Error; e != nil {
		return models.Fundamentals{}, fmt.Errorf("yahoo fundamentals %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(body.QuoteSummary.Result) == 0 {
		return models.Fundamentals{}, fmt.Errorf("yahoo fundamentals %s: empty result", symbol)
	}

	r := body.QuoteSummary.Result[0]
	fund := NormalizeFundamentals(
		r.SummaryDetail.TrailingPE.value(),
		r.FinancialData.ReturnOnEquity.value()*100,
		r.FinancialData.RevenueGrowth.value()*100,
	)
	if err := yf.cache.Set("yahoo", "fundamentals", symbol, fund); err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	return fund, nil
}

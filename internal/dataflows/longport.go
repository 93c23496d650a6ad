package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexAdvisor/models"
)

// LongportClient serves daily candlesticks from the Longport quote API.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(appKey, appSecret, accessToken string) (*LongportClient, error) {
	if appKey == "" || appSecret == "" || accessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(appKey, appSecret, accessToken))
	if err != nil {
		return nil, err
	}
	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}
	return &LongportClient{quoteCtx: quoteContext}, nil
}

// DailyBars returns unadjusted daily candlesticks. Bare tickers are looked
// up on the US market.
func (lpc *LongportClient) DailyBars(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	symbol = LongportSymbol(symbol)

	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks %s: %w", symbol, err)
	}

	bars := make([]models.Bar, 0, len(sticks))
	for _, s := range sticks {
		if s == nil || s.Close == nil {
			continue
		}
		bars = append(bars, models.Bar{
			Symbol:    symbol,
			Timestamp: s.Timestamp,
			Open:      decFloat(s.Open),
			High:      decFloat(s.High),
			Low:       decFloat(s.Low),
			Close:     decFloat(s.Close),
			Volume:    s.Volume,
		})
	}
	return bars, nil
}

var longportMarkets = []string{".US", ".HK", ".SH", ".SZ", ".SG"}

// LongportSymbol adds the .US market suffix when no market is named.
func LongportSymbol(symbol string) string {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return symbol
	}
	for _, m := range longportMarkets {
		if strings.HasSuffix(symbol, m) {
			return symbol
		}
	}
	return symbol + ".US"
}

func decFloat(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return d.InexactFloat64()
}

package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/models"
)

const yahooFeedURL = "https://feeds.finance.yahoo.com"

// YahooNewsClient reads the per-symbol Yahoo Finance headline feed.
type YahooNewsClient struct {
	client *resty.Client
	cache  *CacheManager
}

type YahooNewsOption func(*YahooNewsClient)

func WithYahooFeedURL(u string) YahooNewsOption {
	return func(yn *YahooNewsClient) { yn.client.SetBaseURL(u) }
}

func NewYahooNewsClient(cache *CacheManager, opts ...YahooNewsOption) *YahooNewsClient {
	client := resty.New()
	client.SetBaseURL(yahooFeedURL)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0")

	yn := &YahooNewsClient{client: client, cache: cache}
	for _, opt := range opts {
		opt(yn)
	}
	return yn
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title  string `xml:"title"`
	Link   string `xml:"link"`
	Source string `xml:"source"`
}

func (yn *YahooNewsClient) RecentNews(ctx context.Context, symbol string, limit int) []models.Headline {
	symbol = NormalizeSymbol(symbol)

	var cached []models.Headline
	if yn.cache.Get("yahoo", "headlines", symbol, &cached) {
		return limitHeadlines(cached, limit)
	}

	headlines, err := yn.fetch(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("yahoo headlines unavailable")
		return nil
	}
	if err := yn.cache.Set("yahoo", "headlines", symbol, headlines); err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("cache write failed")
	}
	return limitHeadlines(headlines, limit)
}

func (yn *YahooNewsClient) fetch(ctx context.Context, symbol string) ([]models.Headline, error) {
	resp, err := yn.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"s":      symbol,
			"region": "US",
			"lang":   "en-US",
		}).
		Get("/rss/2.0/headline")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP error %d when fetching headlines", resp.StatusCode())
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	out := make([]models.Headline, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		out = append(out, models.Headline{
			Title:     plainText(item.Title),
			Publisher: plainText(item.Source),
			Link:      strings.TrimSpace(item.Link),
		})
	}
	return out, nil
}

// plainText strips markup some feeds embed in titles.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

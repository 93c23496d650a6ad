package advisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/models"
)

var ErrUnknownSector = errors.New("unknown sector")

// TopPerSector is how many picks a sector ranking returns by default.
const TopPerSector = 5

// SectorUniverse lists the large caps ranked for each sector.
var SectorUniverse = map[string][]string{
	"Technology":             {"AAPL", "MSFT", "NVDA", "GOOGL", "META", "AVGO", "ORCL", "CRM", "ADBE", "AMD"},
	"Healthcare":             {"UNH", "JNJ", "LLY", "ABBV", "MRK", "PFE", "TMO", "ABT", "DHR", "AMGN"},
	"Financials":             {"JPM", "BAC", "WFC", "GS", "MS", "BLK", "C", "SCHW", "AXP", "V"},
	"Consumer Discretionary": {"AMZN", "TSLA", "HD", "MCD", "NKE", "SBUX", "LOW", "BKNG", "TJX", "CMG"},
	"Consumer Staples":       {"PG", "KO", "PEP", "WMT", "COST", "PM", "MO", "MDLZ", "CL", "KMB"},
	"Energy":                 {"XOM", "CVX", "COP", "SLB", "EOG", "MPC", "PSX", "OXY", "VLO", "HAL"},
	"Industrials":            {"CAT", "HON", "UNP", "GE", "RTX", "BA", "DE", "LMT", "UPS", "MMM"},
	"Communication Services": {"NFLX", "DIS", "CMCSA", "VZ", "T", "TMUS", "CHTR", "EA", "TTWO", "WBD"},
	"Utilities":              {"NEE", "DUK", "SO", "D", "AEP", "EXC", "SRE", "XEL", "PEG", "ED"},
	"Real Estate":            {"PLD", "AMT", "EQIX", "CCI", "PSA", "O", "SPG", "WELL", "DLR", "AVB"},
}

// Sectors returns the sector names in lexical order.
func Sectors() []string {
	out := make([]string, 0, len(SectorUniverse))
	for s := range SectorUniverse {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SectorMembers resolves a sector name case-insensitively.
func SectorMembers(sector string) (string, []string, error) {
	want := strings.TrimSpace(sector)
	for name, members := range SectorUniverse {
		if strings.EqualFold(name, want) {
			return name, append([]string(nil), members...), nil
		}
	}
	return "", nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownSector, sector, strings.Join(Sectors(), ", "))
}

// Rank analyzes every member of sector in turn and returns the n best by
// overall score, ties broken by rating then ticker. Members whose analysis
// fails are logged and skipped; an unknown strategy fails the whole ranking.
func (e *Engine) Rank(ctx context.Context, sector, strategy, horizon string, n int) ([]*models.Recommendation, error) {
	name, members, err := SectorMembers(sector)
	if err != nil {
		return nil, err
	}
	if _, _, err := e.book.Lookup(strategy); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = TopPerSector
	}
	return e.rankSymbols(ctx, name, members, strategy, horizon, n)
}

// RankSymbols ranks an explicit list the same way Rank ranks a sector.
func (e *Engine) RankSymbols(ctx context.Context, symbols []string, strategy, horizon string, n int) ([]*models.Recommendation, error) {
	if _, _, err := e.book.Lookup(strategy); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = len(symbols)
	}
	return e.rankSymbols(ctx, "watchlist", symbols, strategy, horizon, n)
}

func (e *Engine) rankSymbols(ctx context.Context, label string, symbols []string, strategy, horizon string, n int) ([]*models.Recommendation, error) {
	results := make([]*models.Recommendation, 0, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := e.RunAnalysis(ctx, sym, strategy, horizon)
		if err != nil {
			log.Warn().Err(err).Str("group", label).Str("ticker", sym).Msg("skipping symbol")
			continue
		}
		results = append(results, rec)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		if a.Rating.Rank() != b.Rating.Rank() {
			return a.Rating.Rank() > b.Rating.Rank()
		}
		return a.Identifier < b.Identifier
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAdvisor/internal/dataflows"
	"github.com/dyike/CortexAdvisor/models"
)

func rankProviders(bySymbol map[string]models.PriceMetrics) *dataflows.Providers {
	return &dataflows.Providers{
		Prices:       &fakePrices{bySymbol: bySymbol},
		Fundamentals: fakeFundamentals{fund: models.Fundamentals{PERatio: 20, ROE: 15, RevenueGrowth: 10}},
	}
}

func TestRankSymbolsOrdersAndSkipsFailures(t *testing.T) {
	providers := rankProviders(map[string]models.PriceMetrics{
		"LOW":  {Momentum: -20, Volatility: 50},
		"HIGH": {Momentum: 40, Volatility: 10},
		"MID":  {Momentum: 10, Volatility: 20},
	})
	e := New(nil, providers, nil)

	recs, err := e.RankSymbols(context.Background(), []string{"LOW", "GONE", "HIGH", "MID"}, "Balanced", "3 Months", 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "HIGH", recs[0].Identifier)
	assert.Equal(t, "MID", recs[1].Identifier)
	assert.Equal(t, "LOW", recs[2].Identifier)

	top, err := e.RankSymbols(context.Background(), []string{"LOW", "HIGH", "MID"}, "Balanced", "3 Months", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "HIGH", top[0].Identifier)
}

func TestRankTiesBreakOnTicker(t *testing.T) {
	same := models.PriceMetrics{Momentum: 5, Volatility: 20}
	e := New(nil, rankProviders(map[string]models.PriceMetrics{"BBB": same, "AAA": same}), nil)

	recs, err := e.RankSymbols(context.Background(), []string{"BBB", "AAA"}, "Growth", "", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "AAA", recs[0].Identifier)
}

func TestRankSector(t *testing.T) {
	members := SectorUniverse["Energy"]
	prices := map[string]models.PriceMetrics{}
	for i, sym := range members {
		prices[sym] = models.PriceMetrics{Momentum: float64(i * 4), Volatility: 20}
	}
	e := New(nil, rankProviders(prices), nil)

	recs, err := e.Rank(context.Background(), "energy", "Value", "6 Months", 0)
	require.NoError(t, err)
	require.Len(t, recs, TopPerSector)
	assert.Equal(t, members[len(members)-1], recs[0].Identifier)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].OverallScore, recs[i].OverallScore)
	}
}

func TestRankErrors(t *testing.T) {
	e := New(nil, rankProviders(nil), nil)

	_, err := e.Rank(context.Background(), "Crypto", "Balanced", "", 5)
	assert.ErrorIs(t, err, ErrUnknownSector)

	_, err = e.Rank(context.Background(), "Energy", "Momentum", "", 5)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = e.RankSymbols(context.Background(), []string{"A"}, "nope", "", 5)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestSectors(t *testing.T) {
	sectors := Sectors()
	assert.Len(t, sectors, len(SectorUniverse))
	assert.Equal(t, "Communication Services", sectors[0])

	name, members, err := SectorMembers(" technology ")
	require.NoError(t, err)
	assert.Equal(t, "Technology", name)
	members[0] = "CHANGED"
	assert.Equal(t, "AAPL", SectorUniverse["Technology"][0])
}

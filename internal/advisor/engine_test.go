package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAdvisor/consts"
	"github.com/dyike/CortexAdvisor/internal/dataflows"
	"github.com/dyike/CortexAdvisor/internal/narrative"
	"github.com/dyike/CortexAdvisor/internal/scoring"
	"github.com/dyike/CortexAdvisor/internal/storage"
	"github.com/dyike/CortexAdvisor/models"
)

type fakePrices struct {
	bySymbol map[string]models.PriceMetrics
	err      error
	calls    int
}

func (f *fakePrices) PriceMetrics(_ context.Context, symbol string) (models.PriceMetrics, error) {
	f.calls++
	if f.err != nil {
		return models.PriceMetrics{}, f.err
	}
	m, ok := f.bySymbol[symbol]
	if !ok {
		return models.PriceMetrics{}, fmt.Errorf("%w: no bars for %s", dataflows.ErrInsufficientHistory, symbol)
	}
	return m, nil
}

type fakeFundamentals struct {
	fund models.Fundamentals
	err  error
}

func (f fakeFundamentals) Fundamentals(context.Context, string) (models.Fundamentals, error) {
	return f.fund, f.err
}

type fakeNews struct {
	headlines []models.Headline
	limit     int
}

func (f *fakeNews) RecentNews(_ context.Context, _ string, limit int) []models.Headline {
	f.limit = limit
	return f.headlines
}

type fakeNarrator struct {
	result narrative.Result
	briefs []*narrative.Brief
}

func (f *fakeNarrator) Narrate(_ context.Context, b *narrative.Brief) narrative.Result {
	f.briefs = append(f.briefs, b)
	return f.result
}

type memStore struct {
	mu      sync.Mutex
	records []models.RunRecord
	err     error
}

func (m *memStore) Save(_ context.Context, rec models.RunRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.records = append(m.records, rec)
	return "mem://" + rec.RunID, nil
}

// emptyModel answers every role with blank text.
type emptyModel struct{}

func (emptyModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("   ", nil), nil
}

func (emptyModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage("", nil)}), nil
}

var scenarioA = models.PriceMetrics{Momentum: 10, Volatility: 12, LastClose: 101.5}

func scenarioProviders() (*fakePrices, *dataflows.Providers) {
	prices := &fakePrices{bySymbol: map[string]models.PriceMetrics{"ACME": scenarioA}}
	return prices, &dataflows.Providers{
		Prices:       prices,
		Fundamentals: fakeFundamentals{fund: models.Fundamentals{PERatio: 10, ROE: 20, RevenueGrowth: 15}},
		News:         &fakeNews{},
	}
}

func TestRunAnalysisScenarioA(t *testing.T) {
	_, providers := scenarioProviders()
	store := &memStore{}
	narr := &fakeNarrator{result: narrative.Result{Text: "ACME shows strong quality.", Source: consts.Source_Model}}

	e := New(scoring.DefaultBook(), providers, narr,
		WithRecorder(storage.NewRecorder(store)),
		WithModelName("test/model"),
	)
	rec, err := e.RunAnalysis(context.Background(), " acme ", "balanced", "6 Months")
	require.NoError(t, err)

	assert.Equal(t, "ACME", rec.Identifier)
	assert.Equal(t, "Balanced", rec.Strategy)
	assert.Equal(t, 73.33, rec.OverallScore)
	assert.Equal(t, models.RatingHold, rec.Rating)
	assert.Equal(t, "ACME shows strong quality.", rec.Narrative)
	assert.Equal(t, consts.Source_Model, rec.NarrativeSource)
	assert.Equal(t, 100.0, rec.Confidence.Score)
	assert.Equal(t, models.ConfidenceHigh, rec.Confidence.Label)

	order := make([]string, len(rec.FactorMatrix))
	for i, row := range rec.FactorMatrix {
		order[i] = row.Factor
	}
	assert.Equal(t, []string{"value", "risk", "quality", "growth", "momentum", "sentiment"}, order)

	// the narrator sees the scored brief
	require.Len(t, narr.briefs, 1)
	assert.Equal(t, 90.0, narr.briefs[0].RiskScore)
	assert.Equal(t, "6 Months", narr.briefs[0].Horizon)
	assert.Equal(t, models.RatingHold, narr.briefs[0].Rating)

	require.Len(t, store.records, 1)
	run := store.records[0]
	assert.Equal(t, rec.RunID, run.RunID)
	assert.Equal(t, "mem://"+run.RunID, rec.RecordLocation)
	assert.Equal(t, "test/model", run.Audit.Model)
	assert.Equal(t, 10.0, run.Audit.Metrics[models.MetricPERatio])
	assert.Equal(t, 0.2, run.Audit.Weights[models.FactorValue])
	assert.Equal(t, defaultNewsLimit, providers.News.(*fakeNews).limit)
}

func TestRunAnalysisScenarioBPriceFailure(t *testing.T) {
	prices, providers := scenarioProviders()
	prices.err = fmt.Errorf("%w: 12 closes, need 30", dataflows.ErrInsufficientHistory)
	store := &memStore{}
	narr := &fakeNarrator{}

	e := New(scoring.DefaultBook(), providers, narr, WithRecorder(storage.NewRecorder(store)))
	rec, err := e.RunAnalysis(context.Background(), "ACME", "Balanced", "3 Months")

	assert.Nil(t, rec)
	assert.ErrorIs(t, err, dataflows.ErrInsufficientHistory)
	assert.Empty(t, store.records)
	assert.Empty(t, narr.briefs)
}

func TestRunAnalysisUnknownStrategy(t *testing.T) {
	prices, providers := scenarioProviders()
	store := &memStore{}

	e := New(scoring.DefaultBook(), providers, &fakeNarrator{}, WithRecorder(storage.NewRecorder(store)))
	_, err := e.RunAnalysis(context.Background(), "ACME", "Momentum", "3 Months")

	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Zero(t, prices.calls)
	assert.Empty(t, store.records)
}

func TestRunAnalysisScenarioCEmptyGeneration(t *testing.T) {
	_, providers := scenarioProviders()
	orch, err := narrative.NewOrchestrator(context.Background(), emptyModel{})
	require.NoError(t, err)

	e := New(scoring.DefaultBook(), providers, orch)
	rec, err := e.RunAnalysis(context.Background(), "ACME", "Balanced", "1 Year")
	require.NoError(t, err)

	assert.Equal(t, consts.Source_Fallback, rec.NarrativeSource)
	assert.Contains(t, rec.Narrative, "ACME")
	assert.Contains(t, rec.Narrative, "**Hold**")
	assert.Contains(t, rec.Narrative, "- value (weighted impact 20.0)")
	assert.NotEmpty(t, strings.TrimSpace(rec.Narrative))
}

func TestRunAnalysisWithoutNarrator(t *testing.T) {
	_, providers := scenarioProviders()
	rec, err := New(nil, providers, nil).RunAnalysis(context.Background(), "ACME", "Value", "3 Months")
	require.NoError(t, err)
	assert.Equal(t, consts.Source_Fallback, rec.NarrativeSource)
	assert.Equal(t, "Value", rec.Strategy)
}

func TestRunAnalysisFundamentalsDegradeToNeutral(t *testing.T) {
	_, providers := scenarioProviders()
	providers.Fundamentals = fakeFundamentals{err: errors.New("rate limited")}

	rec, err := New(nil, providers, nil).RunAnalysis(context.Background(), "ACME", "Balanced", "3 Months")
	require.NoError(t, err)

	scores := map[string]float64{}
	for _, row := range rec.FactorMatrix {
		scores[row.Factor] = row.Score
	}
	assert.Equal(t, 50.0, scores[models.FactorValue])
	assert.Equal(t, 0.0, scores[models.FactorQuality])
	assert.Equal(t, 0.0, scores[models.FactorGrowth])
	assert.Equal(t, 0.0, rec.RawMetrics[models.MetricPERatio])
}

func TestRunAnalysisPersistFailureKeepsRecommendation(t *testing.T) {
	_, providers := scenarioProviders()
	store := &memStore{err: errors.New("read-only filesystem")}

	rec, err := New(nil, providers, nil, WithRecorder(storage.NewRecorder(store))).
		RunAnalysis(context.Background(), "ACME", "Balanced", "3 Months")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.RunID)
	assert.Empty(t, rec.RecordLocation)
	assert.Equal(t, models.RatingHold, rec.Rating)
}

func TestRunAnalysisCrossRoleConfidence(t *testing.T) {
	_, providers := scenarioProviders()
	narr := &fakeNarrator{result: narrative.Result{
		Text:   "Overall the setup looks strong.",
		Source: consts.Source_Model,
		Reports: map[string]string{
			consts.MarketAnalyst:       "Price trend is strong.",
			consts.FundamentalsAnalyst: "Valuation is fair.",
			consts.RiskAnalyst:         "Volatility is a risk.",
		},
	}}

	single, err := New(nil, providers, narr).RunAnalysis(context.Background(), "ACME", "Balanced", "3 Months")
	require.NoError(t, err)
	assert.Equal(t, 100.0, single.Confidence.Score)

	across, err := New(nil, providers, narr, WithCrossRoleConfidence(true)).
		RunAnalysis(context.Background(), "ACME", "Balanced", "3 Months")
	require.NoError(t, err)
	assert.Len(t, across.Confidence.Signals, 4)
	assert.Less(t, across.Confidence.Score, 100.0)
}

func TestNewsLimitOption(t *testing.T) {
	_, providers := scenarioProviders()
	news := providers.News.(*fakeNews)
	_, err := New(nil, providers, nil, WithNewsLimit(2)).RunAnalysis(context.Background(), "ACME", "Balanced", "")
	require.NoError(t, err)
	assert.Equal(t, 2, news.limit)
}

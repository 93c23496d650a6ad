// Package advisor runs the full analysis pipeline for one security: fetch,
// score, weight, classify, narrate, measure confidence and record.
package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/consts"
	"github.com/dyike/CortexAdvisor/internal/confidence"
	"github.com/dyike/CortexAdvisor/internal/dataflows"
	"github.com/dyike/CortexAdvisor/internal/metrics"
	"github.com/dyike/CortexAdvisor/internal/narrative"
	"github.com/dyike/CortexAdvisor/internal/scoring"
	"github.com/dyike/CortexAdvisor/internal/storage"
	"github.com/dyike/CortexAdvisor/models"
)

// ErrUnknownStrategy is returned when the requested strategy is not in the book.
var ErrUnknownStrategy = scoring.ErrUnknownStrategy

const defaultNewsLimit = 5

// Narrator writes the investment narrative for a scored brief.
type Narrator interface {
	Narrate(ctx context.Context, brief *narrative.Brief) narrative.Result
}

type Engine struct {
	book         *scoring.Book
	prices       dataflows.PriceProvider
	fundamentals dataflows.FundamentalsProvider
	news         dataflows.NewsProvider
	narrator     Narrator
	recorder     *storage.Recorder
	metrics      *metrics.Manager

	modelName string
	newsLimit int
	crossRole bool
}

type Option func(*Engine)

// WithRecorder persists every successful run through r.
func WithRecorder(r *storage.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithMetrics(m *metrics.Manager) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithModelName is the model identifier written to the audit block.
func WithModelName(name string) Option {
	return func(e *Engine) { e.modelName = name }
}

func WithNewsLimit(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.newsLimit = n
		}
	}
}

// WithCrossRoleConfidence measures confidence over every role's report
// instead of the final narrative alone, when the reports are available.
func WithCrossRoleConfidence(on bool) Option {
	return func(e *Engine) { e.crossRole = on }
}

func New(book *scoring.Book, providers *dataflows.Providers, narrator Narrator, opts ...Option) *Engine {
	if book == nil {
		book = scoring.DefaultBook()
	}
	e := &Engine{
		book:         book,
		prices:       providers.Prices,
		fundamentals: providers.Fundamentals,
		news:         providers.News,
		narrator:     narrator,
		modelName:    "none",
		newsLimit:    defaultNewsLimit,
	}
	if e.news == nil {
		e.news = dataflows.NoNews()
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recorder == nil {
		e.recorder = storage.NewRecorder(nil)
	}
	return e
}

// Book returns the strategy book the engine scores with.
func (e *Engine) Book() *scoring.Book { return e.book }

// RunAnalysis produces a recommendation for identifier. An unknown strategy
// or unusable price history aborts the run and nothing is recorded. Every
// other failure degrades to neutral inputs or the fallback narrative.
func (e *Engine) RunAnalysis(ctx context.Context, identifier, strategy, horizon string) (*models.Recommendation, error) {
	start := time.Now()
	identifier = dataflows.NormalizeSymbol(identifier)

	name, weights, err := e.book.Lookup(strategy)
	if err != nil {
		e.metrics.RunFailed("strategy")
		return nil, err
	}

	price, err := e.prices.PriceMetrics(ctx, identifier)
	if err != nil {
		e.metrics.RunFailed("price")
		return nil, fmt.Errorf("analyze %s: %w", identifier, err)
	}

	var fund models.Fundamentals
	if e.fundamentals != nil {
		fund, err = e.fundamentals.Fundamentals(ctx, identifier)
		if err != nil {
			log.Warn().Err(err).Str("ticker", identifier).Msg("fundamentals unavailable, scoring with neutral inputs")
			fund = models.Fundamentals{}
		}
	}

	headlines := e.news.RecentNews(ctx, identifier, e.newsLimit)

	raw := models.MergeMetrics(price, fund)
	scores := scoring.Score(raw, headlines)
	matrix, overall := scoring.BuildMatrix(scores, weights)
	rating := scoring.Classify(overall, e.book.Thresholds())

	narr := e.narrate(ctx, &narrative.Brief{
		Identifier:     identifier,
		Horizon:        horizon,
		Price:          price,
		Fundamentals:   fund,
		RiskScore:      scoreOf(scores, models.FactorRisk),
		SentimentScore: scoreOf(scores, models.FactorSentiment),
		Headlines:      models.CloneHeadlines(headlines),
		Rating:         rating,
		OverallScore:   overall,
		Matrix:         models.CloneMatrix(matrix),
	}, rating, overall, matrix)

	var conf models.ConfidenceResult
	if e.crossRole && narr.Reports != nil {
		conf = confidence.ComputeAcrossRoles(consts.AnalystRoles, narr.Reports, narr.Text)
	} else {
		conf = confidence.Compute([]string{narr.Text})
	}

	rec := &models.Recommendation{
		Identifier:      identifier,
		Strategy:        name,
		Horizon:         horizon,
		Rating:          rating,
		OverallScore:    overall,
		FactorMatrix:    matrix,
		Narrative:       narr.Text,
		NarrativeSource: narr.Source,
		Confidence:      conf,
		RawMetrics:      raw,
		Weights:         weights,
		Headlines:       headlines,
	}

	run := e.recorder.Record(identifier, *rec, e.modelName)
	rec.RunID = run.RunID
	if loc, err := e.recorder.Persist(ctx, run); err == nil {
		rec.RecordLocation = loc
	}

	e.metrics.ObserveRun(name, string(rating), narr.Source, overall, time.Since(start))
	log.Info().
		Str("ticker", identifier).
		Str("strategy", name).
		Str("rating", string(rating)).
		Float64("overall", overall).
		Str("narrative", narr.Source).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")
	return rec, nil
}

// narrate never fails; a missing narrator or an empty result becomes the
// rules-based narrative.
func (e *Engine) narrate(ctx context.Context, brief *narrative.Brief, rating models.Rating, overall float64, matrix []models.FactorMatrixRow) narrative.Result {
	if e.narrator != nil {
		res := e.narrator.Narrate(ctx, brief)
		if res.Text != "" {
			return res
		}
	}
	return narrative.Result{
		Text:   narrative.Fallback(brief.Identifier, rating, overall, matrix),
		Source: consts.Source_Fallback,
		Phase:  consts.State_Fallback,
		Err:    narrative.ErrNoModel,
	}
}

func scoreOf(scores models.FactorScores, factor string) float64 {
	v, _ := scores.Get(factor)
	return v
}

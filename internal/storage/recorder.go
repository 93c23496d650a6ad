package storage

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/models"
)

// Recorder turns finished recommendations into write-once run records.
type Recorder struct {
	store RunStore
	now   func() time.Time
	newID func() string
}

// NewRecorder writes through store. A nil store records without persisting.
func NewRecorder(store RunStore) *Recorder {
	if store == nil {
		store = Discard()
	}
	return &Recorder{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Record builds the record for rec. Every slice and map is copied so later
// changes to rec do not reach the record.
func (r *Recorder) Record(identifier string, rec models.Recommendation, modelName string) models.RunRecord {
	conf := rec.Confidence
	conf.Signals = append([]int(nil), rec.Confidence.Signals...)

	return models.RunRecord{
		RunID:           r.newID(),
		Timestamp:       r.now().UTC(),
		Identifier:      identifier,
		Strategy:        rec.Strategy,
		Horizon:         rec.Horizon,
		Rating:          rec.Rating,
		OverallScore:    rec.OverallScore,
		FactorMatrix:    models.CloneMatrix(rec.FactorMatrix),
		Narrative:       rec.Narrative,
		NarrativeSource: rec.NarrativeSource,
		Confidence:      conf,
		Headlines:       models.CloneHeadlines(rec.Headlines),
		Audit: models.Audit{
			Metrics: rec.RawMetrics.Clone(),
			Weights: maps.Clone(rec.Weights),
			Model:   modelName,
		},
	}
}

// Persist hands rec to the store. A failure is logged and returned; it
// never invalidates the recommendation the record came from.
func (r *Recorder) Persist(ctx context.Context, rec models.RunRecord) (string, error) {
	loc, err := r.store.Save(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("run_id", rec.RunID).Str("ticker", rec.Identifier).Msg("persist run record")
		return "", err
	}
	if loc != "" {
		log.Info().Str("run_id", rec.RunID).Str("location", loc).Msg("run recorded")
	}
	return loc, nil
}

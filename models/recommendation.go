package models

import "time"

// Factor names in canonical order.
const (
	FactorValue     = "value"
	FactorQuality   = "quality"
	FactorGrowth    = "growth"
	FactorMomentum  = "momentum"
	FactorRisk      = "risk"
	FactorSentiment = "sentiment"
)

var FactorOrder = []string{FactorValue, FactorQuality, FactorGrowth, FactorMomentum, FactorRisk, FactorSentiment}

type FactorScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// FactorScores keeps insertion order so matrix ties stay deterministic.
type FactorScores []FactorScore

func (s FactorScores) Get(name string) (float64, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Score, true
		}
	}
	return 0, false
}

// Set replaces the score for name or appends it.
func (s FactorScores) Set(name string, score float64) FactorScores {
	for i := range s {
		if s[i].Name == name {
			s[i].Score = score
			return s
		}
	}
	return append(s, FactorScore{Name: name, Score: score})
}

func (s FactorScores) Map() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, f := range s {
		out[f.Name] = f.Score
	}
	return out
}

type FactorMatrixRow struct {
	Factor       string  `json:"factor"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

func CloneMatrix(rows []FactorMatrixRow) []FactorMatrixRow {
	if rows == nil {
		return nil
	}
	out := make([]FactorMatrixRow, len(rows))
	copy(out, rows)
	return out
}

type Rating string

const (
	RatingBuy   Rating = "Buy"
	RatingHold  Rating = "Hold"
	RatingWatch Rating = "Watch"
	RatingAvoid Rating = "Avoid"
)

// Rank orders ratings from best (3) to worst (0).
func (r Rating) Rank() int {
	switch r {
	case RatingBuy:
		return 3
	case RatingHold:
		return 2
	case RatingWatch:
		return 1
	default:
		return 0
	}
}

type ConfidenceLabel string

const (
	ConfidenceHigh     ConfidenceLabel = "High"
	ConfidenceModerate ConfidenceLabel = "Moderate"
	ConfidenceLow      ConfidenceLabel = "Low"
)

type ConfidenceResult struct {
	Score   float64         `json:"score"`
	Label   ConfidenceLabel `json:"label"`
	Signals []int           `json:"signals"`
}

// Recommendation is the complete result of one analysis run.
type Recommendation struct {
	RunID           string             `json:"run_id"`
	Identifier      string             `json:"ticker"`
	Strategy        string             `json:"strategy"`
	Horizon         string             `json:"horizon"`
	Rating          Rating             `json:"rating"`
	OverallScore    float64            `json:"overall_score"`
	FactorMatrix    []FactorMatrixRow  `json:"factor_matrix"`
	Narrative       string             `json:"narrative"`
	NarrativeSource string             `json:"narrative_source"`
	Confidence      ConfidenceResult   `json:"confidence"`
	RawMetrics      RawMetrics         `json:"raw_metrics"`
	Weights         map[string]float64 `json:"weights"`
	Headlines       []Headline         `json:"news"`
	RecordLocation  string             `json:"record_location,omitempty"`
}

type Audit struct {
	Metrics RawMetrics         `json:"metrics"`
	Weights map[string]float64 `json:"weights"`
	Model   string             `json:"model"`
}

// RunRecord is the write-once audit trail of a run.
type RunRecord struct {
	RunID           string            `json:"run_id"`
	Timestamp       time.Time         `json:"timestamp"`
	Identifier      string            `json:"ticker"`
	Strategy        string            `json:"strategy"`
	Horizon         string            `json:"horizon"`
	Rating          Rating            `json:"rating"`
	OverallScore    float64           `json:"overall_score"`
	FactorMatrix    []FactorMatrixRow `json:"factor_matrix"`
	Narrative       string            `json:"narrative"`
	NarrativeSource string            `json:"narrative_source"`
	Confidence      ConfidenceResult  `json:"confidence"`
	Headlines       []Headline        `json:"news"`
	Audit           Audit             `json:"audit"`
}

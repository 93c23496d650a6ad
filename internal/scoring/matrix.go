package scoring

import (
	"sort"

	"github.com/dyike/CortexAdvisor/models"
)

// Weights maps a factor name to its weight in [0, 1]. Weights are not
// normalized: the overall score is the literal weighted sum, and a factor
// with no weight contributes nothing.
type Weights map[string]float64

func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// BuildMatrix weights every scored factor and returns the rows ordered by
// descending contribution (ties keep score order) plus the overall score.
func BuildMatrix(scores models.FactorScores, weights Weights) ([]models.FactorMatrixRow, float64) {
	rows := make([]models.FactorMatrixRow, 0, len(scores))
	var total float64

	for _, f := range scores {
		weight := weights[f.Name]
		contribution := f.Score * weight
		total += contribution

		rows = append(rows, models.FactorMatrixRow{
			Factor:       f.Name,
			Score:        Round(f.Score, 2),
			Weight:       Round(weight, 4),
			Contribution: Round(contribution, 2),
		})
	}

	// order by the displayed contribution so rows that print equal keep input order
	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].Contribution > rows[b].Contribution
	})
	return rows, Round(total, 2)
}

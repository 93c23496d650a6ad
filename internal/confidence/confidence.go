// Package confidence measures how uniformly a set of narratives reads.
package confidence

import (
	"math"
	"strings"

	"github.com/dyike/CortexAdvisor/models"
)

var (
	positiveWords = []string{"strong", "positive", "tailwind", "supportive"}
	negativeWords = []string{"risk", "weak", "headwind", "uncertain", "downside"}
)

// Signal classifies a text as +1, -1 or 0. Positive keywords win when both
// kinds appear; an empty text is neutral.
func Signal(text string) int {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return 0
	}
	for _, w := range positiveWords {
		if strings.Contains(t, w) {
			return 1
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(t, w) {
			return -1
		}
	}
	return 0
}

// Compute scores agreement as 1 - (distinct-1)/max(n,1), scaled to 0..100
// and rounded to one decimal. A single text always agrees with itself.
func Compute(texts []string) models.ConfidenceResult {
	signals := make([]int, 0, len(texts))
	distinct := make(map[int]struct{}, 3)
	for _, t := range texts {
		s := Signal(t)
		signals = append(signals, s)
		distinct[s] = struct{}{}
	}

	diversity := len(distinct)
	if diversity == 0 {
		diversity = 1
	}
	n := len(signals)
	if n == 0 {
		n = 1
	}
	agreement := 1 - float64(diversity-1)/float64(n)
	score := math.Round(agreement*1000) / 10
	score = math.Max(0, math.Min(100, score))

	return models.ConfidenceResult{
		Score:   score,
		Label:   Label(score),
		Signals: signals,
	}
}

// ComputeAcrossRoles evaluates the report of each analyst role, in order,
// followed by the final narrative. A role without a report counts as an
// empty, neutral text.
func ComputeAcrossRoles(roles []string, reports map[string]string, narrative string) models.ConfidenceResult {
	texts := make([]string, 0, len(roles)+1)
	for _, r := range roles {
		texts = append(texts, reports[r])
	}
	texts = append(texts, narrative)
	return Compute(texts)
}

func Label(score float64) models.ConfidenceLabel {
	switch {
	case score >= 75:
		return models.ConfidenceHigh
	case score >= 50:
		return models.ConfidenceModerate
	default:
		return models.ConfidenceLow
	}
}

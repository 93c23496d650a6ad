package narrative

import (
	"fmt"
	"strings"

	"github.com/dyike/CortexAdvisor/models"
)

const fallbackDrivers = 3

// Fallback renders a deterministic narrative from the rating, overall score
// and top matrix rows only.
func Fallback(identifier string, rating models.Rating, overall float64, matrix []models.FactorMatrixRow) string {
	if strings.TrimSpace(identifier) == "" {
		identifier = "UNKNOWN"
	}
	if rating == "" {
		rating = models.RatingAvoid
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Investment Narrative for %s:\n\n", identifier)
	fmt.Fprintf(&b, "The current recommendation is **%s**, with an overall score of %.1f. ", rating, overall)
	b.WriteString("The analysis is driven primarily by:\n\n")

	top := matrix
	if len(top) > fallbackDrivers {
		top = top[:fallbackDrivers]
	}
	for i, row := range top {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s (weighted impact %.1f)", row.Factor, row.Contribution)
	}
	if len(top) == 0 {
		b.WriteString("- no weighted factors were available")
	}

	b.WriteString("\n\nThis narrative reflects a rules-based interpretation of quantitative ")
	b.WriteString("signals and risk factors to support informed decision-making.")
	return b.String()
}

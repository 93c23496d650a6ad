// Package report renders a recommendation as a standalone Markdown file.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/internal/storage"
	"github.com/dyike/CortexAdvisor/models"
)

func Markdown(rec *models.Recommendation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s: %s\n\n", rec.Identifier, rec.Rating)
	fmt.Fprintf(&b, "- Overall score: **%.2f** / 100\n", rec.OverallScore)
	fmt.Fprintf(&b, "- Strategy: %s\n", rec.Strategy)
	if rec.Horizon != "" {
		fmt.Fprintf(&b, "- Horizon: %s\n", rec.Horizon)
	}
	fmt.Fprintf(&b, "- Confidence: %s (%.1f)\n", rec.Confidence.Label, rec.Confidence.Score)
	if rec.RunID != "" {
		fmt.Fprintf(&b, "- Run: `%s`\n", rec.RunID)
	}

	b.WriteString("\n## Factor matrix\n\n")
	b.WriteString("| Factor | Score | Weight | Contribution |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, row := range rec.FactorMatrix {
		fmt.Fprintf(&b, "| %s | %.2f | %.4f | %.2f |\n", row.Factor, row.Score, row.Weight, row.Contribution)
	}

	fmt.Fprintf(&b, "\n## Narrative (%s)\n\n%s\n", rec.NarrativeSource, strings.TrimSpace(rec.Narrative))

	if len(rec.Headlines) > 0 {
		b.WriteString("\n## Headlines\n\n")
		for _, h := range rec.Headlines {
			if h.Link != "" {
				fmt.Fprintf(&b, "- [%s](%s) (%s)\n", h.Title, h.Link, h.Publisher)
			} else {
				fmt.Fprintf(&b, "- %s (%s)\n", h.Title, h.Publisher)
			}
		}
	}
	return b.String()
}

// WriteMarkdown writes the report to dir and returns the file path. The file
// name follows the run record naming so the two sort together.
func WriteMarkdown(dir string, rec *models.Recommendation) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	name := storage.SafeName(rec.Identifier)
	if rec.RunID != "" {
		name += "_" + rec.RunID
	}
	path := filepath.Join(dir, name+".md")
	if err := os.WriteFile(path, []byte(Markdown(rec)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("report written")
	return path, nil
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexAdvisor/consts"
	"github.com/dyike/CortexAdvisor/internal/scoring"
	"github.com/dyike/CortexAdvisor/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1).
			Width(80)

	narrativeStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(0, 1).
			Width(80)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))
)

func ratingStyle(r models.Rating) lipgloss.Style {
	switch r {
	case models.RatingBuy:
		return successStyle
	case models.RatingHold:
		return infoStyle.Bold(true)
	case models.RatingWatch:
		return warningStyle
	default:
		return errorStyle
	}
}

func DisplayWelcomeBanner(w io.Writer) {
	banner := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true).
		Align(lipgloss.Center).
		Width(80).
		Render("C O R T E X   A D V I S O R")
	tagline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6")).
		Italic(true).
		Align(lipgloss.Center).
		Width(80).
		Render("Factor scores, strategy weights and a narrative you can audit")
	fmt.Fprintf(w, "%s\n%s\n\n", banner, tagline)
}

func DisplayError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("x "+err.Error()))
}

func DisplayInfo(w io.Writer, message string) {
	fmt.Fprintln(w, infoStyle.Render(message))
}

func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, successStyle.Render("+ "+message))
}

// RenderRecommendation lays out the headline, the weighted matrix, the
// narrative and the confidence line of one run.
func RenderRecommendation(rec *models.Recommendation) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s  %s",
		titleStyle.Render(rec.Identifier),
		ratingStyle(rec.Rating).Render(string(rec.Rating)),
		fmt.Sprintf("%.2f / 100", rec.OverallScore))
	b.WriteString(header + "\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("strategy %s | horizon %s | run %s", rec.Strategy, orDash(rec.Horizon), orDash(rec.RunID))) + "\n\n")

	b.WriteString(panelStyle.Render(renderMatrix(rec.FactorMatrix)) + "\n")

	source := "model"
	if rec.NarrativeSource == consts.Source_Fallback {
		source = "rules-based fallback"
	}
	b.WriteString(labelStyle.Render("narrative ("+source+")") + "\n")
	b.WriteString(narrativeStyle.Render(strings.TrimSpace(rec.Narrative)) + "\n")

	b.WriteString(fmt.Sprintf("Confidence: %s (%.1f)\n", rec.Confidence.Label, rec.Confidence.Score))
	if rec.RecordLocation != "" {
		b.WriteString(labelStyle.Render("recorded at "+rec.RecordLocation) + "\n")
	}
	return b.String()
}

func renderMatrix(rows []models.FactorMatrixRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %8s %8s %12s\n", "factor", "score", "weight", "contribution")
	for _, row := range rows {
		fmt.Fprintf(&b, "%-10s %8.2f %8.4f %12.2f\n", row.Factor, row.Score, row.Weight, row.Contribution)
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderRanking(title string, recs []*models.Recommendation) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n")
	if len(recs) == 0 {
		b.WriteString(labelStyle.Render("no symbols could be ranked") + "\n")
		return b.String()
	}
	for i, rec := range recs {
		fmt.Fprintf(&b, "%2d. %-8s %6.2f  %s  %s\n", i+1, rec.Identifier, rec.OverallScore,
			ratingStyle(rec.Rating).Render(fmt.Sprintf("%-5s", rec.Rating)),
			labelStyle.Render(fmt.Sprintf("confidence %s", rec.Confidence.Label)))
	}
	return b.String()
}

func RenderHistory(runs []models.RunRecord) string {
	if len(runs) == 0 {
		return labelStyle.Render("no recorded runs")
	}
	var b strings.Builder
	for _, run := range runs {
		fmt.Fprintf(&b, "%s  %-8s %-10s %6.2f  %s  %s\n",
			run.Timestamp.Local().Format("2006-01-02 15:04"),
			run.Identifier, run.Strategy, run.OverallScore,
			ratingStyle(run.Rating).Render(fmt.Sprintf("%-5s", run.Rating)),
			labelStyle.Render(run.RunID))
	}
	return b.String()
}

func RenderStrategies(book *scoring.Book) string {
	var b strings.Builder
	t := book.Thresholds()
	b.WriteString(labelStyle.Render(fmt.Sprintf("thresholds: buy >= %.0f, hold >= %.0f, watch >= %.0f", t.Buy, t.Hold, t.Watch)) + "\n")
	for _, s := range book.Strategies() {
		b.WriteString(titleStyle.Render(s.Name) + "\n")
		for _, factor := range models.FactorOrder {
			w, ok := s.Weights[factor]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  %-10s %.2f\n", factor, w)
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAdvisor/models"
)

func TestMarkdown(t *testing.T) {
	rec := &models.Recommendation{
		RunID:           "abc",
		Identifier:      "BRK.B",
		Strategy:        "Value",
		Rating:          models.RatingBuy,
		OverallScore:    81.5,
		FactorMatrix:    []models.FactorMatrixRow{{Factor: "value", Score: 90, Weight: 0.35, Contribution: 31.5}},
		Narrative:       "  Cheap and steady.  ",
		NarrativeSource: "model",
		Confidence:      models.ConfidenceResult{Score: 66.7, Label: models.ConfidenceModerate},
		Headlines: []models.Headline{
			{Title: "Berkshire buys", Publisher: "Wire", Link: "http://x"},
			{Title: "Annual letter", Publisher: "Unknown"},
		},
	}

	md := Markdown(rec)
	assert.Contains(t, md, "# BRK.B: Buy")
	assert.Contains(t, md, "| value | 90.00 | 0.3500 | 31.50 |")
	assert.Contains(t, md, "## Narrative (model)\n\nCheap and steady.\n")
	assert.Contains(t, md, "- [Berkshire buys](http://x) (Wire)")
	assert.Contains(t, md, "- Annual letter (Unknown)")
	assert.NotContains(t, md, "Horizon")

	path, err := WriteMarkdown(filepath.Join(t.TempDir(), "reports"), rec)
	require.NoError(t, err)
	assert.Equal(t, "BRK.B_abc.md", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, md, string(data))
}

func TestHTML(t *testing.T) {
	rec := &models.Recommendation{
		Identifier:   "ACME",
		Rating:       models.RatingHold,
		OverallScore: 73.33,
		FactorMatrix: []models.FactorMatrixRow{{Factor: "value", Score: 100, Weight: 0.2, Contribution: 20}},
		Narrative:    "Fair value <script>alert(1)</script>",
	}
	page, err := HTML(rec)
	require.NoError(t, err)

	out := string(page)
	assert.Contains(t, out, "<title>ACME: Hold</title>")
	assert.Contains(t, out, "<h1>ACME: Hold</h1>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>value</td>")
	assert.NotContains(t, out, "<script>")
}

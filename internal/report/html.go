package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dyike/CortexAdvisor/models"
)

// raw HTML in the narrative is escaped, goldmark's default.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Linkify),
)

const pageTemplate = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title>
<style>body{font-family:sans-serif;max-width:48rem;margin:2rem auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem}</style>
</head><body>
%s</body></html>
`

// HTML renders the Markdown report as a standalone page.
func HTML(rec *models.Recommendation) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(rec)), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	title := html.EscapeString(fmt.Sprintf("%s: %s", rec.Identifier, rec.Rating))
	return []byte(fmt.Sprintf(pageTemplate, title, body.String())), nil
}

package extraction

import (
	"encoding/json"
	"strings"

	"github.com/docsmith/docex-api/internal/domain"
)

// structuredPayload is the shape the model is instructed to produce: the
// extracted text plus tables as arrays of headers and rows.
type structuredPayload struct {
	Text   string         `json:"text"`
	Tables []domain.Table `json:"tables"`
}

// parseModelText interprets the raw model output as a single extracted page.
// The model usually wraps its structured answer in a ```json fence; anything
// that does not parse falls back to plain text, never an error.
func parseModelText(raw string) domain.Page {
	data := strings.TrimSpace(raw)

	if strings.HasPrefix(data, "```json") && strings.HasSuffix(data, "```") {
		inner := strings.TrimSpace(data[len("```json") : len(data)-len("```")])

		var payload structuredPayload
		if err := json.Unmarshal([]byte(inner), &payload); err == nil {
			return domain.Page{Text: payload.Text, Tables: payload.Tables}
		}
	}

	return domain.Page{Text: raw}
}

// buildResult renders the pages into the terminal result payload.
func buildResult(pages []domain.Page, inputTokens, outputTokens int32) *domain.ExtractionResult {
	var tables []domain.Table
	for _, page := range pages {
		tables = append(tables, page.Tables...)
	}

	return &domain.ExtractionResult{
		Markdown:     domain.RenderMarkdown(pages),
		Tables:       tables,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
}

package domain

import (
	"fmt"
	"strings"
)

// Table is a table detected by the extraction model, represented as a header
// row plus data rows.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Page holds the extracted content of a single page of the source document.
type Page struct {
	Text   string  `json:"text"`
	Tables []Table `json:"tables,omitempty"`
}

// ExtractionResult is the terminal payload of a successful job: the rendered
// Markdown, any detected tables, and the token usage of the model call.
type ExtractionResult struct {
	Markdown     string  `json:"markdown"`
	Tables       []Table `json:"tables,omitempty"`
	InputTokens  int32   `json:"input_tokens,omitempty"`
	OutputTokens int32   `json:"output_tokens,omitempty"`
}

func (r *ExtractionResult) clone() *ExtractionResult {
	if r == nil {
		return nil
	}

	clone := *r
	clone.Tables = append([]Table(nil), r.Tables...)
	return &clone
}

// RenderMarkdown assembles the extracted pages into a single Markdown
// document: page text first, then each table as a pipe table under a
// "## Table N (Page M)" heading, with pages separated by a horizontal rule.
func RenderMarkdown(pages []Page) string {
	var b strings.Builder

	for pageNum, page := range pages {
		if page.Text != "" {
			b.WriteString(page.Text)
			b.WriteString("\n\n")
		}

		for i, table := range page.Tables {
			fmt.Fprintf(&b, "## Table %d (Page %d)\n\n", i+1, pageNum+1)
			b.WriteString("|" + strings.Join(table.Headers, "|") + "|\n")

			separators := make([]string, len(table.Headers))
			for j := range separators {
				separators[j] = "---"
			}
			b.WriteString("|" + strings.Join(separators, "|") + "|\n")

			for _, row := range table.Rows {
				b.WriteString("|" + strings.Join(row, "|") + "|\n")
			}
			b.WriteString("\n")
		}

		b.WriteString("---\n\n")
	}

	return b.String()
}

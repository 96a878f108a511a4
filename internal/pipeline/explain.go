package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duckask/duckask/internal/prompt"
	"github.com/duckask/duckask/internal/query"
)

const (
	previewMaxRows    = 10
	previewMaxColumns = 8
)

// explain asks the model to summarize the result. Failures here are
// non-fatal: the session keeps its Success outcome with no explanation.
func (c *Controller) explain(ctx context.Context, logger *slog.Logger, question string, outcome Outcome) string {
	preview := renderPreview(outcome.Result)
	text, err := c.Client.Generate(ctx, prompt.Explain(question, outcome.FinalSQL, preview))
	if err != nil {
		logger.Warn("explanation failed", slog.Any("error", err))
		return ""
	}
	return strings.TrimSpace(text)
}

// renderPreview flattens a bounded slice of the result into prompt text.
// Row and column counts are capped so result size never grows the prompt
// without bound.
func renderPreview(result query.Result) string {
	columns := result.Columns
	truncatedCols := false
	if len(columns) > previewMaxColumns {
		columns = columns[:previewMaxColumns]
		truncatedCols = true
	}
	if len(columns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")

	rows := result.Rows
	if len(rows) > previewMaxRows {
		rows = rows[:previewMaxRows]
	}
	for _, row := range rows {
		cells := make([]string, 0, len(columns))
		for i := range columns {
			if i < len(row) {
				cells = append(cells, fmt.Sprintf("%v", row[i]))
			}
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	if len(result.Rows) > previewMaxRows || truncatedCols {
		b.WriteString(fmt.Sprintf("(preview truncated; %d rows total)\n", len(result.Rows)))
	}
	return b.String()
}

package pipeline

import (
	"strings"
	"testing"

	"github.com/duckask/duckask/internal/query"
)

func TestRenderPreviewCapsRowsAndColumns(t *testing.T) {
	result := query.Result{}
	for i := 0; i < 12; i++ {
		result.Columns = append(result.Columns, "c")
	}
	for i := 0; i < 25; i++ {
		row := make([]any, len(result.Columns))
		for j := range row {
			row[j] = i
		}
		result.Rows = append(result.Rows, row)
	}

	preview := renderPreview(result)
	lines := strings.Split(strings.TrimRight(preview, "\n"), "\n")
	// header + capped rows + truncation note
	if len(lines) != 1+previewMaxRows+1 {
		t.Fatalf("preview lines = %d:\n%s", len(lines), preview)
	}
	if cols := strings.Count(lines[0], "|") + 1; cols != previewMaxColumns {
		t.Fatalf("preview columns = %d", cols)
	}
	if !strings.Contains(preview, "25 rows total") {
		t.Fatal("preview should note truncation")
	}
}

func TestRenderPreviewEmptyResult(t *testing.T) {
	if preview := renderPreview(query.Result{}); preview != "" {
		t.Fatalf("preview = %q, want empty", preview)
	}
}

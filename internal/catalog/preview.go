package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Preview is the per-table prompt context derived from the loaded data:
// a numeric stats summary and a bounded row sample, both pre-rendered.
type Preview struct {
	Stats  string
	Sample string
}

// BuildPreview assembles the prompt preview for a table. Both parts degrade
// to placeholders on failure; a preview never fails the run.
func BuildPreview(ctx context.Context, db *sql.DB, manifest Manifest, statsColumns, sampleRows int) Preview {
	return Preview{
		Stats:  NumericStats(ctx, db, manifest, statsColumns),
		Sample: SamplePreview(ctx, db, manifest.Table, sampleRows),
	}
}

// SampleRows returns up to limit rows from the table for prompt context.
// The source is never mutated; this is a plain bounded scan.
func SampleRows(ctx context.Context, db *sql.DB, table string, limit int) ([]string, [][]any, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), limit))
	if err != nil {
		return nil, nil, fmt.Errorf("sample rows for %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("sample columns: %w", err)
	}
	sampled := make([][]any, 0, limit)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan sample row: %w", err)
		}
		sampled = append(sampled, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate sample rows: %w", err)
	}
	return columns, sampled, nil
}

// SamplePreview renders up to limit sample rows as pipe-separated prompt
// text, header first. Failures degrade to a placeholder.
func SamplePreview(ctx context.Context, db *sql.DB, table string, limit int) string {
	columns, sampled, err := SampleRows(ctx, db, table, limit)
	if err != nil {
		return "(sample unavailable)"
	}
	if len(sampled) == 0 {
		return "(table is empty)"
	}
	lines := make([]string, 0, len(sampled)+1)
	lines = append(lines, strings.Join(columns, " | "))
	for _, row := range sampled {
		cells := make([]string, len(row))
		for i, value := range row {
			switch v := value.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	return strings.Join(lines, "\n")
}

// NumericStats builds an avg/min/max preview over the first maxColumns
// numeric columns, rendered as prompt text. Stats failures degrade to a
// placeholder rather than failing the run.
func NumericStats(ctx context.Context, db *sql.DB, manifest Manifest, maxColumns int) string {
	numeric := manifest.NumericColumns()
	if len(numeric) == 0 {
		return ""
	}
	if maxColumns <= 0 {
		maxColumns = 5
	}
	if len(numeric) > maxColumns {
		numeric = numeric[:maxColumns]
	}

	selects := make([]string, 0, len(numeric))
	for _, name := range numeric {
		quoted := quoteIdent(name)
		selects = append(selects, fmt.Sprintf("avg(%s), min(%s), max(%s)", quoted, quoted, quoted))
	}

	row := db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s", strings.Join(selects, ", "), quoteIdent(manifest.Table),
	))
	values := make([]any, len(numeric)*3)
	scanTargets := make([]any, len(values))
	for i := range values {
		scanTargets[i] = &values[i]
	}
	if err := row.Scan(scanTargets...); err != nil {
		return "(stats unavailable)"
	}

	lines := make([]string, 0, len(numeric))
	for i, name := range numeric {
		lines = append(lines, fmt.Sprintf(
			"- %s: avg=%v min=%v max=%v",
			name, values[i*3], values[i*3+1], values[i*3+2],
		))
	}
	return strings.Join(lines, "\n")
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

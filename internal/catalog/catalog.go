package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrNoColumns = errors.New("catalog: table has no columns")

type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeFloat   ColumnType = "float"
	TypeText    ColumnType = "text"
	TypeDate    ColumnType = "date"
	TypeBoolean ColumnType = "boolean"
)

type Column struct {
	Name string
	Type ColumnType
}

// Manifest describes a loaded table. It is built once per run and treated
// as immutable afterwards.
type Manifest struct {
	Table   string
	Columns []Column
}

// Introspect reads column names and types for the named table from the
// engine's information schema, in declared column order.
func Introspect(ctx context.Context, db *sql.DB, table string) (Manifest, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return Manifest{}, fmt.Errorf("introspect table %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	manifest := Manifest{Table: table}
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return Manifest{}, fmt.Errorf("scan column row: %w", err)
		}
		manifest.Columns = append(manifest.Columns, Column{Name: name, Type: mapType(dataType)})
	}
	if err := rows.Err(); err != nil {
		return Manifest{}, fmt.Errorf("iterate column rows: %w", err)
	}
	if len(manifest.Columns) == 0 {
		return Manifest{}, ErrNoColumns
	}
	return manifest, nil
}

// mapType folds the engine's declared type into the coarse column type set.
// Anything unrecognized, including mixed-value columns the CSV sniffer left
// as VARCHAR, falls back to text.
func mapType(dataType string) ColumnType {
	normalized := strings.ToUpper(strings.TrimSpace(dataType))
	if idx := strings.Index(normalized, "("); idx >= 0 {
		normalized = normalized[:idx]
	}
	switch normalized {
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT":
		return TypeInteger
	case "FLOAT", "REAL", "DOUBLE", "DECIMAL", "NUMERIC":
		return TypeFloat
	case "BOOLEAN":
		return TypeBoolean
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return TypeDate
	default:
		return TypeText
	}
}

// Summary renders the manifest as prompt-ready schema lines.
func (m Manifest) Summary() string {
	if len(m.Columns) == 0 {
		return "(no columns found)"
	}
	lines := make([]string, 0, len(m.Columns))
	for _, column := range m.Columns {
		lines = append(lines, fmt.Sprintf("- %s %s", column.Name, column.Type))
	}
	return strings.Join(lines, "\n")
}

func (m Manifest) NumericColumns() []string {
	var names []string
	for _, column := range m.Columns {
		if column.Type == TypeInteger || column.Type == TypeFloat {
			names = append(names, column.Name)
		}
	}
	return names
}

func (m Manifest) DateColumns() []string {
	var names []string
	for _, column := range m.Columns {
		if column.Type == TypeDate {
			names = append(names, column.Name)
		}
	}
	return names
}

func (m Manifest) HasColumn(name string) bool {
	for _, column := range m.Columns {
		if strings.EqualFold(column.Name, name) {
			return true
		}
	}
	return false
}

package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/duckask/duckask/internal/query"
	"github.com/duckask/duckask/internal/source"
)

func openFixture(t *testing.T) *source.Handle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	csv := "product,value\nwidget,10.0\nwidget,20.0\ngadget,5.0\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	handle, err := source.Open(context.Background(), path, "data")
	if err != nil {
		t.Fatalf("source.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })
	return handle
}

func TestExecuteAggregatesLoadedTable(t *testing.T) {
	handle := openFixture(t)
	engine := NewEngine(handle.DB(), 10*time.Second)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT product, AVG(value) AS avg_value FROM data GROUP BY product ORDER BY product",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "product" || result.Columns[1] != "avg_value" {
		t.Fatalf("columns = %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(result.Rows))
	}
	if result.Rows[0][0] != "gadget" {
		t.Fatalf("first product = %#v", result.Rows[0][0])
	}
}

func TestExecuteAppliesRowLimit(t *testing.T) {
	handle := openFixture(t)
	engine := NewEngine(handle.DB(), 10*time.Second)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT product FROM data;",
		RowLimit: 1,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
}

func TestExecuteSurfacesEngineErrors(t *testing.T) {
	handle := openFixture(t)
	engine := NewEngine(handle.DB(), 10*time.Second)

	if _, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT week FROM data",
	}); err == nil {
		t.Fatal("Execute() expected error for unknown column")
	}
}

func TestExecuteRejectsEmptySQL(t *testing.T) {
	handle := openFixture(t)
	engine := NewEngine(handle.DB(), 10*time.Second)

	if _, err := engine.Execute(context.Background(), query.Request{SQL: " ;; "}); err == nil {
		t.Fatal("Execute() expected error for empty sql")
	}
}

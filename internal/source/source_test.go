package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

type fixtureRow struct {
	Product string  `parquet:"product"`
	Value   float64 `parquet:"value"`
}

func TestOpenLoadsCSV(t *testing.T) {
	path := writeTempCSV(t, "product,value\nwidget,10.5\ngadget,3.25\n")

	handle, err := Open(context.Background(), path, "data")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = handle.Close() }()

	var count int
	if err := handle.DB().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM data").Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestOpenLoadsParquet(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[fixtureRow](buf)
	if _, err := writer.Write([]fixtureRow{{Product: "widget", Value: 1}, {Product: "gadget", Value: 2}}); err != nil {
		t.Fatalf("write parquet rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	path := filepath.Join(t.TempDir(), "data.parquet")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write parquet file: %v", err)
	}

	handle, err := Open(context.Background(), path, "data")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = handle.Close() }()

	var count int
	if err := handle.DB().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM data").Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestOpenRejectsMissingFile(t *testing.T) {
	if _, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "data"); err == nil {
		t.Fatal("Open() expected error for missing file")
	}
}

func TestOpenRejectsUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Open(context.Background(), path, "data"); err == nil {
		t.Fatal("Open() expected error for unsupported format")
	}
}

func TestOpenRejectsBadTableName(t *testing.T) {
	path := writeTempCSV(t, "a\n1\n")
	if _, err := Open(context.Background(), path, "data; DROP TABLE x"); err == nil {
		t.Fatal("Open() expected error for invalid table name")
	}
}

func TestHandleBlocksFilesystemAccessAfterLoad(t *testing.T) {
	csvPath := writeTempCSV(t, "a\n1\n")
	otherPath := writeTempCSV(t, "b\n2\n")

	handle, err := Open(context.Background(), csvPath, "data")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = handle.Close() }()

	escape := "SELECT * FROM read_csv_auto(" + quoteString(otherPath) + ")"
	if _, err := handle.DB().QueryContext(context.Background(), escape); err == nil {
		t.Fatal("expected filesystem access to be blocked after load")
	}
}

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

type fixedClient struct {
	sql string
}

func (f *fixedClient) Generate(context.Context, string) (string, error) {
	return f.sql, nil
}

func writeSalesCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	csv := "product,value\nwidget,10.0\nwidget,20.0\ngadget,5.0\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func newRunner(sql string) *Runner {
	return &Runner{
		Client:      &fixedClient{sql: sql},
		Model:       "test-model",
		MaxRepairs:  0,
		RowLimit:    50,
		ExecTimeout: 10 * time.Second,
		Workers:     2,
	}
}

func TestRunCountsPassedAndFailed(t *testing.T) {
	csvPath := writeSalesCSV(t)
	runner := newRunner("SELECT product, AVG(value) AS avg_value FROM data GROUP BY product")

	cases := []Case{
		{CSV: csvPath, Table: "data", Question: "average per product?", ExpectSQLContains: []string{"avg"}},
		{CSV: csvPath, Table: "data", Question: "median per product?", ExpectSQLContains: []string{"median"}},
		{CSV: csvPath, Table: "data", Question: "any result?"},
	}
	report := runner.Run(context.Background(), cases)

	if report.Passed+report.Failed != len(cases) {
		t.Fatalf("passed+failed = %d, want %d", report.Passed+report.Failed, len(cases))
	}
	if report.Passed != 2 || report.Failed != 1 {
		t.Fatalf("passed = %d failed = %d", report.Passed, report.Failed)
	}
	if !report.Results[0].Passed || report.Results[1].Passed || !report.Results[2].Passed {
		t.Fatalf("per-case outcomes = %+v", report.Results)
	}
}

func TestRunMinRowsExpectation(t *testing.T) {
	csvPath := writeSalesCSV(t)
	runner := newRunner("SELECT product FROM data")

	three := 3
	four := 4
	cases := []Case{
		{CSV: csvPath, Table: "data", Question: "rows?", ExpectMinRows: &three},
		{CSV: csvPath, Table: "data", Question: "rows?", ExpectMinRows: &four},
	}
	report := runner.Run(context.Background(), cases)
	if !report.Results[0].Passed {
		t.Fatalf("case with min_rows=3 should pass: %+v", report.Results[0])
	}
	if report.Results[1].Passed {
		t.Fatalf("case with min_rows=4 should fail: %+v", report.Results[1])
	}
}

func TestRunIsolatesBrokenCases(t *testing.T) {
	csvPath := writeSalesCSV(t)
	runner := newRunner("SELECT product FROM data")

	cases := []Case{
		{CSV: filepath.Join(t.TempDir(), "missing.csv"), Table: "data", Question: "anything?"},
		{CSV: csvPath, Table: "data", Question: "products?"},
	}
	report := runner.Run(context.Background(), cases)

	if report.Passed != 1 || report.Failed != 1 {
		t.Fatalf("passed = %d failed = %d", report.Passed, report.Failed)
	}
	if report.Results[0].Error == "" {
		t.Fatal("broken case should record its load error")
	}
	if !report.Results[1].Passed {
		t.Fatalf("healthy case affected by broken one: %+v", report.Results[1])
	}
}

func TestRunRejectedGenerationFailsCase(t *testing.T) {
	csvPath := writeSalesCSV(t)
	runner := newRunner("DROP TABLE data")

	report := runner.Run(context.Background(), []Case{
		{CSV: csvPath, Table: "data", Question: "tidy up?"},
	})
	if report.Failed != 1 {
		t.Fatalf("failed = %d, want 1", report.Failed)
	}
	if report.Results[0].Error == "" {
		t.Fatal("rejection reason should be recorded")
	}
}

func TestWriteParquetRoundTrip(t *testing.T) {
	csvPath := writeSalesCSV(t)
	runner := newRunner("SELECT product FROM data")
	report := runner.Run(context.Background(), []Case{
		{CSV: csvPath, Table: "data", Question: "products?"},
	})

	path := filepath.Join(t.TempDir(), "report.parquet")
	if err := WriteParquet(report, path); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}

	rows, err := parquet.ReadFile[reportRow](path)
	if err != nil {
		t.Fatalf("read report parquet: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("report rows = %d, want 1", len(rows))
	}
	if !rows[0].Passed || rows[0].Question != "products?" {
		t.Fatalf("report row = %+v", rows[0])
	}
}

package eval

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCasesJSONL(t *testing.T) {
	path := writeFile(t, "cases.jsonl", `
{"csv": "sales.csv", "question": "average value?", "expect_sql_contains": ["avg"]}

{"csv": "sales.csv", "question": "row count?", "table": "sales", "expect_min_rows": 1}
`)
	cases, err := LoadCases(path)
	if err != nil {
		t.Fatalf("LoadCases() error = %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(cases))
	}
	if cases[0].Table != "data" {
		t.Fatalf("default table = %q, want data", cases[0].Table)
	}
	if cases[1].Table != "sales" {
		t.Fatalf("table = %q", cases[1].Table)
	}
	if cases[1].ExpectMinRows == nil || *cases[1].ExpectMinRows != 1 {
		t.Fatalf("ExpectMinRows = %v", cases[1].ExpectMinRows)
	}
}

func TestLoadCasesYAML(t *testing.T) {
	path := writeFile(t, "cases.yaml", `
- csv: sales.csv
  question: average value?
  expect_sql_contains: [avg, group by]
- csv: sales.csv
  question: totals?
`)
	cases, err := LoadCases(path)
	if err != nil {
		t.Fatalf("LoadCases() error = %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(cases))
	}
	if len(cases[0].ExpectSQLContains) != 2 {
		t.Fatalf("ExpectSQLContains = %v", cases[0].ExpectSQLContains)
	}
}

func TestLoadCasesEmptySuite(t *testing.T) {
	path := writeFile(t, "cases.jsonl", "\n\n")
	if _, err := LoadCases(path); !errors.Is(err, ErrNoCases) {
		t.Fatalf("LoadCases() error = %v, want ErrNoCases", err)
	}
}

func TestLoadCasesRejectsIncompleteCase(t *testing.T) {
	for name, contents := range map[string]string{
		"missing question": `{"csv": "sales.csv"}`,
		"missing source":   `{"question": "average value?"}`,
	} {
		path := writeFile(t, "cases.jsonl", contents)
		if _, err := LoadCases(path); err == nil {
			t.Fatalf("%s: LoadCases() expected error", name)
		}
	}
}

func TestLoadCasesMissingFile(t *testing.T) {
	if _, err := LoadCases(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatal("LoadCases() expected error")
	}
}

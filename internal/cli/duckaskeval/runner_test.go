package duckaskeval

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/duckask/duckask/internal/config"
)

// promptClient picks a response by matching a question fragment inside the
// prompt, so cases stay deterministic under the worker pool.
type promptClient struct {
	byFragment map[string]string
	fallback   string
}

func (p *promptClient) Generate(_ context.Context, prompt string) (string, error) {
	for fragment, response := range p.byFragment {
		if strings.Contains(prompt, fragment) {
			return response, nil
		}
	}
	return p.fallback, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("duckask-eval", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func writeSuite(t *testing.T) (casesPath string) {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "orders.csv")
	content := "region,total\nnorth,120\nsouth,80\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	casesPath = filepath.Join(dir, "cases.jsonl")
	lines := `{"question": "list regions", "csv": "` + csvPath + `", "expect_sql_contains": ["region"]}
{"question": "sum that is never produced", "csv": "` + csvPath + `", "expect_sql_contains": ["sum("]}
`
	if err := os.WriteFile(casesPath, []byte(lines), 0o644); err != nil {
		t.Fatalf("write cases: %v", err)
	}
	return casesPath
}

func TestRunReportsPassAndFail(t *testing.T) {
	casesPath := writeSuite(t)
	client := &promptClient{
		byFragment: map[string]string{
			"list regions": "```sql\nSELECT region FROM data\n```",
		},
		fallback: "```sql\nSELECT total FROM data\n```",
	}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-cases", casesPath,
		"-workers", "2",
	}, Options{
		Config: testConfig(t),
		Client: client,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "list regions") || !strings.Contains(out, "sum that is never produced") {
		t.Fatalf("missing per-case lines: %s", out)
	}
	if !strings.Contains(out, "Eval results: 1/2 passed") {
		t.Fatalf("missing summary: %s", out)
	}
}

func TestRunAllPassingExitsZero(t *testing.T) {
	casesPath := writeSuite(t)
	client := &promptClient{
		byFragment: map[string]string{
			"sum that is never produced": "```sql\nSELECT sum(total) FROM data\n```",
		},
		fallback: "```sql\nSELECT region FROM data\n```",
	}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"-cases", casesPath}, Options{
		Config: testConfig(t),
		Client: client,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stdout=%s stderr=%s", code, stdout.String(), stderr.String())
	}
	if !strings.Contains(stdout.String(), "Eval results: 2/2 passed") {
		t.Fatalf("missing summary: %s", stdout.String())
	}
}

func TestRunExportsParquetReport(t *testing.T) {
	casesPath := writeSuite(t)
	parquetPath := filepath.Join(t.TempDir(), "report.parquet")
	client := &promptClient{fallback: "```sql\nSELECT region, sum(total) AS s FROM data GROUP BY region\n```"}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-cases", casesPath,
		"-parquet", parquetPath,
	}, Options{
		Config: testConfig(t),
		Client: client,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if _, err := os.Stat(parquetPath); err != nil {
		t.Fatalf("expected parquet report: %v", err)
	}
}

func TestRunMissingCasesFlag(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), nil, Options{
		Config: testConfig(t),
		Stderr: &stderr,
	})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Fatalf("expected usage output, got %s", stderr.String())
	}
}

func TestRunNegativeMaxRepairsIsUsageError(t *testing.T) {
	casesPath := writeSuite(t)

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-cases", casesPath,
		"-max-repairs", "-1",
	}, Options{
		Config: testConfig(t),
		Client: &promptClient{fallback: "SELECT 1"},
		Stderr: &stderr,
	})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "max-repairs") {
		t.Fatalf("expected max-repairs message, got %s", stderr.String())
	}
}

func TestRunUnreadableSuite(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-cases", filepath.Join(t.TempDir(), "absent.jsonl"),
	}, Options{
		Config: testConfig(t),
		Stderr: &stderr,
	})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "load cases") {
		t.Fatalf("expected load error, got %s", stderr.String())
	}
}

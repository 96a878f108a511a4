package duckaskeval

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/duckask/duckask/internal/config"
	"github.com/duckask/duckask/internal/eval"
	"github.com/duckask/duckask/internal/infer"
	"github.com/duckask/duckask/internal/observability"
	"github.com/duckask/duckask/internal/runlog"
)

// Options mirrors the single-question runner: resolved configuration plus
// the inference client seam for tests.
type Options struct {
	Config config.Config
	Client infer.Client
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	cfg := defaults.Config

	fs := flag.NewFlagSet("duckask-eval", flag.ContinueOnError)
	fs.SetOutput(stderr)

	casesPath := fs.String("cases", "", "JSONL or YAML case suite (required)")
	workers := fs.Int("workers", cfg.Eval.Workers, "concurrent cases")
	rowLimit := fs.Int("limit", cfg.Pipeline.RowLimit, "maximum rows returned per query")
	maxRepairs := fs.Int("max-repairs", cfg.Pipeline.MaxRepairs, "repair attempts after the first failure")
	modelTag := fs.String("model", cfg.Model.Tag, "Ollama model tag")
	baseURL := fs.String("base-url", cfg.Model.BaseURL, "Ollama base URL")
	logPath := fs.String("log-db", cfg.RunLog.Path, "DuckDB file for the run log (empty disables logging)")
	parquetPath := fs.String("parquet", cfg.Eval.ParquetPath, "Parquet file for the case-level report (empty disables export)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*casesPath) == "" {
		writeUsage(stderr)
		return 2
	}
	if *maxRepairs < 0 {
		_, _ = fmt.Fprintln(stderr, "-max-repairs must be >= 0")
		return 2
	}

	logger := defaults.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Observability.MetricsPath != "" {
		defer func() {
			if err := observability.WriteSnapshot(cfg.Observability.MetricsPath); err != nil {
				logger.Warn("metrics snapshot failed", "path", cfg.Observability.MetricsPath, "error", err)
			}
		}()
	}

	cases, err := eval.LoadCases(*casesPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load cases: %v\n", err)
		return 1
	}

	var recorder runlog.Recorder = runlog.Nop{}
	if strings.TrimSpace(*logPath) != "" {
		store, err := runlog.Open(ctx, *logPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "run log unavailable: %v\n", err)
			return 1
		}
		defer func() { _ = store.Close() }()
		recorder = store
	}

	client := defaults.Client
	if client == nil {
		client, err = infer.NewOllamaClient(infer.OllamaConfig{
			BaseURL:     *baseURL,
			Model:       *modelTag,
			Temperature: cfg.Model.Temperature,
			Timeout:     cfg.Model.Timeout,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "model client: %v\n", err)
			return 1
		}
	}

	runner := &eval.Runner{
		Client:      client,
		Recorder:    recorder,
		Logger:      logger,
		Model:       *modelTag,
		MaxRepairs:  *maxRepairs,
		RowLimit:    *rowLimit,
		ExecTimeout: cfg.Pipeline.ExecTimeout,
		SampleStats: cfg.Catalog.StatsColumns,
		SampleRows:  cfg.Catalog.SampleRows,
		Workers:     *workers,
	}

	report := runner.Run(ctx, cases)
	renderReport(stdout, report)

	if *parquetPath != "" {
		if err := eval.WriteParquet(report, *parquetPath); err != nil {
			_, _ = fmt.Fprintf(stderr, "parquet export: %v\n", err)
			return 1
		}
	}

	if report.Failed > 0 {
		return 1
	}
	return 0
}

func renderReport(stdout io.Writer, report eval.Report) {
	pass := pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprint("PASS")
	fail := pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("FAIL")

	for _, result := range report.Results {
		status := pass
		if !result.Passed {
			status = fail
		}
		_, _ = fmt.Fprintf(stdout, "[%s] %s", status, result.Case.Question)
		if !result.Passed && result.Error != "" {
			_, _ = fmt.Fprintf(stdout, " (%s)", result.Error)
		}
		_, _ = fmt.Fprintln(stdout)
	}
	_, _ = fmt.Fprintf(stdout, "\nEval results: %d/%d passed in %s\n",
		report.Passed, len(report.Results), report.Duration.Round(time.Millisecond))
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: duckask-eval -cases <file> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "flags:")
	_, _ = fmt.Fprintln(w, "  -cases        JSONL or YAML case suite (required)")
	_, _ = fmt.Fprintln(w, "  -workers      concurrent cases")
	_, _ = fmt.Fprintln(w, "  -limit        maximum rows returned per query")
	_, _ = fmt.Fprintln(w, "  -max-repairs  repair attempts after the first failure")
	_, _ = fmt.Fprintln(w, "  -model        Ollama model tag")
	_, _ = fmt.Fprintln(w, "  -base-url     Ollama base URL")
	_, _ = fmt.Fprintln(w, "  -log-db       DuckDB file for the run log")
	_, _ = fmt.Fprintln(w, "  -parquet      Parquet file for the case-level report")
}

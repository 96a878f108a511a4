package duckask

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/duckask/duckask/internal/catalog"
	"github.com/duckask/duckask/internal/config"
	"github.com/duckask/duckask/internal/infer"
	"github.com/duckask/duckask/internal/observability"
	"github.com/duckask/duckask/internal/pipeline"
	duckdbengine "github.com/duckask/duckask/internal/query/duckdb"
	"github.com/duckask/duckask/internal/runlog"
	"github.com/duckask/duckask/internal/source"
)

// Options carries the resolved configuration plus the seams the tests need.
// Client overrides the Ollama client when set.
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

	fs := flag.NewFlagSet("duckask", flag.ContinueOnError)
	fs.SetOutput(stderr)

	csvPath := fs.String("csv", "", "path to the CSV or Parquet file to query (required)")
	question := fs.String("q", "", "natural-language question (required)")
	table := fs.String("table", "data", "table name the file is loaded as")
	rowLimit := fs.Int("limit", cfg.Pipeline.RowLimit, "maximum rows returned per query")
	maxRepairs := fs.Int("max-repairs", cfg.Pipeline.MaxRepairs, "repair attempts after the first failure")
	modelTag := fs.String("model", cfg.Model.Tag, "Ollama model tag")
	baseURL := fs.String("base-url", cfg.Model.BaseURL, "Ollama base URL")
	logPath := fs.String("log-db", cfg.RunLog.Path, "DuckDB file for the run log (empty disables logging)")
	explain := fs.Bool("explain", cfg.Pipeline.ExplainEnabled, "generate a plain-language explanation on success")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*csvPath) == "" || strings.TrimSpace(*question) == "" {
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

	recorder, closeRecorder, err := openRecorder(ctx, *logPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "run log unavailable: %v\n", err)
		return 1
	}
	defer closeRecorder()

	handle, err := source.Open(ctx, *csvPath, *table)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load failed: %v\n", err)
		return 1
	}
	defer func() { _ = handle.Close() }()

	manifest, err := catalog.Introspect(ctx, handle.DB(), handle.Table())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "schema introspection failed: %v\n", err)
		return 1
	}
	preview := catalog.BuildPreview(ctx, handle.DB(), manifest, cfg.Catalog.StatsColumns, cfg.Catalog.SampleRows)

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

	controller := &pipeline.Controller{
		Client:     client,
		Engine:     duckdbengine.NewEngine(handle.DB(), cfg.Pipeline.ExecTimeout),
		Recorder:   recorder,
		Logger:     logger,
		Model:      *modelTag,
		SourcePath: handle.Path(),
		MaxRepairs: *maxRepairs,
		RowLimit:   *rowLimit,
		Explain:    *explain,
	}

	session := controller.Run(ctx, strings.TrimSpace(*question), manifest, preview)
	if !session.Outcome.Success {
		_, _ = fmt.Fprintf(stderr, "no valid query after %d attempt(s)\n", len(session.Attempts))
		if session.Outcome.FinalSQL != "" {
			_, _ = fmt.Fprintf(stderr, "last candidate:\n%s\n", session.Outcome.FinalSQL)
		}
		if session.Outcome.FinalError != "" {
			_, _ = fmt.Fprintf(stderr, "last error: %s\n", session.Outcome.FinalError)
		}
		return 1
	}

	renderSession(stdout, session)
	return 0
}

func openRecorder(ctx context.Context, path string) (runlog.Recorder, func(), error) {
	if strings.TrimSpace(path) == "" {
		return runlog.Nop{}, func() {}, nil
	}
	store, err := runlog.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func renderSession(stdout io.Writer, session pipeline.Session) {
	_, _ = fmt.Fprintln(stdout, pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("SQL"))
	_, _ = fmt.Fprintln(stdout, session.Outcome.FinalSQL)
	_, _ = fmt.Fprintln(stdout)

	result := session.Outcome.Result
	switch {
	case len(result.Rows) == 0:
		_, _ = fmt.Fprintln(stdout, "(no rows)")
	default:
		data := pterm.TableData{result.Columns}
		for _, row := range result.Rows {
			cells := make([]string, len(row))
			for i, value := range row {
				cells[i] = formatCell(value)
			}
			data = append(data, cells)
		}
		_ = pterm.DefaultTable.WithHasHeader().WithWriter(stdout).WithData(data).Render()
		_, _ = fmt.Fprintf(stdout, "%d row(s) in %s\n", len(result.Rows), result.Duration.Round(time.Millisecond))
	}

	if session.Outcome.Explanation != "" {
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Explanation"))
		_, _ = fmt.Fprintln(stdout, session.Outcome.Explanation)
	}
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", value)
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: duckask -csv <file> -q <question> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "flags:")
	_, _ = fmt.Fprintln(w, "  -csv          CSV or Parquet file to query (required)")
	_, _ = fmt.Fprintln(w, "  -q            natural-language question (required)")
	_, _ = fmt.Fprintln(w, "  -table        table name the file is loaded as (default data)")
	_, _ = fmt.Fprintln(w, "  -limit        maximum rows returned per query")
	_, _ = fmt.Fprintln(w, "  -max-repairs  repair attempts after the first failure")
	_, _ = fmt.Fprintln(w, "  -model        Ollama model tag")
	_, _ = fmt.Fprintln(w, "  -base-url     Ollama base URL")
	_, _ = fmt.Fprintln(w, "  -log-db       DuckDB file for the run log")
	_, _ = fmt.Fprintln(w, "  -explain      generate a plain-language explanation on success")
}

package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/duckask/duckask/internal/catalog"
	"github.com/duckask/duckask/internal/infer"
	"github.com/duckask/duckask/internal/pipeline"
	duckdbengine "github.com/duckask/duckask/internal/query/duckdb"
	"github.com/duckask/duckask/internal/runlog"
	"github.com/duckask/duckask/internal/source"
)

type CaseResult struct {
	Case     Case
	Passed   bool
	Success  bool
	SQL      string
	Error    string
	RowCount int
	Attempts int
}

type Report struct {
	Results  []CaseResult
	Passed   int
	Failed   int
	Duration time.Duration
}

// Runner drives the repair controller over a case suite. Cases share only
// the inference client and the append-only recorder, so they may run on a
// bounded worker pool.
type Runner struct {
	Client      infer.Client
	Recorder    runlog.Recorder
	Logger      *slog.Logger
	Model       string
	MaxRepairs  int
	RowLimit    int
	ExecTimeout time.Duration
	SampleStats int
	SampleRows  int
	Workers     int
}

// Run evaluates every case. One case failing, panicking, or refusing to
// load never aborts the batch; its failure is recorded and the rest
// proceed.
func (r *Runner) Run(ctx context.Context, cases []Case) Report {
	start := time.Now()
	report := Report{Results: make([]CaseResult, len(cases))}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range cases {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			report.Results[index] = r.runCase(ctx, cases[index])
		}(i)
	}
	wg.Wait()

	for _, result := range report.Results {
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(start)

	if r.Recorder != nil {
		if err := r.Recorder.RecordReport(ctx, runlog.ReportRecord{
			CaseCount: len(cases),
			Passed:    report.Passed,
			Failed:    report.Failed,
			Duration:  report.Duration,
		}); err != nil {
			r.logger().Warn("failed to record eval report", slog.Any("error", err))
		}
	}
	return report
}

func (r *Runner) runCase(ctx context.Context, c Case) (result CaseResult) {
	result = CaseResult{Case: c}
	defer func() {
		if recovered := recover(); recovered != nil {
			result.Passed = false
			result.Error = fmt.Sprintf("case panicked: %v", recovered)
		}
	}()

	handle, err := source.Open(ctx, c.CSV, c.Table)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() { _ = handle.Close() }()

	manifest, err := catalog.Introspect(ctx, handle.DB(), c.Table)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	preview := catalog.BuildPreview(ctx, handle.DB(), manifest, r.SampleStats, r.SampleRows)

	controller := &pipeline.Controller{
		Client:     r.Client,
		Engine:     duckdbengine.NewEngine(handle.DB(), r.ExecTimeout),
		Recorder:   r.recorder(),
		Logger:     r.logger(),
		Model:      r.Model,
		SourcePath: c.CSV,
		MaxRepairs: r.MaxRepairs,
		RowLimit:   r.RowLimit,
	}
	session := controller.Run(ctx, c.Question, manifest, preview)

	result.Success = session.Outcome.Success
	result.SQL = session.Outcome.FinalSQL
	result.Error = session.Outcome.FinalError
	result.RowCount = len(session.Outcome.Result.Rows)
	result.Attempts = len(session.Attempts)
	result.Passed = evaluate(c, session)
	return result
}

// evaluate applies the case's expectations to the terminal outcome.
func evaluate(c Case, session pipeline.Session) bool {
	if !session.Outcome.Success {
		return false
	}
	for _, substr := range c.ExpectSQLContains {
		if !strings.Contains(strings.ToLower(session.Outcome.FinalSQL), strings.ToLower(substr)) {
			return false
		}
	}
	if c.ExpectMinRows != nil && len(session.Outcome.Result.Rows) < *c.ExpectMinRows {
		return false
	}
	return true
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (r *Runner) recorder() runlog.Recorder {
	if r.Recorder != nil {
		return r.Recorder
	}
	return runlog.Nop{}
}

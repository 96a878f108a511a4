// Package pipeline drives one question through generate, validate, execute,
// and repair until it succeeds or the repair bound is exhausted.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duckask/duckask/internal/catalog"
	"github.com/duckask/duckask/internal/extract"
	"github.com/duckask/duckask/internal/infer"
	"github.com/duckask/duckask/internal/observability"
	"github.com/duckask/duckask/internal/prompt"
	"github.com/duckask/duckask/internal/query"
	"github.com/duckask/duckask/internal/runlog"
	"github.com/duckask/duckask/internal/safety"
)

// Attempt is one cycle of the repair loop. Attempts are append-only and
// become immutable once the controller moves past them.
type Attempt struct {
	Index        int
	Prompt       string
	RawOutput    string
	CandidateSQL string
	Verdict      safety.Verdict
	Executed     bool
	Result       *query.Result
	Problem      string
	Elapsed      time.Duration
}

// Outcome is the terminal state of a session. On failure, FinalSQL and
// FinalError carry the last candidate and the last problem verbatim so the
// user can refine the question manually.
type Outcome struct {
	Success     bool
	Result      query.Result
	Explanation string
	FinalSQL    string
	FinalError  string
}

type Session struct {
	ID       string
	Question string
	Table    string
	Attempts []Attempt
	Outcome  Outcome
	Duration time.Duration
}

// Controller orchestrates one session at a time: there is at most one
// in-flight inference or execution call per session, and every attempt is
// logged before the controller advances.
type Controller struct {
	Client     infer.Client
	Engine     query.Engine
	Recorder   runlog.Recorder
	Logger     *slog.Logger
	Model      string
	SourcePath string
	MaxRepairs int
	RowLimit   int
	Explain    bool
}

// Run answers a single question. All failures below the controller are
// recoverable and feed the repair loop; Run itself never returns an error,
// only a session with a terminal outcome.
func (c *Controller) Run(ctx context.Context, question string, manifest catalog.Manifest, preview catalog.Preview) Session {
	start := time.Now()
	session := Session{
		ID:       uuid.NewString(),
		Question: question,
		Table:    manifest.Table,
	}
	logger := c.logger().With(slog.String("session_id", session.ID))

	promptCtx := prompt.Context{
		Question: question,
		Table:    manifest.Table,
		Schema:   manifest.Summary(),
		Stats:    preview.Stats,
		Sample:   preview.Sample,
	}
	promptText := prompt.Initial(promptCtx)

	for attemptIndex := 0; ; attemptIndex++ {
		attempt := c.runAttempt(ctx, attemptIndex, promptText, manifest.Table)
		session.Attempts = append(session.Attempts, attempt)
		c.recordAttempt(ctx, logger, session.ID, attempt)

		if attempt.Problem == "" && attempt.Result != nil {
			session.Outcome = Outcome{
				Success:  true,
				Result:   *attempt.Result,
				FinalSQL: attempt.CandidateSQL,
			}
			break
		}

		logger.Debug("attempt failed",
			slog.Int("attempt", attemptIndex),
			slog.String("problem", attempt.Problem),
		)
		if attemptIndex >= c.MaxRepairs {
			session.Outcome = Outcome{
				FinalSQL:   attempt.CandidateSQL,
				FinalError: attempt.Problem,
			}
			break
		}
		promptText = prompt.Repair(promptCtx, attempt.CandidateSQL, attempt.Problem)
	}

	if session.Outcome.Success && c.Explain {
		session.Outcome.Explanation = c.explain(ctx, logger, question, session.Outcome)
	}

	session.Duration = time.Since(start)
	c.finalize(ctx, logger, &session)
	return session
}

// runAttempt performs one generate → extract → validate → execute cycle.
// An accepted candidate is always executed before the attempt is handed
// back.
func (c *Controller) runAttempt(ctx context.Context, index int, promptText, table string) Attempt {
	start := time.Now()
	attempt := Attempt{Index: index, Prompt: promptText}

	inferStart := time.Now()
	raw, err := c.Client.Generate(ctx, promptText)
	observability.ObserveInferenceDuration(time.Since(inferStart))
	if err != nil {
		attempt.Problem = "inference failed: " + err.Error()
		attempt.Elapsed = time.Since(start)
		observability.ObserveAttempt("inference_error")
		return attempt
	}
	attempt.RawOutput = raw

	candidate, err := extract.Extract(raw)
	if err != nil {
		attempt.Problem = "no SQL statement found in the model output"
		attempt.Elapsed = time.Since(start)
		observability.ObserveAttempt("extraction_error")
		return attempt
	}
	candidate = extract.Normalize(candidate, table)
	attempt.CandidateSQL = candidate

	attempt.Verdict = safety.Validate(candidate, table)
	if !attempt.Verdict.OK {
		attempt.Problem = attempt.Verdict.Reason()
		attempt.Elapsed = time.Since(start)
		observability.ObserveAttempt("rejected")
		observability.ObserveViolation(string(attempt.Verdict.Violation))
		return attempt
	}

	attempt.Executed = true
	result, execErr := c.Engine.Execute(ctx, query.Request{SQL: candidate, RowLimit: c.RowLimit})
	if execErr != nil {
		attempt.Problem = execErr.Error()
		attempt.Elapsed = time.Since(start)
		observability.ObserveAttempt("execution_error")
		return attempt
	}
	observability.ObserveExecutionDuration(result.Duration)
	attempt.Result = &result
	attempt.Elapsed = time.Since(start)
	observability.ObserveAttempt("accepted")
	return attempt
}

func (c *Controller) recordAttempt(ctx context.Context, logger *slog.Logger, sessionID string, attempt Attempt) {
	rec := runlog.AttemptRecord{
		SessionID:    sessionID,
		AttemptIndex: attempt.Index,
		Prompt:       attempt.Prompt,
		RawOutput:    attempt.RawOutput,
		CandidateSQL: attempt.CandidateSQL,
		Violation:    string(attempt.Verdict.Violation),
		Executed:     attempt.Executed,
		Elapsed:      attempt.Elapsed,
	}
	if attempt.Executed && attempt.Result == nil {
		rec.ExecutionError = attempt.Problem
	}
	if !attempt.Executed && attempt.CandidateSQL == "" {
		rec.ExecutionError = attempt.Problem
	}
	if attempt.Result != nil {
		rec.RowCount = len(attempt.Result.Rows)
	}
	if err := c.recorder().RecordAttempt(ctx, rec); err != nil {
		logger.Warn("failed to record attempt", slog.Int("attempt", attempt.Index), slog.Any("error", err))
	}
}

func (c *Controller) finalize(ctx context.Context, logger *slog.Logger, session *Session) {
	outcome := "failure"
	if session.Outcome.Success {
		outcome = "success"
	}
	observability.ObserveSession(outcome)

	rec := runlog.SessionRecord{
		SessionID:   session.ID,
		Question:    session.Question,
		TableName:   session.Table,
		SourcePath:  c.SourcePath,
		Model:       c.Model,
		Attempts:    len(session.Attempts),
		Success:     session.Outcome.Success,
		FinalSQL:    session.Outcome.FinalSQL,
		FinalError:  session.Outcome.FinalError,
		Explanation: session.Outcome.Explanation,
		RowCount:    len(session.Outcome.Result.Rows),
		Duration:    session.Duration,
	}
	if err := c.recorder().FinalizeSession(ctx, rec); err != nil {
		logger.Warn("failed to finalize session", slog.Any("error", err))
	}
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c *Controller) recorder() runlog.Recorder {
	if c.Recorder != nil {
		return c.Recorder
	}
	return runlog.Nop{}
}

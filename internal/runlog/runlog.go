// Package runlog persists every pipeline attempt and session outcome to a
// local DuckDB file for offline evaluation. Records are append-only; nothing
// here ever updates or deletes a row.
package runlog

import (
	"context"
	"time"
)

type AttemptRecord struct {
	SessionID      string
	AttemptIndex   int
	Prompt         string
	RawOutput      string
	CandidateSQL   string
	Violation      string
	ExecutionError string
	Executed       bool
	RowCount       int
	Elapsed        time.Duration
}

type SessionRecord struct {
	SessionID   string
	Question    string
	TableName   string
	SourcePath  string
	Model       string
	Attempts    int
	Success     bool
	FinalSQL    string
	FinalError  string
	Explanation string
	RowCount    int
	Duration    time.Duration
}

type ReportRecord struct {
	CaseCount int
	Passed    int
	Failed    int
	Duration  time.Duration
}

type Recorder interface {
	RecordAttempt(ctx context.Context, rec AttemptRecord) error
	FinalizeSession(ctx context.Context, rec SessionRecord) error
	RecordReport(ctx context.Context, rec ReportRecord) error
}

// Nop discards all records. Used when no log path is configured.
type Nop struct{}

func (Nop) RecordAttempt(context.Context, AttemptRecord) error   { return nil }
func (Nop) FinalizeSession(context.Context, SessionRecord) error { return nil }
func (Nop) RecordReport(context.Context, ReportRecord) error     { return nil }

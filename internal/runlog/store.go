package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// Store appends records to a DuckDB file. Writes are serialized behind a
// mutex so concurrent eval sessions never interleave partial records.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

var _ Recorder = (*Store)(nil)

func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("runlog path is required")
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open runlog %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an existing database handle; the caller owns migration.
// Used by tests that substitute a mock driver.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			ts TIMESTAMP DEFAULT current_timestamp,
			session_id VARCHAR,
			attempt_index INTEGER,
			prompt VARCHAR,
			raw_output VARCHAR,
			candidate_sql VARCHAR,
			violation VARCHAR,
			execution_error VARCHAR,
			executed BOOLEAN,
			row_count INTEGER,
			elapsed_ms DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			ts TIMESTAMP DEFAULT current_timestamp,
			session_id VARCHAR,
			question VARCHAR,
			table_name VARCHAR,
			source_path VARCHAR,
			model VARCHAR,
			attempts INTEGER,
			success BOOLEAN,
			final_sql VARCHAR,
			final_error VARCHAR,
			explanation VARCHAR,
			row_count INTEGER,
			duration_ms DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS safe_queries (
			ts TIMESTAMP DEFAULT current_timestamp,
			question VARCHAR,
			sql VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS eval_reports (
			ts TIMESTAMP DEFAULT current_timestamp,
			case_count INTEGER,
			passed INTEGER,
			failed INTEGER,
			duration_ms DOUBLE
		)`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate runlog: %w", err)
		}
	}
	return nil
}

func (s *Store) RecordAttempt(ctx context.Context, rec AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (
			session_id, attempt_index, prompt, raw_output, candidate_sql,
			violation, execution_error, executed, row_count, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.AttemptIndex, rec.Prompt, rec.RawOutput, rec.CandidateSQL,
		rec.Violation, rec.ExecutionError, rec.Executed, rec.RowCount,
		float64(rec.Elapsed.Microseconds())/1000.0,
	)
	if err != nil {
		return fmt.Errorf("record attempt %s/%d: %w", rec.SessionID, rec.AttemptIndex, err)
	}
	return nil
}

func (s *Store) FinalizeSession(ctx context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, question, table_name, source_path, model, attempts,
			success, final_sql, final_error, explanation, row_count, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Question, rec.TableName, rec.SourcePath, rec.Model,
		rec.Attempts, rec.Success, rec.FinalSQL, rec.FinalError, rec.Explanation,
		rec.RowCount, float64(rec.Duration.Microseconds())/1000.0,
	)
	if err != nil {
		return fmt.Errorf("finalize session %s: %w", rec.SessionID, err)
	}
	if rec.Success && rec.FinalSQL != "" {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO safe_queries (question, sql) VALUES (?, ?)`,
			rec.Question, rec.FinalSQL,
		); err != nil {
			return fmt.Errorf("record safe query for %s: %w", rec.SessionID, err)
		}
	}
	return nil
}

func (s *Store) RecordReport(ctx context.Context, rec ReportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eval_reports (case_count, passed, failed, duration_ms)
		VALUES (?, ?, ?, ?)`,
		rec.CaseCount, rec.Passed, rec.Failed,
		float64(rec.Duration.Microseconds())/1000.0,
	)
	if err != nil {
		return fmt.Errorf("record eval report: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

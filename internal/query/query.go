package query

import (
	"context"
	"time"
)

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Engine executes one validated, read-only statement. Engine errors are
// returned as ordinary errors; the caller turns them into repair input
// rather than terminating.
type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

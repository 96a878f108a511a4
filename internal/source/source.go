package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

var (
	ErrUnsupportedFormat = errors.New("source: unsupported file format")
	ErrBadTableName      = errors.New("source: invalid table name")
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Handle wraps an in-memory analytical database holding exactly one loaded
// table. After loading, external access is disabled on the connection, so
// even a statement that slips past validation cannot touch the filesystem
// or the network.
type Handle struct {
	db    *sql.DB
	table string
	path  string
}

// Open loads a CSV or parquet file into a fresh in-memory table and locks
// the connection down.
func Open(ctx context.Context, path, table string) (*Handle, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrBadTableName, table)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat source %q: %w", path, err)
	}

	var reader string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		reader = "read_csv_auto"
	case ".parquet":
		reader = "read_parquet"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// All statements must share the one connection that holds the table and
	// the lockdown settings.
	db.SetMaxOpenConns(1)

	loadSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s(%s)", table, reader, quoteString(path))
	if _, err := db.ExecContext(ctx, loadSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load source %q into table %q: %w", path, table, err)
	}

	for _, lockdown := range []string{
		"SET enable_external_access=false",
		"SET disabled_filesystems='LocalFileSystem'",
		"SET lock_configuration=true",
	} {
		if _, err := db.ExecContext(ctx, lockdown); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("lock down connection: %w", err)
		}
	}

	return &Handle{db: db, table: table, path: path}, nil
}

func (h *Handle) DB() *sql.DB {
	return h.db
}

func (h *Handle) Table() string {
	return h.table
}

func (h *Handle) Path() string {
	return h.path
}

func (h *Handle) Close() error {
	return h.db.Close()
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

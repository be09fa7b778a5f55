// Package dbpool is the single permitted path to the relational database: a
// bounded connection pool that only ever opens read-only transactions,
// grounded on the teacher's storage.NewCockroachStoresFromDSN dialing code.
package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ErrPoolExhausted is returned when a connection cannot be acquired within
// the configured acquire timeout.
var ErrPoolExhausted = errors.New("dbpool: connection pool exhausted")

// Config configures pool sizing and the read-only transaction deadline.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AcquireTimeout  time.Duration
}

// Pool wraps a *sql.DB, restricting every statement to a read-only
// transaction. It is safe for concurrent use.
type Pool struct {
	db             *sql.DB
	acquireTimeout time.Duration
}

// Open dials the database, applies pool knobs, and pings it with a bounded
// timeout before returning.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("dbpool: dsn is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbpool: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dbpool: ping: %w", err)
	}

	return &Pool{db: db, acquireTimeout: cfg.AcquireTimeout}, nil
}

// NewWithDB wraps an already-opened *sql.DB, bypassing Open's dialing and
// ping. Used by callers that construct the pool from a pre-existing
// connection (sqlmock in tests, a connection handed off by a supervisor).
func NewWithDB(db *sql.DB, acquireTimeout time.Duration) *Pool {
	return &Pool{db: db, acquireTimeout: acquireTimeout}
}

// Close releases every pooled connection.
func (p *Pool) Close() error {
	return p.db.Close()
}

// Ping verifies the underlying connection is reachable, for liveness checks.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Row is one result row, column name to decoded value.
type Row map[string]any

// Result is the JSON-serializable shape returned by the query tool.
type Result struct {
	RowCount int   `json:"rowCount"`
	Rows     []Row `json:"rows"`
}

// ExecuteReadOnly runs stmt inside an engine-level read-only transaction:
// begin, run, commit. Any error rolls back and is surfaced to the caller;
// no mutating statement can ever reach the database through this path,
// since BeginTx with ReadOnly true rejects writes at the engine, not by
// inspecting the SQL text.
func (p *Pool) ExecuteReadOnly(ctx context.Context, stmt string, args ...any) (*Result, error) {
	var result *Result
	err := p.withReadOnlyConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := scanRows(ctx, tx, stmt, args...)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withReadOnlyConn runs fn against a single read-only transaction, letting
// a caller that needs more than one statement see a consistent snapshot
// instead of composing several independent ExecuteReadOnly calls. fn's
// error rolls the transaction back; a nil error commits it.
func (p *Pool) withReadOnlyConn(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(acquireCtx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		if isPoolExhausted(err) {
			return ErrPoolExhausted
		}
		return fmt.Errorf("dbpool: begin: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbpool: commit: %w", err)
	}
	return nil
}

func scanRows(ctx context.Context, tx *sql.Tx, stmt string, args ...any) (*Result, error) {
	rows, err := tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("dbpool: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dbpool: columns: %w", err)
	}

	result := &Result{Rows: []Row{}}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("dbpool: scan: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dbpool: rows: %w", err)
	}
	return result, nil
}

// normalizeValue turns driver-returned []byte (lib/pq's representation for
// many column types) into a string so JSON marshaling produces readable
// text instead of a base64 blob.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func isPoolExhausted(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// StringArray adapts a Go string slice for a driver parameter that targets a
// Postgres array column, used by introspection queries filtering on a list
// of schema names.
func StringArray(values []string) any {
	return pq.Array(values)
}

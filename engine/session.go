package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Session owns one analytical engine handle for exactly one control run
// (§5: "single-writer per session ... sessions do not share handles").
// MaxOpenConns is pinned to 1 so a session can never observe its own
// concurrent writes out of order.
type Session struct {
	db *sql.DB
}

// NewSession opens a fresh in-process analytical session. dbPath is
// typically ":memory:" — evidence is read through read_parquet() table
// functions embedded in the compiled SQL, not through the session's own
// storage file. memoryLimitMB, when positive, is applied as the session's
// hard memory ceiling (§4.9, §5); zero or negative leaves DuckDB's default
// in effect.
func NewSession(ctx context.Context, dbPath string, memoryLimitMB int) (*Session, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("engine: open session: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: ping session: %w", err)
	}
	if memoryLimitMB > 0 {
		stmt := fmt.Sprintf("SET memory_limit='%dMB'", memoryLimitMB)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("engine: set memory_limit: %w", err)
		}
	}
	return &Session{db: db}, nil
}

// Close releases the session's analytical engine handle.
func (s *Session) Close() error {
	return s.db.Close()
}

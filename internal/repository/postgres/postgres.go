// Package postgres implements the relational repositories behind the
// reconciler, orchestrator, and report generator. All statements use
// database/sql with positional placeholders; upserts rely on
// INSERT ... ON CONFLICT so idempotence holds under concurrent writers.
package postgres

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Open connects to Postgres and configures the pool.
func Open(url string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	return db, nil
}

// nullString maps empty strings to SQL NULL for optional columns.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

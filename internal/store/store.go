// Package store is the only part of this pipeline that talks to Postgres.
// It owns transaction lookup, schema bootstrap, and the one-statement
// CTE writes that materialize each K action kind.
package store

import (
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/thesheepcat/k-transaction-processor/internal/klog"
)

var logger = klog.Named("store")

// ErrNotFound is returned by FetchTransaction when no row matches the id.
var ErrNotFound = errors.New("store: transaction not found")

// Store wraps a connection pool. It is safe for concurrent use by multiple
// workers; *sql.DB already pools and synchronizes its own connections.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened pool. Opening and configuring the pool
// (MaxOpenConns, MaxIdleConns) is the caller's responsibility, mirroring
// config.go's connection parameters.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens a new pool against dsn using the lib/pq driver.
func Open(dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	return db, nil
}

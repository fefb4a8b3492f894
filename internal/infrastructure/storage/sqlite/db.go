// Package sqlite implements storage.Backend on an embedded SQLite database
// (modernc.org/sqlite, no cgo). It backs the engine tests and single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Memory is the DSN of a private in-memory database.
const Memory = ":memory:"

// Open opens path with WAL and a busy timeout.
//
// The pool holds a single connection: SQLite allows one writer, and an
// in-memory database lives only as long as its connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path != Memory && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

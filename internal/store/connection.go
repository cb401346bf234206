// Package store is the storage layer: a pooled SQLite connection, a goose
// migration runner, and typed readers/writers for every PCG Arena entity.
package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Default connection pool tuning, matched to a single-writer embedded database.
const (
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 2 * time.Minute
)

// Open opens a SQLite database at path with connection pooling, foreign
// keys enabled, and WAL journaling for better read/write concurrency.
func Open(path string) (*sql.DB, error) {
	return OpenWithPool(path, defaultMaxOpenConns, defaultMaxIdleConns, defaultConnMaxLifetime, defaultConnMaxIdleTime)
}

// OpenWithPool is Open with explicit pool tuning, used when config overrides
// the defaults.
//
// Pragmas are carried on the DSN itself (modernc.org/sqlite's _pragma query
// parameter) rather than run once via db.Exec after opening: Exec only
// reaches whichever single connection the pool happens to hand it, so once
// the pool grows past one connection under load, later connections would
// open with foreign_keys still off. A DSN-level pragma is applied by the
// driver to every connection it opens, pooled or not.
func OpenWithPool(path string, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	db.SetConnMaxIdleTime(maxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// dsn appends the per-connection pragmas PCG Arena depends on (foreign-key
// enforcement, WAL journaling, a busy timeout so the single writer never
// hard-fails on SQLITE_BUSY under momentary contention).
func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// OpenInMemory opens an in-memory SQLite database with the same pragmas as
// Open. Used by tests.
func OpenInMemory() (*sql.DB, error) {
	return Open(":memory:")
}

package store

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every query method on
// Store can run against either a pooled connection or an open transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the single-writer entry point for all persistence. Every typed
// reader/writer method hangs off Store so callers never touch raw SQL.
type Store struct {
	db   *sql.DB
	conn DBTX
}

// New wraps a pooled *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db, conn: db}
}

// withConn returns a Store bound to the given DBTX (a *sql.DB or a *sql.Tx),
// so the same query methods work inside and outside transactions.
func (s *Store) withConn(conn DBTX) *Store {
	return &Store{db: s.db, conn: conn}
}

// WithTx runs fn inside a single SQL transaction. It commits on a nil
// return and rolls back on any error or panic, so the four-effect vote
// transaction (and every other mutating path) is observed all-or-nothing.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	err = fn(s.withConn(sqlTx))
	return err
}

// DB exposes the underlying pooled connection, for migrations and backups.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Backup snapshots the database to destPath using SQLite's own VACUUM INTO,
// which serializes pages consistently without blocking concurrent writers.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath)
	return err
}

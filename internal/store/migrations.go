package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
)

// RunMigrations applies every pending, lexicographically-ordered migration
// under dir in its own transaction. Goose's own version-tracking table
// (goose_db_version) serves as the schema_migrations ledger: it is created
// on first use if absent, so the very first migration is always applied
// against a bootstrap-clean database. Re-running against an
// already-migrated database is a no-op.
func RunMigrations(db *sql.DB, dir string) error {
	goose.SetBaseFS(nil)
	goose.SetLogger(log.New(os.Stdout, "[migrations] ", log.LstdFlags))

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Rollback reverts the most recently applied migration under dir.
func Rollback(db *sql.DB, dir string) error {
	goose.SetBaseFS(nil)
	goose.SetLogger(log.New(os.Stdout, "[migrations] ", log.LstdFlags))

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Down(db, dir); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Status prints the applied/pending state of every migration under dir.
func Status(db *sql.DB, dir string) error {
	goose.SetBaseFS(nil)
	goose.SetLogger(log.New(os.Stdout, "[migrations] ", log.LstdFlags))

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	return goose.Status(db, dir)
}

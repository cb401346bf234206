// Package storetest provides a shared in-memory database fixture for tests
// across service packages, so every package test runs the real migrations
// against a fresh :memory: SQLite database rather than hand-duplicating the
// schema.
package storetest

import (
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"

	"pcgarena/internal/store"
)

// migrationsDir resolves to db/migrations at the repository root, anchored
// to this source file's location so it works regardless of which package
// imports storetest.
func migrationsDir() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "db", "migrations")
}

// NewDB opens an in-memory SQLite database, applies every migration, and
// registers cleanup to close it.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := store.RunMigrations(db, migrationsDir()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// NewStore is NewDB wrapped in a *store.Store.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(NewDB(t))
}

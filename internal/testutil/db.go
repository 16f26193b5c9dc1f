// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/database"
	"github.com/mkoziy/acat/internal/migrations"
)

// NewDB returns a migrated SQLite database in a temporary directory.
func NewDB(t testing.TB) *bun.DB {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "acat.db"), false)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mkoziy/acat/internal/database"
	"github.com/mkoziy/acat/internal/models"
)

func TestRunMigrationsIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "acat.db"), false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("first migration run: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("second migration run: %v", err)
	}

	for _, model := range []interface{}{(*models.Species)(nil), (*models.Occurrence)(nil), (*models.ImportRun)(nil), (*models.ConservationStatus)(nil)} {
		n, err := db.NewSelect().Model(model).Count(ctx)
		if err != nil {
			t.Fatalf("count %T: %v", model, err)
		}
		if n != 0 {
			t.Fatalf("expected empty table for %T, got %d rows", model, n)
		}
	}
}

func TestStatusAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "acat.db"), false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, pending, err := Status(ctx, db)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(pending) == 0 {
		t.Fatalf("expected pending migrations before the first run")
	}

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	applied, pending, err := Status(ctx, db)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(pending) != 0 || len(applied) == 0 {
		t.Fatalf("expected everything applied, got applied=%v pending=%v", applied, pending)
	}

	if err := Rollback(ctx, db); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	for _, model := range []interface{}{(*models.Species)(nil), (*models.ConservationStatus)(nil)} {
		if _, err := db.NewSelect().Model(model).Count(ctx); err == nil {
			t.Fatalf("expected %T table to be dropped after rollback", model)
		}
	}
}

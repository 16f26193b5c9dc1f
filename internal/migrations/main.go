package migrations

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

func execAll(ctx context.Context, db *bun.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RunMigrations runs all pending migrations.
func RunMigrations(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		slog.InfoContext(ctx, "no new migrations to run")
		return nil
	}

	slog.InfoContext(ctx, "migrated", "group", group.String())
	return nil
}

// Rollback reverts the most recently applied migration group.
func Rollback(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		slog.InfoContext(ctx, "no groups to roll back")
		return nil
	}

	slog.InfoContext(ctx, "rolled back", "group", group.String())
	return nil
}

// Status lists applied and pending migration names.
func Status(ctx context.Context, db *bun.DB) (applied, pending []string, err error) {
	migrator := migrate.NewMigrator(db, Migrations)

	if err := migrator.Init(ctx); err != nil {
		return nil, nil, err
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range ms.Applied() {
		applied = append(applied, m.String())
	}
	for _, m := range ms.Unapplied() {
		pending = append(pending, m.String())
	}
	return applied, pending, nil
}

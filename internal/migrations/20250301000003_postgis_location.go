package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/database"
)

// On PostgreSQL, location becomes a PostGIS point with a GiST index.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if !database.IsPostgres(db) {
			return nil
		}
		return execAll(ctx, db, []string{
			"CREATE EXTENSION IF NOT EXISTS postgis",
			"ALTER TABLE biodiversity_occurrence ALTER COLUMN location TYPE geometry(Point, 4326) USING ST_GeomFromEWKT(location)",
			"CREATE INDEX IF NOT EXISTS idx_occurrence_location ON biodiversity_occurrence USING GIST (location)",
		})
	}, func(ctx context.Context, db *bun.DB) error {
		if !database.IsPostgres(db) {
			return nil
		}
		return execAll(ctx, db, []string{
			"DROP INDEX IF EXISTS idx_occurrence_location",
			"ALTER TABLE biodiversity_occurrence ALTER COLUMN location TYPE text USING ST_AsEWKT(location)",
		})
	})
}

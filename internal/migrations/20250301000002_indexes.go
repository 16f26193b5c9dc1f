package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

// Lookup indexes for the list filters.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db, []string{
			"CREATE INDEX IF NOT EXISTS idx_species_kingdom ON biodiversity_species(kingdom)",
			"CREATE INDEX IF NOT EXISTS idx_species_family ON biodiversity_species(family)",
			"CREATE INDEX IF NOT EXISTS idx_species_genus ON biodiversity_species(genus)",
			"CREATE INDEX IF NOT EXISTS idx_occurrence_species ON biodiversity_occurrence(species_id)",
			"CREATE INDEX IF NOT EXISTS idx_occurrence_year ON biodiversity_occurrence(year)",
			"CREATE INDEX IF NOT EXISTS idx_occurrence_state_province ON biodiversity_occurrence(state_province)",
			"CREATE INDEX IF NOT EXISTS idx_import_log_started_at ON biodiversity_data_import_log(started_at DESC)",
		})
	}, func(ctx context.Context, db *bun.DB) error {
		return execAll(ctx, db, []string{
			"DROP INDEX IF EXISTS idx_species_kingdom",
			"DROP INDEX IF EXISTS idx_species_family",
			"DROP INDEX IF EXISTS idx_species_genus",
			"DROP INDEX IF EXISTS idx_occurrence_species",
			"DROP INDEX IF EXISTS idx_occurrence_year",
			"DROP INDEX IF EXISTS idx_occurrence_state_province",
			"DROP INDEX IF EXISTS idx_import_log_started_at",
		})
	})
}

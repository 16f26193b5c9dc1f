package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/models"
)

// Conservation listings, one row per species.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().
			Model((*models.ConservationStatus)(nil)).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx); err != nil {
			return err
		}
		return execAll(ctx, db, []string{
			"CREATE INDEX IF NOT EXISTS idx_conservation_endemic ON biodiversity_conservation_status(endemic_to_acat)",
		})
	}, func(ctx context.Context, db *bun.DB) error {
		if err := execAll(ctx, db, []string{"DROP INDEX IF EXISTS idx_conservation_endemic"}); err != nil {
			return err
		}
		_, err := db.NewDropTable().Model((*models.ConservationStatus)(nil)).IfExists().Exec(ctx)
		return err
	})
}

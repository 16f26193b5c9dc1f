package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/models"
)

// Species, occurrence and import log tables.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.Species)(nil),
			(*models.Occurrence)(nil),
			(*models.ImportRun)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().WithForeignKeys().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.ImportRun)(nil),
			(*models.Occurrence)(nil),
			(*models.Species)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}

package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/models"
)

// CreateImportRun persists a run in its started state.
func CreateImportRun(ctx context.Context, db bun.IDB, run *models.ImportRun) error {
	_, err := db.NewInsert().Model(run).Exec(ctx)
	return err
}

// SaveImportRun writes the current counters and status of a run. Runs that
// were never inserted are inserted.
func SaveImportRun(ctx context.Context, db bun.IDB, run *models.ImportRun) error {
	if run.ID == 0 {
		return CreateImportRun(ctx, db, run)
	}
	_, err := db.NewUpdate().Model(run).WherePK().Exec(ctx)
	return err
}

// GetImportRun fetches a run by its run id.
func GetImportRun(ctx context.Context, db bun.IDB, runID string) (*models.ImportRun, error) {
	run := new(models.ImportRun)
	err := db.NewSelect().Model(run).Where("ir.run_id = ?", runID).Scan(ctx)
	return run, err
}

// ListImportRuns returns runs, most recent first.
func ListImportRuns(ctx context.Context, db bun.IDB, page Page) ([]*models.ImportRun, int, error) {
	var runs []*models.ImportRun
	q := db.NewSelect().
		Model(&runs).
		OrderExpr("ir.started_at DESC, ir.id DESC")
	q = applyPage(q, page)

	total, err := q.ScanAndCount(ctx)
	return runs, total, err
}

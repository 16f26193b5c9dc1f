package repositories

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/mkoziy/acat/internal/models"
)

// Values of SpeciesFilter.Conservation.
const (
	ConservationThreatened = "threatened"
	ConservationEndemic    = "endemic"
)

// ConservationStats counts species per conservation listing.
type ConservationStats struct {
	Threatened      int `json:"threatened_species"`
	RLCVSThreatened int `json:"rlcvs_threatened"`
	CITESListed     int `json:"cites_listed"`
	IUCNThreatened  int `json:"iucn_threatened"`
	EndemicACAT     int `json:"endemic_acat"`
}

// GetConservationStatus fetches the listings of a species.
func GetConservationStatus(ctx context.Context, db bun.IDB, speciesID int64) (*models.ConservationStatus, error) {
	cs := new(models.ConservationStatus)
	err := db.NewSelect().
		Model(cs).
		Where("cs.species_id = ?", speciesID).
		Scan(ctx)
	return cs, err
}

// UpsertConservationStatus stores cs, replacing any listings the species
// already has.
func UpsertConservationStatus(ctx context.Context, db bun.IDB, cs *models.ConservationStatus) error {
	_, err := db.NewInsert().
		Model(cs).
		On("CONFLICT (species_id) DO UPDATE").
		Set("rlcvs_status = EXCLUDED.rlcvs_status").
		Set("cites_status = EXCLUDED.cites_status").
		Set("iucn_status = EXCLUDED.iucn_status").
		Set("endemic_to_acat = EXCLUDED.endemic_to_acat").
		Set("notes = EXCLUDED.notes").
		Set("updated_at = CURRENT_TIMESTAMP").
		Exec(ctx)
	return err
}

// GetConservationStats counts threatened, listed and endemic species.
func GetConservationStats(ctx context.Context, db bun.IDB) (*ConservationStats, error) {
	stats := &ConservationStats{}
	err := db.NewSelect().
		Model((*models.ConservationStatus)(nil)).
		ColumnExpr("count(CASE WHEN ? THEN 1 END)", threatenedExpr("cs")).
		ColumnExpr("count(CASE WHEN cs.rlcvs_status IN (?) THEN 1 END)", bun.In(models.ThreatenedRLCVS)).
		ColumnExpr("count(CASE WHEN cs.cites_status IN (?) THEN 1 END)", bun.In(models.ListedCITES)).
		ColumnExpr("count(CASE WHEN cs.iucn_status IN (?) THEN 1 END)", bun.In(models.ThreatenedIUCN)).
		ColumnExpr("count(CASE WHEN cs.endemic_to_acat THEN 1 END)").
		Scan(ctx, &stats.Threatened, &stats.RLCVSThreatened, &stats.CITESListed, &stats.IUCNThreatened, &stats.EndemicACAT)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// threatenedExpr matches a conservation row, aliased alias, with any
// threatened listing.
func threatenedExpr(alias string) schema.QueryWithArgs {
	return bun.SafeQuery("(?.rlcvs_status IN (?) OR ?.cites_status IN (?) OR ?.iucn_status IN (?))",
		bun.Ident(alias), bun.In(models.ThreatenedRLCVS),
		bun.Ident(alias), bun.In(models.ListedCITES),
		bun.Ident(alias), bun.In(models.ThreatenedIUCN),
	)
}

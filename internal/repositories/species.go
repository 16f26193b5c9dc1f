package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/models"
)

// SpeciesFilter narrows species listings. Empty fields are ignored.
type SpeciesFilter struct {
	Kingdom string
	Family  string
	Genus   string
	Search  string
	// Conservation is ConservationThreatened or ConservationEndemic.
	Conservation string
}

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

const occurrenceCountExpr = "(SELECT count(*) FROM biodiversity_occurrence AS oc WHERE oc.species_id = sp.id) AS occurrence_count"

// GetSpeciesByTaxonKey fetches a species by its GBIF taxon key.
func GetSpeciesByTaxonKey(ctx context.Context, db bun.IDB, taxonKey int64) (*models.Species, error) {
	sp := new(models.Species)
	err := db.NewSelect().
		Model(sp).
		Where("sp.taxon_key = ?", taxonKey).
		Limit(1).
		Scan(ctx)
	return sp, err
}

// GetSpeciesByID fetches a species with its occurrence count.
func GetSpeciesByID(ctx context.Context, db bun.IDB, id int64) (*models.Species, error) {
	sp := new(models.Species)
	err := db.NewSelect().
		Model(sp).
		ColumnExpr("sp.*").
		ColumnExpr(occurrenceCountExpr).
		Relation("ConservationStatus").
		Where("sp.id = ?", id).
		Scan(ctx)
	return sp, err
}

// ListSpecies returns a page of species ordered by family, genus and epithet,
// together with the total number of matches.
func ListSpecies(ctx context.Context, db bun.IDB, filter SpeciesFilter, page Page) ([]*models.Species, int, error) {
	var species []*models.Species
	q := db.NewSelect().
		Model(&species).
		ColumnExpr("sp.*").
		ColumnExpr(occurrenceCountExpr).
		Relation("ConservationStatus").
		OrderExpr("sp.family ASC, sp.genus ASC, sp.species ASC")
	q = applySpeciesFilter(q, filter)
	q = applyPage(q, page)

	total, err := q.ScanAndCount(ctx)
	return species, total, err
}

// EachSpecies walks every species in id order, a batch at a time.
func EachSpecies(ctx context.Context, db bun.IDB, batchSize int, fn func(*models.Species) error) error {
	var lastID int64
	for {
		var batch []*models.Species
		err := db.NewSelect().
			Model(&batch).
			ColumnExpr("sp.*").
			ColumnExpr(occurrenceCountExpr).
			Relation("ConservationStatus").
			Where("sp.id > ?", lastID).
			OrderExpr("sp.id ASC").
			Limit(batchSize).
			Scan(ctx)
		if err != nil {
			return err
		}
		for _, sp := range batch {
			if err := fn(sp); err != nil {
				return err
			}
			lastID = sp.ID
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

// ListSpeciesWithoutCommonName returns species that still lack a vernacular name.
func ListSpeciesWithoutCommonName(ctx context.Context, db bun.IDB, limit int) ([]*models.Species, error) {
	var species []*models.Species
	q := db.NewSelect().
		Model(&species).
		Where("sp.common_name IS NULL OR sp.common_name = ''").
		OrderExpr("sp.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return species, err
}

// SetCommonName updates only the common name of a species.
func SetCommonName(ctx context.Context, db bun.IDB, id int64, name string) error {
	_, err := db.NewUpdate().
		Table("biodiversity_species").
		Set("common_name = ?", name).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func applySpeciesFilter(q *bun.SelectQuery, filter SpeciesFilter) *bun.SelectQuery {
	if filter.Kingdom != "" {
		q = q.Where("sp.kingdom = ?", filter.Kingdom)
	}
	if filter.Family != "" {
		q = q.Where("sp.family = ?", filter.Family)
	}
	if filter.Genus != "" {
		q = q.Where("sp.genus = ?", filter.Genus)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("LOWER(sp.scientific_name) LIKE ?", pattern).
				WhereOr("LOWER(sp.common_name) LIKE ?", pattern).
				WhereOr("LOWER(sp.genus) LIKE ?", pattern).
				WhereOr("LOWER(sp.species) LIKE ?", pattern).
				WhereOr("LOWER(sp.family) LIKE ?", pattern)
		})
	}
	switch filter.Conservation {
	case ConservationThreatened:
		q = q.Where("?", threatenedExpr("conservation_status"))
	case ConservationEndemic:
		q = q.Where("conservation_status.endemic_to_acat = ?", true)
	}
	return q
}

func applyPage(q *bun.SelectQuery, page Page) *bun.SelectQuery {
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}
	return q
}

// likePattern builds a lower-cased substring pattern.
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

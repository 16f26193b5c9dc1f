package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/models"
)

// OccurrenceFilter narrows occurrence listings and map data.
type OccurrenceFilter struct {
	SpeciesID int64
	Family    string
	Year      int
	Province  string
	Search    string
	// BBox is min_lon, min_lat, max_lon, max_lat.
	BBox *[4]float64
}

// GetOccurrenceByGBIFID fetches an occurrence by its GBIF id.
func GetOccurrenceByGBIFID(ctx context.Context, db bun.IDB, gbifID int64) (*models.Occurrence, error) {
	occ := new(models.Occurrence)
	err := db.NewSelect().
		Model(occ).
		Where("oc.gbif_id = ?", gbifID).
		Limit(1).
		Scan(ctx)
	return occ, err
}

// GetOccurrenceByID fetches an occurrence with its species.
func GetOccurrenceByID(ctx context.Context, db bun.IDB, id int64) (*models.Occurrence, error) {
	occ := new(models.Occurrence)
	err := db.NewSelect().
		Model(occ).
		Relation("Species").
		Where("oc.id = ?", id).
		Scan(ctx)
	return occ, err
}

// ListOccurrences returns a page of occurrences, newest event first.
func ListOccurrences(ctx context.Context, db bun.IDB, filter OccurrenceFilter, page Page) ([]*models.Occurrence, int, error) {
	var occurrences []*models.Occurrence
	q := db.NewSelect().
		Model(&occurrences).
		Relation("Species").
		OrderExpr("oc.event_date DESC, oc.created_at DESC, oc.id DESC")
	q = applyOccurrenceFilter(q, filter)
	q = applyPage(q, page)

	total, err := q.ScanAndCount(ctx)
	return occurrences, total, err
}

// EachOccurrence walks every occurrence with its species in id order.
func EachOccurrence(ctx context.Context, db bun.IDB, batchSize int, fn func(*models.Occurrence) error) error {
	var lastID int64
	for {
		var batch []*models.Occurrence
		err := db.NewSelect().
			Model(&batch).
			Relation("Species").
			Where("oc.id > ?", lastID).
			OrderExpr("oc.id ASC").
			Limit(batchSize).
			Scan(ctx)
		if err != nil {
			return err
		}
		for _, occ := range batch {
			if err := fn(occ); err != nil {
				return err
			}
			lastID = occ.ID
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

func applyOccurrenceFilter(q *bun.SelectQuery, filter OccurrenceFilter) *bun.SelectQuery {
	if filter.SpeciesID > 0 {
		q = q.Where("oc.species_id = ?", filter.SpeciesID)
	}
	if filter.Family != "" {
		q = q.Where("species.family = ?", filter.Family)
	}
	if filter.Year > 0 {
		q = q.Where("oc.year = ?", filter.Year)
	}
	if filter.Province != "" {
		q = q.Where("LOWER(oc.state_province) LIKE ?", likePattern(filter.Province))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("LOWER(species.scientific_name) LIKE ?", pattern).
				WhereOr("LOWER(oc.locality) LIKE ?", pattern).
				WhereOr("LOWER(species.common_name) LIKE ?", pattern)
		})
	}
	if b := filter.BBox; b != nil {
		q = q.Where("oc.decimal_longitude BETWEEN ? AND ?", b[0], b[2]).
			Where("oc.decimal_latitude BETWEEN ? AND ?", b[1], b[3])
	}
	return q
}

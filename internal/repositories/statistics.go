package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/models"
)

// TaxonCount is a species/occurrence tally for one taxonomic group.
type TaxonCount struct {
	Name            string `bun:"name" json:"name"`
	SpeciesCount    int    `bun:"species_count" json:"species_count"`
	OccurrenceCount int    `bun:"occurrence_count" json:"occurrence_count"`
}

// YearCount is an occurrence tally for one year.
type YearCount struct {
	Year            int `bun:"year" json:"year"`
	OccurrenceCount int `bun:"occurrence_count" json:"occurrence_count"`
	SpeciesCount    int `bun:"species_count" json:"species_count"`
}

// Statistics summarises the biodiversity tables.
type Statistics struct {
	TotalSpecies     int          `json:"total_species"`
	TotalOccurrences int          `json:"total_occurrences"`
	Kingdoms         []TaxonCount `json:"kingdoms"`
	Families         []TaxonCount `json:"families"`
	Years            []YearCount  `json:"years"`

	Conservation *ConservationStats `json:"conservation_stats"`
}

const topFamilies = 20

// GetStatistics computes totals, conservation counts and kingdom, family
// and yearly breakdowns.
func GetStatistics(ctx context.Context, db bun.IDB) (*Statistics, error) {
	stats := &Statistics{}
	var err error

	if stats.TotalSpecies, err = db.NewSelect().Model((*models.Species)(nil)).Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalOccurrences, err = db.NewSelect().Model((*models.Occurrence)(nil)).Count(ctx); err != nil {
		return nil, err
	}

	if stats.Conservation, err = GetConservationStats(ctx, db); err != nil {
		return nil, err
	}

	if stats.Kingdoms, err = taxonCounts(ctx, db, "kingdom", 0); err != nil {
		return nil, err
	}
	if stats.Families, err = taxonCounts(ctx, db, "family", topFamilies); err != nil {
		return nil, err
	}

	err = db.NewSelect().
		TableExpr("biodiversity_occurrence AS oc").
		ColumnExpr("oc.year AS year").
		ColumnExpr("count(*) AS occurrence_count").
		ColumnExpr("count(DISTINCT oc.species_id) AS species_count").
		Where("oc.year IS NOT NULL").
		GroupExpr("oc.year").
		OrderExpr("oc.year ASC").
		Scan(ctx, &stats.Years)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func taxonCounts(ctx context.Context, db bun.IDB, rank string, limit int) ([]TaxonCount, error) {
	var counts []TaxonCount
	q := db.NewSelect().
		TableExpr("biodiversity_species AS sp").
		ColumnExpr("sp.? AS name", bun.Ident(rank)).
		ColumnExpr("count(DISTINCT sp.id) AS species_count").
		ColumnExpr("count(oc.id) AS occurrence_count").
		Join("LEFT JOIN biodiversity_occurrence AS oc ON oc.species_id = sp.id").
		GroupExpr("sp.?", bun.Ident(rank)).
		OrderExpr("species_count DESC, name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx, &counts)
	return counts, err
}

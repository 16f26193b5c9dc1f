package importer

import (
	"context"
	"fmt"

	"github.com/mkoziy/acat/internal/models"
)

// UpsertResult tells whether an upsert inserted or overwrote a record.
type UpsertResult int

const (
	Created UpsertResult = iota + 1
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Store is the persistence the importer needs. Find methods return nil
// and no error when the natural key is unknown.
type Store interface {
	FindSpecies(ctx context.Context, taxonKey int64) (*models.Species, error)
	CreateSpecies(ctx context.Context, sp *models.Species) error
	UpdateSpecies(ctx context.Context, sp *models.Species) error

	FindOccurrence(ctx context.Context, gbifID int64) (*models.Occurrence, error)
	CreateOccurrence(ctx context.Context, occ *models.Occurrence) error
	UpdateOccurrence(ctx context.Context, occ *models.Occurrence) error
}

// UpsertSpecies inserts rec, or overwrites the taxonomy of the species that
// already has rec.TaxonKey.
func UpsertSpecies(ctx context.Context, store Store, rec *models.Species) (UpsertResult, error) {
	existing, err := store.FindSpecies(ctx, rec.TaxonKey)
	if err != nil {
		return 0, fmt.Errorf("find species %d: %w", rec.TaxonKey, err)
	}

	if existing == nil {
		if err := store.CreateSpecies(ctx, rec); err != nil {
			return 0, fmt.Errorf("create species %d: %w", rec.TaxonKey, err)
		}
		return Created, nil
	}

	existing.CopyTaxonomy(rec)
	if err := store.UpdateSpecies(ctx, existing); err != nil {
		return 0, fmt.Errorf("update species %d: %w", rec.TaxonKey, err)
	}
	return Updated, nil
}

// UpsertOccurrence inserts rec, or overwrites the occurrence that already
// has rec.GBIFID.
func UpsertOccurrence(ctx context.Context, store Store, rec *models.Occurrence) (UpsertResult, error) {
	existing, err := store.FindOccurrence(ctx, rec.GBIFID)
	if err != nil {
		return 0, fmt.Errorf("find occurrence %d: %w", rec.GBIFID, err)
	}

	if existing == nil {
		if err := store.CreateOccurrence(ctx, rec); err != nil {
			return 0, fmt.Errorf("create occurrence %d: %w", rec.GBIFID, err)
		}
		return Created, nil
	}

	existing.CopyRecord(rec)
	if err := store.UpdateOccurrence(ctx, existing); err != nil {
		return 0, fmt.Errorf("update occurrence %d: %w", rec.GBIFID, err)
	}
	return Updated, nil
}

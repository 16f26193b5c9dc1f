package importer

import (
	"context"

	"github.com/mkoziy/acat/internal/models"
)

// DryRunStore reads through to a real Store but never writes to it.
// Records it was asked to create are remembered, so later lookups in the
// same run see them exactly as they would after a live insert. That keeps
// dry-run counts equal to live counts.
type DryRunStore struct {
	store       Store
	species     map[int64]*models.Species
	occurrences map[int64]*models.Occurrence
}

// NewDryRunStore wraps store.
func NewDryRunStore(store Store) *DryRunStore {
	return &DryRunStore{
		store:       store,
		species:     make(map[int64]*models.Species),
		occurrences: make(map[int64]*models.Occurrence),
	}
}

func (d *DryRunStore) FindSpecies(ctx context.Context, taxonKey int64) (*models.Species, error) {
	if sp, ok := d.species[taxonKey]; ok {
		return sp, nil
	}
	return d.store.FindSpecies(ctx, taxonKey)
}

func (d *DryRunStore) CreateSpecies(_ context.Context, sp *models.Species) error {
	d.species[sp.TaxonKey] = sp
	return nil
}

func (d *DryRunStore) UpdateSpecies(context.Context, *models.Species) error {
	return nil
}

func (d *DryRunStore) FindOccurrence(ctx context.Context, gbifID int64) (*models.Occurrence, error) {
	if occ, ok := d.occurrences[gbifID]; ok {
		return occ, nil
	}
	return d.store.FindOccurrence(ctx, gbifID)
}

func (d *DryRunStore) CreateOccurrence(_ context.Context, occ *models.Occurrence) error {
	d.occurrences[occ.GBIFID] = occ
	return nil
}

func (d *DryRunStore) UpdateOccurrence(context.Context, *models.Occurrence) error {
	return nil
}

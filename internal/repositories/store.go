package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/models"
)

// Store persists imported species and occurrences. Every write is a single
// statement, so each record commits on its own.
type Store struct {
	db bun.IDB
}

// NewStore wraps db.
func NewStore(db bun.IDB) *Store {
	return &Store{db: db}
}

// FindSpecies returns nil when no species has taxonKey.
func (s *Store) FindSpecies(ctx context.Context, taxonKey int64) (*models.Species, error) {
	sp, err := GetSpeciesByTaxonKey(ctx, s.db, taxonKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Store) CreateSpecies(ctx context.Context, sp *models.Species) error {
	_, err := s.db.NewInsert().Model(sp).Exec(ctx)
	return err
}

func (s *Store) UpdateSpecies(ctx context.Context, sp *models.Species) error {
	_, err := s.db.NewUpdate().Model(sp).WherePK().Exec(ctx)
	return err
}

// FindOccurrence returns nil when no occurrence has gbifID.
func (s *Store) FindOccurrence(ctx context.Context, gbifID int64) (*models.Occurrence, error) {
	occ, err := GetOccurrenceByGBIFID(ctx, s.db, gbifID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return occ, nil
}

func (s *Store) CreateOccurrence(ctx context.Context, occ *models.Occurrence) error {
	_, err := s.db.NewInsert().Model(occ).Exec(ctx)
	return err
}

func (s *Store) UpdateOccurrence(ctx context.Context, occ *models.Occurrence) error {
	_, err := s.db.NewUpdate().Model(occ).WherePK().Exec(ctx)
	return err
}

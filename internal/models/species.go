package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Species is a GBIF taxon identified by its taxon key.
type Species struct {
	bun.BaseModel `bun:"table:biodiversity_species,alias:sp"`

	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	TaxonKey       int64      `bun:"taxon_key,unique,notnull" json:"taxon_key"`
	Kingdom        string     `bun:"kingdom,notnull,default:''" json:"kingdom"`
	Phylum         string     `bun:"phylum,notnull,default:''" json:"phylum"`
	Class          string     `bun:"class,notnull,default:''" json:"class"`
	Order          string     `bun:"order,notnull,default:''" json:"order"`
	Family         string     `bun:"family,notnull,default:''" json:"family"`
	Genus          string     `bun:"genus,notnull,default:''" json:"genus"`
	Species        string     `bun:"species,notnull,default:''" json:"species"`
	ScientificName string     `bun:"scientific_name,notnull,default:''" json:"scientific_name"`
	CommonName     *string    `bun:"common_name" json:"common_name,omitempty"`
	LastGBIFSync   *time.Time `bun:"last_gbif_sync" json:"last_gbif_sync,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	OccurrenceCount int `bun:"occurrence_count,scanonly" json:"occurrence_count"`

	ConservationStatus *ConservationStatus `bun:"rel:has-one,join:id=species_id" json:"conservation_status"`
	Occurrences        []*Occurrence       `bun:"rel:has-many,join:id=species_id" json:"-"`
}

var _ bun.BeforeAppendModelHook = (*Species)(nil)

// BeforeAppendModel keeps the scientific name in step with genus and epithet
// on every insert and update.
func (s *Species) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		s.RefreshScientificName()
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now()
		}
		s.UpdatedAt = time.Now()
	case *bun.UpdateQuery:
		s.RefreshScientificName()
		s.UpdatedAt = time.Now()
	}
	return nil
}

// RefreshScientificName derives "Genus epithet" when both parts are known.
func (s *Species) RefreshScientificName() {
	if s.Genus != "" && s.Species != "" {
		s.ScientificName = s.Genus + " " + s.Species
	}
}

// CopyTaxonomy overwrites the fields that a species import supplies.
// The surrogate id, taxon key, common name and creation time are left alone.
func (s *Species) CopyTaxonomy(src *Species) {
	s.Kingdom = src.Kingdom
	s.Phylum = src.Phylum
	s.Class = src.Class
	s.Order = src.Order
	s.Family = src.Family
	s.Genus = src.Genus
	s.Species = src.Species
	s.LastGBIFSync = src.LastGBIFSync
	s.RefreshScientificName()
}

// DisplayName prefers the scientific name, then the common name, then the
// taxon key.
func (s *Species) DisplayName() string {
	if name := strings.TrimSpace(s.ScientificName); name != "" {
		return name
	}
	if s.CommonName != nil && *s.CommonName != "" {
		return *s.CommonName
	}
	return "taxon " + itoa(s.TaxonKey)
}

// Validate checks that required species fields are present.
func (s *Species) Validate() error {
	if s.TaxonKey <= 0 {
		return errors.New("taxon key must be positive")
	}
	return nil
}

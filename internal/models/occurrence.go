package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Bounding box of Costa Rica used by ValidateBounds.
const (
	MinLatitude  = 8.0
	MaxLatitude  = 11.5
	MinLongitude = -87.0
	MaxLongitude = -82.5
)

// DefaultCountryCode is applied when a source row carries no country.
const DefaultCountryCode = "CR"

// Occurrence is a single GBIF occurrence record of a species.
type Occurrence struct {
	bun.BaseModel `bun:"table:biodiversity_occurrence,alias:oc"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	GBIFID           int64      `bun:"gbif_id,unique,notnull" json:"gbif_id"`
	SpeciesID        int64      `bun:"species_id,notnull" json:"species_id"`
	DatasetKey       string     `bun:"dataset_key,notnull,default:''" json:"dataset_key"`
	OccurrenceID     string     `bun:"occurrence_id,notnull,default:''" json:"occurrence_id"`
	DecimalLongitude float64    `bun:"decimal_longitude,type:numeric(10,7),notnull" json:"decimal_longitude"`
	DecimalLatitude  float64    `bun:"decimal_latitude,type:numeric(10,7),notnull" json:"decimal_latitude"`
	Location         *Point     `bun:"location,type:text" json:"location,omitempty"`
	ScientificName   string     `bun:"scientific_name,notnull,default:''" json:"scientific_name"`
	TaxonRank        string     `bun:"taxon_rank,notnull,default:''" json:"taxon_rank"`
	CountryCode      string     `bun:"country_code,notnull,default:'CR'" json:"country_code"`
	StateProvince    string     `bun:"state_province,notnull,default:''" json:"state_province"`
	Locality         string     `bun:"locality,notnull,default:''" json:"locality"`
	EventDate        *time.Time `bun:"event_date,type:date" json:"event_date,omitempty"`
	Year             *int       `bun:"year" json:"year,omitempty"`
	Month            *int       `bun:"month" json:"month,omitempty"`
	Day              *int       `bun:"day" json:"day,omitempty"`
	BasisOfRecord    string     `bun:"basis_of_record,notnull,default:''" json:"basis_of_record"`
	InstitutionCode  string     `bun:"institution_code,notnull,default:''" json:"institution_code"`
	CollectionCode   string     `bun:"collection_code,notnull,default:''" json:"collection_code"`
	LastGBIFSync     *time.Time `bun:"last_gbif_sync" json:"last_gbif_sync,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Species *Species `bun:"rel:belongs-to,join:species_id=id" json:"species,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Occurrence)(nil)

// BeforeAppendModel derives the stored point from the decimal coordinates.
func (o *Occurrence) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		o.SyncLocation()
		if o.CreatedAt.IsZero() {
			o.CreatedAt = time.Now()
		}
		o.UpdatedAt = time.Now()
	case *bun.UpdateQuery:
		o.SyncLocation()
		o.UpdatedAt = time.Now()
	}
	return nil
}

// SyncLocation rebuilds Location from DecimalLongitude/DecimalLatitude.
func (o *Occurrence) SyncLocation() {
	o.Location = NewPoint(o.DecimalLongitude, o.DecimalLatitude)
}

// CopyRecord overwrites the fields that an occurrence import supplies.
func (o *Occurrence) CopyRecord(src *Occurrence) {
	o.SpeciesID = src.SpeciesID
	o.Species = src.Species
	o.DatasetKey = src.DatasetKey
	o.OccurrenceID = src.OccurrenceID
	o.DecimalLongitude = src.DecimalLongitude
	o.DecimalLatitude = src.DecimalLatitude
	o.ScientificName = src.ScientificName
	o.TaxonRank = src.TaxonRank
	o.CountryCode = src.CountryCode
	o.StateProvince = src.StateProvince
	o.Locality = src.Locality
	o.EventDate = src.EventDate
	o.Year = src.Year
	o.Month = src.Month
	o.Day = src.Day
	o.BasisOfRecord = src.BasisOfRecord
	o.InstitutionCode = src.InstitutionCode
	o.CollectionCode = src.CollectionCode
	o.LastGBIFSync = src.LastGBIFSync
	o.SyncLocation()
}

// Validate checks that required occurrence fields are present.
func (o *Occurrence) Validate() error {
	if o.GBIFID <= 0 {
		return errors.New("gbif id must be positive")
	}
	if o.SpeciesID <= 0 && o.Species == nil {
		return errors.New("species is required")
	}
	if math.IsNaN(o.DecimalLongitude) || math.IsNaN(o.DecimalLatitude) {
		return errors.New("coordinates are required")
	}
	return nil
}

// ValidateBounds reports coordinates that fall outside Costa Rica.
// Bulk imports do not call it.
func (o *Occurrence) ValidateBounds() error {
	if o.DecimalLatitude < MinLatitude || o.DecimalLatitude > MaxLatitude {
		return fmt.Errorf("latitude %v must be between %v and %v for Costa Rica", o.DecimalLatitude, MinLatitude, MaxLatitude)
	}
	if o.DecimalLongitude < MinLongitude || o.DecimalLongitude > MaxLongitude {
		return fmt.Errorf("longitude %v must be between %v and %v for Costa Rica", o.DecimalLongitude, MinLongitude, MaxLongitude)
	}
	return nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

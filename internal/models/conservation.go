package models

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/uptrace/bun"
)

// RLCVSStatus is the listing under Costa Rica's wildlife conservation
// regulation (Reglamento a la Ley de Conservación de la Vida Silvestre).
type RLCVSStatus string

const (
	RLCVSEndangered RLCVSStatus = "PE"
	RLCVSReduced    RLCVSStatus = "PRA"
	RLCVSNotListed  RLCVSStatus = "NR"
)

// CITESStatus is the CITES appendix a species is listed in.
type CITESStatus string

const (
	CITESAppendixI   CITESStatus = "AI"
	CITESAppendixII  CITESStatus = "AII"
	CITESAppendixIII CITESStatus = "AIII"
	CITESNotListed   CITESStatus = "NONE"
)

// IUCNStatus is the IUCN Red List category.
type IUCNStatus string

const (
	IUCNCriticallyEndangered IUCNStatus = "CR"
	IUCNEndangered           IUCNStatus = "EN"
	IUCNVulnerable           IUCNStatus = "VU"
	IUCNNearThreatened       IUCNStatus = "NT"
	IUCNLeastConcern         IUCNStatus = "LC"
	IUCNDataDeficient        IUCNStatus = "DD"
	IUCNNotEvaluated         IUCNStatus = "NE"
)

// Statuses that count as threatened.
var (
	ThreatenedRLCVS = []RLCVSStatus{RLCVSEndangered, RLCVSReduced}
	ListedCITES     = []CITESStatus{CITESAppendixI, CITESAppendixII, CITESAppendixIII}
	ThreatenedIUCN  = []IUCNStatus{IUCNCriticallyEndangered, IUCNEndangered, IUCNVulnerable, IUCNNearThreatened}
)

// ConservationStatus holds the protection listings of one species. It lives
// in its own table so species re-imports never overwrite it.
type ConservationStatus struct {
	bun.BaseModel `bun:"table:biodiversity_conservation_status,alias:cs"`

	ID            int64       `bun:"id,pk,autoincrement" json:"-"`
	SpeciesID     int64       `bun:"species_id,unique,notnull" json:"-"`
	RLCVSStatus   RLCVSStatus `bun:"rlcvs_status,notnull,default:'NR'" json:"rlcvs_status"`
	CITESStatus   CITESStatus `bun:"cites_status,notnull,default:'NONE'" json:"cites_status"`
	IUCNStatus    IUCNStatus  `bun:"iucn_status,notnull,default:'NE'" json:"iucn_status"`
	EndemicToACAT bool        `bun:"endemic_to_acat,notnull,default:false" json:"endemic_to_acat"`
	Notes         string      `bun:"notes,notnull,default:''" json:"notes"`
	CreatedAt     time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	UpdatedAt     time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"-"`

	Species *Species `bun:"rel:belongs-to,join:species_id=id,on_delete:CASCADE" json:"-"`
}

var _ bun.BeforeAppendModelHook = (*ConservationStatus)(nil)

func (c *ConservationStatus) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		c.ApplyDefaults()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		c.UpdatedAt = time.Now()
	case *bun.UpdateQuery:
		c.ApplyDefaults()
		c.UpdatedAt = time.Now()
	}
	return nil
}

// ApplyDefaults fills unset listings with their "not listed" values.
func (c *ConservationStatus) ApplyDefaults() {
	if c.RLCVSStatus == "" {
		c.RLCVSStatus = RLCVSNotListed
	}
	if c.CITESStatus == "" {
		c.CITESStatus = CITESNotListed
	}
	if c.IUCNStatus == "" {
		c.IUCNStatus = IUCNNotEvaluated
	}
}

// IsThreatened reports whether any listing marks the species as threatened.
func (c *ConservationStatus) IsThreatened() bool {
	return slices.Contains(ThreatenedRLCVS, c.RLCVSStatus) ||
		slices.Contains(ListedCITES, c.CITESStatus) ||
		slices.Contains(ThreatenedIUCN, c.IUCNStatus)
}

// Validate rejects codes outside the three classification schemes.
func (c *ConservationStatus) Validate() error {
	c.ApplyDefaults()
	if !slices.Contains([]RLCVSStatus{RLCVSEndangered, RLCVSReduced, RLCVSNotListed}, c.RLCVSStatus) {
		return fmt.Errorf("invalid RLCVS status %q: expected PE, PRA or NR", c.RLCVSStatus)
	}
	if !slices.Contains(append([]CITESStatus{CITESNotListed}, ListedCITES...), c.CITESStatus) {
		return fmt.Errorf("invalid CITES status %q: expected AI, AII, AIII or NONE", c.CITESStatus)
	}
	if !slices.Contains(append([]IUCNStatus{IUCNLeastConcern, IUCNDataDeficient, IUCNNotEvaluated}, ThreatenedIUCN...), c.IUCNStatus) {
		return fmt.Errorf("invalid IUCN status %q: expected CR, EN, VU, NT, LC, DD or NE", c.IUCNStatus)
	}
	return nil
}

func (c ConservationStatus) MarshalJSON() ([]byte, error) {
	type plain ConservationStatus
	return json.Marshal(struct {
		plain
		IsThreatened bool `json:"is_threatened"`
	}{plain(c), c.IsThreatened()})
}

package darwincore

import (
	"strings"
)

// Defaults for the Darwin Core export shipped by GBIF for Costa Rica.
const (
	DefaultSpeciesFile      = "data/biodiversity/raw/especies.csv"
	DefaultOccurrencesFile  = "data/biodiversity/raw/registros-presencia.gpkg"
	DefaultOccurrencesTable = "registros-presencia"
	DefaultBatchSize        = 1000
)

// Darwin Core column names read by the normalizer.
const (
	ColTaxonKey         = "taxonKey"
	ColKingdom          = "kingdom"
	ColPhylum           = "phylum"
	ColClass            = "class"
	ColOrder            = "order"
	ColFamily           = "family"
	ColGenus            = "genus"
	ColSpecies          = "species"
	ColGBIFID           = "gbifID"
	ColDatasetKey       = "datasetKey"
	ColOccurrenceID     = "occurrenceID"
	ColDecimalLongitude = "decimalLongitude"
	ColDecimalLatitude  = "decimalLatitude"
	ColScientificName   = "scientificName"
	ColTaxonRank        = "taxonRank"
	ColCountryCode      = "countryCode"
	ColStateProvince    = "stateProvince"
	ColLocality         = "locality"
	ColBasisOfRecord    = "basisOfRecord"
	ColInstitutionCode  = "institutionCode"
	ColCollectionCode   = "collectionCode"
	ColEventDate        = "eventDate"
	ColYear             = "year"
	ColMonth            = "month"
	ColDay              = "day"
)

// Row is one raw source record keyed by column name. Absent and NULL
// cells are missing from the map.
type Row map[string]string

// Get returns the trimmed value of col, or "" when absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Lookup returns the trimmed value of col and whether it was present and non-empty.
func (r Row) Lookup(col string) (string, bool) {
	v, ok := r[col]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

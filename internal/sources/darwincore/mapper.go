package darwincore

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mkoziy/acat/internal/models"
)

// SpeciesResolver finds the species an occurrence belongs to. It returns
// nil and no error when the taxon key is unknown.
type SpeciesResolver interface {
	FindSpecies(ctx context.Context, taxonKey int64) (*models.Species, error)
}

// NormalizeSpecies converts a species CSV row into a Species.
func NormalizeSpecies(row Row, rowNum int, now time.Time) (*models.Species, error) {
	taxonKey, err := parseInt(row[ColTaxonKey])
	if err != nil {
		return nil, &ValidationError{
			Kind:    "species",
			Row:     rowNum,
			Field:   ColTaxonKey,
			Message: fmt.Sprintf("Species row %d error: invalid taxonKey %q", rowNum, row[ColTaxonKey]),
		}
	}

	synced := now
	sp := &models.Species{
		TaxonKey:     taxonKey,
		Kingdom:      row.Get(ColKingdom),
		Phylum:       row.Get(ColPhylum),
		Class:        row.Get(ColClass),
		Order:        row.Get(ColOrder),
		Family:       row.Get(ColFamily),
		Genus:        row.Get(ColGenus),
		Species:      row.Get(ColSpecies),
		LastGBIFSync: &synced,
	}
	sp.RefreshScientificName()
	return sp, nil
}

// NormalizeOccurrence converts a GeoPackage row into an Occurrence linked to
// its species. rowNum is the 1-based position of row in the source table.
// Optional date parts that do not parse are dropped silently.
func NormalizeOccurrence(ctx context.Context, row Row, rowNum int, resolver SpeciesResolver, now time.Time) (*models.Occurrence, error) {
	gbifID, errID := parseInt(row[ColGBIFID])
	taxonKey, errKey := parseInt(row[ColTaxonKey])
	if errID != nil || errKey != nil || gbifID == 0 || taxonKey == 0 {
		field := ColGBIFID
		if errID == nil && gbifID != 0 {
			field = ColTaxonKey
		}
		return nil, &ValidationError{
			Kind:    "occurrence",
			Row:     rowNum,
			Field:   field,
			Message: fmt.Sprintf("Occurrence row missing gbifID or taxonKey (gbifID=%q, taxonKey=%q)", row.Get(ColGBIFID), row.Get(ColTaxonKey)),
		}
	}

	species, err := resolver.FindSpecies(ctx, taxonKey)
	if err != nil {
		return nil, fmt.Errorf("resolve species %d: %w", taxonKey, err)
	}
	if species == nil {
		return nil, &ValidationError{
			Kind:    "occurrence",
			Row:     rowNum,
			Field:   ColTaxonKey,
			Message: fmt.Sprintf("Species with taxonKey %d not found for occurrence %d", taxonKey, gbifID),
		}
	}

	lon, errLon := parseDecimal(row[ColDecimalLongitude])
	lat, errLat := parseDecimal(row[ColDecimalLatitude])
	if errLon != nil || errLat != nil {
		field := ColDecimalLongitude
		if errLon == nil {
			field = ColDecimalLatitude
		}
		return nil, &ValidationError{
			Kind:    "occurrence",
			Row:     rowNum,
			Field:   field,
			Message: fmt.Sprintf("Invalid coordinates for occurrence %d", gbifID),
		}
	}

	synced := now
	occ := &models.Occurrence{
		GBIFID:           gbifID,
		SpeciesID:        species.ID,
		Species:          species,
		DatasetKey:       row.Get(ColDatasetKey),
		OccurrenceID:     row.Get(ColOccurrenceID),
		DecimalLongitude: lon,
		DecimalLatitude:  lat,
		ScientificName:   row.Get(ColScientificName),
		TaxonRank:        row.Get(ColTaxonRank),
		CountryCode:      models.DefaultCountryCode,
		StateProvince:    row.Get(ColStateProvince),
		Locality:         row.Get(ColLocality),
		EventDate:        parseEventDate(row[ColEventDate]),
		Year:             parseOptionalInt(row[ColYear]),
		Month:            parseOptionalInt(row[ColMonth]),
		Day:              parseOptionalInt(row[ColDay]),
		BasisOfRecord:    row.Get(ColBasisOfRecord),
		InstitutionCode:  row.Get(ColInstitutionCode),
		CollectionCode:   row.Get(ColCollectionCode),
		LastGBIFSync:     &synced,
	}
	if cc, ok := row.Lookup(ColCountryCode); ok {
		occ.CountryCode = cc
	}
	occ.SyncLocation()
	return occ, nil
}

func parseInt(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// parseDecimal accepts finite decimal numbers only.
func parseDecimal(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite decimal %q", raw)
	}
	return v, nil
}

func parseOptionalInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

// parseEventDate keeps the date part of "2006-01-02" or "2006-01-02T15:04:05".
// Month and day may be written without a leading zero.
func parseEventDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	datePart, _, _ := strings.Cut(raw, "T")
	parts := strings.Split(datePart, "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return nil
	}

	var ymd [3]int
	for i, p := range parts {
		if p == "" || len(p) > 4 {
			return nil
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		ymd[i] = v
	}

	t := time.Date(ymd[0], time.Month(ymd[1]), ymd[2], 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow, so 2019-02-30 comes back as March.
	if t.Year() != ymd[0] || int(t.Month()) != ymd[1] || t.Day() != ymd[2] {
		return nil
	}
	return &t
}

package importer

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/mkoziy/acat/internal/metrics"
	"github.com/mkoziy/acat/internal/models"
	"github.com/mkoziy/acat/internal/repositories"
	"github.com/mkoziy/acat/internal/sources/darwincore"
	"github.com/mkoziy/acat/internal/testutil"
)

const speciesHeader = "taxonKey,kingdom,phylum,class,order,family,genus,species\n"

func writeSpeciesCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "especies.csv")
	require.NoError(t, os.WriteFile(path, []byte(speciesHeader+strings.Join(rows, "\n")+"\n"), 0o644))
	return path
}

var occurrenceColumns = []string{
	"gbifID", "taxonKey", "datasetKey", "occurrenceID", "decimalLongitude", "decimalLatitude",
	"scientificName", "taxonRank", "countryCode", "stateProvince", "locality", "basisOfRecord",
	"institutionCode", "collectionCode", "eventDate", "year", "month", "day",
}

// writeOccurrencesGPKG builds a GeoPackage-style SQLite file holding rows.
func writeOccurrencesGPKG(t *testing.T, rows ...map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registros-presencia.gpkg")

	db, err := sql.Open(sqliteshim.ShimName, path)
	require.NoError(t, err)
	defer db.Close()

	quoted := make([]string, len(occurrenceColumns))
	marks := make([]string, len(occurrenceColumns))
	for i, c := range occurrenceColumns {
		quoted[i] = fmt.Sprintf("%q", c)
		marks[i] = "?"
	}
	_, err = db.Exec(fmt.Sprintf(`CREATE TABLE "registros-presencia" (fid INTEGER PRIMARY KEY, %s)`, strings.Join(quoted, ", ")))
	require.NoError(t, err)

	insert := fmt.Sprintf(`INSERT INTO "registros-presencia" (%s) VALUES (%s)`, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	for _, row := range rows {
		args := make([]any, len(occurrenceColumns))
		for i, c := range occurrenceColumns {
			args[i] = row[c]
		}
		_, err := db.Exec(insert, args...)
		require.NoError(t, err)
	}
	return path
}

func occurrence(gbifID, taxonKey int64, lon, lat any) map[string]any {
	return map[string]any{
		"gbifID":           gbifID,
		"taxonKey":         taxonKey,
		"decimalLongitude": lon,
		"decimalLatitude":  lat,
		"eventDate":        "2019-05-01T00:00:00",
		"year":             2019,
		"stateProvince":    "Alajuela",
		"basisOfRecord":    "HUMAN_OBSERVATION",
	}
}

func count(t *testing.T, db *bun.DB, model interface{}) int {
	t.Helper()
	n, err := db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestSpeciesImportDerivesScientificName(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	path := writeSpeciesCSV(t, "100,Plantae,Tracheophyta,Magnoliopsida,Laurales,Lauraceae,Persea,americana")

	res, err := New(db).Run(ctx, Options{SpeciesFile: path, ImportType: models.ImportSpecies})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total.Created)

	sp, err := repositories.GetSpeciesByTaxonKey(ctx, db, 100)
	require.NoError(t, err)
	assert.Equal(t, "Persea americana", sp.ScientificName)
	assert.Equal(t, "Lauraceae", sp.Family)
	assert.Equal(t, "Laurales", sp.Order)
	assert.NotNil(t, sp.LastGBIFSync)
}

func TestSpeciesReimportIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	path := writeSpeciesCSV(t,
		"100,Plantae,,,,Lauraceae,Persea,americana",
		"101,Animalia,,,,Felidae,Panthera,onca",
	)
	im := New(db)

	first, err := im.Run(ctx, Options{SpeciesFile: path, ImportType: models.ImportSpecies})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total.Created)

	second, err := im.Run(ctx, Options{SpeciesFile: path, ImportType: models.ImportSpecies})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Total.Created)
	assert.Equal(t, 2, second.Total.Updated)

	assert.Equal(t, 2, count(t, db, (*models.Species)(nil)))
	sp, err := repositories.GetSpeciesByTaxonKey(ctx, db, 101)
	require.NoError(t, err)
	assert.Equal(t, "Panthera onca", sp.ScientificName)
}

func TestSpeciesRowErrorsDoNotAbort(t *testing.T) {
	db := testutil.NewDB(t)
	path := writeSpeciesCSV(t,
		"not-a-key,Plantae,,,,,,",
		"100,Plantae,,,,Lauraceae,Persea,americana",
	)

	res, err := New(db).Run(context.Background(), Options{SpeciesFile: path, ImportType: models.ImportSpecies})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total.Processed)
	assert.Equal(t, 1, res.Total.Errored)
	assert.Equal(t, 1, res.Total.Created)
	assert.Contains(t, res.Run.LogMessages, "Species row 1 error")
}

func TestOccurrenceImportLinksSpecies(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	speciesPath := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana")
	gpkg := writeOccurrencesGPKG(t, occurrence(200, 100, -84.5, 10.3))

	res, err := New(db).Run(ctx, Options{SpeciesFile: speciesPath, OccurrencesFile: gpkg, ImportType: models.ImportFull})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Species.Created)
	assert.Equal(t, 1, res.Occurrences.Created)
	assert.Equal(t, 2, res.Run.RecordsCreated)

	occ, err := repositories.GetOccurrenceByGBIFID(ctx, db, 200)
	require.NoError(t, err)
	sp, err := repositories.GetSpeciesByTaxonKey(ctx, db, 100)
	require.NoError(t, err)
	assert.Equal(t, sp.ID, occ.SpeciesID)
	require.NotNil(t, occ.Location)
	assert.InDelta(t, -84.5, occ.Location.Lon, 1e-9)
	assert.InDelta(t, 10.3, occ.Location.Lat, 1e-9)
	assert.Equal(t, "CR", occ.CountryCode)
	require.NotNil(t, occ.EventDate)
	assert.Equal(t, "2019-05-01", occ.EventDate.Format("2006-01-02"))
}

func TestOccurrenceWithUnknownSpeciesIsCountedAsError(t *testing.T) {
	db := testutil.NewDB(t)
	gpkg := writeOccurrencesGPKG(t, occurrence(300, 999, -84.5, 10.3))

	res, err := New(db).Run(context.Background(), Options{OccurrencesFile: gpkg, ImportType: models.ImportOccurrences})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total.Errored)
	assert.Equal(t, 0, res.Total.Created)
	assert.Contains(t, res.Run.LogMessages, "Species with taxonKey 999 not found for occurrence 300")
	assert.Equal(t, 0, count(t, db, (*models.Occurrence)(nil)))
}

func TestInvalidCoordinatesSkipRowAndContinue(t *testing.T) {
	db := testutil.NewDB(t)
	speciesPath := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana")
	gpkg := writeOccurrencesGPKG(t,
		occurrence(201, 100, "not-a-number", 10.3),
		occurrence(202, 100, -84.2, 10.1),
	)

	res, err := New(db).Run(context.Background(), Options{SpeciesFile: speciesPath, OccurrencesFile: gpkg})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Occurrences.Processed)
	assert.Equal(t, 1, res.Occurrences.Errored)
	assert.Equal(t, 1, res.Occurrences.Created)
	assert.Contains(t, res.Occurrences.Log(), "Invalid coordinates for occurrence 201")
	assert.Equal(t, 1, count(t, db, (*models.Occurrence)(nil)))
}

func TestDryRunReportsLiveCountsWithoutWriting(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	speciesPath := writeSpeciesCSV(t,
		"100,Plantae,,,,Lauraceae,Persea,americana",
		"100,Plantae,,,,Lauraceae,Persea,americana",
		"bad,Plantae,,,,,,",
	)
	gpkg := writeOccurrencesGPKG(t,
		occurrence(200, 100, -84.5, 10.3),
		occurrence(200, 100, -84.5, 10.3),
		occurrence(201, 555, -84.5, 10.3),
	)
	opts := Options{SpeciesFile: speciesPath, OccurrencesFile: gpkg, ImportType: models.ImportFull, DryRun: true}

	dry, err := New(db).Run(ctx, opts)
	require.NoError(t, err)
	assert.False(t, dry.Persisted)
	assert.Equal(t, models.StatusSuccess, dry.Run.Status)

	assert.Equal(t, 0, count(t, db, (*models.Species)(nil)))
	assert.Equal(t, 0, count(t, db, (*models.Occurrence)(nil)))
	assert.Equal(t, 0, count(t, db, (*models.ImportRun)(nil)), "dry runs leave no import log row by default")

	opts.DryRun = false
	live, err := New(db).Run(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, live.Species, dry.Species)
	assert.Equal(t, live.Occurrences, dry.Occurrences)
	assert.Equal(t, ImportStats{Processed: 3, Created: 1, Updated: 1, Errored: 1, Messages: live.Species.Messages}, live.Species)
	assert.Equal(t, 1, live.Occurrences.Created)
	assert.Equal(t, 1, live.Occurrences.Updated)
	assert.Equal(t, 1, live.Occurrences.Errored)
}

func TestRecordDryRunKeepsAuditRow(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	path := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana")

	res, err := New(db).Run(ctx, Options{SpeciesFile: path, ImportType: models.ImportSpecies, DryRun: true, RecordDryRun: true})
	require.NoError(t, err)
	assert.True(t, res.Persisted)

	run, err := repositories.GetImportRun(ctx, db, res.Run.RunID)
	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Equal(t, 1, run.RecordsCreated)
	assert.Equal(t, 0, count(t, db, (*models.Species)(nil)))
}

// No import path assigns StatusPartial: a run in which every row fails
// still finishes as success.
func TestRunWithOnlyRowErrorsStillReportsSuccess(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	path := writeSpeciesCSV(t, "x,Plantae,,,,,,", "y,Plantae,,,,,,")

	res, err := New(db).Run(ctx, Options{SpeciesFile: path, ImportType: models.ImportSpecies})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total.Errored)

	run, err := repositories.GetImportRun(ctx, db, res.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, run.Status)
	assert.NotEqual(t, models.StatusPartial, run.Status)
	assert.Equal(t, 0.0, run.SuccessRate())
	assert.NotNil(t, run.CompletedAt)
	assert.NotNil(t, run.DurationSeconds)
}

func TestMissingSpeciesFileMarksRunAsError(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "missing.csv")

	res, err := New(db).Run(ctx, Options{SpeciesFile: missing, ImportType: models.ImportFull})
	require.Error(t, err)
	assert.True(t, errors.Is(err, darwincore.ErrFileNotFound))

	run, getErr := repositories.GetImportRun(ctx, db, res.Run.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusError, run.Status)
	assert.Contains(t, run.ErrorDetails, "missing.csv")
	assert.NotNil(t, run.CompletedAt)
}

func TestMissingOccurrenceTableIsFatal(t *testing.T) {
	db := testutil.NewDB(t)
	path := filepath.Join(t.TempDir(), "empty.gpkg")
	raw, err := sql.Open(sqliteshim.ShimName, path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE gpkg_contents (table_name TEXT)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	res, err := New(db).Run(context.Background(), Options{OccurrencesFile: path, ImportType: models.ImportOccurrences})
	require.Error(t, err)
	assert.True(t, errors.Is(err, darwincore.ErrSourceFormat))
	assert.Equal(t, models.StatusError, res.Run.Status)
}

func TestFatalErrorKeepsCountsOfEarlierPhase(t *testing.T) {
	db := testutil.NewDB(t)
	speciesPath := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana")

	res, err := New(db).Run(context.Background(), Options{
		SpeciesFile:     speciesPath,
		OccurrencesFile: filepath.Join(t.TempDir(), "missing.gpkg"),
	})
	require.Error(t, err)
	assert.Equal(t, 1, res.Run.RecordsCreated)
	assert.Equal(t, models.StatusError, res.Run.Status)
	assert.Equal(t, 1, count(t, db, (*models.Species)(nil)), "rows written before the failure stay written")
}

func TestRunRecordsMetrics(t *testing.T) {
	db := testutil.NewDB(t)
	registry := prometheus.NewRegistry()
	m, err := metrics.NewImportMetrics(registry)
	require.NoError(t, err)

	path := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana", "bad,,,,,,,")
	_, err = New(db, WithMetrics(m)).Run(context.Background(), Options{SpeciesFile: path, ImportType: models.ImportSpecies})
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["acat_import_rows_total"])
	assert.True(t, names["acat_import_runs_total"])
}

// rejectingStore fails writes for selected occurrences and passes
// everything else through to the real store.
type rejectingStore struct {
	*repositories.Store
	reject map[int64]error
}

func (s *rejectingStore) CreateOccurrence(ctx context.Context, occ *models.Occurrence) error {
	if err, ok := s.reject[occ.GBIFID]; ok {
		return err
	}
	return s.Store.CreateOccurrence(ctx, occ)
}

func TestOccurrenceStoreErrorIsCountedAsRowError(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	speciesPath := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana")
	gpkg := writeOccurrencesGPKG(t,
		occurrence(998, 100, -84.5, 10.3),
		occurrence(999, 100, -84.5, 10.3),
		occurrence(1000, 100, -84.5, 10.3),
	)
	store := &rejectingStore{
		Store:  repositories.NewStore(db),
		reject: map[int64]error{999: errors.New("numeric field overflow")},
	}

	res, err := New(db, WithStore(store)).Run(ctx, Options{SpeciesFile: speciesPath, OccurrencesFile: gpkg})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, res.Run.Status)
	assert.Equal(t, 3, res.Occurrences.Processed)
	assert.Equal(t, 2, res.Occurrences.Created)
	assert.Equal(t, 1, res.Occurrences.Errored)
	assert.Contains(t, res.Run.LogMessages, "Occurrence 999 error: create occurrence 999: numeric field overflow")
	assert.Equal(t, 2, count(t, db, (*models.Occurrence)(nil)))

	_, err = repositories.GetOccurrenceByGBIFID(ctx, db, 1000)
	assert.NoError(t, err, "rows after the rejected one are still imported")
}

func TestOccurrenceConnectionLossIsFatal(t *testing.T) {
	db := testutil.NewDB(t)
	speciesPath := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana")
	gpkg := writeOccurrencesGPKG(t,
		occurrence(998, 100, -84.5, 10.3),
		occurrence(999, 100, -84.5, 10.3),
	)
	store := &rejectingStore{
		Store:  repositories.NewStore(db),
		reject: map[int64]error{998: fmt.Errorf("write: %w", driver.ErrBadConn)},
	}

	res, err := New(db, WithStore(store)).Run(context.Background(), Options{SpeciesFile: speciesPath, OccurrencesFile: gpkg})
	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrBadConn))
	assert.Equal(t, models.StatusError, res.Run.Status)
	assert.Equal(t, 0, res.Occurrences.Processed)
}

func TestRunDurationUsesClock(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	path := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana")

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		now := start.Add(time.Duration(calls) * 45 * time.Second)
		calls++
		return now
	}

	res, err := New(db, WithClock(clock)).Run(ctx, Options{SpeciesFile: path, ImportType: models.ImportSpecies})
	require.NoError(t, err)
	assert.True(t, res.Run.StartedAt.Equal(start))
	require.NotNil(t, res.Run.DurationSeconds)
	assert.Equal(t, 90.0, *res.Run.DurationSeconds)
	assert.Equal(t, "1m 30s", res.Run.DurationDisplay())

	sp, err := repositories.GetSpeciesByTaxonKey(ctx, db, 100)
	require.NoError(t, err)
	require.NotNil(t, sp.LastGBIFSync)
	assert.True(t, sp.LastGBIFSync.Equal(start.Add(45*time.Second)))
}

func TestDryRunLeavesExistingRowsUntouched(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	speciesPath := writeSpeciesCSV(t, "100,Plantae,,,,Lauraceae,Persea,americana")
	original := occurrence(200, 100, -84.5, 10.3)
	original["locality"] = "Volcán Arenal"
	gpkg := writeOccurrencesGPKG(t, original)

	_, err := New(db).Run(ctx, Options{SpeciesFile: speciesPath, OccurrencesFile: gpkg})
	require.NoError(t, err)

	spBefore, err := repositories.GetSpeciesByTaxonKey(ctx, db, 100)
	require.NoError(t, err)
	occBefore, err := repositories.GetOccurrenceByGBIFID(ctx, db, 200)
	require.NoError(t, err)

	changedSpecies := writeSpeciesCSV(t,
		"100,Plantae,,,,Rosaceae,Prunus,avium",
		"101,Animalia,,,,Felidae,Panthera,onca",
	)
	changed := occurrence(200, 100, -85.0, 9.9)
	changed["locality"] = "Monteverde"
	changedGPKG := writeOccurrencesGPKG(t, changed, occurrence(201, 100, -84.1, 10.0))

	dry, err := New(db).Run(ctx, Options{SpeciesFile: changedSpecies, OccurrencesFile: changedGPKG, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, dry.Species.Updated)
	assert.Equal(t, 1, dry.Species.Created)
	assert.Equal(t, 1, dry.Occurrences.Updated)
	assert.Equal(t, 1, dry.Occurrences.Created)

	spAfter, err := repositories.GetSpeciesByTaxonKey(ctx, db, 100)
	require.NoError(t, err)
	assert.Equal(t, "Lauraceae", spAfter.Family)
	assert.Equal(t, "Persea americana", spAfter.ScientificName)
	assert.True(t, spBefore.UpdatedAt.Equal(spAfter.UpdatedAt), "species updated_at changed")

	occAfter, err := repositories.GetOccurrenceByGBIFID(ctx, db, 200)
	require.NoError(t, err)
	assert.Equal(t, "Volcán Arenal", occAfter.Locality)
	assert.InDelta(t, -84.5, occAfter.DecimalLongitude, 1e-9)
	assert.True(t, occBefore.UpdatedAt.Equal(occAfter.UpdatedAt), "occurrence updated_at changed")

	assert.Equal(t, 1, count(t, db, (*models.Species)(nil)))
	assert.Equal(t, 1, count(t, db, (*models.Occurrence)(nil)))
}

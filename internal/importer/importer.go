// Package importer loads Darwin Core species and occurrence exports into the
// biodiversity tables and records each run in the import log.
package importer

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"

	"github.com/mkoziy/acat/internal/logging"
	"github.com/mkoziy/acat/internal/metrics"
	"github.com/mkoziy/acat/internal/models"
	"github.com/mkoziy/acat/internal/repositories"
	"github.com/mkoziy/acat/internal/sources/darwincore"
)

// Options selects the inputs and mode of one import run.
type Options struct {
	SpeciesFile      string            `yaml:"species_file"`
	OccurrencesFile  string            `yaml:"occurrences_file"`
	OccurrencesTable string            `yaml:"occurrences_table"`
	ImportType       models.ImportType `yaml:"import_type"`
	BatchSize        int               `yaml:"batch_size"`
	// DryRun validates and counts without writing species or occurrences.
	DryRun bool `yaml:"dry_run"`
	// RecordDryRun keeps an import log row for dry runs, flagged dry_run.
	RecordDryRun bool `yaml:"record_dry_run"`
}

func (o Options) withDefaults() Options {
	if o.SpeciesFile == "" {
		o.SpeciesFile = darwincore.DefaultSpeciesFile
	}
	if o.OccurrencesFile == "" {
		o.OccurrencesFile = darwincore.DefaultOccurrencesFile
	}
	if o.OccurrencesTable == "" {
		o.OccurrencesTable = darwincore.DefaultOccurrencesTable
	}
	if o.ImportType == "" {
		o.ImportType = models.ImportFull
	}
	if o.BatchSize <= 0 {
		o.BatchSize = darwincore.DefaultBatchSize
	}
	return o
}

func (o Options) sourceFiles() []string {
	var files []string
	if o.ImportType.IncludesSpecies() {
		files = append(files, o.SpeciesFile)
	}
	if o.ImportType.IncludesOccurrences() {
		files = append(files, o.OccurrencesFile)
	}
	return files
}

// Result is the outcome of Run. Run is set even when the run failed.
type Result struct {
	Run         *models.ImportRun
	Species     ImportStats
	Occurrences ImportStats
	Total       ImportStats
	// Persisted reports whether Run was written to the import log.
	Persisted bool
}

// Importer runs Darwin Core imports against a store.
type Importer struct {
	db      bun.IDB
	store   Store
	metrics *metrics.ImportMetrics
	now     func() time.Time
}

// Option customises an Importer.
type Option func(*Importer)

// WithMetrics records row and run metrics.
func WithMetrics(m *metrics.ImportMetrics) Option {
	return func(im *Importer) { im.metrics = m }
}

// WithStore replaces the bun-backed record store.
func WithStore(s Store) Option {
	return func(im *Importer) { im.store = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// New returns an Importer that writes records and run logs to db.
func New(db bun.IDB, opts ...Option) *Importer {
	im := &Importer{
		db:    db,
		store: repositories.NewStore(db),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Run executes the phases selected by opts.ImportType. Row errors are
// counted and never stop the run. An occurrence the store refuses is a row
// error too. A missing file, a missing occurrence table, a species write
// failure or a lost connection marks the run as error and is returned.
//
// A completed run is reported as success even when every row errored.
func (im *Importer) Run(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	run := &models.ImportRun{
		RunID:      uuid.NewString(),
		ImportType: opts.ImportType,
		Status:     models.StatusStarted,
		SourceFile: strings.Join(opts.sourceFiles(), ", "),
		FileSize:   totalFileSize(opts.sourceFiles()),
		StartedAt:  im.now(),
		DryRun:     opts.DryRun,
	}
	if snapshot, err := yaml.Marshal(opts); err == nil {
		s := string(snapshot)
		run.ConfigSnapshot = &s
	}

	res := &Result{Run: run, Persisted: !opts.DryRun || opts.RecordDryRun}

	ctx = logging.WithRunID(ctx, run.RunID)
	logger := logging.WithFields(ctx, "import_type", opts.ImportType, "dry_run", opts.DryRun)

	if res.Persisted {
		if err := repositories.CreateImportRun(ctx, im.db, run); err != nil {
			return res, fmt.Errorf("create import run: %w", err)
		}
	}
	logger.Info("import started", "sources", run.SourceFile, "batch_size", opts.BatchSize)

	store := im.store
	if opts.DryRun {
		store = NewDryRunStore(store)
	}

	var err error
	if opts.ImportType.IncludesSpecies() {
		err = im.importSpecies(ctx, store, opts, &res.Species)
		res.Total.Merge(res.Species)
	}
	if err == nil && opts.ImportType.IncludesOccurrences() {
		err = im.importOccurrences(ctx, store, opts, &res.Occurrences)
		res.Total.Merge(res.Occurrences)
	}

	run.RecordsProcessed = res.Total.Processed
	run.RecordsCreated = res.Total.Created
	run.RecordsUpdated = res.Total.Updated
	run.RecordsErrors = res.Total.Errored
	run.LogMessages = res.Total.Log()

	if err != nil {
		run.ErrorDetails = err.Error()
		run.Finish(models.StatusError, im.now())
		logger.Error("import failed", "error", err, "processed", run.RecordsProcessed)
	} else {
		run.Finish(models.StatusSuccess, im.now())
		logger.Info("import finished",
			"processed", run.RecordsProcessed,
			"created", run.RecordsCreated,
			"updated", run.RecordsUpdated,
			"errors", run.RecordsErrors,
			"duration", run.DurationDisplay(),
		)
	}
	im.metrics.RecordRun(string(run.ImportType), string(run.Status), run.DryRun, run.Duration())

	if res.Persisted {
		// The run log must be closed even if ctx was cancelled mid-run.
		if saveErr := repositories.SaveImportRun(context.WithoutCancel(ctx), im.db, run); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("save import run: %w", saveErr))
		}
	}

	if err != nil {
		return res, fmt.Errorf("import %s: %w", opts.ImportType, err)
	}
	return res, nil
}

func (im *Importer) importSpecies(ctx context.Context, store Store, opts Options, stats *ImportStats) error {
	logger := logging.WithFields(ctx, "phase", "species", "file", opts.SpeciesFile)
	logger.Info("importing species")

	err := darwincore.ReadSpecies(ctx, opts.SpeciesFile, func(rowNum int, row darwincore.Row) error {
		rec, err := darwincore.NormalizeSpecies(row, rowNum, im.now())
		if err != nil {
			return im.rowFailed(logger, "species", stats, err)
		}

		result, err := UpsertSpecies(ctx, store, rec)
		if err != nil {
			return err
		}
		stats.Record(result)
		im.metrics.RecordRow("species", result.String())

		if stats.Processed%opts.BatchSize == 0 {
			logger.Info("species progress", "processed", stats.Processed)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("species: %w", err)
	}

	logger.Info("species done", "processed", stats.Processed, "created", stats.Created, "updated", stats.Updated, "errors", stats.Errored)
	return nil
}

func (im *Importer) importOccurrences(ctx context.Context, store Store, opts Options, stats *ImportStats) error {
	logger := logging.WithFields(ctx, "phase", "occurrences", "file", opts.OccurrencesFile, "table", opts.OccurrencesTable)
	logger.Info("importing occurrences")

	batch := 0
	err := darwincore.ReadOccurrences(ctx, opts.OccurrencesFile, opts.OccurrencesTable, opts.BatchSize, func(firstRow int, chunk []darwincore.Row) error {
		batch++
		for i, row := range chunk {
			rec, err := darwincore.NormalizeOccurrence(ctx, row, firstRow+i, store, im.now())
			if err != nil {
				if err := im.rowFailed(logger, "occurrence", stats, err); err != nil {
					return err
				}
				continue
			}

			result, err := UpsertOccurrence(ctx, store, rec)
			if err != nil {
				if isFatalStoreError(ctx, err) {
					return err
				}
				stats.Fail(fmt.Errorf("Occurrence %d error: %w", rec.GBIFID, err))
				im.metrics.RecordRow("occurrence", "error")
				logger.Warn("occurrence not stored", "gbif_id", rec.GBIFID, "error", err)
				continue
			}
			stats.Record(result)
			im.metrics.RecordRow("occurrence", result.String())
		}
		logger.Info("occurrence progress", "batch", batch, "processed", stats.Processed)
		return nil
	})
	if err != nil {
		return fmt.Errorf("occurrences: %w", err)
	}

	logger.Info("occurrences done", "processed", stats.Processed, "created", stats.Created, "updated", stats.Updated, "errors", stats.Errored)
	return nil
}

// rowFailed counts row errors and passes any other error through.
func (im *Importer) rowFailed(logger *slog.Logger, kind string, stats *ImportStats, err error) error {
	if !darwincore.IsRowError(err) {
		return err
	}
	stats.Fail(err)
	im.metrics.RecordRow(kind, "error")
	logger.Warn("row rejected", "kind", kind, "error", err)
	return nil
}

// isFatalStoreError reports whether a failed occurrence write means the
// store itself is unusable. Constraint and value errors only reject the row.
func isFatalStoreError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone)
}

func totalFileSize(paths []string) *int64 {
	var total int64
	found := false
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
			found = true
		}
	}
	if !found {
		return nil
	}
	return &total
}

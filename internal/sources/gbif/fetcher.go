package gbif

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/logging"
	"github.com/mkoziy/acat/internal/repositories"
)

// NameSource looks up vernacular names for a taxon.
type NameSource interface {
	VernacularNames(ctx context.Context, taxonKey int64) ([]VernacularName, error)
}

// Enricher fills in missing species common names from GBIF.
type Enricher struct {
	db     bun.IDB
	source NameSource
}

// NewEnricher creates an Enricher.
func NewEnricher(db bun.IDB, source NameSource) *Enricher {
	return &Enricher{db: db, source: source}
}

// Run looks up every species without a common name and stores the best
// match. Lookup failures are logged and counted; only store errors abort.
func (e *Enricher) Run(ctx context.Context, opts EnrichOptions) (*EnrichStats, error) {
	logger := logging.FromContext(ctx).With("component", "gbif", "dry_run", opts.DryRun)

	species, err := repositories.ListSpeciesWithoutCommonName(ctx, e.db, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("list species without common name: %w", err)
	}
	logger.Info("enrichment started", "species", len(species))

	stats := &EnrichStats{}
	for _, sp := range species {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Checked++

		names, err := e.source.VernacularNames(ctx, sp.TaxonKey)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Errors++
			logger.Warn("vernacular lookup failed", "taxon_key", sp.TaxonKey, "error", err)
			continue
		}

		name, ok := PickVernacularName(names, opts.Languages)
		if !ok {
			stats.NotFound++
			logger.Debug("no vernacular name", "taxon_key", sp.TaxonKey, "candidates", len(names))
			continue
		}

		if !opts.DryRun {
			if err := repositories.SetCommonName(ctx, e.db, sp.ID, name); err != nil {
				return stats, fmt.Errorf("set common name for %d: %w", sp.TaxonKey, err)
			}
		}
		stats.Updated++
		logger.Debug("common name resolved", "taxon_key", sp.TaxonKey, "common_name", name)
	}

	stats.log(logger)
	return stats, nil
}

func (s *EnrichStats) log(logger *slog.Logger) {
	logger.Info("enrichment finished",
		"checked", s.Checked,
		"updated", s.Updated,
		"not_found", s.NotFound,
		"errors", s.Errors,
	)
}

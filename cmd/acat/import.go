package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mkoziy/acat/internal/importer"
	"github.com/mkoziy/acat/internal/metrics"
	"github.com/mkoziy/acat/internal/models"
)

type importFlags struct {
	importType   string
	dryRun       bool
	recordDryRun bool
}

func newImportCmd(a *app) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import Darwin Core species and occurrence data",
		Long: `Import species from a Darwin Core CSV and occurrences from a GeoPackage.

Records are upserted by taxonKey and gbifID, so re-running an import updates
existing rows instead of duplicating them. Row errors are counted and logged;
a missing file, a missing occurrence table or a database failure aborts the
run with status "error".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	flags := cmd.Flags()
	flags.String("species-file", "", "path to the species CSV")
	flags.String("occurrences-file", "", "path to the occurrences GeoPackage")
	flags.String("occurrences-table", "", "GeoPackage table holding occurrences")
	flags.Int("batch-size", 0, "occurrence rows read per batch")
	flags.StringVar(&f.importType, "import-type", string(models.ImportFull), "what to import: species, occurrences or full")
	flags.BoolVar(&f.dryRun, "dry-run", false, "validate and count without writing records")
	flags.BoolVar(&f.recordDryRun, "record-dry-run", false, "keep an import log entry for a dry run")
	bindFlags(a.v, flags, map[string]string{
		"import.species_file":      "species-file",
		"import.occurrences_file":  "occurrences-file",
		"import.occurrences_table": "occurrences-table",
		"import.batch_size":        "batch-size",
	})
	return cmd
}

func (a *app) runImport(ctx context.Context, out io.Writer, f importFlags) error {
	importType, err := models.ParseImportType(f.importType)
	if err != nil {
		return err
	}

	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	importMetrics, err := metrics.NewImportMetrics(registry)
	if err != nil {
		return err
	}

	opts := importer.Options{
		SpeciesFile:      a.cfg.Import.SpeciesFile,
		OccurrencesFile:  a.cfg.Import.OccurrencesFile,
		OccurrencesTable: a.cfg.Import.OccurrencesTable,
		ImportType:       importType,
		BatchSize:        a.cfg.Import.BatchSize,
		DryRun:           f.dryRun,
		RecordDryRun:     f.recordDryRun,
	}
	res, runErr := importer.New(db, importer.WithMetrics(importMetrics)).Run(ctx, opts)

	if res != nil {
		printImportSummary(out, res)
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := metrics.Push(pushCtx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job, registry); err != nil {
		slog.Warn("metrics push failed", "error", err)
	}

	return runErr
}

func printImportSummary(out io.Writer, res *importer.Result) {
	run := res.Run
	fmt.Fprintf(out, "Import %s: %s (run %s)\n", run.ImportType, run.Status, run.RunID)
	if run.ImportType.IncludesSpecies() {
		printStats(out, "Species", res.Species)
	}
	if run.ImportType.IncludesOccurrences() {
		printStats(out, "Occurrences", res.Occurrences)
	}
	printStats(out, "Total", res.Total)
	fmt.Fprintf(out, "  Duration:    %s\n", run.DurationDisplay())
	if run.RecordsProcessed > 0 {
		fmt.Fprintf(out, "  Success:     %.1f%%\n", run.SuccessRate())
	}
	if run.DryRun {
		fmt.Fprintln(out, "DRY RUN: no species or occurrences were written")
	}
}

func printStats(out io.Writer, label string, s importer.ImportStats) {
	fmt.Fprintf(out, "  %-12s processed=%d created=%d updated=%d errors=%d\n",
		label+":", s.Processed, s.Created, s.Updated, s.Errored)
}

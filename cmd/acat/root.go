package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/config"
	"github.com/mkoziy/acat/internal/database"
	"github.com/mkoziy/acat/internal/logging"
	"github.com/mkoziy/acat/internal/migrations"
)

// app carries the state shared by subcommands.
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	configFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "acat",
		Short: "ACAT biodiversity data importer and API",
		Long: `acat loads Darwin Core species (CSV) and occurrence (GeoPackage) exports
into the biodiversity database, enriches species with GBIF vernacular names
and serves the data through a read-only HTTP API.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: acat.yaml in ., ./config or ~/.acat)")
	flags.String("dsn", "", "database DSN (sqlite path or postgres:// URL)")
	flags.String("driver", "", "database driver: sqlite or postgres (default: inferred from DSN)")
	flags.Bool("db-debug", false, "log every SQL query")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	bindFlags(a.v, flags, map[string]string{
		"database.dsn":    "dsn",
		"database.driver": "driver",
		"database.debug":  "db-debug",
		"logging.level":   "log-level",
		"logging.format":  "log-format",
	})

	rootCmd.AddCommand(
		newImportCmd(a),
		newMigrateCmd(a),
		newConservationCmd(a),
		newServeCmd(a),
		newEnrichNamesCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

// setup loads configuration and installs the logger before any subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	cfg.LogSummary()
	return nil
}

// openDB connects to the configured store and applies pending migrations.
func (a *app) openDB(ctx context.Context) (*bun.DB, error) {
	db, err := database.Open(a.cfg.Driver(), a.cfg.Database.DSN, a.cfg.Database.Debug)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrations.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

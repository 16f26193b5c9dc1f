// Package config loads acat settings from acat.yaml, ACAT_* environment
// variables and command-line flags.
package config

import (
	"time"

	"github.com/mkoziy/acat/internal/ratelimit"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Import   ImportConfig   `mapstructure:"import" yaml:"import"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	GBIF     GBIFConfig     `mapstructure:"gbif" yaml:"gbif"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres". Empty infers it from DSN.
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	// Debug logs every query through bundebug.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// ImportConfig holds the default Darwin Core inputs.
type ImportConfig struct {
	SpeciesFile      string `mapstructure:"species_file" yaml:"species_file"`
	OccurrencesFile  string `mapstructure:"occurrences_file" yaml:"occurrences_file"`
	OccurrencesTable string `mapstructure:"occurrences_table" yaml:"occurrences_table"`
	BatchSize        int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format"`
}

// ServerConfig holds read API settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// GBIFConfig configures the vernacular name lookups.
type GBIFConfig struct {
	BaseURL   string           `mapstructure:"base_url" yaml:"base_url"`
	Languages []string         `mapstructure:"languages" yaml:"languages"`
	Timeout   time.Duration    `mapstructure:"timeout" yaml:"timeout"`
	RateLimit ratelimit.Config `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// MetricsConfig configures the Pushgateway used by batch commands.
type MetricsConfig struct {
	// PushgatewayURL disables pushing when empty.
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `mapstructure:"job" yaml:"job"`
}

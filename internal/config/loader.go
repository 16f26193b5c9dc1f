package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mkoziy/acat/internal/database"
	"github.com/mkoziy/acat/internal/ratelimit"
	"github.com/mkoziy/acat/internal/sources/darwincore"
	"github.com/mkoziy/acat/internal/sources/gbif"
)

const (
	configFileName = "acat"
	configFileType = "yaml"
	envPrefix      = "ACAT"
)

// New returns a viper instance with defaults, config search paths and
// environment overrides registered. Callers may bind flags before Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".acat"))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key so environment overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "acat.db")
	v.SetDefault("database.debug", false)

	v.SetDefault("import.species_file", darwincore.DefaultSpeciesFile)
	v.SetDefault("import.occurrences_file", darwincore.DefaultOccurrencesFile)
	v.SetDefault("import.occurrences_table", darwincore.DefaultOccurrencesTable)
	v.SetDefault("import.batch_size", darwincore.DefaultBatchSize)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	rl := ratelimit.DefaultConfig()
	v.SetDefault("gbif.base_url", gbif.DefaultBaseURL)
	v.SetDefault("gbif.languages", gbif.DefaultLanguages)
	v.SetDefault("gbif.timeout", gbif.DefaultTimeout.String())
	v.SetDefault("gbif.rate_limit.strategy", string(rl.Strategy))
	v.SetDefault("gbif.rate_limit.requests_per_second", rl.RequestsPerSec)
	v.SetDefault("gbif.rate_limit.burst", rl.Burst)
	v.SetDefault("gbif.rate_limit.fixed_delay", rl.FixedDelay.String())
	v.SetDefault("gbif.rate_limit.max_retries", rl.MaxRetries)
	v.SetDefault("gbif.rate_limit.initial_backoff", rl.InitialBackoff.String())
	v.SetDefault("gbif.rate_limit.max_backoff", rl.MaxBackoff.String())
	v.SetDefault("gbif.rate_limit.backoff_multiplier", rl.BackoffMultiplier)

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "acat_import")
}

// Load reads .env, then configFile (or acat.yaml from the search paths),
// and decodes the result. Missing .env and acat.yaml files are not errors;
// a missing explicit configFile is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on settings no command can work with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "", database.DriverSQLite, database.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("import.batch_size: must be positive, got %d", c.Import.BatchSize))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: must be text or json, got %q", c.Logging.Format))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, errors.New("server: timeouts must not be negative"))
	}
	if c.GBIF.Timeout < 0 {
		errs = append(errs, errors.New("gbif.timeout: must not be negative"))
	}
	if _, err := url.ParseRequestURI(c.GBIF.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("gbif.base_url: %w", err))
	}
	switch c.GBIF.RateLimit.Strategy {
	case "", ratelimit.StrategyTokenBucket, ratelimit.StrategyFixedDelay:
	default:
		errs = append(errs, fmt.Errorf("gbif.rate_limit.strategy: unknown strategy %q", c.GBIF.RateLimit.Strategy))
	}
	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		errs = append(errs, errors.New("metrics.job: required when pushgateway_url is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Driver returns the configured database driver, inferring it from the DSN
// when unset.
func (c *Config) Driver() string {
	if c.Database.Driver != "" {
		return c.Database.Driver
	}
	return database.DriverFromDSN(c.Database.DSN)
}

// YAML renders the effective configuration with any DSN password masked.
func (c *Config) YAML() ([]byte, error) {
	redacted := *c
	redacted.Database.DSN = redactDSN(c.Database.DSN)
	return yaml.Marshal(&redacted)
}

// LogSummary writes the settings worth seeing at startup.
func (c *Config) LogSummary() {
	slog.Debug("configuration loaded",
		"driver", c.Driver(),
		"dsn", redactDSN(c.Database.DSN),
		"batch_size", c.Import.BatchSize,
		"log_level", c.Logging.Level,
	)
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/florstein/ledger-reconciler/internal/match"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverBigQuery = "bigquery"
)

// Config holds all application configuration
type Config struct {
	Match    MatchConfig
	Log      LogConfig
	Store    StoreConfig
	BigQuery BigQueryConfig
	GCS      GCSConfig
	Worker   WorkerConfig
}

// MatchConfig holds the reconciliation tunables
type MatchConfig struct {
	Threshold       int
	Gap             int
	DateWindowHours int
	AmountTolerance float64
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string // debug, info, warn, error
}

// StoreConfig selects the repository backend
type StoreConfig struct {
	Driver     string // memory, sqlite, bigquery
	SQLitePath string
}

// BigQueryConfig holds BigQuery dataset settings
type BigQueryConfig struct {
	ProjectID string
	Dataset   string
}

// GCSConfig holds the bucket that extracted text is read from and written to
type GCSConfig struct {
	Bucket string
}

// WorkerConfig holds the reconcile job queue settings
type WorkerConfig struct {
	QueueSize  int
	Workers    int
	MaxRetries int
}

// legacyEnv maps config keys to the unprefixed variables older deployments use.
var legacyEnv = map[string]string{
	"match.threshold":         "AUTO_MATCH_THRESHOLD",
	"match.gap":               "AUTO_MATCH_GAP",
	"match.date_window_hours": "DATE_WINDOW_HOURS",
	"match.amount_tolerance":  "AMOUNT_TOLERANCE",
}

// Load loads configuration from environment variables.
// Priority (highest to lowest):
// 1. Environment variables with LEDGER_ prefix (e.g., LEDGER_MATCH_THRESHOLD)
// 2. Legacy unprefixed variables (e.g., AUTO_MATCH_THRESHOLD)
// 3. Built-in defaults
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, legacy := range legacyEnv {
		prefixed := "LEDGER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("Load: bind %s: %w", key, err)
		}
	}

	cfg := &Config{
		Match: MatchConfig{
			Threshold:       v.GetInt("match.threshold"),
			Gap:             v.GetInt("match.gap"),
			DateWindowHours: v.GetInt("match.date_window_hours"),
			AmountTolerance: v.GetFloat64("match.amount_tolerance"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Store: StoreConfig{
			Driver:     v.GetString("store.driver"),
			SQLitePath: v.GetString("store.sqlite_path"),
		},
		BigQuery: BigQueryConfig{
			ProjectID: v.GetString("bigquery.project_id"),
			Dataset:   v.GetString("bigquery.dataset"),
		},
		GCS: GCSConfig{
			Bucket: v.GetString("gcs.bucket"),
		},
		Worker: WorkerConfig{
			QueueSize:  v.GetInt("worker.queue_size"),
			Workers:    v.GetInt("worker.workers"),
			MaxRetries: v.GetInt("worker.max_retries"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults registers the value of every key left unset. An explicit
// zero, such as LEDGER_MATCH_GAP=0 or LEDGER_WORKER_MAX_RETRIES=0, is kept.
func setDefaults(v *viper.Viper) {
	defaults := match.DefaultConfig()
	v.SetDefault("match.threshold", defaults.Threshold)
	v.SetDefault("match.gap", defaults.Gap)
	v.SetDefault("match.date_window_hours", defaults.DateWindowHours)
	v.SetDefault("match.amount_tolerance", defaults.AmountTolerance.InexactFloat64())
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.sqlite_path", "ledger.db")
	v.SetDefault("bigquery.dataset", "ledger")
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.workers", 5)
	v.SetDefault("worker.max_retries", 3)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Match.Threshold < 0 || c.Match.Threshold > 200 {
		return fmt.Errorf("match.threshold must be between 0 and 200, got %d", c.Match.Threshold)
	}
	if c.Match.Gap < 0 {
		return fmt.Errorf("match.gap cannot be negative")
	}
	if c.Match.DateWindowHours < 0 {
		return fmt.Errorf("match.date_window_hours cannot be negative")
	}
	if c.Match.AmountTolerance < 0 {
		return fmt.Errorf("match.amount_tolerance cannot be negative")
	}

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverBigQuery:
		if c.BigQuery.ProjectID == "" {
			return fmt.Errorf("bigquery.project_id is required when store.driver is bigquery")
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, sqlite, bigquery, got %q", c.Store.Driver)
	}

	if c.Worker.Workers <= 0 {
		return fmt.Errorf("worker.workers must be positive")
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be positive")
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries cannot be negative")
	}

	return nil
}

// MatcherConfig returns the configuration handed to the sale matcher.
func (c *Config) MatcherConfig() match.Config {
	return match.Config{
		Threshold:       c.Match.Threshold,
		Gap:             c.Match.Gap,
		DateWindowHours: c.Match.DateWindowHours,
		AmountTolerance: decimal.NewFromFloat(c.Match.AmountTolerance),
	}
}

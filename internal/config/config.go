// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.strata/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Storage: PostgreSQL + pgvector connection (see storage.go)
//   - Scoring: weights, decay constant, tier thresholds (see scoring.go)
//   - TTL / Aging / Dedup / Consolidation: lifecycle tuning (see scoring.go)
//   - Patterns: domain patterns and permanence triggers (see patterns.go)
//   - Maintenance: sweep intervals and throttling
//
// Validation is fail-fast: Load() returns an error before any component is
// constructed, so invalid weights or thresholds never reach the scoring core
// at runtime. Errors are sentinel values checkable with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidWeights indicates scoring weights are out of range or do not sum to 1.
	ErrInvalidWeights = errors.New("invalid scoring weights")

	// ErrInvalidThreshold indicates a tier threshold is out of range or misordered.
	ErrInvalidThreshold = errors.New("invalid tier threshold")

	// ErrInvalidTTL indicates a TTL bucket configuration is invalid.
	ErrInvalidTTL = errors.New("invalid TTL configuration")

	// ErrInvalidAging indicates the aging configuration is invalid.
	ErrInvalidAging = errors.New("invalid aging configuration")

	// ErrInvalidDedup indicates the deduplication configuration is invalid.
	ErrInvalidDedup = errors.New("invalid dedup configuration")

	// ErrInvalidConsolidation indicates the consolidation configuration is invalid.
	ErrInvalidConsolidation = errors.New("invalid consolidation configuration")

	// ErrInvalidPattern indicates a domain pattern or permanence trigger is invalid.
	ErrInvalidPattern = errors.New("invalid domain pattern")

	// ErrInvalidInterval indicates a maintenance interval is non-positive.
	ErrInvalidInterval = errors.New("invalid maintenance interval")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")
)

// WeightEpsilon is the tolerance for the weights-sum-to-one check.
const WeightEpsilon = 1e-6

// Config stores application configuration.
type Config struct {
	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Embedding provider configuration
	EmbedderModel  string        `mapstructure:"embedder_model"`
	EmbedTimeout   time.Duration `mapstructure:"embed_timeout"`
	CaseSensitive  bool          `mapstructure:"case_sensitive"`
	RelationDBPath string        `mapstructure:"relation_db_path"`
	Collections    []string      `mapstructure:"collections"`

	// Lifecycle tuning (see scoring.go for type definitions)
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	Thresholds    ThresholdConfig     `mapstructure:"thresholds"`
	TTL           TTLConfig           `mapstructure:"ttl"`
	Aging         AgingConfig         `mapstructure:"aging"`
	Dedup         DedupConfig         `mapstructure:"dedup"`
	Consolidation ConsolidationConfig `mapstructure:"consolidation"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`

	// Domain patterns and permanence triggers (see patterns.go)
	Patterns []Pattern `mapstructure:"patterns"`
	Triggers []Trigger `mapstructure:"triggers"`

	// Observability configuration
	Otel OtelConfig `mapstructure:"otel"`
}

// OtelConfig configures the OTLP trace exporter for sweep spans.
type OtelConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	AgentHost   string `mapstructure:"agent_host"`
	Environment string `mapstructure:"environment"`
	ServiceName string `mapstructure:"service_name"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".strata")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail fast: invalid configuration never reaches the scoring core.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "strata")
	v.SetDefault("postgres_password", "strata_dev_password")
	v.SetDefault("postgres_db_name", "strata")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Embedding defaults
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("embed_timeout", "10s")
	v.SetDefault("case_sensitive", false)
	v.SetDefault("relation_db_path", filepath.Join(configDir, "relations.db"))
	v.SetDefault("collections", []string{"default"})

	// Scoring weights must sum to 1.0; the loader enforces this.
	v.SetDefault("scoring.weights.semantic", 0.4)
	v.SetDefault("scoring.weights.recency", 0.3)
	v.SetDefault("scoring.weights.frequency", 0.2)
	v.SetDefault("scoring.weights.importance", 0.1)
	v.SetDefault("scoring.decay_constant", "24h")
	v.SetDefault("scoring.max_access_count", 100)

	// Tier thresholds
	v.SetDefault("thresholds.long_term", 0.7)
	v.SetDefault("thresholds.permanent", 0.95)

	// TTL buckets: base expiry plus jitter per access-frequency bucket.
	v.SetDefault("ttl.high.base", "5m")
	v.SetDefault("ttl.high.jitter", "1m")
	v.SetDefault("ttl.medium.base", "1h")
	v.SetDefault("ttl.medium.jitter", "10m")
	v.SetDefault("ttl.low.base", "24h")
	v.SetDefault("ttl.low.jitter", "2h")
	v.SetDefault("ttl.static.base", "168h")
	v.SetDefault("ttl.static.jitter", "24h")
	v.SetDefault("ttl.high_max_idle", "1h")
	v.SetDefault("ttl.medium_max_idle", "24h")
	v.SetDefault("ttl.low_max_idle", "168h")
	v.SetDefault("ttl.long_term_multiplier", 4.0)

	// Aging
	v.SetDefault("aging.enabled", true)
	v.SetDefault("aging.decay_rate", 0.1)
	v.SetDefault("aging.min_score", 0.1)
	v.SetDefault("aging.refresh_threshold_days", 7)

	// Dedup: content-type thresholds (code is more variable than prose)
	v.SetDefault("dedup.enabled", true)
	v.SetDefault("dedup.default_threshold", 0.95)
	v.SetDefault("dedup.thresholds.prose", 0.95)
	v.SetDefault("dedup.thresholds.code", 0.85)
	v.SetDefault("dedup.thresholds.data", 0.90)
	v.SetDefault("dedup.thresholds.doc", 0.80)
	v.SetDefault("dedup.min_importance_diff", 0.1)

	// Consolidation
	v.SetDefault("consolidation.enabled", true)
	v.SetDefault("consolidation.size_threshold", 50)
	v.SetDefault("consolidation.group_similarity", 0.70)
	v.SetDefault("consolidation.max_group_size", 10)
	v.SetDefault("consolidation.max_summary_bytes", 8192)

	// Maintenance intervals
	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.cleanup_interval", "1h")
	v.SetDefault("maintenance.consolidation_interval", "24h")
	v.SetDefault("maintenance.statistics_interval", "6h")
	v.SetDefault("maintenance.deep_interval", "168h")
	v.SetDefault("maintenance.docs_per_second", 50)

	// Observability
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.agent_host", "localhost:4318")
	v.SetDefault("otel.environment", "dev")
	v.SetDefault("otel.service_name", "strata")
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("postgres_host", "STRATA_POSTGRES_HOST")
	mustBind("postgres_password", "STRATA_POSTGRES_PASSWORD")
	mustBind("embedder_model", "STRATA_EMBEDDER_MODEL")
	mustBind("otel.enabled", "STRATA_OTEL_ENABLED")
	mustBind("otel.agent_host", "STRATA_OTEL_AGENT_HOST")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
}

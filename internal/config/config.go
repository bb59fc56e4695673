// Package config defines all configuration for the risk-control engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via RISKENGINE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML
// file structure.
type Config struct {
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Rules    []RuleConfig   `mapstructure:"rules"`
}

// RuleConfig declaratively describes one configured rule (spec.md
// §4.5/§6): either a threshold-limit rule over a daily counter or a
// rate-limit rule over a rolling window, selected by Type. Fields
// irrelevant to the selected type are ignored.
type RuleConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"` // "threshold" or "rate_limit"

	// Live dimensions, shared by both rule types.
	Account      bool `mapstructure:"account"`
	Contract     bool `mapstructure:"contract"`
	Product      bool `mapstructure:"product"`
	Exchange     bool `mapstructure:"exchange"`
	AccountGroup bool `mapstructure:"account_group"`

	// Subject selects which live-dimension component an action targets.
	Subject string `mapstructure:"subject"`

	// threshold rule fields.
	Metric    string `mapstructure:"metric"`
	Threshold string `mapstructure:"threshold"` // decimal string
	Action    string `mapstructure:"action"`

	// rate_limit rule fields.
	Kind        string        `mapstructure:"kind"` // "order", "trade", or "cancel"
	WindowNs    int64         `mapstructure:"window_ns"`
	NumBuckets  int           `mapstructure:"num_buckets"`
	RateLimit   int64         `mapstructure:"rate_limit"`
	SuspendKind string        `mapstructure:"suspend_kind"`
	ResumeKind  string        `mapstructure:"resume_kind"`
}

// CatalogConfig points at the seed file mapping contracts to their
// product and exchange.
type CatalogConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// IngestConfig configures the live event feed. Exactly one of WSURL or
// RestURL is normally set: the WebSocket adapter drives the engine from
// a push feed, the REST adapter polls a paginated endpoint instead.
type IngestConfig struct {
	WSURL           string        `mapstructure:"ws_url"`
	ReconnectMinGap time.Duration `mapstructure:"reconnect_min_gap"`
	ReconnectMaxGap time.Duration `mapstructure:"reconnect_max_gap"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`

	RestURL      string        `mapstructure:"rest_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPages     int           `mapstructure:"max_pages"`
}

// SinkConfig configures where emitted actions are delivered.
type SinkConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// StoreConfig sets where snapshot blobs are persisted.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "file" or "sqlite"
	DataDir string `mapstructure:"data_dir"`
	DBPath  string `mapstructure:"db_path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig controls the read-only inspection HTTP/WebSocket server.
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SnapshotConfig controls periodic snapshotting.
type SnapshotConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads config from a YAML file with env var overrides. Sensitive
// fields use env vars: RISKENGINE_SINK_WEBHOOK_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("RISKENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if url := os.Getenv("RISKENGINE_SINK_WEBHOOK_URL"); url != "" {
		cfg.Sink.WebhookURL = url
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Catalog.SeedFile == "" {
		return fmt.Errorf("catalog.seed_file is required")
	}
	if c.Store.Backend != "file" && c.Store.Backend != "sqlite" {
		return fmt.Errorf("store.backend must be one of: file, sqlite")
	}
	if c.Store.Backend == "file" && c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required when store.backend is file")
	}
	if c.Store.Backend == "sqlite" && c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required when store.backend is sqlite")
	}
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot.interval must be > 0")
	}
	if c.API.Enabled && c.API.Port == 0 {
		return fmt.Errorf("api.port is required when api.enabled is true")
	}
	return nil
}

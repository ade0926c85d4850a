// Package config loads and validates catalog configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Source    SourceConfig    `mapstructure:"source"`
	Output    OutputConfig    `mapstructure:"output"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Build     BuildConfig     `mapstructure:"build"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DataConfig locates the record bundle.
type DataConfig struct {
	Dir       string `mapstructure:"dir"`
	ShardSize int    `mapstructure:"shard_size"`
}

// SourceConfig selects where records are loaded from.
type SourceConfig struct {
	Kind     string         `mapstructure:"kind"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig configures the jsonb record table.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// OutputConfig sets where artifacts are written. A bucket adds a GCS mirror.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// TemplatesConfig locates template overrides.
type TemplatesConfig struct {
	Dir string `mapstructure:"dir"`
}

// AssetsConfig locates static assets copied into the output.
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// BuildConfig tunes page planning and the search index.
type BuildConfig struct {
	SiteName        string `mapstructure:"site_name"`
	SiteURL         string `mapstructure:"site_url"`
	PerPage         int    `mapstructure:"per_page"`
	SearchShardSize int    `mapstructure:"search_shard_size"`
	RelatedLimit    int    `mapstructure:"related_limit"`
	PopularTags     int    `mapstructure:"popular_tags"`
	FeedItems       int    `mapstructure:"feed_items"`
	XORKey          string `mapstructure:"xor_key"`
}

// DetectorConfig configures placeholder detection and its state files.
type DetectorConfig struct {
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	PrefixBytes   int           `mapstructure:"prefix_bytes"`
	SignatureFile string        `mapstructure:"signature_file"`
	CacheFile     string        `mapstructure:"cache_file"`
	KnownURLs     []string      `mapstructure:"known_urls"`
	// RatePerHost caps probe requests per second to each image host; 0
	// disables the limit.
	RatePerHost   float64       `mapstructure:"rate_per_host"`
	Burst         int           `mapstructure:"burst"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// NotifyConfig holds the optional build-complete Pub/Sub topic.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether both project and topic are set.
func (n NotifyConfig) Enabled() bool {
	return n.ProjectID != "" && n.Topic != ""
}

// ServerConfig controls the preview server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Source kinds.
const (
	SourceBundle   = "bundle"
	SourcePostgres = "postgres"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "src/data")
	v.SetDefault("data.shard_size", 500)
	v.SetDefault("source.kind", SourceBundle)
	v.SetDefault("source.postgres.table", "catalog_records")
	v.SetDefault("source.postgres.max_conns", 4)
	v.SetDefault("source.postgres.max_conn_lifetime", "30m")
	v.SetDefault("output.dir", "docs")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.gcs_prefix", "")
	v.SetDefault("templates.dir", "src/templates")
	v.SetDefault("assets.dir", "src/assets")
	v.SetDefault("build.site_name", "")
	v.SetDefault("build.site_url", "")
	v.SetDefault("build.per_page", 60)
	v.SetDefault("build.search_shard_size", 600)
	v.SetDefault("build.related_limit", 12)
	v.SetDefault("build.popular_tags", 30)
	v.SetDefault("build.feed_items", 50)
	v.SetDefault("build.xor_key", "ReviewCatalog-v1")
	v.SetDefault("detector.user_agent", "Mozilla/5.0 (compatible; review-catalog/1.0)")
	v.SetDefault("detector.timeout", "20s")
	v.SetDefault("detector.prefix_bytes", 8192)
	v.SetDefault("detector.signature_file", "src/data/noimage_signatures.json")
	v.SetDefault("detector.cache_file", "src/data/noimage_cache.json")
	v.SetDefault("detector.known_urls", []string{})
	v.SetDefault("detector.rate_per_host", 4.0)
	v.SetDefault("detector.burst", 2)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Source.Kind {
	case SourceBundle:
		if c.Data.Dir == "" {
			return fmt.Errorf("data.dir is required for the bundle source")
		}
	case SourcePostgres:
		if c.Source.Postgres.DSN == "" {
			return fmt.Errorf("source.postgres.dsn must be set when source.kind is postgres")
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceBundle, SourcePostgres, c.Source.Kind)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Data.ShardSize <= 0 {
		return fmt.Errorf("data.shard_size must be > 0")
	}
	if c.Build.PerPage <= 0 {
		return fmt.Errorf("build.per_page must be > 0")
	}
	if c.Build.SearchShardSize <= 0 {
		return fmt.Errorf("build.search_shard_size must be > 0")
	}
	if c.Build.RelatedLimit <= 0 {
		return fmt.Errorf("build.related_limit must be > 0")
	}
	if c.Build.XORKey == "" {
		return fmt.Errorf("build.xor_key must not be empty")
	}
	if c.Detector.Timeout <= 0 {
		return fmt.Errorf("detector.timeout must be > 0")
	}
	if c.Detector.PrefixBytes <= 0 {
		return fmt.Errorf("detector.prefix_bytes must be > 0")
	}
	if c.Detector.RatePerHost < 0 {
		return fmt.Errorf("detector.rate_per_host must be >= 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if (c.Notify.ProjectID == "") != (c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set together")
	}
	return nil
}

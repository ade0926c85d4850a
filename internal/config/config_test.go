package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Kind != SourceBundle || cfg.Data.Dir != "src/data" {
		t.Fatalf("unexpected source defaults: %+v %+v", cfg.Source, cfg.Data)
	}
	if cfg.Build.PerPage != 60 || cfg.Build.SearchShardSize != 600 || cfg.Build.RelatedLimit != 12 {
		t.Fatalf("unexpected build defaults: %+v", cfg.Build)
	}
	if cfg.Build.XORKey != "ReviewCatalog-v1" {
		t.Fatalf("unexpected xor key %q", cfg.Build.XORKey)
	}
	if cfg.Detector.RatePerHost != 4 || cfg.Detector.Burst != 2 {
		t.Fatalf("unexpected detector rate defaults: %+v", cfg.Detector)
	}
	if cfg.Detector.Timeout != 20*time.Second || cfg.Detector.PrefixBytes != 8192 {
		t.Fatalf("unexpected detector defaults: %+v", cfg.Detector)
	}
	if cfg.Notify.Enabled() {
		t.Fatalf("notify should be disabled by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
data:
  dir: data
  shard_size: 100
source:
  kind: postgres
  postgres:
    dsn: postgres://localhost/catalog
    table: records
    max_conn_lifetime: 5m
output:
  dir: public
  gcs_bucket: site-bucket
  gcs_prefix: preview
build:
  site_name: Reviews
  site_url: https://reviews.example/
  per_page: 24
  search_shard_size: 300
  xor_key: other-key
detector:
  timeout: 5s
  known_urls:
    - https://img.example/now_printing.jpg
notify:
  project_id: proj
  topic: builds
server:
  port: 9090
logging:
  development: false
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Kind != SourcePostgres || cfg.Source.Postgres.Table != "records" {
		t.Fatalf("expected postgres source overrides: %+v", cfg.Source)
	}
	if cfg.Source.Postgres.MaxConnLifetime != 5*time.Minute {
		t.Fatalf("expected 5m lifetime, got %v", cfg.Source.Postgres.MaxConnLifetime)
	}
	if cfg.Output.Dir != "public" || cfg.Output.GCSBucket != "site-bucket" || cfg.Output.GCSPrefix != "preview" {
		t.Fatalf("expected output overrides: %+v", cfg.Output)
	}
	if cfg.Build.PerPage != 24 || cfg.Build.SearchShardSize != 300 || cfg.Build.SiteName != "Reviews" {
		t.Fatalf("expected build overrides: %+v", cfg.Build)
	}
	if cfg.Detector.Timeout != 5*time.Second || len(cfg.Detector.KnownURLs) != 1 {
		t.Fatalf("expected detector overrides: %+v", cfg.Detector)
	}
	if !cfg.Notify.Enabled() {
		t.Fatalf("expected notify to be enabled")
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
	if cfg.Data.ShardSize != 100 {
		t.Fatalf("expected shard size 100, got %d", cfg.Data.ShardSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Data:     DataConfig{Dir: "data", ShardSize: 500},
		Source:   SourceConfig{Kind: SourceBundle},
		Output:   OutputConfig{Dir: "docs"},
		Build:    BuildConfig{PerPage: 60, SearchShardSize: 600, RelatedLimit: 12, XORKey: "k"},
		Detector: DetectorConfig{Timeout: time.Second, PrefixBytes: 8192},
		Server:   ServerConfig{Port: 8080},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name string
		cfg  func(c *Config)
		want string
	}{
		{name: "unknown source", cfg: func(c *Config) { c.Source.Kind = "s3" }, want: "source.kind"},
		{name: "postgres without dsn", cfg: func(c *Config) { c.Source.Kind = SourcePostgres }, want: "source.postgres.dsn"},
		{name: "missing data dir", cfg: func(c *Config) { c.Data.Dir = "" }, want: "data.dir"},
		{name: "missing output dir", cfg: func(c *Config) { c.Output.Dir = "" }, want: "output.dir"},
		{name: "invalid shard size", cfg: func(c *Config) { c.Data.ShardSize = 0 }, want: "data.shard_size"},
		{name: "invalid per page", cfg: func(c *Config) { c.Build.PerPage = 0 }, want: "build.per_page"},
		{name: "invalid search shard size", cfg: func(c *Config) { c.Build.SearchShardSize = -1 }, want: "build.search_shard_size"},
		{name: "invalid related limit", cfg: func(c *Config) { c.Build.RelatedLimit = 0 }, want: "build.related_limit"},
		{name: "empty xor key", cfg: func(c *Config) { c.Build.XORKey = "" }, want: "build.xor_key"},
		{name: "invalid timeout", cfg: func(c *Config) { c.Detector.Timeout = 0 }, want: "detector.timeout"},
		{name: "invalid prefix", cfg: func(c *Config) { c.Detector.PrefixBytes = 0 }, want: "detector.prefix_bytes"},
		{name: "negative rate", cfg: func(c *Config) { c.Detector.RatePerHost = -1 }, want: "detector.rate_per_host"},
		{name: "invalid port", cfg: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "half notify", cfg: func(c *Config) { c.Notify.Topic = "builds" }, want: "notify"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.cfg(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

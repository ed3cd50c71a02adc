// Package config handles loading and managing chainhealth configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for chainhealth.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Collectors CollectorsConfig `yaml:"collectors"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig controls the Postgres connection.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// ServerConfig controls the HTTP surface of chainhealthd.
type ServerConfig struct {
	Port   string `yaml:"port"`
	APIKey string `yaml:"api_key"` // empty disables API key auth
}

// ScoringConfig controls the recompute loop.
type ScoringConfig struct {
	DefinitionsPath string `yaml:"definitions"`
	WindowDays      int    `yaml:"window_days"`
	FallbackDays    int    `yaml:"fallback_days"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// CollectorsConfig controls the data-source polling loops.
type CollectorsConfig struct {
	MempoolBaseURL  string  `yaml:"mempool_base_url"`
	BitnodesBaseURL string  `yaml:"bitnodes_base_url"`
	BinanceBaseURL  string  `yaml:"binance_base_url"`
	RequestsPerSec  float64 `yaml:"requests_per_sec"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

// S3ArchiveConfig holds credentials and addressing for the S3 backend.
type S3ArchiveConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ArchiveConfig selects where raw collector payloads are archived.
// Backend is one of "none", "local", "s3", "gcs".
type ArchiveConfig struct {
	Backend   string          `yaml:"backend"`
	LocalPath string          `yaml:"local_path"`
	GCSBucket string          `yaml:"gcs_bucket"`
	S3        S3ArchiveConfig `yaml:"s3"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "postgres://localhost:5432/chainhealth?sslmode=disable",
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Scoring: ScoringConfig{
			DefinitionsPath: "definitions.yaml",
			WindowDays:      365,
			FallbackDays:    90,
			IntervalMinutes: 60,
		},
		Collectors: CollectorsConfig{
			MempoolBaseURL:  "https://mempool.space/api",
			BitnodesBaseURL: "https://bitnodes.io/api/v1",
			BinanceBaseURL:  "https://api.binance.com",
			RequestsPerSec:  2,
			TimeoutSeconds:  30,
		},
		Archive: ArchiveConfig{
			Backend:   "none",
			LocalPath: "/var/lib/chainhealth/raw",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a config file from the given path, applying defaults for any
// unset field. If the file does not exist, it returns the default config
// with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg.applyEnv(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg.applyEnv(), nil
}

// applyEnv lets deployment environment variables override file settings.
func (c *Config) applyEnv() *Config {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("CHAINHEALTH_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("CHAINHEALTH_DEFINITIONS"); v != "" {
		c.Scoring.DefinitionsPath = v
	}
	return c
}

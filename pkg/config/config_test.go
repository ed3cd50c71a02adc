package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scoring.WindowDays != 365 {
		t.Errorf("expected default window 365, got %d", cfg.Scoring.WindowDays)
	}
	if cfg.Scoring.FallbackDays != 90 {
		t.Errorf("expected default fallback 90, got %d", cfg.Scoring.FallbackDays)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Collectors.MempoolBaseURL == "" {
		t.Error("expected a default mempool base URL")
	}
	if cfg.Archive.Backend != "none" {
		t.Errorf("expected archive backend 'none', got %q", cfg.Archive.Backend)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "non-existent file returns defaults",
			yaml: "", // signal: don't create a file
			check: func(t *testing.T, cfg *Config) {
				if cfg.Scoring.WindowDays != 365 {
					t.Errorf("expected default window 365, got %d", cfg.Scoring.WindowDays)
				}
				if cfg.Database.URL == "" {
					t.Error("expected a default database URL")
				}
			},
		},
		{
			name: "valid YAML overrides defaults",
			yaml: `
database:
  url: "postgres://db.internal:5432/health"
scoring:
  window_days: 180
  fallback_days: 30
  interval_minutes: 15
archive:
  backend: s3
  s3:
    bucket: raw-payloads
    region: us-east-1
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Database.URL != "postgres://db.internal:5432/health" {
					t.Errorf("database url = %q", cfg.Database.URL)
				}
				if cfg.Scoring.WindowDays != 180 {
					t.Errorf("window_days = %d, want 180", cfg.Scoring.WindowDays)
				}
				if cfg.Scoring.FallbackDays != 30 {
					t.Errorf("fallback_days = %d, want 30", cfg.Scoring.FallbackDays)
				}
				// Unset fields keep defaults.
				if cfg.Server.Port != "8080" {
					t.Errorf("port = %q, want default 8080", cfg.Server.Port)
				}
				if cfg.Archive.Backend != "s3" || cfg.Archive.S3.Bucket != "raw-payloads" {
					t.Errorf("archive = %+v", cfg.Archive)
				}
			},
		},
		{
			name:    "malformed YAML returns error",
			yaml:    "database: [",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if tc.yaml == "" {
				path = filepath.Join(t.TempDir(), "does-not-exist.yaml")
			} else {
				if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
					t.Fatalf("writing config: %v", err)
				}
			}

			cfg, err := Load(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host:5432/envdb")
	t.Setenv("PORT", "9999")
	t.Setenv("CHAINHEALTH_API_KEY", "secret-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !strings.Contains(cfg.Database.URL, "env-host") {
		t.Errorf("database url = %q, want env override", cfg.Database.URL)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("port = %q, want 9999", cfg.Server.Port)
	}
	if cfg.Server.APIKey != "secret-key" {
		t.Errorf("api key = %q, want env override", cfg.Server.APIKey)
	}
}

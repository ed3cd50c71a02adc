// Package archive stores raw collector payloads as JSON blobs, keyed by
// collector and capture date. The archive is an audit trail: nothing in
// the scoring path reads it back, but backfills and formula debugging do.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainhealth/chainhealth/pkg/config"
)

// Archive abstracts blob storage for raw payloads. Keys look like
// "mempool/2025-06-15/pools.json".
type Archive interface {
	Put(ctx context.Context, key string, payload []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// New builds the archive backend selected in the config. Backend "none"
// returns nil; callers treat a nil archive as archiving disabled.
func New(ctx context.Context, cfg config.ArchiveConfig) (Archive, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocal(cfg.LocalPath), nil
	case "s3":
		return NewS3(ctx, cfg.S3)
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// Local implements Archive on the local filesystem. Useful for
// development and single-node deployments.
type Local struct {
	BaseDir string
}

// NewLocal creates a Local archive rooted at the given directory.
func NewLocal(baseDir string) *Local {
	return &Local{BaseDir: baseDir}
}

func (a *Local) path(key string) string {
	return filepath.Join(a.BaseDir, filepath.FromSlash(key))
}

// Put stores a payload, creating parent directories as needed.
func (a *Local) Put(ctx context.Context, key string, payload []byte) error {
	path := a.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, payload, 0o644)
}

// Get retrieves a payload.
func (a *Local) Get(ctx context.Context, key string) ([]byte, error) {
	return os.ReadFile(a.path(key))
}

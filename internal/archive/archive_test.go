package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chainhealth/chainhealth/pkg/config"
)

func TestLocalPutGet(t *testing.T) {
	dir := t.TempDir()
	a := NewLocal(dir)
	ctx := context.Background()

	data := []byte(`{"pools":[]}`)
	if err := a.Put(ctx, "mempool/2025-06-15/pools.json", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := a.Get(ctx, "mempool/2025-06-15/pools.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}

	// Verify file path layout
	expectedPath := filepath.Join(dir, "mempool", "2025-06-15", "pools.json")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("expected file at %s: %v", expectedPath, err)
	}
}

func TestLocalGetNotFound(t *testing.T) {
	a := NewLocal(t.TempDir())
	if _, err := a.Get(context.Background(), "mempool/2025-06-15/missing.json"); err == nil {
		t.Error("expected error for missing payload")
	}
}

func TestNewBackendSelection(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, config.ArchiveConfig{Backend: "none"})
	if err != nil || a != nil {
		t.Fatalf("backend none: archive=%v err=%v, want nil/nil", a, err)
	}

	a, err = New(ctx, config.ArchiveConfig{Backend: "local", LocalPath: t.TempDir()})
	if err != nil {
		t.Fatalf("backend local: %v", err)
	}
	if _, ok := a.(*Local); !ok {
		t.Fatalf("backend local: got %T", a)
	}

	if _, err := New(ctx, config.ArchiveConfig{Backend: "tape"}); err == nil {
		t.Fatal("unknown backend must error")
	}
}

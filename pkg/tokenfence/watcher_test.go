package tokenfence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// replaceConfig writes body outside the watched directory and renames it
// over path, so the watcher only ever observes complete files.
func replaceConfig(t *testing.T, path, body string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "next.yaml")
	if err := os.WriteFile(tmp, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Failed to replace config: %v", err)
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	replaceConfig(t, path, `
limiters:
  github:
    tokens_per_interval: 10
    interval: minute
`)

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() failed: %v", err)
	}
	registry, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := NewWatcher(path, registry, logger)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	reloads := make(chan error, 16)
	w.onReload = func(err error) { reloads <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	nextReload := func() error {
		t.Helper()
		select {
		case err := <-reloads:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for config reload")
			return nil
		}
	}

	replaceConfig(t, path, `
limiters:
  github:
    tokens_per_interval: 25
    interval: minute
`)
	if err := nextReload(); err != nil {
		t.Fatalf("reload unexpected error: %v", err)
	}
	l, ok := registry.Get("github")
	if !ok || l.Limit() != 25 {
		t.Fatalf("github after reload = %v (found %v), want limit 25", l, ok)
	}

	// An invalid file leaves the registry untouched.
	replaceConfig(t, path, `
limiters:
  github:
    tokens_per_interval: 0
    interval: minute
`)
	if err := nextReload(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("reload error = %v, want ErrInvalidConfig", err)
	}
	if l, _ := registry.Get("github"); l.Limit() != 25 {
		t.Errorf("github Limit() = %d, want 25 after invalid reload", l.Limit())
	}
}

func TestNewWatcher_NilRegistry(t *testing.T) {
	if _, err := NewWatcher("limits.yaml", nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewWatcher() error = %v, want ErrInvalidConfig", err)
	}
}

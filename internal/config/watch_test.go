package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_RequiresPath(t *testing.T) {
	if _, err := Watch(Options{}, nil); !errors.Is(err, ErrNoFile) {
		t.Errorf("Watch() error = %v, want ErrNoFile", err)
	}
}

func TestWatch_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "molsync.toml")
	if err := os.WriteFile(path, []byte("[sync]\noutboundDelay = \"400ms\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	failed := make(chan error, 4)
	w, err := Watch(Options{Path: path, Environ: []string{}},
		func(c *Config) { reloaded <- c },
		WithReloadDelay(20*time.Millisecond),
		WithErrorHandler(func(err error) { failed <- err }),
	)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	// Unrelated files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("[sync]\noutboundDelay = \"150ms\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Sync.OutboundDelay != 150*time.Millisecond {
			t.Errorf("OutboundDelay = %v, want 150ms", cfg.Sync.OutboundDelay)
		}
	case err := <-failed:
		t.Fatalf("reload failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the file changed")
	}

	// An invalid edit is reported and the watcher keeps running.
	if err := os.WriteFile(path, []byte("[sync]\noutboundDelay = \"-1s\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-failed:
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("reload error = %v, want ErrInvalid", err)
		}
	case <-reloaded:
		t.Fatal("invalid configuration was delivered")
	case <-time.After(5 * time.Second):
		t.Fatal("no error after an invalid edit")
	}
}

func TestWatch_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "molsync.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := Watch(Options{Path: path, Environ: []string{}}, nil)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// Package testutil provides shared test helpers for setting up collection
// directories and quiet loggers.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/cowbump/internal/storage"
)

// Logger returns a JSON logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestRoot creates a temporary collection directory holding the named
// files (relative, slash-separated) and returns it with a storage.FS.
func TestRoot(t *testing.T, files ...string) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		WriteFile(t, root, f)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// WriteFile creates name under root with placeholder content.
func WriteFile(t *testing.T, root, name string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

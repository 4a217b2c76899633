package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the collection directory
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute collection root.
func (f *FS) Root() string {
	return f.root
}

// safePath cleans an absolute path and rejects anything outside the root.
func (f *FS) safePath(p string) (string, error) {
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("storage: relative paths not allowed: %s", p)
	}
	cleaned := filepath.Clean(p)
	if !strings.HasPrefix(cleaned, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes collection root: %s", p)
	}
	return cleaned, nil
}

// List walks the root and returns every regular file it finds.
// filepath.WalkDir visits entries in lexical order, which keeps
// identifier assignment reproducible across runs.
func (f *FS) List() ([]string, error) {
	var out []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Move renames a file within the collection.
// It refuses to overwrite an existing destination.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.safePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(absNew); err == nil {
		return fmt.Errorf("storage: move: destination exists: %s: %w", absNew, fs.ErrExist)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}

// Remove deletes a file from the collection.
func (f *FS) Remove(p string) error {
	abs, err := f.safePath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: remove %s: %w", p, err)
	}
	return nil
}

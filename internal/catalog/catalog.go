// Package catalog binds a collection to its directory and snapshot files.
// It is the service layer shared by the CLI, watch mode and the MCP server.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/cowbump/internal/apperr"
	"github.com/starford/cowbump/internal/collection"
	"github.com/starford/cowbump/internal/index"
	"github.com/starford/cowbump/internal/storage"
)

// Options locates a catalog on disk.
type Options struct {
	Root       string
	DBPath     string
	BackupPath string
}

// Catalog owns a collection and the files it is persisted to.
// Like the collection, it is not safe for concurrent use.
type Catalog struct {
	store      storage.Provider
	c          *collection.Collection
	dbPath     string
	backupPath string
	logger     *slog.Logger
}

// Open loads the snapshot at opts.DBPath, or starts an empty collection
// when the file does not exist yet. It does not reconcile.
func Open(opts Options, logger *slog.Logger) (*Catalog, error) {
	store, err := storage.NewFS(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	dbPath, err := filepath.Abs(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: db path: %w", err)
	}
	backupPath, err := filepath.Abs(opts.BackupPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: backup path: %w", err)
	}

	c, err := collection.Load(dbPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("catalog: no snapshot, starting empty", slog.String("path", dbPath))
		c = collection.New()
	case err != nil:
		return nil, fmt.Errorf("catalog: %w", err)
	default:
		logger.Info("catalog: loaded",
			slog.String("path", dbPath),
			slog.Int("entries", c.Entries().Len()),
			slog.Int("tags", c.Tags().Len()),
			slog.Int("sequences", c.Sequences().Len()))
	}

	return &Catalog{
		store:      store,
		c:          c,
		dbPath:     dbPath,
		backupPath: backupPath,
		logger:     logger,
	}, nil
}

// Collection returns the live collection.
func (k *Catalog) Collection() *collection.Collection { return k.c }

// Root returns the absolute collection directory.
func (k *Catalog) Root() string { return k.store.Root() }

// Reconcile rescans the directory tree. The snapshot files are never
// tracked as entries.
func (k *Catalog) Reconcile() (collection.Report, error) {
	rep, err := k.c.Reconcile(k.store, k.logger, filepath.Base(k.dbPath), filepath.Base(k.backupPath))
	if err != nil {
		return rep, fmt.Errorf("catalog: %w", err)
	}
	return rep, nil
}

// Save writes the primary snapshot.
func (k *Catalog) Save() error {
	if err := k.c.Save(k.dbPath); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	k.logger.Debug("catalog: saved", slog.String("path", k.dbPath))
	return nil
}

// Backup writes the backup snapshot.
func (k *Catalog) Backup() error {
	if err := k.c.SaveBackup(k.backupPath); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	k.logger.Info("catalog: backup written", slog.String("path", k.backupPath))
	return nil
}

// RestoreBackup replaces the live collection with the backup snapshot.
// The primary file is left alone until the next Save.
func (k *Catalog) RestoreBackup() error {
	c, err := collection.Load(k.backupPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("catalog: restore %s: %w", k.backupPath, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("catalog: restore: %w", err)
	}
	k.c = c
	k.logger.Info("catalog: restored backup", slog.String("path", k.backupPath))
	return nil
}

// Export mirrors the collection into an SQLite database.
func (k *Catalog) Export(exp index.Exporter) (index.Stats, error) {
	st, err := exp.Export(k.c)
	if err != nil {
		return st, fmt.Errorf("catalog: %w", err)
	}
	k.logger.Info("catalog: exported",
		slog.Int("entries", st.Entries),
		slog.Int("tags", st.Tags),
		slog.Int("sequences", st.Sequences))
	return st, nil
}

// Ignore reports whether filesystem activity on path is the catalog's own
// writing and must not schedule a rescan.
func (k *Catalog) Ignore(path string) bool {
	name := filepath.Base(path)
	return name == filepath.Base(k.dbPath) ||
		name == filepath.Base(k.backupPath) ||
		storage.IsTemp(name)
}

// EntryID resolves a path, absolute or relative to the root, to its entry.
func (k *Catalog) EntryID(path string) (collection.Uid, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(k.store.Root(), path)
	}
	id, ok := k.c.EntryByPath(filepath.Clean(abs))
	if !ok {
		return 0, fmt.Errorf("catalog: entry %s: %w", path, apperr.ErrNotFound)
	}
	return id, nil
}

// Rel returns path relative to the root, or path itself when it lies outside.
func (k *Catalog) Rel(path string) string {
	rel, err := filepath.Rel(k.store.Root(), path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Move renames an entry's file within its directory.
func (k *Catalog) Move(path, newName string) error {
	id, err := k.EntryID(path)
	if err != nil {
		return err
	}
	if err := k.c.Rename(id, newName, k.store); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

// Remove deletes the files behind paths and forgets their entries.
func (k *Catalog) Remove(paths ...string) error {
	ids := make([]collection.Uid, 0, len(paths))
	var errs []error
	for _, p := range paths {
		id, err := k.EntryID(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	if err := k.c.DeleteEntries(k.store, ids...); err != nil {
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}
	return errors.Join(errs...)
}

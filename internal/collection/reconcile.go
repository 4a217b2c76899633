package collection

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/starford/cowbump/internal/storage"
)

// Report lists what a reconciliation pass changed.
type Report struct {
	Added   []Uid
	Removed []Uid
}

// Changed reports whether the pass touched the collection.
func (r Report) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Reconcile brings the entry store in line with the files src lists:
//   - files without an entry get a fresh identifier
//   - entries whose file was not listed are removed
//
// Files whose base name is in exclude, and atomic-write scratch files, are
// never tracked. A listing error aborts before anything is removed.
// Removal is not confirmed; take a backup first if recovery matters.
func (c *Collection) Reconcile(src storage.Lister, logger *slog.Logger, exclude ...string) (Report, error) {
	paths, err := src.List()
	if err != nil {
		return Report{}, fmt.Errorf("collection: reconcile: %w", err)
	}

	var rep Report
	touched := make(map[Uid]struct{}, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		if slices.Contains(exclude, name) || storage.IsTemp(name) {
			continue
		}
		if id, ok := c.byPath[p]; ok {
			touched[id] = struct{}{}
			continue
		}
		id := c.insertEntry(p)
		touched[id] = struct{}{}
		rep.Added = append(rep.Added, id)
		logger.Info("reconcile: added", slog.String("path", p), slog.Uint64("id", uint64(id)))
	}

	for _, id := range c.entries.IDs() {
		if _, ok := touched[id]; ok {
			continue
		}
		en, _ := c.removeEntry(id)
		rep.Removed = append(rep.Removed, id)
		logger.Info("reconcile: removed", slog.String("path", en.Path), slog.Uint64("id", uint64(id)))
	}

	return rep, nil
}

package collection

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/starford/cowbump/internal/apperr"
	"github.com/starford/cowbump/internal/storage"
)

// Entry returns the entry stored under id.
func (c *Collection) Entry(id Uid) (*Entry, bool) {
	return c.entries.Get(id)
}

// EntryByPath returns the identifier of the entry tracking path.
func (c *Collection) EntryByPath(path string) (Uid, bool) {
	id, ok := c.byPath[path]
	return id, ok
}

func (c *Collection) insertEntry(path string) Uid {
	id := c.NewUID()
	c.entries.insert(id, &Entry{Path: path})
	c.byPath[path] = id
	return id
}

func (c *Collection) removeEntry(id Uid) (*Entry, bool) {
	en, ok := c.entries.remove(id)
	if !ok {
		return nil, false
	}
	if c.byPath[en.Path] == id {
		delete(c.byPath, en.Path)
	}
	return en, true
}

// Rename renames the file behind entry id to newName within its directory.
// The stored path is updated only after the file was moved on disk.
func (c *Collection) Rename(id Uid, newName string, mover storage.Mover) error {
	en, ok := c.entries.Get(id)
	if !ok {
		return fmt.Errorf("collection: rename %d: %w", id, apperr.ErrNotFound)
	}
	if newName == "" || newName == "." || newName == ".." || strings.ContainsRune(newName, filepath.Separator) || strings.ContainsRune(newName, '/') {
		return fmt.Errorf("collection: rename %d: bad file name %q: %w", id, newName, apperr.ErrInvalid)
	}
	newPath := filepath.Join(filepath.Dir(en.Path), newName)
	if newPath == en.Path {
		return nil
	}
	if other, taken := c.byPath[newPath]; taken {
		return fmt.Errorf("collection: rename %d: %s is tracked by entry %d: %w", id, newPath, other, apperr.ErrAlreadyExists)
	}
	if err := mover.Move(en.Path, newPath); err != nil {
		return fmt.Errorf("collection: rename %d: %w", id, err)
	}
	delete(c.byPath, en.Path)
	en.Path = newPath
	c.byPath[newPath] = id
	return nil
}

// DeleteEntries deletes the files behind ids and then forgets the entries.
// An entry whose file is already gone is forgotten as well; any other
// removal failure keeps the entry and is reported in the joined error.
func (c *Collection) DeleteEntries(remover storage.Remover, ids ...Uid) error {
	var errs []error
	for _, id := range ids {
		en, ok := c.entries.Get(id)
		if !ok {
			errs = append(errs, fmt.Errorf("collection: delete %d: %w", id, apperr.ErrNotFound))
			continue
		}
		if err := remover.Remove(en.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("collection: delete %d: %w", id, err))
			continue
		}
		c.removeEntry(id)
	}
	return errors.Join(errs...)
}

// ForgetEntry drops entry id from the collection without touching the disk.
func (c *Collection) ForgetEntry(id Uid) bool {
	_, ok := c.removeEntry(id)
	return ok
}

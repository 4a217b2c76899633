// Package storage defines the collection file-system abstraction.
package storage

// Lister enumerates the files of a collection root.
type Lister interface {
	// List returns the absolute path of every regular file under the root,
	// in lexical order within each directory.
	List() ([]string, error)
}

// Mover renames files on disk.
type Mover interface {
	// Move renames oldPath to newPath (both absolute).
	Move(oldPath, newPath string) error
}

// Remover deletes files on disk.
type Remover interface {
	// Remove deletes the file at path (absolute).
	Remove(path string) error
}

// Provider is the full set of file operations the collection needs.
type Provider interface {
	Lister
	Mover
	Remover
	// Root returns the absolute collection root.
	Root() string
}

package index

import "github.com/starford/cowbump/internal/collection"

// Exporter is the subset of the SQLite mirror the catalog depends on.
type Exporter interface {
	Export(c *collection.Collection) (Stats, error)
	Close() error
}

// Querier reads back an exported snapshot.
type Querier interface {
	Stats() (Stats, error)
	PathsWithTag(name string) ([]string, error)
	TagUsage() ([]TagCount, error)
	Search(query string, limit int) ([]SearchResult, error)
	SnapshotChecksum() (string, error)
}

var (
	_ Exporter = (*DB)(nil)
	_ Querier  = (*DB)(nil)
)

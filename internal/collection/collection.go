// Package collection is the embedded database behind cowbump: durable
// identifiers for files and tags, reconciliation against a directory tree,
// the tag implication graph, ordered sequences, and snapshot persistence.
//
// A Collection has a single owner. Nothing in this package locks or spawns
// goroutines; callers must not read while another call mutates.
package collection

// Uid identifies an entry, tag, or sequence. Values are unique for the
// lifetime of a snapshot and are never reused after deletion.
type Uid uint64

// Entry is a tracked file plus the tags attached to it.
type Entry struct {
	// Path is absolute and unique among entries.
	Path string
	// Tags keeps insertion order.
	Tags []Uid
}

// HasTag reports whether the entry carries tag directly.
func (e *Entry) HasTag(tag Uid) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Tag is a named label. Names[0] is the canonical display name and the
// rest are aliases. Names is never empty.
type Tag struct {
	Names   []string
	Implies map[Uid]struct{}
}

// Name returns the canonical display name.
func (t *Tag) Name() string {
	return t.Names[0]
}

// Sequence is a named, ordered grouping of entries. Entries may repeat and
// may refer to entries that no longer exist.
type Sequence struct {
	Name    string
	Entries []Uid
}

// Collection is the full persisted snapshot.
type Collection struct {
	entries    Store[Entry]
	tags       Store[Tag]
	sequences  Store[Sequence]
	uidCounter Uid

	// Derived indexes, rebuilt on load.
	byPath      map[string]Uid
	seqsByEntry map[Uid]map[Uid]struct{}
}

// New returns an empty collection.
func New() *Collection {
	return &Collection{
		entries:     newStore[Entry](),
		tags:        newStore[Tag](),
		sequences:   newStore[Sequence](),
		byPath:      make(map[string]Uid),
		seqsByEntry: make(map[Uid]map[Uid]struct{}),
	}
}

// NewUID returns the current counter value and advances it.
func (c *Collection) NewUID() Uid {
	id := c.uidCounter
	c.uidCounter++
	return id
}

// UIDCounter returns the next identifier NewUID will issue.
func (c *Collection) UIDCounter() Uid {
	return c.uidCounter
}

func (c *Collection) Entries() Store[Entry]      { return c.entries }
func (c *Collection) Tags() Store[Tag]           { return c.tags }
func (c *Collection) Sequences() Store[Sequence] { return c.sequences }

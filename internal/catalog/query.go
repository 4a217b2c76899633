package catalog

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/cowbump/internal/apperr"
	"github.com/starford/cowbump/internal/collection"
	"github.com/starford/cowbump/internal/filter"
)

// QueryResult is the outcome of a filter query.
type QueryResult struct {
	// Query is the parsed query rendered back with canonical tag names.
	Query   string   `json:"query"`
	Paths   []string `json:"paths"`
	Unknown []string `json:"unknown,omitempty"`
}

// EntryInfo describes one entry by name.
type EntryInfo struct {
	Path      string   `json:"path"`
	Tags      []string `json:"tags"`
	Sequences []string `json:"sequences"`
}

// TagInfo describes one tag.
type TagInfo struct {
	ID      collection.Uid `json:"id"`
	Names   []string       `json:"names"`
	Implies []string       `json:"implies,omitempty"`
	Entries int            `json:"entries"`
}

// SequenceInfo describes one sequence with its live members.
type SequenceInfo struct {
	ID    collection.Uid `json:"id"`
	Name  string         `json:"name"`
	Paths []string       `json:"paths"`
}

// Query parses text and returns matching entry paths relative to the root,
// in store order. Unknown tag names are reported, not fatal.
func (k *Catalog) Query(text string, expand bool) (QueryResult, error) {
	spec, unknown, err := filter.Parse(text, k.c)
	if err != nil {
		return QueryResult{}, fmt.Errorf("catalog: query: %w", err)
	}
	// An empty spec matches everything, so there is nothing to expand.
	spec.ExpandImplications = expand && !spec.IsEmpty()

	res := QueryResult{Query: filter.Format(&spec, k.c), Paths: []string{}, Unknown: unknown}
	for id := range filter.Run(k.c, &spec) {
		en, _ := k.c.Entry(id)
		res.Paths = append(res.Paths, k.Rel(en.Path))
	}
	return res, nil
}

// Describe returns an entry's tags and the sequences it belongs to.
func (k *Catalog) Describe(path string) (EntryInfo, error) {
	id, err := k.EntryID(path)
	if err != nil {
		return EntryInfo{}, err
	}
	en, _ := k.c.Entry(id)
	info := EntryInfo{Path: k.Rel(en.Path), Tags: []string{}, Sequences: []string{}}
	for _, t := range en.Tags {
		info.Tags = append(info.Tags, k.c.TagName(t))
	}
	for _, s := range k.c.FindSequencesContaining(id) {
		seq, _ := k.c.Sequence(s)
		info.Sequences = append(info.Sequences, seq.Name)
	}
	return info, nil
}

// Tags lists every tag with its direct usage count, in id order.
func (k *Catalog) Tags() []TagInfo {
	usage := make(map[collection.Uid]int)
	for _, en := range k.c.Entries().All() {
		for _, t := range en.Tags {
			usage[t]++
		}
	}
	out := make([]TagInfo, 0, k.c.Tags().Len())
	for id, t := range k.c.Tags().All() {
		info := TagInfo{ID: id, Names: slices.Clone(t.Names), Entries: usage[id]}
		for _, imp := range k.c.Implied(id) {
			info.Implies = append(info.Implies, k.c.TagName(imp))
		}
		out = append(out, info)
	}
	return out
}

// Sequences lists every sequence with its live members, in id order.
func (k *Catalog) Sequences() []SequenceInfo {
	out := make([]SequenceInfo, 0, k.c.Sequences().Len())
	for id, s := range k.c.Sequences().All() {
		info := SequenceInfo{ID: id, Name: s.Name, Paths: []string{}}
		live, _ := k.c.SequenceEntries(id)
		for _, e := range live {
			en, _ := k.c.Entry(e)
			info.Paths = append(info.Paths, k.Rel(en.Path))
		}
		out = append(out, info)
	}
	return out
}

// ResolveTags maps names to tag ids. With create set, names that match no
// tag become new tags; otherwise they fail with ErrNotFound.
func (k *Catalog) ResolveTags(names []string, create bool) ([]collection.Uid, error) {
	ids := make([]collection.Uid, 0, len(names))
	for _, n := range names {
		if id, ok := k.c.ResolveAlias(n); ok {
			ids = append(ids, id)
			continue
		}
		if !create {
			return nil, fmt.Errorf("catalog: tag %q: %w", n, apperr.ErrNotFound)
		}
		id, err := k.c.AddTag([]string{n})
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		k.logger.Info("catalog: tag created", slog.String("name", n))
		ids = append(ids, id)
	}
	return ids, nil
}

// TagEntry attaches the named tags to the entry at path.
func (k *Catalog) TagEntry(path string, names []string, create bool) error {
	id, err := k.EntryID(path)
	if err != nil {
		return err
	}
	tags, err := k.ResolveTags(names, create)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if _, err := k.c.AttachTag(id, t); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}

// UntagEntry detaches the named tags from the entry at path.
func (k *Catalog) UntagEntry(path string, names []string) error {
	id, err := k.EntryID(path)
	if err != nil {
		return err
	}
	tags, err := k.ResolveTags(names, false)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if err := k.c.DetachTag(id, t); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}

// SequenceByName returns the lowest-id sequence called name.
func (k *Catalog) SequenceByName(name string) (collection.Uid, error) {
	for id, s := range k.c.Sequences().All() {
		if s.Name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("catalog: sequence %q: %w", name, apperr.ErrNotFound)
}

func (k *Catalog) entryIDs(paths []string) ([]collection.Uid, error) {
	ids := make([]collection.Uid, 0, len(paths))
	for _, p := range paths {
		id, err := k.EntryID(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AppendToSequence appends the entries at paths to the named sequence.
func (k *Catalog) AppendToSequence(name string, paths ...string) error {
	seq, err := k.SequenceByName(name)
	if err != nil {
		return err
	}
	ids, err := k.entryIDs(paths)
	if err != nil {
		return err
	}
	if err := k.c.AppendEntries(seq, ids...); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

// RemoveFromSequence drops every occurrence of the entries at paths from
// the named sequence.
func (k *Catalog) RemoveFromSequence(name string, paths ...string) error {
	seq, err := k.SequenceByName(name)
	if err != nil {
		return err
	}
	ids, err := k.entryIDs(paths)
	if err != nil {
		return err
	}
	if err := k.c.RemoveFromSequence(seq, ids...); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

// RenameSequence renames the sequence called name.
func (k *Catalog) RenameSequence(name, newName string) error {
	seq, err := k.SequenceByName(name)
	if err != nil {
		return err
	}
	if _, err := k.SequenceByName(newName); err == nil {
		return fmt.Errorf("catalog: sequence %q: %w", newName, apperr.ErrAlreadyExists)
	}
	if err := k.c.RenameSequence(seq, newName); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

// DeleteSequence deletes the sequence called name. Its entries stay.
func (k *Catalog) DeleteSequence(name string) error {
	seq, err := k.SequenceByName(name)
	if err != nil {
		return err
	}
	if err := k.c.DeleteSequence(seq); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

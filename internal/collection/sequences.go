package collection

import (
	"fmt"
	"slices"

	"github.com/starford/cowbump/internal/apperr"
)

// Sequence returns the sequence stored under id.
func (c *Collection) Sequence(id Uid) (*Sequence, bool) {
	return c.sequences.Get(id)
}

// AddSequence creates an empty sequence.
func (c *Collection) AddSequence(name string) Uid {
	id := c.NewUID()
	c.sequences.insert(id, &Sequence{Name: name})
	return id
}

// AppendEntries appends ids to the sequence. Duplicates are kept.
func (c *Collection) AppendEntries(seq Uid, ids ...Uid) error {
	s, ok := c.sequences.Get(seq)
	if !ok {
		return fmt.Errorf("collection: append to sequence %d: %w", seq, apperr.ErrNotFound)
	}
	s.Entries = append(s.Entries, ids...)
	for _, id := range ids {
		c.indexSequenceEntry(seq, id)
	}
	return nil
}

// RemoveFromSequence removes every occurrence of ids from the sequence.
func (c *Collection) RemoveFromSequence(seq Uid, ids ...Uid) error {
	s, ok := c.sequences.Get(seq)
	if !ok {
		return fmt.Errorf("collection: remove from sequence %d: %w", seq, apperr.ErrNotFound)
	}
	s.Entries = slices.DeleteFunc(s.Entries, func(e Uid) bool { return slices.Contains(ids, e) })
	for _, id := range ids {
		c.unindexSequenceEntry(seq, id)
	}
	return nil
}

// RenameSequence changes the display name of seq.
func (c *Collection) RenameSequence(seq Uid, name string) error {
	s, ok := c.sequences.Get(seq)
	if !ok {
		return fmt.Errorf("collection: rename sequence %d: %w", seq, apperr.ErrNotFound)
	}
	s.Name = name
	return nil
}

// DeleteSequence removes seq. Its entries are untouched.
func (c *Collection) DeleteSequence(seq Uid) error {
	s, ok := c.sequences.remove(seq)
	if !ok {
		return fmt.Errorf("collection: delete sequence %d: %w", seq, apperr.ErrNotFound)
	}
	for _, id := range s.Entries {
		c.unindexSequenceEntry(seq, id)
	}
	return nil
}

// SequenceEntries returns the entries of seq that still exist, in order.
func (c *Collection) SequenceEntries(seq Uid) ([]Uid, error) {
	s, ok := c.sequences.Get(seq)
	if !ok {
		return nil, fmt.Errorf("collection: sequence %d: %w", seq, apperr.ErrNotFound)
	}
	out := make([]Uid, 0, len(s.Entries))
	for _, id := range s.Entries {
		if c.entries.Has(id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// FindSequencesContaining returns every sequence holding at least one of
// ids, sorted by identifier.
func (c *Collection) FindSequencesContaining(ids ...Uid) []Uid {
	found := make(map[Uid]struct{})
	for _, id := range ids {
		for seq := range c.seqsByEntry[id] {
			found[seq] = struct{}{}
		}
	}
	out := make([]Uid, 0, len(found))
	for seq := range found {
		out = append(out, seq)
	}
	slices.Sort(out)
	return out
}

func (c *Collection) indexSequenceEntry(seq, entry Uid) {
	set, ok := c.seqsByEntry[entry]
	if !ok {
		set = make(map[Uid]struct{})
		c.seqsByEntry[entry] = set
	}
	set[seq] = struct{}{}
}

func (c *Collection) unindexSequenceEntry(seq, entry Uid) {
	set, ok := c.seqsByEntry[entry]
	if !ok {
		return
	}
	delete(set, seq)
	if len(set) == 0 {
		delete(c.seqsByEntry, entry)
	}
}

package collection

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/starford/cowbump/internal/apperr"
)

// UnknownTagName is displayed for tag references that no longer resolve.
const UnknownTagName = "<unknown tag>"

// Tag names must survive a round trip through query text: no whitespace,
// and none of the prefixes the query language reserves.
var reservedTagPrefixes = []string{"!", ":", "fn:"}

func checkTagName(name string) error {
	if name == "" {
		return fmt.Errorf("blank name: %w", apperr.ErrInvalid)
	}
	if strings.ContainsFunc(name, unicode.IsSpace) {
		return fmt.Errorf("name %q contains whitespace: %w", name, apperr.ErrInvalid)
	}
	for _, prefix := range reservedTagPrefixes {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("name %q starts with reserved %q: %w", name, prefix, apperr.ErrInvalid)
		}
	}
	return nil
}

// Tag returns the tag stored under id.
func (c *Collection) Tag(id Uid) (*Tag, bool) {
	return c.tags.Get(id)
}

// TagName returns the canonical name of id, or UnknownTagName.
func (c *Collection) TagName(id Uid) string {
	if t, ok := c.tags.Get(id); ok {
		return t.Name()
	}
	return UnknownTagName
}

// AddTag stores a new tag. names must be non-empty and free of blank
// strings; every implied tag must exist.
func (c *Collection) AddTag(names []string, implies ...Uid) (Uid, error) {
	if len(names) == 0 {
		return 0, fmt.Errorf("collection: add tag: no names: %w", apperr.ErrInvalid)
	}
	for _, n := range names {
		if err := checkTagName(n); err != nil {
			return 0, fmt.Errorf("collection: add tag: %w", err)
		}
	}
	set := make(map[Uid]struct{}, len(implies))
	for _, imp := range implies {
		if !c.tags.Has(imp) {
			return 0, fmt.Errorf("collection: add tag: implied tag %d: %w", imp, apperr.ErrNotFound)
		}
		set[imp] = struct{}{}
	}
	id := c.NewUID()
	c.tags.insert(id, &Tag{Names: slices.Clone(names), Implies: set})
	return id, nil
}

// ResolveAlias returns the lowest-id tag carrying word as one of its names.
func (c *Collection) ResolveAlias(word string) (Uid, bool) {
	for id, t := range c.tags.All() {
		if slices.Contains(t.Names, word) {
			return id, true
		}
	}
	return 0, false
}

// DeleteTags removes the given tags and strips them from every entry.
// Implication edges held by other tags are left alone; readers skip them
// and Decode drops them.
func (c *Collection) DeleteTags(ids ...Uid) {
	doomed := make(map[Uid]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := c.tags.remove(id); ok {
			doomed[id] = struct{}{}
		}
	}
	if len(doomed) == 0 {
		return
	}
	for _, en := range c.entries.All() {
		en.Tags = slices.DeleteFunc(en.Tags, func(t Uid) bool {
			_, gone := doomed[t]
			return gone
		})
	}
}

// AddAlias appends name to the tag's names. Existing names are ignored.
func (c *Collection) AddAlias(id Uid, name string) error {
	t, ok := c.tags.Get(id)
	if !ok {
		return fmt.Errorf("collection: add alias: tag %d: %w", id, apperr.ErrNotFound)
	}
	if err := checkTagName(name); err != nil {
		return fmt.Errorf("collection: add alias: %w", err)
	}
	if !slices.Contains(t.Names, name) {
		t.Names = append(t.Names, name)
	}
	return nil
}

// RemoveAlias drops name from the tag. The last remaining name cannot be
// removed.
func (c *Collection) RemoveAlias(id Uid, name string) error {
	t, ok := c.tags.Get(id)
	if !ok {
		return fmt.Errorf("collection: remove alias: tag %d: %w", id, apperr.ErrNotFound)
	}
	i := slices.Index(t.Names, name)
	if i < 0 {
		return fmt.Errorf("collection: remove alias: %q on tag %d: %w", name, id, apperr.ErrNotFound)
	}
	if len(t.Names) == 1 {
		return fmt.Errorf("collection: remove alias: %q is the only name of tag %d: %w", name, id, apperr.ErrInvalid)
	}
	t.Names = slices.Delete(t.Names, i, i+1)
	return nil
}

// AddImplication records that tag id implies tag implied.
func (c *Collection) AddImplication(id, implied Uid) error {
	t, ok := c.tags.Get(id)
	if !ok {
		return fmt.Errorf("collection: imply: tag %d: %w", id, apperr.ErrNotFound)
	}
	if !c.tags.Has(implied) {
		return fmt.Errorf("collection: imply: tag %d: %w", implied, apperr.ErrNotFound)
	}
	if id == implied {
		return fmt.Errorf("collection: imply: tag %d cannot imply itself: %w", id, apperr.ErrInvalid)
	}
	t.Implies[implied] = struct{}{}
	return nil
}

// RemoveImplication deletes the edge id → implied if present.
func (c *Collection) RemoveImplication(id, implied Uid) error {
	t, ok := c.tags.Get(id)
	if !ok {
		return fmt.Errorf("collection: unimply: tag %d: %w", id, apperr.ErrNotFound)
	}
	delete(t.Implies, implied)
	return nil
}

// Implied returns the live tags id implies, sorted.
func (c *Collection) Implied(id Uid) []Uid {
	t, ok := c.tags.Get(id)
	if !ok {
		return nil
	}
	var out []Uid
	for imp := range t.Implies {
		if c.tags.Has(imp) {
			out = append(out, imp)
		}
	}
	slices.Sort(out)
	return out
}

// ImpliedClosure returns the seeds plus every tag reachable from them over
// live implication edges. Cycles are allowed in the graph.
func (c *Collection) ImpliedClosure(seeds ...Uid) map[Uid]struct{} {
	visited := make(map[Uid]struct{}, len(seeds))
	stack := slices.Clone(seeds)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		if t, ok := c.tags.Get(id); ok {
			for imp := range t.Implies {
				if _, seen := visited[imp]; !seen && c.tags.Has(imp) {
					stack = append(stack, imp)
				}
			}
		}
	}
	return visited
}

// AttachTag adds tag to the entry. It reports whether the entry already
// had the tag.
func (c *Collection) AttachTag(entry, tag Uid) (bool, error) {
	en, ok := c.entries.Get(entry)
	if !ok {
		return false, fmt.Errorf("collection: attach: entry %d: %w", entry, apperr.ErrNotFound)
	}
	if !c.tags.Has(tag) {
		return false, fmt.Errorf("collection: attach: tag %d: %w", tag, apperr.ErrNotFound)
	}
	if en.HasTag(tag) {
		return true, nil
	}
	en.Tags = append(en.Tags, tag)
	return false, nil
}

// AttachTagMulti adds tag to each entry, ignoring ones that already have it.
func (c *Collection) AttachTagMulti(entries []Uid, tag Uid) error {
	var errs []error
	for _, id := range entries {
		if _, err := c.AttachTag(id, tag); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DetachTag removes tag from the entry.
func (c *Collection) DetachTag(entry, tag Uid) error {
	en, ok := c.entries.Get(entry)
	if !ok {
		return fmt.Errorf("collection: detach: entry %d: %w", entry, apperr.ErrNotFound)
	}
	en.Tags = slices.DeleteFunc(en.Tags, func(t Uid) bool { return t == tag })
	return nil
}

// CommonTags returns the tags every listed entry carries, in the order
// they appear on the first entry. Missing entries are skipped.
func (c *Collection) CommonTags(entries []Uid) []Uid {
	var (
		out   []Uid
		first = true
	)
	for _, id := range entries {
		en, ok := c.entries.Get(id)
		if !ok {
			continue
		}
		if first {
			out = slices.Clone(en.Tags)
			first = false
			continue
		}
		out = slices.DeleteFunc(out, func(t Uid) bool { return !en.HasTag(t) })
	}
	return out
}

// sortedImplies returns the implication set of t in ascending order.
func sortedImplies(t *Tag) []Uid {
	return slices.Sorted(maps.Keys(t.Implies))
}

// pruneImplications drops edges to tags that no longer exist and returns
// how many were dropped.
func (c *Collection) pruneImplications() int {
	n := 0
	for _, t := range c.tags.All() {
		for imp := range t.Implies {
			if !c.tags.Has(imp) {
				delete(t.Implies, imp)
				n++
			}
		}
	}
	return n
}

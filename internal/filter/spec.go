// Package filter implements the entry query language: a conjunctive
// predicate over filename, required tags, excluded tags, and the no-tag flag.
package filter

import (
	"iter"
	"path/filepath"
	"strings"

	"github.com/starford/cowbump/internal/collection"
)

// Spec selects entries. All conditions must hold.
type Spec struct {
	// FilenameSubstring is matched case-insensitively against the base
	// name. Empty matches everything.
	FilenameSubstring string
	HasTags           map[collection.Uid]struct{}
	DoesntHaveTags    map[collection.Uid]struct{}
	// DoesntHaveAnyTags requires an empty tag list.
	DoesntHaveAnyTags bool
	// ExpandImplications makes an entry carry every tag its tags imply,
	// transitively.
	ExpandImplications bool
}

// IsEmpty reports whether the spec matches every entry.
func (s *Spec) IsEmpty() bool {
	return s.FilenameSubstring == "" && len(s.HasTags) == 0 && len(s.DoesntHaveTags) == 0 && !s.DoesntHaveAnyTags
}

// Matches evaluates spec against en using the entry's direct tags.
func Matches(en *collection.Entry, spec *Spec) bool {
	return match(en, spec, en.HasTag)
}

func match(en *collection.Entry, spec *Spec, has func(collection.Uid) bool) bool {
	if spec.FilenameSubstring != "" {
		name := strings.ToLower(filepath.Base(en.Path))
		if !strings.Contains(name, strings.ToLower(spec.FilenameSubstring)) {
			return false
		}
	}
	for t := range spec.HasTags {
		if !has(t) {
			return false
		}
	}
	for t := range spec.DoesntHaveTags {
		if has(t) {
			return false
		}
	}
	if spec.DoesntHaveAnyTags && len(en.Tags) != 0 {
		return false
	}
	return true
}

// Run yields the identifiers of matching entries in store order. The set
// of candidate identifiers is fixed when Run is called; ranging over the
// result again re-evaluates the predicate against them.
func Run(c *collection.Collection, spec *Spec) iter.Seq[collection.Uid] {
	ids := c.Entries().IDs()
	return func(yield func(collection.Uid) bool) {
		for _, id := range ids {
			en, ok := c.Entry(id)
			if !ok {
				continue
			}
			has := en.HasTag
			if spec.ExpandImplications && len(en.Tags) > 0 {
				closure := c.ImpliedClosure(en.Tags...)
				has = func(t collection.Uid) bool {
					_, ok := closure[t]
					return ok
				}
			}
			if match(en, spec, has) && !yield(id) {
				return
			}
		}
	}
}

// Count returns the number of entries matching spec.
func Count(c *collection.Collection, spec *Spec) int {
	n := 0
	for range Run(c, spec) {
		n++
	}
	return n
}

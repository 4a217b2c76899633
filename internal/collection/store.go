package collection

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Store maps identifiers to values and iterates them in ascending
// identifier order. Identifiers are allocated monotonically, so insertion
// order and identifier order coincide as long as every insert uses a fresh
// id; Decode enforces the same ordering for persisted stores.
type Store[T any] struct {
	m *orderedmap.OrderedMap[Uid, *T]
}

func newStore[T any]() Store[T] {
	return Store[T]{m: orderedmap.New[Uid, *T]()}
}

// Get returns the value stored under id.
// The returned pointer must not be used to change fields that the
// collection indexes (Entry.Path); use the collection methods instead.
func (s Store[T]) Get(id Uid) (*T, bool) {
	return s.m.Get(id)
}

// Has reports whether id is present.
func (s Store[T]) Has(id Uid) bool {
	_, ok := s.m.Get(id)
	return ok
}

// Len returns the number of stored values.
func (s Store[T]) Len() int {
	return s.m.Len()
}

// All yields every (id, value) pair in ascending id order.
func (s Store[T]) All() iter.Seq2[Uid, *T] {
	return func(yield func(Uid, *T) bool) {
		for p := s.m.Oldest(); p != nil; {
			next := p.Next()
			if !yield(p.Key, p.Value) {
				return
			}
			p = next
		}
	}
}

// IDs returns a copy of the identifiers in iteration order.
func (s Store[T]) IDs() []Uid {
	out := make([]Uid, 0, s.m.Len())
	for p := s.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

func (s Store[T]) insert(id Uid, v *T) {
	s.m.Set(id, v)
}

func (s Store[T]) remove(id Uid) (*T, bool) {
	return s.m.Delete(id)
}

package densehash

import "github.com/abhivetukuri/Unordered-Dense-Map/internal/entrystore"

// iterator.go implements the single-threaded table's dense iterator (§4.6,
// §6.2 begin()/end()). Iteration walks the entry store by ascending index —
// the design's "flagship property" per §2 — and is O(n) with sequential
// memory access. Mutating the table while an Iterator is alive invalidates
// it; nothing detects this at runtime (no generation counter), matching the
// teacher repo's preference for documented contracts over defensive checks
// on the hot path.

// Iterator walks a Map's dense entry store in ascending index order.
type Iterator[K comparable, V any] struct {
	m   *Map[K, V]
	pos uint64
}

// Iterator returns a fresh Iterator positioned before the first entry.
func (m *Map[K, V]) Iterator() *Iterator[K, V] {
	return &Iterator[K, V]{m: m}
}

// Next advances the iterator and reports whether a further entry exists.
func (it *Iterator[K, V]) Next() bool {
	if it.pos >= uint64(it.m.entries.Len()) {
		return false
	}
	it.pos++
	return true
}

// Key returns the key at the iterator's current position. Call only after a
// Next() that returned true.
func (it *Iterator[K, V]) Key() K { return it.m.entries.KeyAt(it.pos - 1) }

// Value returns the value at the iterator's current position.
func (it *Iterator[K, V]) Value() V { return it.m.entries.At(it.pos - 1).Value }

// All returns a range-over-func iterator (Go 1.23 iter.Seq2) over (key,
// value) pairs in dense storage order, for callers that prefer `for k, v :=
// range m.All()` to the Iterator type above. All walks the entry store via
// its ForEach; Iterator indexes the store directly. Both visit entries in the
// same ascending order.
func (m *Map[K, V]) All() func(yield func(K, V) bool) {
	return func(yield func(K, V) bool) {
		m.entries.ForEach(func(_ uint64, e entrystore.Entry[K, V]) bool {
			return yield(e.Key, e.Value)
		})
	}
}

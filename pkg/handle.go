package densehash

// handle.go implements Handle, the reference type returned by Insert, Emplace
// and Find on the single-threaded table. A Handle is a thin (table, index)
// pair — it does not copy the entry. Per §9 of the specification, entry_index
// stability is explicitly NOT promised: any Erase may move the tail entry
// into a gap and silently invalidate every Handle that pointed at the tail.
// A Handle therefore re-reads through the table on every access instead of
// caching a value or pointer, so stale use after an unrelated erase is
// detected as "different key" rather than silently returning garbage.
//
// Clear() additionally bumps a generation counter, so a Handle surviving a
// Clear (and a coincidental key/index match in whatever was inserted after)
// is still caught — see Testable Property 8.
//
// © 2025 densehash authors. MIT License.

// Handle is a lightweight reference into a Map's dense entry store.
type Handle[K comparable, V any] struct {
	m          *Map[K, V]
	key        K
	index      uint64
	valid      bool
	generation uint64
}

// Key returns the key this handle was created for.
func (h Handle[K, V]) Key() K { return h.key }

// Value dereferences the handle. ok is false if the entry was removed (or
// the handle is the zero value) since the handle was created.
func (h Handle[K, V]) Value() (v V, ok bool) {
	if !h.valid || h.m == nil || h.generation != h.m.generation {
		return v, false
	}
	if h.index >= uint64(h.m.entries.Len()) {
		return v, false
	}
	e := h.m.entries.At(h.index)
	if e.Key != h.key {
		return v, false
	}
	return e.Value, true
}

// Set overwrites the value in place if the handle is still valid. It reports
// whether the write happened.
func (h Handle[K, V]) Set(v V) bool {
	if !h.valid || h.m == nil || h.generation != h.m.generation {
		return false
	}
	if h.index >= uint64(h.m.entries.Len()) {
		return false
	}
	if h.m.entries.KeyAt(h.index) != h.key {
		return false
	}
	h.m.entries.SetValueAt(h.index, v)
	return true
}

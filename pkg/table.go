package densehash

// table.go implements the single-threaded dense hash map: the "Single-
// threaded Table" component of §2 and the bulk of the specification's core
// engineering — Robin-Hood probing over a split metadata/entry-store layout,
// backward-shift deletion, amortised doubling resize, and batch operations.
//
// Design choices recorded here (see DESIGN.md for the full ledger):
//
//   - The metadata slot is a plain struct, not the 64-bit packed word used by
//     the concurrent table (internal/bucket). §9 explicitly says the
//     single-threaded variant "gains nothing by using bit fields... and may
//     choose the clearer form" — there is no atomic word to fit here.
//   - Deletion uses backward-shift (§4.4's "strictly better variant"),
//     keeping the table tombstone-free in steady state. Tombstone reuse
//     during insert (§4.3) is therefore a concurrent-table-only concern; see
//     pkg/partition.go.
//   - entry_index is an explicit field populated on every metadata write,
//     never derived from probe distance (§9 flags the derived-index variant
//     as a bug class to avoid).
//   - A parallel entryBucket slice maps entry-store index → current bucket
//     position, giving the erase compaction step's bucket fix-up (§4.4 step
//     1) O(1) cost instead of the O(capacity) scan the spec allows as a
//     fallback.
//
// © 2025 densehash authors. MIT License.

import (
	"math"

	"github.com/abhivetukuri/Unordered-Dense-Map/internal/entrystore"
	"github.com/abhivetukuri/Unordered-Dense-Map/internal/hashing"
	"github.com/abhivetukuri/Unordered-Dense-Map/internal/unsafehelpers"
	"go.uber.org/zap"
)

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone // unused by this table; see backward-shift note above.
)

// metaSlot is the single-threaded equivalent of a bucket (§3). Distance
// saturates at MaxDistance; entryIndex is only meaningful when state is
// slotOccupied.
type metaSlot struct {
	fingerprint uint8
	distance    uint8
	state       slotState
	entryIndex  uint64
}

// Map is the single-threaded dense hash map. It is not safe for concurrent
// use — see ConcurrentMap for the sharded variant.
type Map[K comparable, V any] struct {
	meta      []metaSlot
	capMinus1 uint64

	entries     *entrystore.Store[K, V]
	entryBucket []uint64 // entryBucket[entryIdx] == current bucket position

	provider hashing.Provider[K]
	maxLoad  float64

	logger  *zap.Logger
	metrics metricsSink

	consistencyCheck bool
	generation        uint64
}

// New constructs an empty Map. Options may override the initial capacity,
// load factor, hash provider, logger, or metrics registry.
func New[K comparable, V any](opts ...Option[K, V]) (*Map[K, V], error) {
	cfg := defaultConfig[K, V]()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	capacity, ok := safeNextPowerOfTwo(cfg.initialCapacity)
	if !ok {
		return nil, ErrAllocationFailure
	}
	if exceedsEntryIndexSpace(capacity, cfg.maxLoad) {
		return nil, ErrCapacityExhausted
	}
	m := &Map[K, V]{
		meta:             make([]metaSlot, capacity),
		capMinus1:        uint64(capacity - 1),
		entries:          entrystore.New[K, V](capacity),
		entryBucket:      make([]uint64, 0, capacity),
		provider:         cfg.provider,
		maxLoad:          cfg.maxLoad,
		logger:           cfg.logger,
		metrics:          newMetricsSink(cfg.registry),
		consistencyCheck: cfg.consistencyCheck,
	}
	return m, nil
}

func nextPowerOfTwo(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// safeNextPowerOfTwo is nextPowerOfTwo's overflow-checked twin, used at the
// public boundaries (New, NewConcurrent, Reserve) where §7's
// ErrAllocationFailure must be a real, returned error rather than a silently
// wrapped-around capacity. ok is false if doubling would overflow int before
// reaching n.
func safeNextPowerOfTwo(n int) (p int, ok bool) {
	if n < 1 {
		n = 1
	}
	p = 1
	for p < n {
		if p > math.MaxInt/2 {
			return 0, false
		}
		p <<= 1
	}
	return p, true
}

// exceedsEntryIndexSpace reports whether a table sized at capacity could
// ever place an entry whose index would not fit the 46-bit entry_index field
// (internal/bucket.MaxEntryIndex) — the condition §7's ErrCapacityExhausted
// names ("the table already sits at the addressable limit").
func exceedsEntryIndexSpace(capacity int, maxLoad float64) bool {
	return float64(capacity)*maxLoad > float64(MaxEntryIndex)
}

func (m *Map[K, V]) capacityLen() int { return int(m.capMinus1) + 1 }

// Size returns the number of live entries.
func (m *Map[K, V]) Size() int { return m.entries.Len() }

// Empty reports whether the table holds no entries.
func (m *Map[K, V]) Empty() bool { return m.entries.Len() == 0 }

// Capacity returns the current number of metadata slots.
func (m *Map[K, V]) Capacity() int { return m.capacityLen() }

// LoadFactor returns size/capacity.
func (m *Map[K, V]) LoadFactor() float64 {
	return float64(m.entries.Len()) / float64(m.capacityLen())
}

/*
   ---------------- Probing core ----------------
*/

// probe walks the Robin-Hood chain for key, returning its entry index and
// bucket position on a hit. The early-termination rule (dist > slot.distance
// implies absence) is the same trick the teacher's reference Robin-Hood
// implementation uses for Get/Put, and doubles as the "verify absence" scan
// §4.3 requires before an insert commits.
func (m *Map[K, V]) probe(key K) (entryIndex uint64, bucketIdx uint64, found bool) {
	hash, fp := hashing.HashAndFingerprint[K](m.provider, key)
	home := hash & m.capMinus1
	idx := home
	var dist uint8
	for {
		slot := m.meta[idx]
		switch slot.state {
		case slotEmpty:
			return 0, 0, false
		case slotOccupied:
			if dist > slot.distance {
				return 0, 0, false
			}
			if slot.fingerprint == fp && m.entries.KeyAt(slot.entryIndex) == key {
				return slot.entryIndex, idx, true
			}
		}
		if dist == MaxDistance {
			return 0, 0, false
		}
		idx = (idx + 1) & m.capMinus1
		dist++
	}
}

// setBucket writes slot at idx and keeps entryBucket in sync so erase's
// compaction fix-up stays O(1).
func (m *Map[K, V]) setBucket(idx uint64, slot metaSlot) {
	m.meta[idx] = slot
	if slot.state == slotOccupied {
		m.entryBucket[slot.entryIndex] = idx
	}
}

// place walks the Robin-Hood displacement chain for an entry that already
// lives in the entry store (appended by the caller) and installs it at its
// rightful bucket, swapping aside any richer (lower-distance) occupant it
// passes — the classic "takes from the rich, gives to the poor" rule. It
// returns false if distance would exceed MaxDistance, in which case the
// caller must resize (which rebuilds metadata for every entry from scratch
// and therefore always succeeds).
func (m *Map[K, V]) place(entryIdx uint64) bool {
	key := m.entries.KeyAt(entryIdx)
	hash, fp := hashing.HashAndFingerprint[K](m.provider, key)
	home := hash & m.capMinus1

	carried := metaSlot{fingerprint: fp, distance: 0, state: slotOccupied, entryIndex: entryIdx}
	idx := home
	for {
		slot := m.meta[idx]
		if slot.state != slotOccupied {
			m.setBucket(idx, carried)
			m.metrics.observeProbeLength(0, int(carried.distance))
			return true
		}
		if carried.distance > slot.distance {
			m.setBucket(idx, carried)
			carried = slot
		}
		if carried.distance == MaxDistance {
			return false
		}
		carried.distance++
		idx = (idx + 1) & m.capMinus1
	}
}

/*
   ---------------- Insert family ----------------
*/

func (m *Map[K, V]) needsGrow(extra int) bool {
	return float64(m.entries.Len()+extra) > float64(m.capacityLen())*m.maxLoad
}

func (m *Map[K, V]) insertInternal(key K, ctor func() V, constructEarly bool) (Handle[K, V], bool) {
	var value V
	if constructEarly {
		value = ctor()
	}

	if m.needsGrow(1) {
		m.resize(m.capacityLen() * 2)
	}

	if idx, _, found := m.probe(key); found {
		m.metrics.incLookup(0, true)
		return m.handle(key, idx), false
	}

	if !constructEarly {
		value = ctor()
	}

	entryIdx := m.entries.Append(key, value)
	m.entryBucket = append(m.entryBucket, 0)

	if !m.place(entryIdx) {
		m.resize(m.capacityLen() * 2)
	}

	m.metrics.incInsert(0)
	m.metrics.setSize(0, m.entries.Len())
	return m.handle(key, entryIdx), true
}

// Insert maps key to value. If key is already present, the stored value is
// left untouched and inserted is false (§8 property 2).
func (m *Map[K, V]) Insert(key K, value V) (Handle[K, V], bool) {
	return m.insertInternal(key, func() V { return value }, true)
}

// Emplace constructs a value via ctor and inserts it. ctor is always invoked,
// even when key turns out to already be present — mirroring C++'s general
// emplace, which may construct-then-discard on a duplicate. Use TryEmplace to
// avoid that cost.
func (m *Map[K, V]) Emplace(key K, ctor func() V) (Handle[K, V], bool) {
	return m.insertInternal(key, ctor, true)
}

// TryEmplace constructs a value via ctor only if key is absent.
func (m *Map[K, V]) TryEmplace(key K, ctor func() V) (Handle[K, V], bool) {
	return m.insertInternal(key, ctor, false)
}

/*
   ---------------- Lookup family ----------------
*/

func (m *Map[K, V]) handle(key K, idx uint64) Handle[K, V] {
	return Handle[K, V]{m: m, key: key, index: idx, valid: true, generation: m.generation}
}

// Find returns a Handle for key, if present.
func (m *Map[K, V]) Find(key K) (Handle[K, V], bool) {
	idx, _, found := m.probe(key)
	m.metrics.incLookup(0, found)
	if !found {
		return Handle[K, V]{}, false
	}
	return m.handle(key, idx), true
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	_, _, found := m.probe(key)
	m.metrics.incLookup(0, found)
	return found
}

// Count returns 1 if key is present, 0 otherwise.
func (m *Map[K, V]) Count(key K) int {
	if m.Contains(key) {
		return 1
	}
	return 0
}

// At returns the value stored for key, or ErrKeyNotFound (wrapped) on a miss.
func (m *Map[K, V]) At(key K) (V, error) {
	idx, _, found := m.probe(key)
	if !found {
		var zero V
		return zero, newKeyNotFound(key)
	}
	return m.entries.At(idx).Value, nil
}

// Index returns a pointer to key's value, inserting a zero value first if
// key is absent (the spec's operator[] semantics, §6.2).
func (m *Map[K, V]) Index(key K) *V {
	if idx, _, found := m.probe(key); found {
		return m.entries.ValuePtrAt(idx)
	}
	var zero V
	h, _ := m.insertInternal(key, func() V { return zero }, true)
	return m.entries.ValuePtrAt(h.index)
}

/*
   ---------------- Erase ----------------
*/

// Erase removes key, returning 1 if it was present, 0 otherwise.
func (m *Map[K, V]) Erase(key K) int {
	entryIdx, bucketIdx, found := m.probe(key)
	if !found {
		m.metrics.incErase(0, false)
		return 0
	}

	movedFrom := m.entries.RemoveSwap(entryIdx)
	if movedFrom != entryIdx {
		bp := m.entryBucket[movedFrom]
		m.meta[bp].entryIndex = entryIdx
		m.entryBucket[entryIdx] = bp
		if m.consistencyCheck {
			m.checkConsistency(entryIdx, bp)
		}
	}
	m.entryBucket = m.entryBucket[:len(m.entryBucket)-1]

	m.backwardShiftErase(bucketIdx)

	m.metrics.incErase(0, true)
	m.metrics.setSize(0, m.entries.Len())
	return 1
}

// backwardShiftErase reclaims bucket p by shifting every following
// occupied-with-nonzero-distance bucket back one slot, exactly the loop the
// teacher's Robin-Hood reference uses in Remove. No tombstone is ever
// written; the table stays tombstone-free in steady state.
func (m *Map[K, V]) backwardShiftErase(p uint64) {
	j := p
	for {
		k := (j + 1) & m.capMinus1
		slot := m.meta[k]
		if slot.state != slotOccupied || slot.distance == 0 {
			break
		}
		slot.distance--
		m.meta[j] = slot
		m.entryBucket[slot.entryIndex] = j
		j = k
	}
	m.meta[j] = metaSlot{}
}

// checkConsistency implements the optional §7 ProviderInconsistency debug
// hook: after the compaction fix-up it recomputes the moved key's probe path
// and warns if the entry can no longer be found where the bucket claims.
func (m *Map[K, V]) checkConsistency(entryIdx, bucketIdx uint64) {
	key := m.entries.KeyAt(entryIdx)
	foundEntry, foundBucket, ok := m.probe(key)
	if !ok || foundEntry != entryIdx || foundBucket != bucketIdx {
		m.logger.Warn("densehash: provider inconsistency detected on compaction",
			zap.Uint64("entry_index", entryIdx), zap.Uint64("bucket_index", bucketIdx))
	}
}

/*
   ---------------- Clear / Reserve / Resize ----------------
*/

// Clear empties the table, keeping its current capacity (matching the
// teacher pack's Robin-Hood reference, which resets slot state rather than
// reallocating). Every outstanding Handle is invalidated via the generation
// counter.
func (m *Map[K, V]) Clear() {
	for i := range m.meta {
		m.meta[i] = metaSlot{}
	}
	m.entries.Reset()
	m.entryBucket = m.entryBucket[:0]
	m.generation++
	m.metrics.setSize(0, 0)
}

// Reserve grows capacity, if needed, so that n/MaxLoadFactor <= capacity. It
// returns ErrAllocationFailure if the requested size cannot even be rounded
// up to a power of two without overflowing int, or ErrCapacityExhausted if
// the rounded target would exceed the 46-bit entry_index field's range
// (§7); in either case the table is left untouched (strong exception
// safety).
func (m *Map[K, V]) Reserve(n int) error {
	if n <= 0 {
		return nil
	}
	target, ok := safeNextPowerOfTwo(int(math.Ceil(float64(n) / m.maxLoad)))
	if !ok {
		return ErrAllocationFailure
	}
	if exceedsEntryIndexSpace(target, m.maxLoad) {
		return ErrCapacityExhausted
	}
	if target > m.capacityLen() {
		m.resize(target)
	}
	return nil
}

// resize reallocates metadata at newCapacity and re-derives every bucket
// from the entry store (§4.5): this is what lets place() simply return
// false on MaxDistance overflow instead of unwinding a partial swap chain —
// resize always succeeds because it starts from an empty metadata array and
// capacity has at least doubled. newCapacity is computed by doubling an
// already-validated capacity (see Reserve/New for the validated entry
// points), so the panics below only fire if that doubling itself overflows
// or crosses the entry_index limit — there is no error-return slot on this
// unexported path's callers (insertInternal, Index), matching §7's "Fatal"
// characterization of CapacityExhausted.
func (m *Map[K, V]) resize(newCapacity int) {
	if newCapacity <= 0 {
		panic(ErrAllocationFailure)
	}
	if !unsafehelpers.IsPowerOfTwo(uintptr(newCapacity)) {
		panic("densehash: resize target capacity is not a power of two")
	}
	if exceedsEntryIndexSpace(newCapacity, m.maxLoad) {
		panic(ErrCapacityExhausted)
	}
	oldCapacity := m.capacityLen()
	m.meta = make([]metaSlot, newCapacity)
	m.capMinus1 = uint64(newCapacity - 1)

	for i := uint64(0); i < uint64(m.entries.Len()); i++ {
		if !m.place(i) {
			panic("densehash: resize failed to place an entry despite empty metadata")
		}
	}

	m.metrics.incResize(0)
	m.logger.Debug("densehash: resized",
		zap.Int("old_capacity", oldCapacity),
		zap.Int("new_capacity", newCapacity),
		zap.Int("size", m.entries.Len()))
}

/*
   ---------------- Batch operations (§4.7) ----------------
*/

// BatchInsert reserves capacity for len(keys) additional entries, then
// inserts each key/value pair individually. Semantics are identical to
// inserting one at a time; this only amortises resizes (§4.7). Reserve is
// optional per §6.2, so a failed upfront reservation is not fatal here —
// each Insert below still resizes on demand as needed.
func (m *Map[K, V]) BatchInsert(keys []K, values []V) {
	if len(keys) != len(values) {
		panic("densehash: BatchInsert keys/values length mismatch")
	}
	_ = m.Reserve(m.entries.Len() + len(keys))
	for i := range keys {
		m.Insert(keys[i], values[i])
	}
}

// BatchResult is one element of a BatchFind result slice.
type BatchResult[K comparable, V any] struct {
	Handle Handle[K, V]
	Found  bool
}

// BatchFind performs a single pass of Find over keys, preserving order.
func (m *Map[K, V]) BatchFind(keys []K) []BatchResult[K, V] {
	out := make([]BatchResult[K, V], len(keys))
	for i, k := range keys {
		h, ok := m.Find(k)
		out[i] = BatchResult[K, V]{Handle: h, Found: ok}
	}
	return out
}

// BatchContains performs a single pass of Contains over keys.
func (m *Map[K, V]) BatchContains(keys []K) []bool {
	out := make([]bool, len(keys))
	for i, k := range keys {
		out[i] = m.Contains(k)
	}
	return out
}

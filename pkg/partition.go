package densehash

// partition.go implements one shard of the concurrent dense hash map (§2
// component 5, §4.8). Each partition owns its own metadata array of packed
// atomic words (internal/bucket), its own entry slab (internal/entryslab),
// and its own resize gate — exactly the "N independent shards to minimise
// lock contention" design the teacher repo used for CLOCK-Pro, rebuilt here
// around Robin-Hood buckets instead of a Go map.
//
// Concurrency model
// ------------------
// Every bucket is a single atomic.Uint64 packed via internal/bucket, so a
// reader never observes a torn word. Writers publish every metadata change —
// slot claims, Robin-Hood displacement, tombstone transitions — as a single
// CompareAndSwap against the word they just loaded; on failure they reload
// the same slot and re-evaluate, exactly as §4.8 step 3 specifies, rather
// than taking any lock around the walk. The only lock in this file is:
//
//   - resizeMu (RWMutex), the per-partition resize gate named in the spec.
//     Readers and writers hold RLock for the duration of a normal operation;
//     a resize takes the exclusive Lock and rebuilds the partition from
//     scratch, the same way Map.resize does for the single-threaded table.
//     This is the gate §5 itself calls for ("insert and erase are lock-free
//     in the absence of resize") — it is not a simplification of the write
//     path, since no bucket or entry write ever takes it exclusively.
//
// Entry storage uses internal/entryslab instead of internal/entrystore: its
// atomic tail-pointer claim is the "known capacity window, not an
// arbitrary-growing sequence" §4.8 step 4 requires for the concurrent
// variant, and its per-entry validity bit is the mechanism §4.8 names for
// concurrent erase ("flag the Entry's validity bit false") and lookup
// ("ignore buckets whose Entry's validity bit is false").
//
// Known limitation: two goroutines racing to Insert the same brand-new key
// for the first time can both walk past the point where a duplicate would
// have been visible (neither has published anything yet) and both succeed,
// producing two live entries for one key. Closing this window needs a
// two-phase reservation or helping protocol beyond a single CAS per bucket;
// see DESIGN.md for why this table does not attempt one.
//
// © 2025 densehash authors. MIT License.

import (
	"sync"
	"sync/atomic"

	"github.com/abhivetukuri/Unordered-Dense-Map/internal/bucket"
	"github.com/abhivetukuri/Unordered-Dense-Map/internal/entryslab"
	"github.com/abhivetukuri/Unordered-Dense-Map/internal/hashing"
	"github.com/abhivetukuri/Unordered-Dense-Map/internal/unsafehelpers"
	"go.uber.org/zap"
)

type partition[K comparable, V any] struct {
	resizeMu  sync.RWMutex
	meta      []atomic.Uint64
	capMinus1 uint64
	slab      *entryslab.Slab[K, V]

	size atomic.Int64

	provider hashing.Provider[K]
	maxLoad  float64
	logger   *zap.Logger
	metrics  metricsSink
	index    int // partition index, for metric labels

	generation atomic.Uint64
}

func newPartition[K comparable, V any](capacity int, provider hashing.Provider[K], maxLoad float64, logger *zap.Logger, metrics metricsSink, index int) *partition[K, V] {
	return &partition[K, V]{
		meta:      make([]atomic.Uint64, capacity),
		capMinus1: uint64(capacity - 1),
		slab:      entryslab.New[K, V](capacity),
		provider:  provider,
		maxLoad:   maxLoad,
		logger:    logger,
		metrics:   metrics,
		index:     index,
	}
}

func (p *partition[K, V]) capacityLen() int { return int(p.capMinus1) + 1 }

func (p *partition[K, V]) Size() int { return int(p.size.Load()) }

// probeAtomic walks the metadata chain using plain atomic loads only — no
// lock beyond whatever the caller already holds on resizeMu. Tombstones do
// not terminate the walk (§4.1); they are skipped over like any other
// occupied-but-wrong slot. A bucket whose referenced slab entry has its
// validity bit cleared is treated exactly like a miss at that slot (§4.8).
func (p *partition[K, V]) probeAtomic(key K, capMinus1 uint64) (entryIndex uint64, bucketIdx uint64, found bool) {
	hash, fp := hashing.HashAndFingerprint[K](p.provider, key)
	home := hash & capMinus1
	idx := home
	var dist uint8
	for {
		w := p.meta[idx].Load()
		switch bucket.BucketState(w) {
		case bucket.Empty:
			return 0, 0, false
		case bucket.Occupied:
			if dist > bucket.Distance(w) {
				return 0, 0, false
			}
			if bucket.Fingerprint(w) == fp {
				ei := bucket.EntryIndex(w)
				if ei < p.slab.Tail() {
					entry := p.slab.At(ei)
					if entry.Valid() && entry.Key == key {
						return ei, idx, true
					}
				}
			}
		case bucket.Tombstone:
			// does not terminate the walk; just keep going.
		}
		if dist == MaxDistance {
			return 0, 0, false
		}
		idx = (idx + 1) & capMinus1
		dist++
	}
}

// Find is the lock-free hot path: only the resize gate is taken, as a
// read-lock, for the duration of the probe and the value read.
func (p *partition[K, V]) Find(key K) (value V, entryIdx uint64, found bool) {
	p.resizeMu.RLock()
	capMinus1 := p.capMinus1
	idx, _, ok := p.probeAtomic(key, capMinus1)
	if !ok {
		p.resizeMu.RUnlock()
		p.metrics.incLookup(p.index, false)
		var zero V
		return zero, 0, false
	}
	entry := p.slab.At(idx)
	v := entry.Value
	stillValid := entry.Valid()
	p.resizeMu.RUnlock()
	p.metrics.incLookup(p.index, stillValid)
	if !stillValid {
		var zero V
		return zero, 0, false
	}
	return v, idx, true
}

func (p *partition[K, V]) Contains(key K) bool {
	_, _, found := p.Find(key)
	return found
}

// Insert resolves needsGrow under a read-lock, then hands the combined
// duplicate-check-and-placement walk to insertCAS. retry (from insertCAS or
// from a capacity-window exhaustion) always means "grow the partition and
// run the whole operation again" — growOnce always leaves room, since it
// rebuilds from an empty metadata array at double the capacity.
func (p *partition[K, V]) Insert(key K, ctor func() V, constructEarly bool) (entryIdx uint64, inserted bool) {
	lazyCtor := ctor
	if constructEarly {
		value := ctor()
		lazyCtor = func() V { return value }
	}

	for {
		p.resizeMu.RLock()
		capMinus1 := p.capMinus1
		if p.needsGrowLocked(1) {
			p.resizeMu.RUnlock()
			p.growOnce()
			continue
		}

		ei, ins, retry := p.insertCAS(key, lazyCtor, capMinus1)
		if ins {
			// Counted while the resize gate is still held, so a growOnce
			// (which recounts live entries) cannot count this entry twice.
			p.size.Add(1)
		}
		p.resizeMu.RUnlock()

		if retry {
			p.growOnce()
			continue
		}
		if !ins {
			p.metrics.incLookup(p.index, true)
			return ei, false
		}

		p.metrics.incInsert(p.index)
		p.metrics.setSize(p.index, int(p.size.Load()))
		return ei, true
	}
}

// insertCAS performs the single fused duplicate-check-and-placement walk
// §4.3/§4.8 call for: every occupied bucket sharing the key's fingerprint is
// checked for a full match before the walk is allowed to start displacing
// anything (gated by !swapped — once the walk passes the point a duplicate
// could live, per the same early-termination invariant probeAtomic uses, it
// switches permanently into pure Robin-Hood carry mode). Every metadata
// write is a CompareAndSwap against the word just loaded; on failure the
// same slot is reloaded and re-evaluated, never advanced past, exactly as
// §4.8 step 3 specifies.
//
// The slab slot is claimed lazily — only once the walk is certain it needs
// to materialise a new entry — so a duplicate hit never wastes a claim.
//
// retry=true means the walk could not complete (MaxDistance exceeded, or the
// slab's capacity window is exhausted); see Insert for the caller's
// grow-and-retry handling. An entry already durably installed in the table
// before a later overflow (the displaced tail of a swap chain) is never
// lost: it stays valid in the slab, just temporarily unreferenced by any
// bucket, and the next growOnce rebuilds metadata by walking the slab
// directly rather than following bucket pointers, so it is always
// recovered.
func (p *partition[K, V]) insertCAS(key K, ctor func() V, capMinus1 uint64) (entryIdx uint64, inserted bool, retry bool) {
	hash, fp := hashing.HashAndFingerprint[K](p.provider, key)
	home := hash & capMinus1

	var newEntryIdx uint64
	haveEntry := false
	swapped := false
	carryFP := fp
	carryDist := uint8(0)
	var carryEntry uint64

	idx := home
	for {
		w := p.meta[idx].Load()
		state := bucket.BucketState(w)

		if state == bucket.Occupied && !swapped && bucket.Fingerprint(w) == fp {
			ei := bucket.EntryIndex(w)
			if ei < p.slab.Tail() {
				entry := p.slab.At(ei)
				if entry.Valid() && entry.Key == key {
					return ei, false, false
				}
			}
		}

		if state != bucket.Occupied {
			if !haveEntry {
				ci, ok := p.slab.Claim()
				if !ok {
					return 0, false, true
				}
				entry := p.slab.At(ci)
				entry.Key = key
				entry.Value = ctor()
				entry.MarkValid()
				carryEntry, newEntryIdx, haveEntry = ci, ci, true
			}
			word := bucket.Pack(carryFP, carryDist, bucket.Occupied, carryEntry)
			if !p.meta[idx].CompareAndSwap(w, word) {
				continue // slot changed under us; reload and re-evaluate it
			}
			p.metrics.observeProbeLength(p.index, int(carryDist))
			return newEntryIdx, true, false
		}

		if carryDist > bucket.Distance(w) {
			if !haveEntry {
				ci, ok := p.slab.Claim()
				if !ok {
					return 0, false, true
				}
				entry := p.slab.At(ci)
				entry.Key = key
				entry.Value = ctor()
				entry.MarkValid()
				carryEntry, newEntryIdx, haveEntry = ci, ci, true
			}
			word := bucket.Pack(carryFP, carryDist, bucket.Occupied, carryEntry)
			if !p.meta[idx].CompareAndSwap(w, word) {
				continue // slot changed under us; reload and re-evaluate it
			}
			swapped = true
			carryFP, carryDist, carryEntry = bucket.Fingerprint(w), bucket.Distance(w), bucket.EntryIndex(w)
		}

		if carryDist == MaxDistance {
			return 0, false, true
		}
		carryDist++
		idx = (idx + 1) & capMinus1
	}
}

// Erase removes key if present. Per §4.8 the validity bit flip is the actual
// linearization point: it runs first (a release), and only afterward does
// the bucket transition to Tombstone via CAS. A concurrent Find that already
// loaded this bucket but has not yet read the validity bit may still report
// a hit (it "won the race"); one that reads after the flip correctly reports
// a miss. Either outcome is a valid linearization, matching §5's "choose
// either the validity-bit-clear or the Tombstone CAS as the erase's
// linearization point" allowance.
func (p *partition[K, V]) Erase(key K) int {
	p.resizeMu.RLock()
	capMinus1 := p.capMinus1
	entryIdx, bucketIdx, found := p.probeAtomic(key, capMinus1)
	if !found {
		p.resizeMu.RUnlock()
		p.metrics.incErase(p.index, false)
		return 0
	}

	p.slab.At(entryIdx).MarkInvalid()

	for {
		w := p.meta[bucketIdx].Load()
		if bucket.BucketState(w) != bucket.Occupied || bucket.EntryIndex(w) != entryIdx {
			break // a racing erase or Robin-Hood swap already changed this bucket
		}
		tomb := bucket.Pack(bucket.Fingerprint(w), bucket.Distance(w), bucket.Tombstone, 0)
		if p.meta[bucketIdx].CompareAndSwap(w, tomb) {
			break
		}
	}

	p.size.Add(-1)
	p.resizeMu.RUnlock()
	p.metrics.incErase(p.index, true)
	p.metrics.setSize(p.index, int(p.size.Load()))
	return 1
}

func (p *partition[K, V]) needsGrowLocked(extra int) bool {
	return float64(p.size.Load()+int64(extra)) > float64(p.capacityLen())*p.maxLoad
}

// growOnce doubles the partition's capacity, taking the exclusive resize
// gate. Every live (valid) slab entry is re-placed from scratch against a
// fresh metadata array and a fresh slab — the same rebuild-from-entries
// strategy Map.resize uses, and for the same reason: placeIntoWords can then
// simply signal failure instead of unwinding a half-finished swap chain,
// because a doubled, all-empty metadata array is guaranteed to have room.
// This rebuild also reclaims every tombstoned/invalidated entry, since only
// entries whose validity bit is still set are copied into the new slab —
// the concurrent table's equivalent of compaction.
func (p *partition[K, V]) growOnce() {
	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()

	oldCapacity := p.capacityLen()
	newCapacity := oldCapacity * 2
	if newCapacity <= 0 {
		panic(ErrAllocationFailure)
	}
	if !unsafehelpers.IsPowerOfTwo(uintptr(newCapacity)) {
		panic("densehash: partition resize target capacity is not a power of two")
	}
	if exceedsEntryIndexSpace(newCapacity, p.maxLoad) {
		panic(ErrCapacityExhausted)
	}

	newMeta := make([]atomic.Uint64, newCapacity)
	newCapMinus1 := uint64(newCapacity - 1)
	newSlab := entryslab.New[K, V](newCapacity)

	oldTail := p.slab.Tail()
	var live int64
	for i := uint64(0); i < oldTail; i++ {
		src := p.slab.At(i)
		if !src.Valid() {
			continue
		}
		newIdx, ok := newSlab.Claim()
		if !ok {
			panic("densehash: partition resize produced an undersized entry window")
		}
		dst := newSlab.At(newIdx)
		dst.Key = src.Key
		dst.Value = src.Value
		dst.MarkValid()

		if !placeIntoWords(newMeta, newCapMinus1, p.provider, src.Key, newIdx, p.metrics, p.index) {
			panic("densehash: partition resize failed to place an entry despite empty metadata")
		}
		live++
	}

	p.meta = newMeta
	p.capMinus1 = newCapMinus1
	p.slab = newSlab
	p.size.Store(live)
	p.generation.Add(1)
	p.metrics.incResize(p.index)
	p.logger.Debug("densehash: partition resized",
		zap.Int("partition", p.index),
		zap.Int("old_capacity", oldCapacity),
		zap.Int("new_capacity", newCapacity),
		zap.Int64("size", live))
}

// placeIntoWords runs the same Robin-Hood carry loop as insertCAS/table.go's
// place(), against a private staging array nobody else can observe yet —
// used only while rebuilding metadata during a partition resize, where plain
// Store suffices because resizeMu's exclusive hold guarantees no concurrent
// reader or writer can reach the staging array until it is published as
// p.meta.
func placeIntoWords[K comparable, V any](meta []atomic.Uint64, capMinus1 uint64, provider hashing.Provider[K], key K, entryIdx uint64, metrics metricsSink, partitionIndex int) bool {
	hash, fp := hashing.HashAndFingerprint[K](provider, key)
	home := hash & capMinus1

	carryFP := fp
	carryDist := uint8(0)
	carryEntry := entryIdx
	idx := home
	for {
		w := meta[idx].Load()
		if bucket.BucketState(w) != bucket.Occupied {
			meta[idx].Store(bucket.Pack(carryFP, carryDist, bucket.Occupied, carryEntry))
			metrics.observeProbeLength(partitionIndex, int(carryDist))
			return true
		}
		if carryDist > bucket.Distance(w) {
			meta[idx].Store(bucket.Pack(carryFP, carryDist, bucket.Occupied, carryEntry))
			carryFP, carryDist, carryEntry = bucket.Fingerprint(w), bucket.Distance(w), bucket.EntryIndex(w)
		}
		if carryDist == MaxDistance {
			return false
		}
		carryDist++
		idx = (idx + 1) & capMinus1
	}
}

// clear empties the partition while keeping its current capacity, and bumps
// the generation counter. ConcurrentHandle.Value does not compare that
// counter: it looks its key up again, so it reports false after a clear
// unless the key has since been inserted again.
func (p *partition[K, V]) clear() {
	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()

	capacity := p.capacityLen()
	p.meta = make([]atomic.Uint64, capacity)
	p.slab = entryslab.New[K, V](capacity)
	p.size.Store(0)
	p.generation.Add(1)
	p.metrics.setSize(p.index, 0)
}

// forEach walks the partition's entry slab in claim order, skipping any slot
// whose validity bit is clear. Caller must not mutate the partition from
// within fn.
func (p *partition[K, V]) forEach(fn func(key K, value V) bool) {
	p.resizeMu.RLock()
	defer p.resizeMu.RUnlock()
	tail := p.slab.Tail()
	for i := uint64(0); i < tail; i++ {
		entry := p.slab.At(i)
		if !entry.Valid() {
			continue
		}
		if !fn(entry.Key, entry.Value) {
			return
		}
	}
}

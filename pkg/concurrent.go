package densehash

// concurrent.go implements ConcurrentMap, the sharded dense hash map named
// in §2 component 5 and detailed in §4.8. It routes every key to one of
// PartitionCount independent partition[K,V] shards (pkg/partition.go) by a
// 6-bit slice of the key's hash distinct from the slice used inside a
// partition for bucket placement, then delegates. Cross-partition
// operations (Size, Clear, SnapshotKeys) fan out with golang.org/x/sync/errgroup,
// the same dependency the teacher repo pulled in for its (removed)
// singleflight-based GetOrLoad — repurposed here for parallel partition
// scans instead of request coalescing.
//
// © 2025 densehash authors. MIT License.

import (
	"context"

	"github.com/abhivetukuri/Unordered-Dense-Map/internal/hashing"
	"golang.org/x/sync/errgroup"
)

// ConcurrentMap is the sharded, thread-safe dense hash map. All methods are
// safe to call concurrently from multiple goroutines.
type ConcurrentMap[K comparable, V any] struct {
	partitions []*partition[K, V]
	provider   hashing.Provider[K]
}

// NewConcurrent constructs a ConcurrentMap with PartitionCount partitions,
// each tuned by the same options a single-threaded Map accepts.
// WithInitialCapacity sizes the whole table: it is divided evenly among the
// partitions, and each partition's share is rounded up to a power of two
// (at least 1).
func NewConcurrent[K comparable, V any](opts ...Option[K, V]) (*ConcurrentMap[K, V], error) {
	cfg := defaultConfig[K, V]()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	perPartitionCapacity, ok := safeNextPowerOfTwo(cfg.initialCapacity / PartitionCount)
	if !ok {
		return nil, ErrAllocationFailure
	}
	if perPartitionCapacity < 1 {
		perPartitionCapacity = 1
	}
	if exceedsEntryIndexSpace(perPartitionCapacity, cfg.maxLoad) {
		return nil, ErrCapacityExhausted
	}

	sink := newMetricsSink(cfg.registry)
	cm := &ConcurrentMap[K, V]{
		partitions: make([]*partition[K, V], PartitionCount),
		provider:   cfg.provider,
	}
	for i := range cm.partitions {
		cm.partitions[i] = newPartition[K, V](perPartitionCapacity, cfg.provider, cfg.maxLoad, cfg.logger, sink, i)
	}
	return cm, nil
}

// partitionFor routes key to one of PartitionCount shards using the top 6
// bits of its hash — disjoint from the low bits that select the home slot
// inside a partition, so partition choice and intra-partition placement
// don't correlate.
func (cm *ConcurrentMap[K, V]) partitionFor(key K) (*partition[K, V], uint64) {
	hash := cm.provider.Hash(key)
	idx := (hash >> 58) & (PartitionCount - 1)
	return cm.partitions[idx], hash
}

// ConcurrentHandle is a reference into a ConcurrentMap. Like Handle, it
// re-reads through the table on every access rather than caching a value:
// entry_index stability is not promised, and the backing entry may have
// moved or been erased by another goroutine since the handle was created.
type ConcurrentHandle[K comparable, V any] struct {
	p          *partition[K, V]
	key        K
	index      uint64
	generation uint64
}

// Key returns the key this handle was created for.
func (h ConcurrentHandle[K, V]) Key() K { return h.key }

// Value re-reads the current value for this handle's key, reporting false
// if it is no longer present.
func (h ConcurrentHandle[K, V]) Value() (v V, ok bool) {
	if h.p == nil {
		return v, false
	}
	value, _, found := h.p.Find(h.key)
	if !found {
		return v, false
	}
	return value, true
}

func (cm *ConcurrentMap[K, V]) handle(p *partition[K, V], key K, idx uint64) ConcurrentHandle[K, V] {
	return ConcurrentHandle[K, V]{p: p, key: key, index: idx, generation: p.generation.Load()}
}

// Insert maps key to value, returning inserted=false (and leaving the
// stored value untouched) if key was already present.
func (cm *ConcurrentMap[K, V]) Insert(key K, value V) (ConcurrentHandle[K, V], bool) {
	p, _ := cm.partitionFor(key)
	idx, inserted := p.Insert(key, func() V { return value }, true)
	return cm.handle(p, key, idx), inserted
}

// Emplace constructs a value via ctor and inserts it; ctor always runs, even
// on a duplicate key. See Map.Emplace.
func (cm *ConcurrentMap[K, V]) Emplace(key K, ctor func() V) (ConcurrentHandle[K, V], bool) {
	p, _ := cm.partitionFor(key)
	idx, inserted := p.Insert(key, ctor, true)
	return cm.handle(p, key, idx), inserted
}

// TryEmplace constructs a value via ctor only if key is absent.
func (cm *ConcurrentMap[K, V]) TryEmplace(key K, ctor func() V) (ConcurrentHandle[K, V], bool) {
	p, _ := cm.partitionFor(key)
	idx, inserted := p.Insert(key, ctor, false)
	return cm.handle(p, key, idx), inserted
}

// Find returns a ConcurrentHandle for key, if present.
func (cm *ConcurrentMap[K, V]) Find(key K) (ConcurrentHandle[K, V], bool) {
	p, _ := cm.partitionFor(key)
	_, idx, found := p.Find(key)
	if !found {
		return ConcurrentHandle[K, V]{}, false
	}
	return cm.handle(p, key, idx), true
}

// Contains reports whether key is present.
func (cm *ConcurrentMap[K, V]) Contains(key K) bool {
	p, _ := cm.partitionFor(key)
	return p.Contains(key)
}

// Count returns 1 if key is present, 0 otherwise.
func (cm *ConcurrentMap[K, V]) Count(key K) int {
	if cm.Contains(key) {
		return 1
	}
	return 0
}

// At returns the value stored for key, or ErrKeyNotFound (wrapped) on a
// miss.
func (cm *ConcurrentMap[K, V]) At(key K) (V, error) {
	p, _ := cm.partitionFor(key)
	v, _, found := p.Find(key)
	if !found {
		var zero V
		return zero, newKeyNotFound(key)
	}
	return v, nil
}

// Erase removes key, returning 1 if it was present, 0 otherwise.
func (cm *ConcurrentMap[K, V]) Erase(key K) int {
	p, _ := cm.partitionFor(key)
	return p.Erase(key)
}

// Size returns the total number of live entries across every partition. It
// fans out the per-partition size read via errgroup; each read is an atomic
// load, so this is a snapshot that may be stale by the time the caller acts
// on it, same as every other method here (§4.8: no whole-table consistency
// guarantee is offered).
func (cm *ConcurrentMap[K, V]) Size() int {
	counts := make([]int, len(cm.partitions))
	var g errgroup.Group
	for i, p := range cm.partitions {
		i, p := i, p
		g.Go(func() error {
			counts[i] = p.Size()
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// Empty reports whether the table holds no entries.
func (cm *ConcurrentMap[K, V]) Empty() bool { return cm.Size() == 0 }

// Clear empties every partition concurrently.
func (cm *ConcurrentMap[K, V]) Clear() {
	var g errgroup.Group
	for _, p := range cm.partitions {
		p := p
		g.Go(func() error {
			p.clear()
			return nil
		})
	}
	_ = g.Wait()
}

// ForEach walks every partition's entries. Order across partitions is
// unspecified; within a partition, entries are visited in dense storage
// order. fn is called from the calling goroutine only — ForEach itself does
// not parallelise the callback, to keep iteration semantics simple for
// callers that are not prepared for concurrent fn invocations.
func (cm *ConcurrentMap[K, V]) ForEach(fn func(key K, value V) bool) {
	for _, p := range cm.partitions {
		stop := false
		p.forEach(func(k K, v V) bool {
			if !fn(k, v) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return
		}
	}
}

// SnapshotKeys collects every key across all partitions, scanning partitions
// concurrently via errgroup. The result is a point-in-time-ish snapshot with
// the same staleness caveat as Size.
func (cm *ConcurrentMap[K, V]) SnapshotKeys(ctx context.Context) ([]K, error) {
	perPartition := make([][]K, len(cm.partitions))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range cm.partitions {
		i, p := i, p
		g.Go(func() error {
			keys := make([]K, 0, p.Size())
			p.forEach(func(k K, _ V) bool {
				keys = append(keys, k)
				return true
			})
			perPartition[i] = keys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, ks := range perPartition {
		total += len(ks)
	}
	out := make([]K, 0, total)
	for _, ks := range perPartition {
		out = append(out, ks...)
	}
	return out, nil
}

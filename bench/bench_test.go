// Package bench provides reproducible micro-benchmarks for densehash.
// Run via:  go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// The benchmarks intentionally use a single key/value shape so results are
// comparable across versions:
//   • Key   – uint64  (cheap hashing, fits in register)
//   • Value – 64-byte struct (large enough to matter, small enough for cache)
//
// We measure:
//   1. Insert          – write-only workload, single-threaded table
//   2. Find            – read-only workload (after warm-up), single-threaded
//   3. ConcurrentInsert – parallel writers, sharded table
//   4. ConcurrentFind   – parallel readers, sharded table
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
//
// NOTE: Unit tests live alongside the package; this file is only for
// performance.
//
// © 2025 densehash authors. MIT License.

package bench

import (
	"math/rand"
	"testing"

	"github.com/abhivetukuri/Unordered-Dense-Map/internal/dataset"
	densehash "github.com/abhivetukuri/Unordered-Dense-Map/pkg"
)

type value64 struct {
	_ [64]byte
}

const keys = 1 << 20 // 1M keys for dataset

func newTestMap() *densehash.Map[uint64, value64] {
	m, err := densehash.New[uint64, value64]()
	if err != nil {
		panic(err)
	}
	return m
}

func newTestConcurrentMap() *densehash.ConcurrentMap[uint64, value64] {
	m, err := densehash.NewConcurrent[uint64, value64]()
	if err != nil {
		panic(err)
	}
	return m
}

// global dataset reused across benches to avoid reallocating large slices.
// Drawn from internal/dataset, the same generator tools/dataset_gen uses to
// write a standalone key file, so both stay in sync.
var ds = func() []uint64 {
	arr, err := dataset.Generate(keys, dataset.DefaultParams(42))
	if err != nil {
		panic(err)
	}
	return arr
}()

func BenchmarkInsert(b *testing.B) {
	m := newTestMap()
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(keys-1)]
		m.Insert(key, val)
	}
}

func BenchmarkFind(b *testing.B) {
	m := newTestMap()
	val := value64{}
	for _, k := range ds {
		m.Insert(k, val)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		m.Find(k)
	}
}

func BenchmarkConcurrentInsert(b *testing.B) {
	m := newTestConcurrentMap()
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			m.Insert(ds[idx], val)
		}
	})
}

func BenchmarkConcurrentFind(b *testing.B) {
	m := newTestConcurrentMap()
	val := value64{}
	for _, k := range ds {
		m.Insert(k, val)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			m.Find(ds[idx])
		}
	})
}

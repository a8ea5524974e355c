package densehash_test

import (
	"testing"

	densehash "github.com/abhivetukuri/Unordered-Dense-Map/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntMap(t *testing.T) *densehash.Map[int, int] {
	t.Helper()
	m, err := densehash.New[int, int]()
	require.NoError(t, err)
	return m
}

// S1 from the spec's end-to-end scenarios.
func TestScenario_S1_BasicInsertFindEraseIterate(t *testing.T) {
	m := newIntMap(t)

	_, inserted := m.Insert(1, 10)
	assert.True(t, inserted)
	_, inserted = m.Insert(2, 20)
	assert.True(t, inserted)
	_, inserted = m.Insert(3, 30)
	assert.True(t, inserted)

	assert.Equal(t, 3, m.Size())

	h, ok := m.Find(2)
	require.True(t, ok)
	v, ok := h.Value()
	require.True(t, ok)
	assert.Equal(t, 20, v)

	assert.Equal(t, 1, m.Erase(1))
	assert.Equal(t, 2, m.Size())
	assert.False(t, m.Contains(1))

	got := map[int]int{}
	for it := m.Iterator(); it.Next(); {
		got[it.Key()] = it.Value()
	}
	assert.Equal(t, map[int]int{2: 20, 3: 30}, got)
}

// S2: insert 1000 sequential keys, verify each.
func TestScenario_S2_ThousandSequentialKeys(t *testing.T) {
	m := newIntMap(t)
	for i := 0; i < 1000; i++ {
		_, inserted := m.Insert(i, 2*i)
		require.True(t, inserted)
	}
	require.Equal(t, 1000, m.Size())
	for i := 0; i < 1000; i++ {
		h, ok := m.Find(i)
		require.True(t, ok, "key %d", i)
		v, _ := h.Value()
		assert.Equal(t, 2*i, v)
	}
}

// S3: insert 100, erase a middle range, verify survivors.
func TestScenario_S3_EraseMiddleRange(t *testing.T) {
	m := newIntMap(t)
	for i := 0; i < 100; i++ {
		m.Insert(i, 2*i)
	}
	for i := 25; i < 30; i++ {
		assert.Equal(t, 1, m.Erase(i))
	}
	assert.Equal(t, 95, m.Size())
	for i := 25; i < 30; i++ {
		assert.False(t, m.Contains(i))
	}
	for i := 0; i < 100; i++ {
		if i >= 25 && i < 30 {
			continue
		}
		h, ok := m.Find(i)
		require.True(t, ok, "key %d", i)
		v, _ := h.Value()
		assert.Equal(t, 2*i, v)
	}
}

// S4: keys whose low byte is always zero. The default provider hashes the
// key's bytes with maphash, so a zero low byte in the key does not by itself
// make the fingerprint zero or force the remix path; this checks that such
// keys round-trip.
func TestScenario_S4_ZeroLowByteKeys(t *testing.T) {
	m := newIntMap(t)
	for i := 0; i < 1000; i++ {
		key := i * 256
		_, inserted := m.Insert(key, i)
		require.True(t, inserted)
	}
	require.Equal(t, 1000, m.Size())
	for i := 0; i < 1000; i++ {
		h, ok := m.Find(i * 256)
		require.True(t, ok)
		v, _ := h.Value()
		assert.Equal(t, i, v)
	}
}

// S6: string keys.
func TestScenario_S6_StringKeys(t *testing.T) {
	m, err := densehash.New[string, int]()
	require.NoError(t, err)

	m.Insert("apple", 1)
	m.Insert("banana", 2)
	m.Insert("cherry", 3)

	assert.Equal(t, 1, m.Erase("apple"))
	assert.Equal(t, 2, m.Size())

	h, ok := m.Find("banana")
	require.True(t, ok)
	v, _ := h.Value()
	assert.Equal(t, 2, v)

	assert.False(t, m.Contains("apple"))
}

// Testable Property 2: duplicate insert does not mutate, and try_emplace
// does not construct on a duplicate.
func TestDuplicateInsertDoesNotMutate(t *testing.T) {
	m := newIntMap(t)
	m.Insert(1, 100)

	h, inserted := m.Insert(1, 999)
	assert.False(t, inserted)
	v, _ := h.Value()
	assert.Equal(t, 100, v)

	constructed := false
	_, inserted = m.TryEmplace(1, func() int {
		constructed = true
		return 999
	})
	assert.False(t, inserted)
	assert.False(t, constructed, "try_emplace must not construct on a duplicate key")
}

func TestEmplaceAlwaysConstructs(t *testing.T) {
	m := newIntMap(t)
	m.Insert(1, 100)

	constructed := false
	_, inserted := m.Emplace(1, func() int {
		constructed = true
		return 999
	})
	assert.False(t, inserted)
	assert.True(t, constructed, "emplace constructs regardless of duplicate")
}

// Testable Property 4: dense packing after mixed insert/erase.
func TestDensePackingAfterMixedOps(t *testing.T) {
	m := newIntMap(t)
	for i := 0; i < 200; i++ {
		m.Insert(i, i)
	}
	for i := 0; i < 200; i += 3 {
		m.Erase(i)
	}

	seen := map[int]bool{}
	count := 0
	for it := m.Iterator(); it.Next(); {
		count++
		seen[it.Key()] = true
	}
	assert.Equal(t, m.Size(), count)
	assert.Len(t, seen, m.Size())
}

// Testable Property 6: load factor bound holds after every insert.
func TestLoadFactorBound(t *testing.T) {
	m := newIntMap(t)
	for i := 0; i < 10_000; i++ {
		m.Insert(i, i)
		assert.LessOrEqual(t, float64(m.Size()), float64(m.Capacity())*0.75+1e-9)
	}
}

// Testable Property 7: resize preserves every key and value.
func TestResizePreservesEntries(t *testing.T) {
	m := newIntMap(t)
	const n = 5000
	for i := 0; i < n; i++ {
		m.Insert(i, i*i)
	}
	for i := 0; i < n; i++ {
		h, ok := m.Find(i)
		require.True(t, ok)
		v, _ := h.Value()
		assert.Equal(t, i*i, v)
	}
}

// Testable Property 8: clear resets size/capacity and invalidates handles.
func TestClearInvalidatesHandles(t *testing.T) {
	m := newIntMap(t)
	h, _ := m.Insert(1, 10)
	m.Clear()

	assert.Equal(t, 0, m.Size())
	assert.GreaterOrEqual(t, m.Capacity(), densehash.InitialCapacity)

	_, ok := h.Value()
	assert.False(t, ok)
}

func TestIndexInsertsDefaultOnMiss(t *testing.T) {
	m := newIntMap(t)
	ptr := m.Index(5)
	assert.Equal(t, 0, *ptr)
	*ptr = 42

	h, ok := m.Find(5)
	require.True(t, ok)
	v, _ := h.Value()
	assert.Equal(t, 42, v)
}

func TestAtReturnsKeyNotFound(t *testing.T) {
	m := newIntMap(t)
	_, err := m.At(7)
	require.Error(t, err)
	assert.ErrorIs(t, err, densehash.ErrKeyNotFound)
}

func TestBatchOperations(t *testing.T) {
	m := newIntMap(t)
	keys := make([]int, 500)
	values := make([]int, 500)
	for i := range keys {
		keys[i] = i
		values[i] = i * 10
	}
	m.BatchInsert(keys, values)
	assert.Equal(t, 500, m.Size())

	results := m.BatchFind(keys)
	for i, r := range results {
		require.True(t, r.Found)
		v, _ := r.Handle.Value()
		assert.Equal(t, values[i], v)
	}

	missKeys := []int{-1, -2, 600}
	contains := m.BatchContains(missKeys)
	for _, c := range contains {
		assert.False(t, c)
	}
}

func TestEraseMissingKeyReturnsZero(t *testing.T) {
	m := newIntMap(t)
	assert.Equal(t, 0, m.Erase(42))
}

func TestWithInvalidMaxLoadFactorRejected(t *testing.T) {
	_, err := densehash.New[int, int](densehash.WithMaxLoadFactor[int, int](1.5))
	assert.ErrorIs(t, err, densehash.ErrInvalidOption)

	_, err = densehash.New[int, int](densehash.WithMaxLoadFactor[int, int](0))
	assert.ErrorIs(t, err, densehash.ErrInvalidOption)
}

func TestReserveGrowsCapacityUpFront(t *testing.T) {
	m := newIntMap(t)
	require.NoError(t, m.Reserve(1000))
	before := m.Capacity()
	assert.GreaterOrEqual(t, before, 1000)

	for i := 0; i < 750; i++ {
		m.Insert(i, i)
	}
	assert.Equal(t, before, m.Capacity(), "reserve should avoid mid-insert resizes")
}

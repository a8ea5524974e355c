package densehash_test

import (
	"sync"
	"testing"

	densehash "github.com/abhivetukuri/Unordered-Dense-Map/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConcurrentIntMap(t *testing.T) *densehash.ConcurrentMap[int, int] {
	t.Helper()
	m, err := densehash.NewConcurrent[int, int]()
	require.NoError(t, err)
	return m
}

func TestConcurrentBasicInsertFindErase(t *testing.T) {
	m := newConcurrentIntMap(t)

	_, inserted := m.Insert(1, 10)
	assert.True(t, inserted)
	h, ok := m.Find(1)
	require.True(t, ok)
	v, ok := h.Value()
	require.True(t, ok)
	assert.Equal(t, 10, v)

	assert.Equal(t, 1, m.Erase(1))
	assert.False(t, m.Contains(1))
	assert.Equal(t, 0, m.Size())
}

func TestConcurrentDuplicateInsert(t *testing.T) {
	m := newConcurrentIntMap(t)
	m.Insert(1, 10)
	_, inserted := m.Insert(1, 20)
	assert.False(t, inserted)

	v, err := m.At(1)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

// S5 from the spec: 8 threads each insert a disjoint block of 1000 keys.
func TestScenario_S5_ConcurrentDisjointInserts(t *testing.T) {
	m := newConcurrentIntMap(t)

	const threads = 8
	const perThread = 1000

	var wg sync.WaitGroup
	wg.Add(threads)
	for tid := 0; tid < threads; tid++ {
		go func(tid int) {
			defer wg.Done()
			base := tid * perThread
			for i := 0; i < perThread; i++ {
				m.Insert(base+i, base+i)
			}
		}(tid)
	}
	wg.Wait()

	assert.Equal(t, threads*perThread, m.Size())
	for tid := 0; tid < threads; tid++ {
		base := tid * perThread
		for i := 0; i < perThread; i++ {
			assert.True(t, m.Contains(base+i))
		}
	}
}

// Testable Property 9 (per-key linearizability): concurrent inserts and
// erases racing on the SAME key must leave the table in a state consistent
// with some serialization — in practice, contains(key) is always backed by
// a value actually written by one of the racing goroutines, never garbage.
func TestConcurrentSameKeyRace(t *testing.T) {
	m := newConcurrentIntMap(t)

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			m.Insert(0, w)
		}(w)
	}
	wg.Wait()

	v, err := m.At(0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, writers)
}

// Testable Property 10: size() equals successful inserts minus successful
// erases once every goroutine has joined.
func TestConcurrentSizeConsistency(t *testing.T) {
	m := newConcurrentIntMap(t)

	const n = 4000
	var inserted atomicCounter
	var erased atomicCounter

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if _, ok := m.Insert(i, i); ok {
				inserted.add(1)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			// Erase may race ahead of the inserting goroutine; count only
			// the erases that actually removed something.
			if m.Erase(i) == 1 {
				erased.add(1)
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, inserted.load()-erased.load(), m.Size())
}

type atomicCounter struct {
	mu sync.Mutex
	n  int
}

func (c *atomicCounter) add(d int) {
	c.mu.Lock()
	c.n += d
	c.mu.Unlock()
}

func (c *atomicCounter) load() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestConcurrentForEachVisitsEveryEntry(t *testing.T) {
	m := newConcurrentIntMap(t)
	for i := 0; i < 300; i++ {
		m.Insert(i, i*2)
	}

	seen := map[int]int{}
	m.ForEach(func(k, v int) bool {
		seen[k] = v
		return true
	})
	assert.Len(t, seen, 300)
	for k, v := range seen {
		assert.Equal(t, k*2, v)
	}
}

func TestConcurrentClear(t *testing.T) {
	m := newConcurrentIntMap(t)
	for i := 0; i < 100; i++ {
		m.Insert(i, i)
	}
	m.Clear()
	assert.Equal(t, 0, m.Size())
	assert.True(t, m.Empty())
}

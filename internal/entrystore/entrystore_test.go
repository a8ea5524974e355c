package entrystore_test

import (
	"testing"

	"github.com/abhivetukuri/Unordered-Dense-Map/internal/entrystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndAt(t *testing.T) {
	s := entrystore.New[string, int](4)
	i0 := s.Append("a", 1)
	i1 := s.Append("b", 2)

	require.Equal(t, uint64(0), i0)
	require.Equal(t, uint64(1), i1)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "a", s.KeyAt(0))
	assert.Equal(t, 1, s.At(0).Value)
	assert.Equal(t, "b", s.KeyAt(1))
}

func TestSetValueAt(t *testing.T) {
	s := entrystore.New[string, int](2)
	s.Append("a", 1)
	s.SetValueAt(0, 99)
	assert.Equal(t, 99, s.At(0).Value)
}

func TestValuePtrAtMutatesInPlace(t *testing.T) {
	s := entrystore.New[string, int](2)
	s.Append("a", 1)
	p := s.ValuePtrAt(0)
	*p = 55
	assert.Equal(t, 55, s.At(0).Value)
}

func TestRemoveSwapMiddle(t *testing.T) {
	s := entrystore.New[string, int](4)
	s.Append("a", 1)
	s.Append("b", 2)
	s.Append("c", 3)

	movedFrom := s.RemoveSwap(0)
	assert.Equal(t, uint64(2), movedFrom, "RemoveSwap reports the tail index that was relocated")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "c", s.KeyAt(0), "tail entry moved into the erased slot")
	assert.Equal(t, "b", s.KeyAt(1))
}

func TestRemoveSwapTail(t *testing.T) {
	s := entrystore.New[string, int](4)
	s.Append("a", 1)
	s.Append("b", 2)

	movedFrom := s.RemoveSwap(1)
	assert.Equal(t, uint64(1), movedFrom, "removing the tail itself requires no relocation")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "a", s.KeyAt(0))
}

func TestRemoveSwapLastElement(t *testing.T) {
	s := entrystore.New[string, int](1)
	s.Append("only", 1)
	s.RemoveSwap(0)
	assert.Equal(t, 0, s.Len())
}

func TestReset(t *testing.T) {
	s := entrystore.New[string, int](4)
	s.Append("a", 1)
	s.Append("b", 2)
	s.Reset()
	assert.Equal(t, 0, s.Len())

	// backing array reuse: append after reset should behave like a fresh store.
	idx := s.Append("c", 3)
	assert.Equal(t, uint64(0), idx)
	assert.Equal(t, "c", s.KeyAt(0))
}

func TestForEachVisitsInOrderAndRespectsStop(t *testing.T) {
	s := entrystore.New[string, int](4)
	s.Append("a", 1)
	s.Append("b", 2)
	s.Append("c", 3)

	var visited []string
	s.ForEach(func(_ uint64, e entrystore.Entry[string, int]) bool {
		visited = append(visited, e.Key)
		return e.Key != "b"
	})
	assert.Equal(t, []string{"a", "b"}, visited, "ForEach must stop as soon as fn returns false")
}

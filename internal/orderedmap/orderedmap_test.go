package orderedmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zollek/nvm3/internal/orderedmap"
)

func TestMap_PreservesFirstInsertionOrder(t *testing.T) {
	m := orderedmap.New[string]()
	m.Set(3, "c")
	m.Set(1, "a")
	m.Set(2, "b")
	m.Set(1, "a-overwritten")

	require.Equal(t, []uint32{3, 1, 2}, m.Keys())
	v, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, "a-overwritten", v)
}

func TestMap_DeleteThenReinsertGoesToEnd(t *testing.T) {
	m := orderedmap.New[int]()
	m.Set(1, 10)
	m.Set(2, 20)
	m.Delete(1)
	m.Set(1, 11)

	require.Equal(t, []uint32{2, 1}, m.Keys())
	require.False(t, m.Has(3))
}

func TestMap_DeleteMissingKeyIsNoop(t *testing.T) {
	m := orderedmap.New[int]()
	m.Set(1, 1)
	m.Delete(99)
	require.Equal(t, 1, m.Len())
}

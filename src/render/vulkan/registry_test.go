package vulkan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	type handle *int
	a, b := new(int), new(int)
	r := newRegistry[handle]()

	require.Nil(t, r.get(0))

	ida := r.add(a)
	idb := r.add(b)
	require.NotZero(t, ida)
	require.NotEqual(t, ida, idb)
	require.Equal(t, handle(a), r.get(ida))
	require.Equal(t, handle(b), r.get(idb))
	require.Equal(t, 2, r.len())

	got, ok := r.remove(ida)
	require.True(t, ok)
	require.Equal(t, handle(a), got)
	require.Nil(t, r.get(ida))
	_, ok = r.remove(ida)
	require.False(t, ok)

	// ids are never reused
	require.Greater(t, r.add(a), idb)
}

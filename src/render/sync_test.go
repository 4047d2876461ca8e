package render

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mxplusb/epsilon/src/render/gpu"
	"github.com/mxplusb/epsilon/src/render/gpu/gputest"
)

func TestSyncSet(t *testing.T) {
	for _, n := range []int{1, 2, 4} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			dev := gputest.New()
			s, err := NewSyncSet(dev, n)
			require.NoError(t, err)
			require.Equal(t, n, s.Len())

			seen := map[uint64]bool{}
			for i := 0; i < n; i++ {
				slot := s.Slot(i)
				require.True(t, dev.FenceSignaled(slot.InFlight))
				for _, h := range []uint64{uint64(slot.ImageAvailable), uint64(slot.RenderFinished), uint64(slot.InFlight)} {
					require.False(t, seen[h])
					seen[h] = true
				}
			}
			require.Equal(t, 3*n, dev.Live())

			s.Destroy()
			require.Zero(t, dev.Live())
			require.Zero(t, s.Len())
			require.Empty(t, dev.Violations)

			// last slot goes first
			first := dev.CallsOf(gputest.OpDestroyFence)[0]
			require.Equal(t, lastFence(dev), first.Handle)
		})
	}
}

func lastFence(dev *gputest.Device) uint64 {
	fences := dev.CallsOf(gputest.OpCreateFence)
	return fences[len(fences)-1].Handle
}

func TestCommandSlots(t *testing.T) {
	dev := gputest.New()
	c, err := NewCommandSlots(dev, 3, 2)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	require.Equal(t, uint32(3), dev.CallsOf(gputest.OpCreateCommandPool)[0].Index)
	require.NotEqual(t, c.Buffer(0), c.Buffer(1))

	cb := c.Buffer(1)
	require.Equal(t, gpu.Success, dev.BeginCommandBuffer(cb))
	require.Equal(t, gpu.Success, dev.EndCommandBuffer(cb))
	require.NoError(t, c.Reset(1))
	// a reset buffer can be recorded again
	require.Equal(t, gpu.Success, dev.BeginCommandBuffer(cb))
	require.Equal(t, gpu.Success, dev.EndCommandBuffer(cb))

	c.Destroy()
	c.Destroy()
	require.Zero(t, dev.Live())
	require.Equal(t, 1, dev.Count(gputest.OpDestroyCommandPool))
	require.Empty(t, dev.Violations)
}

package render

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/mxplusb/epsilon/src/render/gpu"
	"github.com/mxplusb/epsilon/src/render/gpu/gputest"
)

func TestCreateBuffer(t *testing.T) {
	for idx, tc := range []struct {
		size      uint64
		props     gpu.MemoryPropertyFlags
		typeIndex uint32
		allocated uint64
	}{
		{64, gpu.MemoryPropertyDeviceLocal, 0, 256},
		{1000, gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, 1, 1024},
		{256, 0, 0, 256},
	} {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			dev := gputest.New()
			b, err := CreateBuffer(dev, tc.size, tc.props, gpu.BufferUsageVertex)
			require.NoError(t, err)
			require.Equal(t, tc.size, b.Size)

			alloc := dev.CallsOf(gputest.OpAllocateMemory)
			require.Len(t, alloc, 1)
			require.Equal(t, tc.typeIndex, alloc[0].Index)
			require.Equal(t, 1, dev.Count(gputest.OpBindBufferMemory))
			require.Equal(t, tc.allocated, dev.BufferMemoryRequirements(b.Handle).Size)

			b.Destroy(dev)
			require.Zero(t, dev.Live())
		})
	}
}

func TestCreateBufferNoMemoryType(t *testing.T) {
	dev := gputest.New()
	dev.BufferTypeBits = 0b01

	_, err := CreateBuffer(dev, 64, gpu.MemoryPropertyHostVisible, gpu.BufferUsageUniform)
	require.True(t, errors.Is(err, gpu.ErrNoMemoryType))
	require.Zero(t, dev.Count(gputest.OpAllocateMemory))
	require.Zero(t, dev.Live())
	require.Empty(t, dev.Violations)
}

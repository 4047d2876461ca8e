package vulkan

import (
	"testing"

	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/mxplusb/epsilon/src/render/gpu"
)

func TestResult(t *testing.T) {
	for _, tc := range []struct {
		in   vk.Result
		want gpu.Result
	}{
		{vk.Success, gpu.Success},
		{vk.Timeout, gpu.Timeout},
		{vk.Suboptimal, gpu.Suboptimal},
		{vk.ErrorOutOfDate, gpu.ErrorOutOfDate},
		{vk.ErrorDeviceLost, gpu.ErrorDeviceLost},
		{vk.ErrorSurfaceLost, gpu.ErrorSurfaceLost},
		// status codes without an equivalent are not failures
		{vk.Incomplete, gpu.Success},
		{vk.Result(-424242), gpu.ErrorUnknown},
	} {
		t.Run(tc.want.String(), func(t *testing.T) {
			require.Equal(t, tc.want, result(tc.in))
		})
	}
}

func TestFromVkFormat(t *testing.T) {
	require.Equal(t, gpu.FormatB8G8R8A8Srgb, fromVkFormat(vk.FormatB8g8r8a8Srgb))
	require.Equal(t, gpu.FormatR8G8B8A8Srgb, fromVkFormat(vk.FormatR8g8b8a8Srgb))
	require.Equal(t, gpu.FormatUndefined, fromVkFormat(vk.FormatD32Sfloat))
	for g := range formats {
		require.Equal(t, g, fromVkFormat(toVkFormat(g)))
	}
}

func TestColorSpace(t *testing.T) {
	require.Equal(t, gpu.ColorSpaceSrgbNonlinear, fromVkColorSpace(vk.ColorSpaceSrgbNonlinear))
	require.Equal(t, gpu.ColorSpaceOther, fromVkColorSpace(vk.ColorSpace(1000104002)))
}

func TestFromVkPresentModes(t *testing.T) {
	got := fromVkPresentModes([]vk.PresentMode{
		vk.PresentModeFifo, vk.PresentMode(1000111000), vk.PresentModeMailbox,
	})
	require.Equal(t, []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox}, got)
	require.Equal(t, vk.PresentModeFifo, toVkPresentMode(gpu.PresentMode(99)))
}

func TestMapBits(t *testing.T) {
	usage := mapBits(gpu.ImageUsageColorAttachment|gpu.ImageUsageTransferDst, imageUsageBits)
	require.Equal(t, vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransferDstBit), usage)

	stage := mapBits(gpu.PipelineStageColorAttachmentOutput, pipelineStageBits)
	require.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), stage)

	require.Zero(t, mapBits(gpu.AccessFlags(0), accessBits))

	props := unmapBits(vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit), memoryPropertyBits)
	require.Equal(t, gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent, props)
}

func TestFromVkMemoryProperties(t *testing.T) {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 2
	props.MemoryTypes[0] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		HeapIndex:     0,
	}
	props.MemoryTypes[1] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
		HeapIndex:     1,
	}

	got := fromVkMemoryProperties(props)
	require.Equal(t, []gpu.MemoryType{
		{PropertyFlags: gpu.MemoryPropertyDeviceLocal, HeapIndex: 0},
		{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, HeapIndex: 1},
	}, got.Types)

	index, err := gpu.FindMemoryType(got, 0b11, gpu.MemoryPropertyHostVisible)
	require.NoError(t, err)
	require.Equal(t, uint32(1), index)
}

func TestSafeStrings(t *testing.T) {
	require.Equal(t,
		[]string{"VK_KHR_swapchain\x00", "already\x00", "\x00"},
		safeStrings([]string{"VK_KHR_swapchain", "already\x00", ""}))
}

package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/mxplusb/epsilon/src/render/gpu"
)

var results = map[vk.Result]gpu.Result{
	vk.Success:                   gpu.Success,
	vk.NotReady:                  gpu.NotReady,
	vk.Timeout:                   gpu.Timeout,
	vk.Suboptimal:                gpu.Suboptimal,
	vk.ErrorOutOfHostMemory:      gpu.ErrorOutOfHostMemory,
	vk.ErrorOutOfDeviceMemory:    gpu.ErrorOutOfDeviceMemory,
	vk.ErrorInitializationFailed: gpu.ErrorInitializationFailed,
	vk.ErrorDeviceLost:           gpu.ErrorDeviceLost,
	vk.ErrorSurfaceLost:          gpu.ErrorSurfaceLost,
	vk.ErrorOutOfDate:            gpu.ErrorOutOfDate,
	vk.ErrorFeatureNotPresent:    gpu.ErrorFeatureNotPresent,
}

// result maps unknown error codes to ErrorUnknown and unknown status codes
// to Success.
func result(r vk.Result) gpu.Result {
	if g, ok := results[r]; ok {
		return g
	}
	if r < 0 {
		return gpu.ErrorUnknown
	}
	return gpu.Success
}

var formats = map[gpu.Format]vk.Format{
	gpu.FormatUndefined:          vk.FormatUndefined,
	gpu.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	gpu.FormatB8G8R8A8Srgb:       vk.FormatB8g8r8a8Srgb,
	gpu.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	gpu.FormatR8G8B8A8Srgb:       vk.FormatR8g8b8a8Srgb,
	gpu.FormatA2B10G10R10Unorm:   vk.FormatA2b10g10r10UnormPack32,
	gpu.FormatR16G16B16A16Sfloat: vk.FormatR16g16b16a16Sfloat,
}

func toVkFormat(f gpu.Format) vk.Format {
	return formats[f]
}

// fromVkFormat reports formats the render core does not know as Undefined,
// which no selection policy accepts.
func fromVkFormat(f vk.Format) gpu.Format {
	for g, v := range formats {
		if v == f {
			return g
		}
	}
	return gpu.FormatUndefined
}

func toVkColorSpace(c gpu.ColorSpace) vk.ColorSpace {
	return vk.ColorSpaceSrgbNonlinear
}

func fromVkColorSpace(c vk.ColorSpace) gpu.ColorSpace {
	if c == vk.ColorSpaceSrgbNonlinear {
		return gpu.ColorSpaceSrgbNonlinear
	}
	return gpu.ColorSpaceOther
}

var presentModes = map[gpu.PresentMode]vk.PresentMode{
	gpu.PresentModeImmediate:   vk.PresentModeImmediate,
	gpu.PresentModeMailbox:     vk.PresentModeMailbox,
	gpu.PresentModeFifo:        vk.PresentModeFifo,
	gpu.PresentModeFifoRelaxed: vk.PresentModeFifoRelaxed,
}

func toVkPresentMode(m gpu.PresentMode) vk.PresentMode {
	if v, ok := presentModes[m]; ok {
		return v
	}
	return vk.PresentModeFifo
}

// fromVkPresentModes drops modes without a gpu equivalent.
func fromVkPresentModes(modes []vk.PresentMode) []gpu.PresentMode {
	out := make([]gpu.PresentMode, 0, len(modes))
	for _, m := range modes {
		for g, v := range presentModes {
			if v == m {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

func toVkSharingMode(m gpu.SharingMode) vk.SharingMode {
	if m == gpu.SharingModeConcurrent {
		return vk.SharingModeConcurrent
	}
	return vk.SharingModeExclusive
}

var imageLayouts = map[gpu.ImageLayout]vk.ImageLayout{
	gpu.ImageLayoutUndefined:       vk.ImageLayoutUndefined,
	gpu.ImageLayoutColorAttachment: vk.ImageLayoutColorAttachmentOptimal,
	gpu.ImageLayoutTransferDst:     vk.ImageLayoutTransferDstOptimal,
	gpu.ImageLayoutPresentSrc:      vk.ImageLayoutPresentSrc,
}

func toVkImageLayout(l gpu.ImageLayout) vk.ImageLayout {
	return imageLayouts[l]
}

type bitPair[G, V ~uint32] struct {
	g G
	v V
}

func mapBits[G, V ~uint32](flags G, table []bitPair[G, V]) V {
	var out V
	for _, p := range table {
		if flags&p.g != 0 {
			out |= p.v
		}
	}
	return out
}

func unmapBits[G, V ~uint32](flags V, table []bitPair[G, V]) G {
	var out G
	for _, p := range table {
		if flags&p.v != 0 {
			out |= p.g
		}
	}
	return out
}

var imageUsageBits = []bitPair[gpu.ImageUsageFlags, vk.ImageUsageFlags]{
	{gpu.ImageUsageTransferSrc, vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)},
	{gpu.ImageUsageTransferDst, vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)},
	{gpu.ImageUsageSampled, vk.ImageUsageFlags(vk.ImageUsageSampledBit)},
	{gpu.ImageUsageStorage, vk.ImageUsageFlags(vk.ImageUsageStorageBit)},
	{gpu.ImageUsageColorAttachment, vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)},
}

var pipelineStageBits = []bitPair[gpu.PipelineStageFlags, vk.PipelineStageFlags]{
	{gpu.PipelineStageTopOfPipe, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)},
	{gpu.PipelineStageVertexShader, vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)},
	{gpu.PipelineStageFragmentShader, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)},
	{gpu.PipelineStageColorAttachmentOutput, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	{gpu.PipelineStageTransfer, vk.PipelineStageFlags(vk.PipelineStageTransferBit)},
	{gpu.PipelineStageBottomOfPipe, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)},
	{gpu.PipelineStageAllCommands, vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)},
}

var accessBits = []bitPair[gpu.AccessFlags, vk.AccessFlags]{
	{gpu.AccessColorAttachmentWrite, vk.AccessFlags(vk.AccessColorAttachmentWriteBit)},
	{gpu.AccessTransferWrite, vk.AccessFlags(vk.AccessTransferWriteBit)},
	{gpu.AccessMemoryRead, vk.AccessFlags(vk.AccessMemoryReadBit)},
}

var memoryPropertyBits = []bitPair[gpu.MemoryPropertyFlags, vk.MemoryPropertyFlags]{
	{gpu.MemoryPropertyDeviceLocal, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)},
	{gpu.MemoryPropertyHostVisible, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)},
	{gpu.MemoryPropertyHostCoherent, vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)},
	{gpu.MemoryPropertyHostCached, vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit)},
	{gpu.MemoryPropertyLazilyAllocated, vk.MemoryPropertyFlags(vk.MemoryPropertyLazilyAllocatedBit)},
}

var bufferUsageBits = []bitPair[gpu.BufferUsageFlags, vk.BufferUsageFlags]{
	{gpu.BufferUsageTransferSrc, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)},
	{gpu.BufferUsageTransferDst, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)},
	{gpu.BufferUsageUniform, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)},
	{gpu.BufferUsageStorage, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)},
	{gpu.BufferUsageIndex, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)},
	{gpu.BufferUsageVertex, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)},
}

func fromVkExtent(e vk.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}

func toVkExtent(e gpu.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

// fromVkSurfaceCapabilities expects caps to be dereferenced already.
func fromVkSurfaceCapabilities(caps vk.SurfaceCapabilities) gpu.SurfaceCapabilities {
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return gpu.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  fromVkExtent(caps.CurrentExtent),
		MinImageExtent: fromVkExtent(caps.MinImageExtent),
		MaxImageExtent: fromVkExtent(caps.MaxImageExtent),
	}
}

func fromVkMemoryProperties(props vk.PhysicalDeviceMemoryProperties) gpu.MemoryProperties {
	n := props.MemoryTypeCount
	if n > gpu.MaxMemoryTypes {
		n = gpu.MaxMemoryTypes
	}
	out := gpu.MemoryProperties{Types: make([]gpu.MemoryType, n)}
	for i := uint32(0); i < n; i++ {
		t := props.MemoryTypes[i]
		t.Deref()
		out.Types[i] = gpu.MemoryType{
			PropertyFlags: unmapBits(t.PropertyFlags, memoryPropertyBits),
			HeapIndex:     t.HeapIndex,
		}
	}
	return out
}

// safeStrings NUL-terminates names for the driver.
func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		if len(s) == 0 || s[len(s)-1] != 0 {
			s += "\x00"
		}
		out[i] = s
	}
	return out
}

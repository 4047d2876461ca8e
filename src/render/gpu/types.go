// Package gpu defines the backend-neutral device contract consumed by the
// render core. Handles are opaque integers owned by the backend that issued
// them; the zero value of every handle type is the null handle.
package gpu

type (
	Surface       uint64
	Swapchain     uint64
	Image         uint64
	ImageView     uint64
	Semaphore     uint64
	Fence         uint64
	CommandPool   uint64
	CommandBuffer uint64
	Queue         uint64
	Buffer        uint64
	DeviceMemory  uint64
)

// QueueFamily pairs a queue family index with the queue retrieved from it.
type QueueFamily struct {
	Index uint32
	Queue Queue
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero, as for a minimised window.
func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// UndefinedExtent is reported as the current surface extent when the
// swapchain extent determines the surface size.
const UndefinedExtent = ^uint32(0)

// NoTimeout makes a wait block until the condition is met.
const NoTimeout = ^uint64(0)

type Format uint32

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatA2B10G10R10Unorm
	FormatR16G16B16A16Sfloat
)

var formatNames = [...]string{
	FormatUndefined:          "Undefined",
	FormatB8G8R8A8Unorm:      "B8G8R8A8Unorm",
	FormatB8G8R8A8Srgb:       "B8G8R8A8Srgb",
	FormatR8G8B8A8Unorm:      "R8G8B8A8Unorm",
	FormatR8G8B8A8Srgb:       "R8G8B8A8Srgb",
	FormatA2B10G10R10Unorm:   "A2B10G10R10Unorm",
	FormatR16G16B16A16Sfloat: "R16G16B16A16Sfloat",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "Format(?)"
}

type ColorSpace uint32

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceExtendedSrgbLinear
	ColorSpaceHdr10St2084
	ColorSpaceOther
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode uint32

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFifo:
		return "Fifo"
	case PresentModeFifoRelaxed:
		return "FifoRelaxed"
	}
	return "PresentMode(?)"
}

type SharingMode uint32

const (
	SharingModeExclusive SharingMode = iota
	SharingModeConcurrent
)

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc ImageUsageFlags = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageStorage
	ImageUsageColorAttachment
)

type ImageLayout uint32

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutColorAttachment
	ImageLayoutTransferDst
	ImageLayoutPresentSrc
)

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe PipelineStageFlags = 1 << iota
	PipelineStageVertexShader
	PipelineStageFragmentShader
	PipelineStageColorAttachmentOutput
	PipelineStageTransfer
	PipelineStageBottomOfPipe
	PipelineStageAllCommands
)

type AccessFlags uint32

const (
	AccessColorAttachmentWrite AccessFlags = 1 << iota
	AccessTransferWrite
	AccessMemoryRead
)

// SurfaceCapabilities mirrors what the presentation engine reports for
// a surface at a given moment.
type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32 // 0 means no limit
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type SwapchainCreateInfo struct {
	Surface            Surface
	MinImageCount      uint32
	Format             Format
	ColorSpace         ColorSpace
	Extent             Extent2D
	Usage              ImageUsageFlags
	SharingMode        SharingMode
	QueueFamilyIndices []uint32
	PresentMode        PresentMode
	OldSwapchain       Swapchain
}

type ImageViewCreateInfo struct {
	Image  Image
	Format Format
}

// ImageBarrier is a layout transition of a whole single-mip colour image.
type ImageBarrier struct {
	Image     Image
	SrcStage  PipelineStageFlags
	DstStage  PipelineStageFlags
	SrcAccess AccessFlags
	DstAccess AccessFlags
	OldLayout ImageLayout
	NewLayout ImageLayout
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStageFlags
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc BufferUsageFlags = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndex
	BufferUsageVertex
)

package render

import (
	"github.com/mxplusb/epsilon/src/render/gpu"
)

// Context is what content sees of the frame being recorded.
type Context interface {
	Device() gpu.Device
	// CommandBuffer is the current slot's command buffer, already reset.
	CommandBuffer() gpu.CommandBuffer
	Platform() Platform
	SwapchainDimensions() *SwapchainDimensions
	// SwapchainImage returns the image and view at an acquired image index.
	SwapchainImage(imageIndex uint32) (gpu.Image, gpu.ImageView)
	SlotIndex() int
	FrameIndex() int
	CreateBuffer(size uint64, props gpu.MemoryPropertyFlags, usage gpu.BufferUsageFlags) (Buffer, error)
}

// Platform is the window side of the surface.
type Platform interface {
	// FramebufferSize is the drawable size in pixels.
	FramebufferSize() (width, height int)
}

// DeviceContext holds the capabilities borrowed from device bootstrap.
type DeviceContext struct {
	Device   gpu.Device
	Graphics gpu.QueueFamily
	Present  gpu.QueueFamily
	Compute  gpu.QueueFamily
}

// SwapchainDimensions describes the size and format of the swapchain.
type SwapchainDimensions struct {
	Width  uint32
	Height uint32
	Format gpu.Format
}

type FramePreparation struct {
	AcquireSuccessful bool
	ImageIndex        uint32
}

// FrameSubmission is content's decision for the frame. ImageIndex must be
// the one from the FramePreparation it answers.
type FrameSubmission struct {
	DoSubmit   bool
	ImageIndex uint32
}

// Content records the commands of a frame into ctx.CommandBuffer. Record is
// called once per cycle, and only when the image was acquired.
type Content interface {
	Record(ctx Context, prep FramePreparation) (FrameSubmission, error)
}

type ContentFunc func(ctx Context, prep FramePreparation) (FrameSubmission, error)

func (f ContentFunc) Record(ctx Context, prep FramePreparation) (FrameSubmission, error) {
	return f(ctx, prep)
}

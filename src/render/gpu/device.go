package gpu

// Device is a logical device as seen by the render core. Methods mirror the
// underlying graphics API: operations that can fail report a Result, and
// slices filled by the driver are returned already sized to the count the
// driver reported.
//
// A Device is not safe for concurrent use unless the backend says so.
type Device interface {
	// WaitIdle blocks until every queue of the device is idle.
	WaitIdle() Result

	SurfaceCapabilities(s Surface) (SurfaceCapabilities, Result)
	SurfaceFormats(s Surface) ([]SurfaceFormat, Result)
	SurfacePresentModes(s Surface) ([]PresentMode, Result)

	CreateSwapchain(info *SwapchainCreateInfo) (Swapchain, Result)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, Result)
	CreateImageView(info *ImageViewCreateInfo) (ImageView, Result)
	DestroyImageView(v ImageView)

	CreateSemaphore() (Semaphore, Result)
	DestroySemaphore(s Semaphore)
	CreateFence(signaled bool) (Fence, Result)
	DestroyFence(f Fence)
	// WaitForFence returns Timeout if the fence is still unsignaled after
	// timeout nanoseconds. NoTimeout waits forever.
	WaitForFence(f Fence, timeout uint64) Result
	ResetFence(f Fence) Result

	CreateCommandPool(queueFamily uint32) (CommandPool, Result)
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffers(p CommandPool, count int) ([]CommandBuffer, Result)
	FreeCommandBuffers(p CommandPool, bufs []CommandBuffer)
	ResetCommandBuffer(cb CommandBuffer) Result
	BeginCommandBuffer(cb CommandBuffer) Result
	EndCommandBuffer(cb CommandBuffer) Result
	CmdImageBarrier(cb CommandBuffer, b ImageBarrier)
	CmdClearColorImage(cb CommandBuffer, img Image, layout ImageLayout, color [4]float32)

	// AcquireNextImage signals sem once the returned image may be written.
	AcquireNextImage(sc Swapchain, timeout uint64, sem Semaphore) (uint32, Result)
	QueueSubmit(q Queue, info *SubmitInfo, fence Fence) Result
	QueuePresent(q Queue, info *PresentInfo) Result

	MemoryProperties() MemoryProperties
	CreateBuffer(size uint64, usage BufferUsageFlags) (Buffer, Result)
	DestroyBuffer(b Buffer)
	BufferMemoryRequirements(b Buffer) MemoryRequirements
	AllocateMemory(size uint64, typeIndex uint32) (DeviceMemory, Result)
	FreeMemory(m DeviceMemory)
	BindBufferMemory(b Buffer, m DeviceMemory, offset uint64) Result
}

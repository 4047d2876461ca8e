package vulkan

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/mxplusb/epsilon/src/render/gpu"
)

// Device implements gpu.Device on a Vulkan logical device. It is not safe
// for concurrent use.
type Device struct {
	physical vk.PhysicalDevice
	device   vk.Device
	memory   gpu.MemoryProperties

	surfaces   registry[vk.Surface]
	swapchains registry[vk.Swapchain]
	images     registry[vk.Image]
	views      registry[vk.ImageView]
	semaphores registry[vk.Semaphore]
	fences     registry[vk.Fence]
	pools      registry[vk.CommandPool]
	cmds       registry[vk.CommandBuffer]
	queues     registry[vk.Queue]
	buffers    registry[vk.Buffer]
	memories   registry[vk.DeviceMemory]

	// swapchain images are owned by their swapchain and registered once
	swapchainImages map[gpu.Swapchain][]gpu.Image
}

var _ gpu.Device = (*Device)(nil)

func newDevice(physical vk.PhysicalDevice, device vk.Device) *Device {
	d := &Device{
		physical:        physical,
		device:          device,
		surfaces:        newRegistry[vk.Surface](),
		swapchains:      newRegistry[vk.Swapchain](),
		images:          newRegistry[vk.Image](),
		views:           newRegistry[vk.ImageView](),
		semaphores:      newRegistry[vk.Semaphore](),
		fences:          newRegistry[vk.Fence](),
		pools:           newRegistry[vk.CommandPool](),
		cmds:            newRegistry[vk.CommandBuffer](),
		queues:          newRegistry[vk.Queue](),
		buffers:         newRegistry[vk.Buffer](),
		memories:        newRegistry[vk.DeviceMemory](),
		swapchainImages: map[gpu.Swapchain][]gpu.Image{},
	}
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physical, &props)
	props.Deref()
	d.memory = fromVkMemoryProperties(props)
	return d
}

func (d *Device) WaitIdle() gpu.Result {
	return result(vk.DeviceWaitIdle(d.device))
}

func (d *Device) SurfaceCapabilities(s gpu.Surface) (gpu.SurfaceCapabilities, gpu.Result) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, d.surfaces.get(uint64(s)), &caps)
	if ret != vk.Success {
		return gpu.SurfaceCapabilities{}, result(ret)
	}
	caps.Deref()
	return fromVkSurfaceCapabilities(caps), gpu.Success
}

func (d *Device) SurfaceFormats(s gpu.Surface) ([]gpu.SurfaceFormat, gpu.Result) {
	surface := d.surfaces.get(uint64(s))
	var count uint32
	if ret := vk.GetPhysicalDeviceSurfaceFormats(d.physical, surface, &count, nil); ret != vk.Success {
		return nil, result(ret)
	}
	list := make([]vk.SurfaceFormat, count)
	if ret := vk.GetPhysicalDeviceSurfaceFormats(d.physical, surface, &count, list); ret != vk.Success && ret != vk.Incomplete {
		return nil, result(ret)
	}
	out := make([]gpu.SurfaceFormat, 0, count)
	for _, f := range list[:count] {
		f.Deref()
		out = append(out, gpu.SurfaceFormat{
			Format:     fromVkFormat(f.Format),
			ColorSpace: fromVkColorSpace(f.ColorSpace),
		})
	}
	return out, gpu.Success
}

func (d *Device) SurfacePresentModes(s gpu.Surface) ([]gpu.PresentMode, gpu.Result) {
	surface := d.surfaces.get(uint64(s))
	var count uint32
	if ret := vk.GetPhysicalDeviceSurfacePresentModes(d.physical, surface, &count, nil); ret != vk.Success {
		return nil, result(ret)
	}
	list := make([]vk.PresentMode, count)
	if ret := vk.GetPhysicalDeviceSurfacePresentModes(d.physical, surface, &count, list); ret != vk.Success && ret != vk.Incomplete {
		return nil, result(ret)
	}
	return fromVkPresentModes(list[:count]), gpu.Success
}

func (d *Device) CreateSwapchain(info *gpu.SwapchainCreateInfo) (gpu.Swapchain, gpu.Result) {
	surface := d.surfaces.get(uint64(info.Surface))
	var caps vk.SurfaceCapabilities
	if ret := vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, surface, &caps); ret != vk.Success {
		return 0, result(ret)
	}
	caps.Deref()

	create := vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               surface,
		MinImageCount:         info.MinImageCount,
		ImageFormat:           toVkFormat(info.Format),
		ImageColorSpace:       toVkColorSpace(info.ColorSpace),
		ImageExtent:           toVkExtent(info.Extent),
		ImageArrayLayers:      1,
		ImageUsage:            mapBits(info.Usage, imageUsageBits),
		ImageSharingMode:      toVkSharingMode(info.SharingMode),
		QueueFamilyIndexCount: uint32(len(info.QueueFamilyIndices)),
		PQueueFamilyIndices:   info.QueueFamilyIndices,
		PreTransform:          caps.CurrentTransform,
		CompositeAlpha:        vk.CompositeAlphaOpaqueBit,
		PresentMode:           toVkPresentMode(info.PresentMode),
		Clipped:               vk.True,
		OldSwapchain:          d.swapchains.get(uint64(info.OldSwapchain)),
	}
	var sc vk.Swapchain
	if ret := vk.CreateSwapchain(d.device, &create, nil, &sc); ret != vk.Success {
		return 0, result(ret)
	}
	return gpu.Swapchain(d.swapchains.add(sc)), gpu.Success
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	for _, img := range d.swapchainImages[sc] {
		d.images.remove(uint64(img))
	}
	delete(d.swapchainImages, sc)
	if h, ok := d.swapchains.remove(uint64(sc)); ok {
		vk.DestroySwapchain(d.device, h, nil)
	}
}

func (d *Device) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, gpu.Result) {
	if imgs, ok := d.swapchainImages[sc]; ok {
		return append([]gpu.Image(nil), imgs...), gpu.Success
	}
	h := d.swapchains.get(uint64(sc))
	var count uint32
	if ret := vk.GetSwapchainImages(d.device, h, &count, nil); ret != vk.Success {
		return nil, result(ret)
	}
	list := make([]vk.Image, count)
	if ret := vk.GetSwapchainImages(d.device, h, &count, list); ret != vk.Success && ret != vk.Incomplete {
		return nil, result(ret)
	}
	imgs := make([]gpu.Image, 0, count)
	for _, img := range list[:count] {
		imgs = append(imgs, gpu.Image(d.images.add(img)))
	}
	d.swapchainImages[sc] = imgs
	return append([]gpu.Image(nil), imgs...), gpu.Success
}

func (d *Device) CreateImageView(info *gpu.ImageViewCreateInfo) (gpu.ImageView, gpu.Result) {
	create := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    d.images.get(uint64(info.Image)),
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorRange,
	}
	var v vk.ImageView
	if ret := vk.CreateImageView(d.device, &create, nil, &v); ret != vk.Success {
		return 0, result(ret)
	}
	return gpu.ImageView(d.views.add(v)), gpu.Success
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	if h, ok := d.views.remove(uint64(v)); ok {
		vk.DestroyImageView(d.device, h, nil)
	}
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, gpu.Result) {
	var s vk.Semaphore
	ret := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &s)
	if ret != vk.Success {
		return 0, result(ret)
	}
	return gpu.Semaphore(d.semaphores.add(s)), gpu.Success
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	if h, ok := d.semaphores.remove(uint64(s)); ok {
		vk.DestroySemaphore(d.device, h, nil)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, gpu.Result) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	if ret := vk.CreateFence(d.device, &info, nil, &f); ret != vk.Success {
		return 0, result(ret)
	}
	return gpu.Fence(d.fences.add(f)), gpu.Success
}

func (d *Device) DestroyFence(f gpu.Fence) {
	if h, ok := d.fences.remove(uint64(f)); ok {
		vk.DestroyFence(d.device, h, nil)
	}
}

func (d *Device) WaitForFence(f gpu.Fence, timeout uint64) gpu.Result {
	return result(vk.WaitForFences(d.device, 1, []vk.Fence{d.fences.get(uint64(f))}, vk.True, timeout))
}

func (d *Device) ResetFence(f gpu.Fence) gpu.Result {
	return result(vk.ResetFences(d.device, 1, []vk.Fence{d.fences.get(uint64(f))}))
}

func (d *Device) CreateCommandPool(queueFamily uint32) (gpu.CommandPool, gpu.Result) {
	var p vk.CommandPool
	ret := vk.CreateCommandPool(d.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamily,
	}, nil, &p)
	if ret != vk.Success {
		return 0, result(ret)
	}
	return gpu.CommandPool(d.pools.add(p)), gpu.Success
}

func (d *Device) DestroyCommandPool(p gpu.CommandPool) {
	if h, ok := d.pools.remove(uint64(p)); ok {
		vk.DestroyCommandPool(d.device, h, nil)
	}
}

func (d *Device) AllocateCommandBuffers(p gpu.CommandPool, count int) ([]gpu.CommandBuffer, gpu.Result) {
	list := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pools.get(uint64(p)),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, list)
	if ret != vk.Success {
		return nil, result(ret)
	}
	out := make([]gpu.CommandBuffer, count)
	for i, cb := range list {
		out[i] = gpu.CommandBuffer(d.cmds.add(cb))
	}
	return out, gpu.Success
}

func (d *Device) FreeCommandBuffers(p gpu.CommandPool, bufs []gpu.CommandBuffer) {
	list := make([]vk.CommandBuffer, 0, len(bufs))
	for _, cb := range bufs {
		if h, ok := d.cmds.remove(uint64(cb)); ok {
			list = append(list, h)
		}
	}
	if len(list) > 0 {
		vk.FreeCommandBuffers(d.device, d.pools.get(uint64(p)), uint32(len(list)), list)
	}
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) gpu.Result {
	return result(vk.ResetCommandBuffer(d.cmds.get(uint64(cb)), 0))
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer) gpu.Result {
	return result(vk.BeginCommandBuffer(d.cmds.get(uint64(cb)), &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) gpu.Result {
	return result(vk.EndCommandBuffer(d.cmds.get(uint64(cb))))
}

var colorRange = vk.ImageSubresourceRange{
	AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

func (d *Device) CmdImageBarrier(cb gpu.CommandBuffer, b gpu.ImageBarrier) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       mapBits(b.SrcAccess, accessBits),
		DstAccessMask:       mapBits(b.DstAccess, accessBits),
		OldLayout:           toVkImageLayout(b.OldLayout),
		NewLayout:           toVkImageLayout(b.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               d.images.get(uint64(b.Image)),
		SubresourceRange:    colorRange,
	}
	vk.CmdPipelineBarrier(
		d.cmds.get(uint64(cb)),
		mapBits(b.SrcStage, pipelineStageBits), mapBits(b.DstStage, pipelineStageBits),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier},
	)
}

func (d *Device) CmdClearColorImage(cb gpu.CommandBuffer, img gpu.Image, layout gpu.ImageLayout, color [4]float32) {
	var clear vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&clear)) = color
	vk.CmdClearColorImage(d.cmds.get(uint64(cb)), d.images.get(uint64(img)), toVkImageLayout(layout),
		&clear, 1, []vk.ImageSubresourceRange{colorRange})
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, timeout uint64, sem gpu.Semaphore) (uint32, gpu.Result) {
	var index uint32
	ret := vk.AcquireNextImage(d.device, d.swapchains.get(uint64(sc)), timeout,
		d.semaphores.get(uint64(sem)), vk.Fence(vk.NullHandle), &index)
	return index, result(ret)
}

func (d *Device) QueueSubmit(q gpu.Queue, info *gpu.SubmitInfo, f gpu.Fence) gpu.Result {
	waits := make([]vk.Semaphore, len(info.WaitSemaphores))
	for i, s := range info.WaitSemaphores {
		waits[i] = d.semaphores.get(uint64(s))
	}
	stages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = mapBits(s, pipelineStageBits)
	}
	cmds := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		cmds[i] = d.cmds.get(uint64(cb))
	}
	signals := make([]vk.Semaphore, len(info.SignalSemaphores))
	for i, s := range info.SignalSemaphores {
		signals[i] = d.semaphores.get(uint64(s))
	}
	return result(vk.QueueSubmit(d.queues.get(uint64(q)), 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}}, d.fences.get(uint64(f))))
}

func (d *Device) QueuePresent(q gpu.Queue, info *gpu.PresentInfo) gpu.Result {
	waits := make([]vk.Semaphore, len(info.WaitSemaphores))
	for i, s := range info.WaitSemaphores {
		waits[i] = d.semaphores.get(uint64(s))
	}
	return result(vk.QueuePresent(d.queues.get(uint64(q)), &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{d.swapchains.get(uint64(info.Swapchain))},
		PImageIndices:      []uint32{info.ImageIndex},
	}))
}

func (d *Device) MemoryProperties() gpu.MemoryProperties {
	return d.memory
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsageFlags) (gpu.Buffer, gpu.Result) {
	var b vk.Buffer
	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       mapBits(usage, bufferUsageBits),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &b)
	if ret != vk.Success {
		return 0, result(ret)
	}
	return gpu.Buffer(d.buffers.add(b)), gpu.Success
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if h, ok := d.buffers.remove(uint64(b)); ok {
		vk.DestroyBuffer(d.device, h, nil)
	}
}

func (d *Device) BufferMemoryRequirements(b gpu.Buffer) gpu.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, d.buffers.get(uint64(b)), &reqs)
	reqs.Deref()
	return gpu.MemoryRequirements{
		Size:           uint64(reqs.Size),
		Alignment:      uint64(reqs.Alignment),
		MemoryTypeBits: reqs.MemoryTypeBits,
	}
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (gpu.DeviceMemory, gpu.Result) {
	var m vk.DeviceMemory
	ret := vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &m)
	if ret != vk.Success {
		return 0, result(ret)
	}
	return gpu.DeviceMemory(d.memories.add(m)), gpu.Success
}

func (d *Device) FreeMemory(m gpu.DeviceMemory) {
	if h, ok := d.memories.remove(uint64(m)); ok {
		vk.FreeMemory(d.device, h, nil)
	}
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory, offset uint64) gpu.Result {
	return result(vk.BindBufferMemory(d.device, d.buffers.get(uint64(b)), d.memories.get(uint64(m)), vk.DeviceSize(offset)))
}

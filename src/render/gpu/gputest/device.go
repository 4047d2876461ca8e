// Package gputest provides a scripted gpu.Device for tests that need no GPU.
//
// The device keeps the synchronization state a real driver would enforce
// (fence signal state, semaphore signal state, command buffer recording
// state) and records every call in order. Misuse that a validation layer
// would flag is appended to Violations instead of failing, so tests can
// assert on it.
package gputest

import (
	"fmt"

	"github.com/mxplusb/epsilon/src/render/gpu"
)

type Op string

const (
	OpWaitIdle            Op = "WaitIdle"
	OpSurfaceCapabilities Op = "SurfaceCapabilities"
	OpCreateSwapchain     Op = "CreateSwapchain"
	OpDestroySwapchain    Op = "DestroySwapchain"
	OpCreateImageView     Op = "CreateImageView"
	OpDestroyImageView    Op = "DestroyImageView"
	OpCreateSemaphore     Op = "CreateSemaphore"
	OpDestroySemaphore    Op = "DestroySemaphore"
	OpCreateFence         Op = "CreateFence"
	OpDestroyFence        Op = "DestroyFence"
	OpWaitForFence        Op = "WaitForFence"
	OpResetFence          Op = "ResetFence"
	OpCreateCommandPool   Op = "CreateCommandPool"
	OpDestroyCommandPool  Op = "DestroyCommandPool"
	OpAllocateCommandBufs Op = "AllocateCommandBuffers"
	OpFreeCommandBufs     Op = "FreeCommandBuffers"
	OpResetCommandBuffer  Op = "ResetCommandBuffer"
	OpBeginCommandBuffer  Op = "BeginCommandBuffer"
	OpEndCommandBuffer    Op = "EndCommandBuffer"
	OpCmdImageBarrier     Op = "CmdImageBarrier"
	OpCmdClearColorImage  Op = "CmdClearColorImage"
	OpAcquireNextImage    Op = "AcquireNextImage"
	OpQueueSubmit         Op = "QueueSubmit"
	OpQueuePresent        Op = "QueuePresent"
	OpCreateBuffer        Op = "CreateBuffer"
	OpDestroyBuffer       Op = "DestroyBuffer"
	OpAllocateMemory      Op = "AllocateMemory"
	OpFreeMemory          Op = "FreeMemory"
	OpBindBufferMemory    Op = "BindBufferMemory"
)

// Call is one recorded device call. Handle is the primary object the call
// operated on (the fence for waits and submits, the swapchain for
// acquire/present, the image for commands).
type Call struct {
	Op       Op
	Handle   uint64
	Index    uint32
	Result   gpu.Result
	Signaled bool
	Color    [4]float32
	Barrier  gpu.ImageBarrier
	Submit   *gpu.SubmitInfo
	Present  *gpu.PresentInfo
	Create   *gpu.SwapchainCreateInfo
}

type kind int

const (
	kindSwapchain kind = iota
	kindImage
	kindImageView
	kindSemaphore
	kindFence
	kindCommandPool
	kindCommandBuffer
	kindBuffer
	kindMemory
)

type fence struct {
	signaled bool
	pending  bool
}

type view struct {
	image  gpu.Image
	format gpu.Format
}

type swapchain struct {
	info   gpu.SwapchainCreateInfo
	images []gpu.Image
	next   int
}

const (
	cmdInitial = iota
	cmdRecording
	cmdExecutable
)

type Device struct {
	Caps         gpu.SurfaceCapabilities
	Formats      []gpu.SurfaceFormat
	PresentModes []gpu.PresentMode
	Memory       gpu.MemoryProperties

	// BufferTypeBits is reported as the memory type bits of every buffer.
	BufferTypeBits uint32

	// ImageCount, when non-zero, is the number of images every new
	// swapchain gets regardless of the requested minimum.
	ImageCount uint32

	// AcquireResults and PresentResults are consumed one per call;
	// Success is used once they run out.
	AcquireResults []gpu.Result
	PresentResults []gpu.Result

	// CreateSwapchainResult, when set, fails swapchain creation.
	CreateSwapchainResult gpu.Result

	// Stall keeps submitted work from completing, so fence waits time out.
	Stall bool

	Calls      []Call
	Violations []string

	next       uint64
	live       map[uint64]kind
	fences     map[gpu.Fence]*fence
	semaphores map[gpu.Semaphore]bool
	swapchains map[gpu.Swapchain]*swapchain
	views      map[gpu.ImageView]view
	cmds       map[gpu.CommandBuffer]int
}

// New returns a device with a 800x600 surface offering sRGB and UNORM
// BGRA formats, FIFO and mailbox present modes and two memory types.
func New() *Device {
	return &Device{
		Caps: gpu.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  gpu.Extent2D{Width: 800, Height: 600},
			MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox},
		Memory: gpu.MemoryProperties{Types: []gpu.MemoryType{
			{PropertyFlags: gpu.MemoryPropertyDeviceLocal},
			{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent},
		}},
		BufferTypeBits: 0b11,
		live:           map[uint64]kind{},
		fences:         map[gpu.Fence]*fence{},
		semaphores:     map[gpu.Semaphore]bool{},
		swapchains:     map[gpu.Swapchain]*swapchain{},
		views:          map[gpu.ImageView]view{},
		cmds:           map[gpu.CommandBuffer]int{},
	}
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) alloc(k kind) uint64 {
	d.next++
	d.live[d.next] = k
	return d.next
}

func (d *Device) release(h uint64, k kind, op Op) {
	if h == 0 {
		return
	}
	if got, ok := d.live[h]; !ok || got != k {
		d.violate("%s: handle %d is not a live object of this kind", op, h)
		return
	}
	delete(d.live, h)
}

func (d *Device) violate(format string, args ...any) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) record(c Call) {
	d.Calls = append(d.Calls, c)
}

// Count returns how many calls of op were recorded.
func (d *Device) Count(op Op) int {
	n := 0
	for _, c := range d.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CallsOf returns the recorded calls of op, in order.
func (d *Device) CallsOf(op Op) []Call {
	var cs []Call
	for _, c := range d.Calls {
		if c.Op == op {
			cs = append(cs, c)
		}
	}
	return cs
}

// Live returns the number of objects created and not yet destroyed,
// swapchain images excluded.
func (d *Device) Live() int {
	n := 0
	for _, k := range d.live {
		if k != kindImage {
			n++
		}
	}
	return n
}

// Outstanding returns the number of submissions whose fence has not been
// observed by a wait yet.
func (d *Device) Outstanding(f gpu.Fence) int {
	if fs, ok := d.fences[f]; ok && fs.pending {
		return 1
	}
	return 0
}

// FenceSignaled reports the current signal state of f.
func (d *Device) FenceSignaled(f gpu.Fence) bool {
	fs, ok := d.fences[f]
	return ok && fs.signaled
}

// ViewFormat returns the format a live image view was created with.
func (d *Device) ViewFormat(v gpu.ImageView) (gpu.Format, bool) {
	vw, ok := d.views[v]
	return vw.format, ok
}

// Images returns the images of a live swapchain.
func (d *Device) Images(sc gpu.Swapchain) []gpu.Image {
	if s, ok := d.swapchains[sc]; ok {
		return s.images
	}
	return nil
}

func (d *Device) WaitIdle() gpu.Result {
	if !d.Stall {
		for _, f := range d.fences {
			if f.pending {
				f.pending = false
				f.signaled = true
			}
		}
	}
	d.record(Call{Op: OpWaitIdle})
	return gpu.Success
}

func (d *Device) SurfaceCapabilities(s gpu.Surface) (gpu.SurfaceCapabilities, gpu.Result) {
	d.record(Call{Op: OpSurfaceCapabilities, Handle: uint64(s)})
	return d.Caps, gpu.Success
}

func (d *Device) SurfaceFormats(s gpu.Surface) ([]gpu.SurfaceFormat, gpu.Result) {
	return append([]gpu.SurfaceFormat(nil), d.Formats...), gpu.Success
}

func (d *Device) SurfacePresentModes(s gpu.Surface) ([]gpu.PresentMode, gpu.Result) {
	return append([]gpu.PresentMode(nil), d.PresentModes...), gpu.Success
}

func (d *Device) CreateSwapchain(info *gpu.SwapchainCreateInfo) (gpu.Swapchain, gpu.Result) {
	cp := *info
	if d.CreateSwapchainResult.IsError() {
		d.record(Call{Op: OpCreateSwapchain, Result: d.CreateSwapchainResult, Create: &cp})
		return 0, d.CreateSwapchainResult
	}
	n := info.MinImageCount
	if d.ImageCount != 0 {
		n = d.ImageCount
	}
	if info.MinImageCount < d.Caps.MinImageCount ||
		(d.Caps.MaxImageCount != 0 && info.MinImageCount > d.Caps.MaxImageCount) {
		d.violate("CreateSwapchain: image count %d outside [%d, %d]",
			info.MinImageCount, d.Caps.MinImageCount, d.Caps.MaxImageCount)
	}
	sc := &swapchain{info: cp}
	for i := uint32(0); i < n; i++ {
		sc.images = append(sc.images, gpu.Image(d.alloc(kindImage)))
	}
	h := gpu.Swapchain(d.alloc(kindSwapchain))
	d.swapchains[h] = sc
	d.record(Call{Op: OpCreateSwapchain, Handle: uint64(h), Index: n, Create: &cp})
	return h, gpu.Success
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	if s, ok := d.swapchains[sc]; ok {
		for _, img := range s.images {
			delete(d.live, uint64(img))
		}
		for v, vw := range d.views {
			for _, img := range s.images {
				if vw.image == img {
					d.violate("DestroySwapchain: view %d of image %d still alive", v, img)
				}
			}
		}
		delete(d.swapchains, sc)
	}
	d.release(uint64(sc), kindSwapchain, OpDestroySwapchain)
	d.record(Call{Op: OpDestroySwapchain, Handle: uint64(sc)})
}

func (d *Device) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, gpu.Result) {
	s, ok := d.swapchains[sc]
	if !ok {
		d.violate("SwapchainImages: unknown swapchain %d", sc)
		return nil, gpu.ErrorUnknown
	}
	return append([]gpu.Image(nil), s.images...), gpu.Success
}

func (d *Device) CreateImageView(info *gpu.ImageViewCreateInfo) (gpu.ImageView, gpu.Result) {
	if k, ok := d.live[uint64(info.Image)]; !ok || k != kindImage {
		d.violate("CreateImageView: image %d is not live", info.Image)
	}
	v := gpu.ImageView(d.alloc(kindImageView))
	d.views[v] = view{image: info.Image, format: info.Format}
	d.record(Call{Op: OpCreateImageView, Handle: uint64(v)})
	return v, gpu.Success
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	delete(d.views, v)
	d.release(uint64(v), kindImageView, OpDestroyImageView)
	d.record(Call{Op: OpDestroyImageView, Handle: uint64(v)})
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, gpu.Result) {
	s := gpu.Semaphore(d.alloc(kindSemaphore))
	d.semaphores[s] = false
	d.record(Call{Op: OpCreateSemaphore, Handle: uint64(s)})
	return s, gpu.Success
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	delete(d.semaphores, s)
	d.release(uint64(s), kindSemaphore, OpDestroySemaphore)
	d.record(Call{Op: OpDestroySemaphore, Handle: uint64(s)})
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, gpu.Result) {
	f := gpu.Fence(d.alloc(kindFence))
	d.fences[f] = &fence{signaled: signaled}
	d.record(Call{Op: OpCreateFence, Handle: uint64(f), Signaled: signaled})
	return f, gpu.Success
}

func (d *Device) DestroyFence(f gpu.Fence) {
	if fs, ok := d.fences[f]; ok && fs.pending {
		d.violate("DestroyFence: fence %d has outstanding work", f)
	}
	delete(d.fences, f)
	d.release(uint64(f), kindFence, OpDestroyFence)
	d.record(Call{Op: OpDestroyFence, Handle: uint64(f)})
}

func (d *Device) WaitForFence(f gpu.Fence, timeout uint64) gpu.Result {
	fs, ok := d.fences[f]
	if !ok {
		d.violate("WaitForFence: unknown fence %d", f)
		return gpu.ErrorUnknown
	}
	if fs.pending && !d.Stall {
		fs.pending = false
		fs.signaled = true
	}
	if !fs.signaled {
		if !fs.pending {
			d.violate("WaitForFence: fence %d is unsignaled with no work that signals it", f)
		}
		d.record(Call{Op: OpWaitForFence, Handle: uint64(f), Result: gpu.Timeout})
		return gpu.Timeout
	}
	d.record(Call{Op: OpWaitForFence, Handle: uint64(f), Signaled: true})
	return gpu.Success
}

func (d *Device) ResetFence(f gpu.Fence) gpu.Result {
	fs, ok := d.fences[f]
	if !ok {
		d.violate("ResetFence: unknown fence %d", f)
		return gpu.ErrorUnknown
	}
	if fs.pending {
		d.violate("ResetFence: fence %d has outstanding work", f)
	}
	fs.signaled = false
	d.record(Call{Op: OpResetFence, Handle: uint64(f)})
	return gpu.Success
}

func (d *Device) CreateCommandPool(queueFamily uint32) (gpu.CommandPool, gpu.Result) {
	p := gpu.CommandPool(d.alloc(kindCommandPool))
	d.record(Call{Op: OpCreateCommandPool, Handle: uint64(p), Index: queueFamily})
	return p, gpu.Success
}

func (d *Device) DestroyCommandPool(p gpu.CommandPool) {
	d.release(uint64(p), kindCommandPool, OpDestroyCommandPool)
	d.record(Call{Op: OpDestroyCommandPool, Handle: uint64(p)})
}

func (d *Device) AllocateCommandBuffers(p gpu.CommandPool, count int) ([]gpu.CommandBuffer, gpu.Result) {
	bufs := make([]gpu.CommandBuffer, count)
	for i := range bufs {
		bufs[i] = gpu.CommandBuffer(d.alloc(kindCommandBuffer))
		d.cmds[bufs[i]] = cmdInitial
	}
	d.record(Call{Op: OpAllocateCommandBufs, Handle: uint64(p), Index: uint32(count)})
	return bufs, gpu.Success
}

func (d *Device) FreeCommandBuffers(p gpu.CommandPool, bufs []gpu.CommandBuffer) {
	for _, cb := range bufs {
		delete(d.cmds, cb)
		d.release(uint64(cb), kindCommandBuffer, OpFreeCommandBufs)
	}
	d.record(Call{Op: OpFreeCommandBufs, Handle: uint64(p), Index: uint32(len(bufs))})
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) gpu.Result {
	d.cmds[cb] = cmdInitial
	d.record(Call{Op: OpResetCommandBuffer, Handle: uint64(cb)})
	return gpu.Success
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer) gpu.Result {
	if d.cmds[cb] == cmdRecording {
		d.violate("BeginCommandBuffer: %d already recording", cb)
	}
	d.cmds[cb] = cmdRecording
	d.record(Call{Op: OpBeginCommandBuffer, Handle: uint64(cb)})
	return gpu.Success
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) gpu.Result {
	if d.cmds[cb] != cmdRecording {
		d.violate("EndCommandBuffer: %d not recording", cb)
	}
	d.cmds[cb] = cmdExecutable
	d.record(Call{Op: OpEndCommandBuffer, Handle: uint64(cb)})
	return gpu.Success
}

func (d *Device) CmdImageBarrier(cb gpu.CommandBuffer, b gpu.ImageBarrier) {
	if d.cmds[cb] != cmdRecording {
		d.violate("CmdImageBarrier: %d not recording", cb)
	}
	d.record(Call{Op: OpCmdImageBarrier, Handle: uint64(b.Image), Barrier: b})
}

func (d *Device) CmdClearColorImage(cb gpu.CommandBuffer, img gpu.Image, layout gpu.ImageLayout, color [4]float32) {
	if d.cmds[cb] != cmdRecording {
		d.violate("CmdClearColorImage: %d not recording", cb)
	}
	if layout != gpu.ImageLayoutTransferDst {
		d.violate("CmdClearColorImage: image %d in layout %d", img, layout)
	}
	d.record(Call{Op: OpCmdClearColorImage, Handle: uint64(img), Color: color})
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, timeout uint64, sem gpu.Semaphore) (uint32, gpu.Result) {
	s, ok := d.swapchains[sc]
	if !ok {
		d.violate("AcquireNextImage: unknown swapchain %d", sc)
		return 0, gpu.ErrorUnknown
	}
	res := gpu.Success
	if len(d.AcquireResults) > 0 {
		res, d.AcquireResults = d.AcquireResults[0], d.AcquireResults[1:]
	}
	idx := uint32(s.next % len(s.images))
	if !res.IsError() {
		if d.semaphores[sem] {
			d.violate("AcquireNextImage: semaphore %d is already signaled", sem)
		}
		d.semaphores[sem] = true
		s.next++
	}
	d.record(Call{Op: OpAcquireNextImage, Handle: uint64(sc), Index: idx, Result: res})
	return idx, res
}

func (d *Device) QueueSubmit(q gpu.Queue, info *gpu.SubmitInfo, f gpu.Fence) gpu.Result {
	if len(info.WaitSemaphores) != len(info.WaitStages) {
		d.violate("QueueSubmit: %d wait semaphores, %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
	}
	for _, s := range info.WaitSemaphores {
		if !d.semaphores[s] {
			d.violate("QueueSubmit: waits on unsignaled semaphore %d", s)
		}
		d.semaphores[s] = false
	}
	for _, cb := range info.CommandBuffers {
		if d.cmds[cb] != cmdExecutable {
			d.violate("QueueSubmit: command buffer %d is not executable", cb)
		}
	}
	for _, s := range info.SignalSemaphores {
		d.semaphores[s] = true
	}
	if f != 0 {
		fs, ok := d.fences[f]
		switch {
		case !ok:
			d.violate("QueueSubmit: unknown fence %d", f)
		case fs.pending:
			d.violate("QueueSubmit: fence %d already has an outstanding submission", f)
		case fs.signaled:
			d.violate("QueueSubmit: fence %d is signaled", f)
		}
		if ok {
			fs.pending = true
		}
	}
	cp := *info
	d.record(Call{Op: OpQueueSubmit, Handle: uint64(f), Index: uint32(q), Submit: &cp})
	return gpu.Success
}

func (d *Device) QueuePresent(q gpu.Queue, info *gpu.PresentInfo) gpu.Result {
	for _, s := range info.WaitSemaphores {
		if !d.semaphores[s] {
			d.violate("QueuePresent: waits on unsignaled semaphore %d", s)
		}
		d.semaphores[s] = false
	}
	if _, ok := d.swapchains[info.Swapchain]; !ok {
		d.violate("QueuePresent: unknown swapchain %d", info.Swapchain)
	}
	res := gpu.Success
	if len(d.PresentResults) > 0 {
		res, d.PresentResults = d.PresentResults[0], d.PresentResults[1:]
	}
	cp := *info
	d.record(Call{Op: OpQueuePresent, Handle: uint64(info.Swapchain), Index: info.ImageIndex, Result: res, Present: &cp})
	return res
}

func (d *Device) MemoryProperties() gpu.MemoryProperties {
	return d.Memory
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsageFlags) (gpu.Buffer, gpu.Result) {
	b := gpu.Buffer(d.alloc(kindBuffer))
	d.record(Call{Op: OpCreateBuffer, Handle: uint64(b), Index: uint32(size)})
	return b, gpu.Success
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	d.release(uint64(b), kindBuffer, OpDestroyBuffer)
	d.record(Call{Op: OpDestroyBuffer, Handle: uint64(b)})
}

func (d *Device) BufferMemoryRequirements(b gpu.Buffer) gpu.MemoryRequirements {
	var size uint64
	for _, c := range d.Calls {
		if c.Op == OpCreateBuffer && c.Handle == uint64(b) {
			size = uint64(c.Index)
		}
	}
	const align = 256
	return gpu.MemoryRequirements{
		Size:           (size + align - 1) / align * align,
		Alignment:      align,
		MemoryTypeBits: d.BufferTypeBits,
	}
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (gpu.DeviceMemory, gpu.Result) {
	if int(typeIndex) >= len(d.Memory.Types) {
		d.violate("AllocateMemory: memory type %d out of range", typeIndex)
		return 0, gpu.ErrorOutOfDeviceMemory
	}
	m := gpu.DeviceMemory(d.alloc(kindMemory))
	d.record(Call{Op: OpAllocateMemory, Handle: uint64(m), Index: typeIndex})
	return m, gpu.Success
}

func (d *Device) FreeMemory(m gpu.DeviceMemory) {
	d.release(uint64(m), kindMemory, OpFreeMemory)
	d.record(Call{Op: OpFreeMemory, Handle: uint64(m)})
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory, offset uint64) gpu.Result {
	d.record(Call{Op: OpBindBufferMemory, Handle: uint64(b)})
	return gpu.Success
}

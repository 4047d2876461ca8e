package render

import (
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/mxplusb/epsilon/src/logging"
	"github.com/mxplusb/epsilon/src/render/gpu"
)

// DefaultBufferingStrategy asks for three swapchain images, two frames in
// flight.
const DefaultBufferingStrategy = 3

type FrameState int

const (
	StateIdle FrameState = iota
	StateAcquiring
	StateReady
	StateInvalidated
	StateSubmitting
	StatePresenting
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateReady:
		return "ready"
	case StateInvalidated:
		return "invalidated"
	case StateSubmitting:
		return "submitting"
	case StatePresenting:
		return "presenting"
	}
	return "unknown"
}

// FrameSlot is everything one frame in flight owns.
type FrameSlot struct {
	CommandBuffer  gpu.CommandBuffer
	ImageAvailable gpu.Semaphore
	RenderFinished gpu.Semaphore
	InFlight       gpu.Fence
}

type Options struct {
	// BufferingStrategy is the number of swapchain images requested. Frames
	// in flight is one less. Zero means DefaultBufferingStrategy.
	BufferingStrategy int
	// FenceTimeout bounds the wait for a slot's previous frame. Zero waits
	// forever.
	FenceTimeout time.Duration
	// PresentModes is passed to the swapchain manager, see SwapchainConfig.
	PresentModes []gpu.PresentMode
	// Extent is the fallback swapchain size without a Platform.
	Extent gpu.Extent2D
	Logger *slog.Logger
}

// Scheduler drives the acquire, record, submit and present cycle. It owns
// the swapchain, the synchronization set and the command slots and must be
// used from a single goroutine.
type Scheduler struct {
	dctx       DeviceContext
	platform   Platform
	swapchains *SwapchainManager
	swapchain  *SwapchainState
	sync       *SyncSet
	cmds       *CommandSlots
	log        *slog.Logger

	buffering      int
	framesInFlight int
	fenceTimeout   uint64

	state       FrameState
	frame       int
	slot        int
	image       uint32
	invalidated bool
	submitted   uint64
	broken      error

	onInvalidate func(*SwapchainState) error
	onCleanup    func() error
}

var _ Context = (*Scheduler)(nil)

func NewScheduler(dctx DeviceContext, surface gpu.Surface, platform Platform, opts Options) (*Scheduler, error) {
	buffering := opts.BufferingStrategy
	if buffering == 0 {
		buffering = DefaultBufferingStrategy
	}
	if buffering < 2 {
		return nil, errors.Wrapf(ErrBufferingStrategy, "got %d", buffering)
	}
	s := &Scheduler{
		dctx:           dctx,
		platform:       platform,
		log:            opts.Logger,
		buffering:      buffering,
		framesInFlight: buffering - 1,
		fenceTimeout:   gpu.NoTimeout,
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if opts.FenceTimeout > 0 {
		s.fenceTimeout = uint64(opts.FenceTimeout.Nanoseconds())
	}

	s.swapchains = NewSwapchainManager(dctx, SwapchainConfig{
		Surface:      surface,
		ImageCount:   uint32(buffering),
		PresentModes: opts.PresentModes,
		Platform:     platform,
		Extent:       opts.Extent,
		Logger:       s.log,
	})
	var err error
	if s.swapchain, err = s.swapchains.Create(); err != nil {
		return nil, errors.Wrap(err, "initial swapchain")
	}
	if s.sync, err = NewSyncSet(dctx.Device, s.framesInFlight); err != nil {
		s.swapchains.Destroy(s.swapchain)
		return nil, err
	}
	if s.cmds, err = NewCommandSlots(dctx.Device, dctx.Graphics.Index, s.framesInFlight); err != nil {
		s.sync.Destroy()
		s.swapchains.Destroy(s.swapchain)
		return nil, err
	}
	s.log.Debug("scheduler ready",
		slog.Int("buffering", buffering),
		slog.Int("frames_in_flight", s.framesInFlight))
	return s, nil
}

// SetOnInvalidate registers f to run after every swapchain recreation, with
// the new swapchain.
func (s *Scheduler) SetOnInvalidate(f func(*SwapchainState) error) {
	s.onInvalidate = f
}

// SetOnCleanup registers f to run in Destroy once the device is idle and
// before anything the scheduler owns is released.
func (s *Scheduler) SetOnCleanup(f func() error) {
	s.onCleanup = f
}

// Invalidate marks the swapchain for recreation at the start of the next
// PrepareFrame or the end of the current SubmitFrame.
func (s *Scheduler) Invalidate() {
	s.invalidated = true
}

// PrepareFrame waits until the current slot is free and acquires the next
// swapchain image. AcquireSuccessful is false when the cycle has to be
// skipped; the caller still passes the result to SubmitFrame.
func (s *Scheduler) PrepareFrame() (FramePreparation, error) {
	if s.broken != nil {
		return FramePreparation{}, errors.Mark(errors.Wrap(s.broken, "prepare"), ErrBroken)
	}
	if s.state != StateIdle {
		return FramePreparation{}, errors.Wrapf(ErrBadState, "prepare while %s", s.state)
	}
	dev := s.dctx.Device
	slot := s.sync.Slot(s.slot)
	s.state = StateAcquiring

	switch ret := dev.WaitForFence(slot.InFlight, s.fenceTimeout); {
	case ret == gpu.Timeout:
		s.state = StateIdle
		return FramePreparation{}, errors.Wrapf(ErrFenceTimeout, "slot %d", s.slot)
	case ret.IsError():
		s.state = StateIdle
		return FramePreparation{}, errors.Wrap(NewError(ret), "wait for frame fence")
	}

	if s.invalidated || s.swapchain == nil {
		if err := s.recreate(); err != nil {
			s.state = StateIdle
			if errors.Is(err, ErrZeroExtent) {
				s.log.Debug("frame skipped, surface has no area")
				return FramePreparation{}, nil
			}
			return FramePreparation{}, err
		}
	}

	index, ret := dev.AcquireNextImage(s.swapchain.Handle, s.fenceTimeout, slot.ImageAvailable)
	switch {
	case ret == gpu.ErrorOutOfDate:
		s.state = StateInvalidated
		s.log.Debug("acquire out of date", slog.Int("slot", s.slot))
		err := s.recreate()
		s.state = StateIdle
		if err != nil && !errors.Is(err, ErrZeroExtent) {
			return FramePreparation{}, err
		}
		return FramePreparation{ImageIndex: index}, nil
	case ret == gpu.Timeout || ret == gpu.NotReady:
		s.state = StateIdle
		return FramePreparation{}, errors.Wrapf(ErrAcquireTimeout, "slot %d", s.slot)
	case ret == gpu.Suboptimal:
		s.invalidated = true
	case ret.IsError():
		s.state = StateIdle
		return FramePreparation{}, errors.Wrap(NewError(ret), "acquire next image")
	}

	// Only reset once work that signals the fence is certain to follow.
	if err := NewError(dev.ResetFence(slot.InFlight)); err != nil {
		s.state = StateIdle
		return FramePreparation{}, errors.Wrap(err, "reset frame fence")
	}
	if err := s.cmds.Reset(s.slot); err != nil {
		s.state = StateReady
		s.image = index
		if derr := s.drain(); derr != nil {
			return FramePreparation{}, errors.CombineErrors(err, derr)
		}
		return FramePreparation{}, err
	}

	s.image = index
	s.state = StateReady
	s.log.Debug("frame prepared",
		slog.Int("frame", s.frame),
		slog.Int("slot", s.slot),
		slog.Uint64("image", uint64(index)))
	return FramePreparation{AcquireSuccessful: true, ImageIndex: index}, nil
}

// SubmitFrame submits the slot's command buffer and presents the acquired
// image. A declined submission (DoSubmit false) after a successful acquire
// still signals the slot's fence so the next use of the slot does not
// block, and the swapchain is rebuilt to get the acquired image back.
func (s *Scheduler) SubmitFrame(sub FrameSubmission) error {
	if !sub.DoSubmit {
		if s.state == StateReady {
			return s.drain()
		}
		return nil
	}
	if s.state != StateReady {
		return errors.Wrapf(ErrNotPrepared, "submit while %s", s.state)
	}
	if sub.ImageIndex != s.image {
		return errors.Wrapf(ErrImageIndexMismatch, "acquired %d, submitted %d", s.image, sub.ImageIndex)
	}

	dev := s.dctx.Device
	slot := s.sync.Slot(s.slot)
	s.state = StateSubmitting
	ret := dev.QueueSubmit(s.dctx.Graphics.Queue, &gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{slot.ImageAvailable},
		WaitStages:       []gpu.PipelineStageFlags{gpu.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []gpu.CommandBuffer{s.cmds.Buffer(s.slot)},
		SignalSemaphores: []gpu.Semaphore{slot.RenderFinished},
	}, slot.InFlight)
	if err := NewError(ret); err != nil {
		// the fence was reset in PrepareFrame and nothing will signal it
		s.state = StateReady
		if derr := s.drain(); derr != nil {
			return errors.Mark(errors.CombineErrors(errors.Wrap(err, "submit frame"), derr), ErrBroken)
		}
		return errors.Wrap(err, "submit frame")
	}

	s.state = StatePresenting
	ret = dev.QueuePresent(s.dctx.Present.Queue, &gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{slot.RenderFinished},
		Swapchain:      s.swapchain.Handle,
		ImageIndex:     s.image,
	})
	var err error
	switch {
	case ret.Stale() || s.invalidated:
		s.log.Debug("swapchain stale after present", slog.String("result", ret.String()))
		if err = s.recreate(); errors.Is(err, ErrZeroExtent) {
			err = nil
		}
	case ret.IsError():
		err = errors.Wrap(NewError(ret), "present frame")
	}

	s.submitted++
	s.frame = (s.frame + 1) % s.buffering
	s.slot = (s.slot + 1) % s.framesInFlight
	s.state = StateIdle
	return err
}

// Frame runs one full cycle, calling c.Record once if an image was
// acquired. A failing or panicking Record drops the frame.
func (s *Scheduler) Frame(c Content) error {
	prep, err := s.PrepareFrame()
	if err != nil {
		return err
	}
	if !prep.AcquireSuccessful {
		return s.SubmitFrame(FrameSubmission{ImageIndex: prep.ImageIndex})
	}
	sub, err := s.record(c, prep)
	if err != nil {
		if derr := s.SubmitFrame(FrameSubmission{ImageIndex: prep.ImageIndex}); derr != nil {
			return errors.CombineErrors(err, derr)
		}
		return errors.Wrapf(err, "record frame %d", s.frame)
	}
	return s.SubmitFrame(sub)
}

func (s *Scheduler) record(c Content, prep FramePreparation) (sub FrameSubmission, err error) {
	defer CheckError(&err)
	return c.Record(s, prep)
}

// drain consumes the acquired image's semaphore with an empty submission
// that signals the slot's fence.
func (s *Scheduler) drain() error {
	slot := s.sync.Slot(s.slot)
	ret := s.dctx.Device.QueueSubmit(s.dctx.Graphics.Queue, &gpu.SubmitInfo{
		WaitSemaphores: []gpu.Semaphore{slot.ImageAvailable},
		WaitStages:     []gpu.PipelineStageFlags{gpu.PipelineStageColorAttachmentOutput},
	}, slot.InFlight)
	s.invalidated = true
	s.state = StateIdle
	s.log.Debug("frame dropped after acquire",
		slog.Int("slot", s.slot),
		slog.Uint64("image", uint64(s.image)))
	if err := NewError(ret); err != nil {
		s.broken = errors.Wrapf(err, "signal fence of slot %d", s.slot)
		return errors.Mark(errors.Wrap(err, "submit drain"), ErrBroken)
	}
	return nil
}

func (s *Scheduler) recreate() error {
	var next *SwapchainState
	var err error
	if s.swapchain == nil {
		next, err = s.swapchains.Create()
	} else {
		next, err = s.swapchains.Recreate(s.swapchain)
	}
	if err != nil {
		s.invalidated = true
		if s.swapchain != nil && s.swapchain.Handle == 0 {
			s.swapchain = nil
		}
		return err
	}
	s.swapchain = next
	s.invalidated = false
	if s.onInvalidate != nil {
		if err := s.onInvalidate(next); err != nil {
			return errors.Wrap(err, "swapchain invalidate hook")
		}
	}
	return nil
}

// Destroy waits for the device and releases command slots, the sync set and
// the swapchain, in that order.
func (s *Scheduler) Destroy() error {
	err := NewError(s.dctx.Device.WaitIdle())
	if s.onCleanup != nil {
		err = errors.CombineErrors(err, s.onCleanup())
	}
	s.cmds.Destroy()
	s.sync.Destroy()
	s.swapchains.Destroy(s.swapchain)
	s.swapchain = nil
	return err
}

func (s *Scheduler) State() FrameState {
	return s.state
}

func (s *Scheduler) BufferingStrategy() int {
	return s.buffering
}

func (s *Scheduler) FramesInFlight() int {
	return s.framesInFlight
}

// Submitted counts the frames handed to the queue, skipped and declined
// cycles excluded.
func (s *Scheduler) Submitted() uint64 {
	return s.submitted
}

// Swapchain is the live swapchain. It is nil while a failed recreation is
// pending.
func (s *Scheduler) Swapchain() *SwapchainState {
	return s.swapchain
}

func (s *Scheduler) FrameSlot(i int) FrameSlot {
	sync := s.sync.Slot(i)
	return FrameSlot{
		CommandBuffer:  s.cmds.Buffer(i),
		ImageAvailable: sync.ImageAvailable,
		RenderFinished: sync.RenderFinished,
		InFlight:       sync.InFlight,
	}
}

func (s *Scheduler) Device() gpu.Device {
	return s.dctx.Device
}

func (s *Scheduler) CommandBuffer() gpu.CommandBuffer {
	return s.cmds.Buffer(s.slot)
}

func (s *Scheduler) Platform() Platform {
	return s.platform
}

func (s *Scheduler) SwapchainDimensions() *SwapchainDimensions {
	if s.swapchain == nil {
		return nil
	}
	return s.swapchain.Dimensions()
}

func (s *Scheduler) SwapchainImage(imageIndex uint32) (gpu.Image, gpu.ImageView) {
	return s.swapchain.Images[imageIndex], s.swapchain.Views[imageIndex]
}

func (s *Scheduler) SlotIndex() int {
	return s.slot
}

func (s *Scheduler) FrameIndex() int {
	return s.frame
}

func (s *Scheduler) CreateBuffer(size uint64, props gpu.MemoryPropertyFlags, usage gpu.BufferUsageFlags) (Buffer, error) {
	return CreateBuffer(s.dctx.Device, size, props, usage)
}

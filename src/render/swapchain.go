package render

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/mxplusb/epsilon/src/logging"
	"github.com/mxplusb/epsilon/src/render/gpu"
)

// PreferredFormats are the surface formats a swapchain may use, in order.
// Only the sRGB nonlinear colour space is accepted.
var PreferredFormats = []gpu.Format{gpu.FormatB8G8R8A8Srgb, gpu.FormatR8G8B8A8Srgb}

// DefaultPresentModes is the present mode preference when none is set.
// FIFO is always available and is used when nothing preferred is.
var DefaultPresentModes = []gpu.PresentMode{gpu.PresentModeMailbox, gpu.PresentModeFifoRelaxed}

const swapchainUsage = gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferDst

// SwapchainState is an immutable snapshot of a built swapchain. Images and
// Views have the same length and order.
type SwapchainState struct {
	Handle        gpu.Swapchain
	Surface       gpu.Surface
	Format        gpu.Format
	ColorSpace    gpu.ColorSpace
	PresentMode   gpu.PresentMode
	Extent        gpu.Extent2D
	Images        []gpu.Image
	Views         []gpu.ImageView
	Sharing       gpu.SharingMode
	QueueFamilies []uint32
}

func (s *SwapchainState) ImageCount() int {
	return len(s.Images)
}

func (s *SwapchainState) Dimensions() *SwapchainDimensions {
	return &SwapchainDimensions{
		Width:  s.Extent.Width,
		Height: s.Extent.Height,
		Format: s.Format,
	}
}

type SwapchainConfig struct {
	Surface gpu.Surface
	// ImageCount is the number of images asked for. It is clamped to what
	// the surface supports.
	ImageCount uint32
	// PresentModes is the preference order. Nil means DefaultPresentModes;
	// an empty slice means FIFO.
	PresentModes []gpu.PresentMode
	// Platform supplies the size when the surface leaves it to the
	// swapchain. Extent is used instead when Platform is nil.
	Platform Platform
	Extent   gpu.Extent2D
	Logger   *slog.Logger
}

// SwapchainManager builds and tears down swapchains for one surface. It
// never retries: failures go back to the caller.
type SwapchainManager struct {
	ctx   DeviceContext
	cfg   SwapchainConfig
	modes []gpu.PresentMode
	log   *slog.Logger
}

func NewSwapchainManager(ctx DeviceContext, cfg SwapchainConfig) *SwapchainManager {
	m := &SwapchainManager{ctx: ctx, cfg: cfg, modes: cfg.PresentModes, log: cfg.Logger}
	if m.modes == nil {
		m.modes = DefaultPresentModes
	}
	if m.log == nil {
		m.log = logging.Discard()
	}
	return m
}

// Create builds a swapchain for the current surface. A minimised surface
// yields ErrZeroExtent.
func (m *SwapchainManager) Create() (*SwapchainState, error) {
	caps, ret := m.ctx.Device.SurfaceCapabilities(m.cfg.Surface)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}
	extent := m.chooseExtent(caps)
	if extent.IsZero() {
		return nil, errors.Wrapf(ErrZeroExtent, "surface %d", m.cfg.Surface)
	}
	return m.build(caps, extent)
}

// Recreate replaces old after the device went idle. old is only torn down
// once the new extent is known to be non-zero; after that its Handle is
// zero, so a failed build leaves no live swapchain.
func (m *SwapchainManager) Recreate(old *SwapchainState) (*SwapchainState, error) {
	dev := m.ctx.Device
	if err := NewError(dev.WaitIdle()); err != nil {
		return nil, errors.Wrap(err, "wait idle before recreation")
	}
	caps, ret := dev.SurfaceCapabilities(m.cfg.Surface)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}
	extent := m.chooseExtent(caps)
	if extent.IsZero() {
		return nil, errors.Wrapf(ErrZeroExtent, "surface %d", m.cfg.Surface)
	}
	m.Destroy(old)
	state, err := m.build(caps, extent)
	if err != nil {
		return nil, err
	}
	m.log.Info("swapchain recreated",
		slog.Uint64("width", uint64(extent.Width)),
		slog.Uint64("height", uint64(extent.Height)),
		slog.Int("images", state.ImageCount()))
	return state, nil
}

// Destroy releases views in reverse order, then the swapchain. The surface
// is not owned and stays alive.
func (m *SwapchainManager) Destroy(s *SwapchainState) {
	if s == nil {
		return
	}
	dev := m.ctx.Device
	for i := len(s.Views) - 1; i >= 0; i-- {
		dev.DestroyImageView(s.Views[i])
	}
	s.Views = nil
	if s.Handle != 0 {
		dev.DestroySwapchain(s.Handle)
		s.Handle = 0
	}
	s.Images = nil
}

func (m *SwapchainManager) build(caps gpu.SurfaceCapabilities, extent gpu.Extent2D) (*SwapchainState, error) {
	dev := m.ctx.Device

	formats, ret := dev.SurfaceFormats(m.cfg.Surface)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "query surface formats")
	}
	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return nil, err
	}
	modes, ret := dev.SurfacePresentModes(m.cfg.Surface)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "query present modes")
	}
	mode := ChoosePresentMode(modes, m.modes)

	state := &SwapchainState{
		Surface:     m.cfg.Surface,
		Format:      format.Format,
		ColorSpace:  format.ColorSpace,
		PresentMode: mode,
		Extent:      extent,
		Sharing:     gpu.SharingModeExclusive,
	}
	if m.ctx.Graphics.Index != m.ctx.Present.Index {
		state.Sharing = gpu.SharingModeConcurrent
		state.QueueFamilies = []uint32{m.ctx.Graphics.Index, m.ctx.Present.Index}
	}

	handle, ret := dev.CreateSwapchain(&gpu.SwapchainCreateInfo{
		Surface:            m.cfg.Surface,
		MinImageCount:      clampImageCount(m.cfg.ImageCount, caps),
		Format:             state.Format,
		ColorSpace:         state.ColorSpace,
		Extent:             extent,
		Usage:              swapchainUsage,
		SharingMode:        state.Sharing,
		QueueFamilyIndices: state.QueueFamilies,
		PresentMode:        mode,
	})
	if err := NewError(ret); err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	state.Handle = handle

	images, ret := dev.SwapchainImages(handle)
	if err := NewError(ret); err != nil {
		m.Destroy(state)
		return nil, errors.Wrap(err, "get swapchain images")
	}
	if len(images) == 0 {
		m.Destroy(state)
		return nil, errors.Newf("swapchain %d has no images", handle)
	}
	state.Images = images

	state.Views = make([]gpu.ImageView, 0, len(images))
	for i, img := range images {
		view, ret := dev.CreateImageView(&gpu.ImageViewCreateInfo{Image: img, Format: state.Format})
		if err := NewError(ret); err != nil {
			m.Destroy(state)
			return nil, errors.Wrapf(err, "create view for swapchain image %d", i)
		}
		state.Views = append(state.Views, view)
	}

	m.log.Info("swapchain created",
		slog.String("format", state.Format.String()),
		slog.String("present_mode", mode.String()),
		slog.Uint64("width", uint64(extent.Width)),
		slog.Uint64("height", uint64(extent.Height)),
		slog.Int("images", len(images)))
	return state, nil
}

func (m *SwapchainManager) chooseExtent(caps gpu.SurfaceCapabilities) gpu.Extent2D {
	if caps.CurrentExtent.Width != gpu.UndefinedExtent {
		return caps.CurrentExtent
	}
	want := m.cfg.Extent
	if m.cfg.Platform != nil {
		w, h := m.cfg.Platform.FramebufferSize()
		if w < 0 {
			w = 0
		}
		if h < 0 {
			h = 0
		}
		want = gpu.Extent2D{Width: uint32(w), Height: uint32(h)}
	}
	if want.IsZero() {
		return gpu.Extent2D{}
	}
	return gpu.Extent2D{
		Width:  clamp(want.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(want.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseSurfaceFormat returns the first format in the surface's order that
// is sRGB nonlinear and one of PreferredFormats.
func ChooseSurfaceFormat(available []gpu.SurfaceFormat) (gpu.SurfaceFormat, error) {
	for _, f := range available {
		if f.ColorSpace != gpu.ColorSpaceSrgbNonlinear {
			continue
		}
		for _, want := range PreferredFormats {
			if f.Format == want {
				return f, nil
			}
		}
	}
	return gpu.SurfaceFormat{}, errors.Wrapf(ErrNoSurfaceFormat, "%d formats offered", len(available))
}

// ChoosePresentMode returns the highest ranked mode of preferred that the
// surface offers, or FIFO.
func ChoosePresentMode(available, preferred []gpu.PresentMode) gpu.PresentMode {
	for _, want := range preferred {
		for _, m := range available {
			if m == want {
				return m
			}
		}
	}
	return gpu.PresentModeFifo
}

func clampImageCount(want uint32, caps gpu.SurfaceCapabilities) uint32 {
	if want < caps.MinImageCount {
		want = caps.MinImageCount
	}
	if caps.MaxImageCount != 0 && want > caps.MaxImageCount {
		want = caps.MaxImageCount
	}
	return want
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package render

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/mxplusb/epsilon/src/render/gpu"
	"github.com/mxplusb/epsilon/src/render/gpu/gputest"
)

const testSurface = gpu.Surface(0xfeed)

type fixedPlatform struct {
	w, h int
}

func (p *fixedPlatform) FramebufferSize() (int, int) {
	return p.w, p.h
}

func testDeviceContext(dev *gputest.Device) DeviceContext {
	family := gpu.QueueFamily{Index: 0, Queue: 1}
	return DeviceContext{Device: dev, Graphics: family, Present: family, Compute: family}
}

func newTestManager(dev *gputest.Device, images uint32) *SwapchainManager {
	return NewSwapchainManager(testDeviceContext(dev), SwapchainConfig{
		Surface:    testSurface,
		ImageCount: images,
	})
}

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := func(f gpu.Format) gpu.SurfaceFormat {
		return gpu.SurfaceFormat{Format: f, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	}
	for idx, tc := range []struct {
		available []gpu.SurfaceFormat
		want      gpu.Format
	}{
		{[]gpu.SurfaceFormat{srgb(gpu.FormatB8G8R8A8Unorm), srgb(gpu.FormatB8G8R8A8Srgb)}, gpu.FormatB8G8R8A8Srgb},
		// surface order decides between the accepted formats
		{[]gpu.SurfaceFormat{srgb(gpu.FormatR8G8B8A8Srgb), srgb(gpu.FormatB8G8R8A8Srgb)}, gpu.FormatR8G8B8A8Srgb},
		{[]gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceExtendedSrgbLinear},
			srgb(gpu.FormatR8G8B8A8Srgb),
		}, gpu.FormatR8G8B8A8Srgb},
	} {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			got, err := ChooseSurfaceFormat(tc.available)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Format)
			require.Equal(t, gpu.ColorSpaceSrgbNonlinear, got.ColorSpace)
		})
	}
}

func TestChooseSurfaceFormatNone(t *testing.T) {
	for idx, available := range [][]gpu.SurfaceFormat{
		nil,
		{{Format: gpu.FormatB8G8R8A8Unorm}, {Format: gpu.FormatA2B10G10R10Unorm}},
		{{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceHdr10St2084}},
	} {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			_, err := ChooseSurfaceFormat(available)
			require.True(t, errors.Is(err, ErrNoSurfaceFormat))
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	for idx, tc := range []struct {
		available, preferred []gpu.PresentMode
		want                 gpu.PresentMode
	}{
		{[]gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox}, DefaultPresentModes, gpu.PresentModeMailbox},
		// the preference order wins over the surface order
		{[]gpu.PresentMode{gpu.PresentModeFifoRelaxed, gpu.PresentModeMailbox}, DefaultPresentModes, gpu.PresentModeMailbox},
		{[]gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeFifoRelaxed}, DefaultPresentModes, gpu.PresentModeFifoRelaxed},
		{[]gpu.PresentMode{gpu.PresentModeImmediate, gpu.PresentModeFifo}, DefaultPresentModes, gpu.PresentModeFifo},
		{[]gpu.PresentMode{gpu.PresentModeMailbox, gpu.PresentModeFifo}, []gpu.PresentMode{}, gpu.PresentModeFifo},
		{[]gpu.PresentMode{gpu.PresentModeImmediate, gpu.PresentModeFifo}, []gpu.PresentMode{gpu.PresentModeImmediate}, gpu.PresentModeImmediate},
	} {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			require.Equal(t, tc.want, ChoosePresentMode(tc.available, tc.preferred))
		})
	}
}

func TestSwapchainCreate(t *testing.T) {
	dev := gputest.New()
	m := newTestManager(dev, 3)

	s, err := m.Create()
	require.NoError(t, err)
	require.Empty(t, dev.Violations)

	require.Equal(t, gpu.FormatB8G8R8A8Srgb, s.Format)
	require.Equal(t, gpu.PresentModeMailbox, s.PresentMode)
	require.Equal(t, gpu.Extent2D{Width: 800, Height: 600}, s.Extent)
	require.Equal(t, gpu.SharingModeExclusive, s.Sharing)
	require.Equal(t, 3, s.ImageCount())
	require.Len(t, s.Views, s.ImageCount())

	seen := map[gpu.ImageView]bool{}
	for _, v := range s.Views {
		require.False(t, seen[v], "duplicate view %d", v)
		seen[v] = true
		format, ok := dev.ViewFormat(v)
		require.True(t, ok)
		require.Equal(t, s.Format, format)
	}

	info := dev.CallsOf(gputest.OpCreateSwapchain)[0].Create
	require.Equal(t, gpu.ImageUsageColorAttachment|gpu.ImageUsageTransferDst, info.Usage)
	require.Equal(t, testSurface, info.Surface)
	require.Zero(t, info.OldSwapchain)

	require.Equal(t, &SwapchainDimensions{Width: 800, Height: 600, Format: gpu.FormatB8G8R8A8Srgb}, s.Dimensions())
}

func TestSwapchainImageCount(t *testing.T) {
	for idx, tc := range []struct {
		want     uint32
		min, max uint32
		expected uint32
	}{
		{3, 2, 8, 3},
		{1, 2, 8, 2},
		{10, 2, 8, 8},
		{10, 2, 0, 10},
		{2, 3, 3, 3},
	} {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			dev := gputest.New()
			dev.Caps.MinImageCount, dev.Caps.MaxImageCount = tc.min, tc.max

			s, err := newTestManager(dev, tc.want).Create()
			require.NoError(t, err)
			require.Equal(t, tc.expected, dev.CallsOf(gputest.OpCreateSwapchain)[0].Create.MinImageCount)
			require.Equal(t, int(tc.expected), s.ImageCount())
			require.Empty(t, dev.Violations)
		})
	}
}

func TestSwapchainUsesReturnedImageCount(t *testing.T) {
	dev := gputest.New()
	dev.ImageCount = 5

	s, err := newTestManager(dev, 3).Create()
	require.NoError(t, err)
	require.Equal(t, 5, s.ImageCount())
	require.Len(t, s.Views, 5)
}

func TestSwapchainConcurrentSharing(t *testing.T) {
	dev := gputest.New()
	ctx := testDeviceContext(dev)
	ctx.Present = gpu.QueueFamily{Index: 2, Queue: 7}

	s, err := NewSwapchainManager(ctx, SwapchainConfig{Surface: testSurface, ImageCount: 3}).Create()
	require.NoError(t, err)
	require.Equal(t, gpu.SharingModeConcurrent, s.Sharing)
	require.Equal(t, []uint32{0, 2}, s.QueueFamilies)

	info := dev.CallsOf(gputest.OpCreateSwapchain)[0].Create
	require.Equal(t, gpu.SharingModeConcurrent, info.SharingMode)
	require.Equal(t, []uint32{0, 2}, info.QueueFamilyIndices)
}

func TestSwapchainUndefinedExtent(t *testing.T) {
	for idx, tc := range []struct {
		w, h int
		want gpu.Extent2D
	}{
		{1280, 720, gpu.Extent2D{Width: 1280, Height: 720}},
		{5000, 300, gpu.Extent2D{Width: 4096, Height: 300}},
		{-1, 10, gpu.Extent2D{}},
		{0, 0, gpu.Extent2D{}},
	} {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			dev := gputest.New()
			dev.Caps.CurrentExtent = gpu.Extent2D{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent}
			m := NewSwapchainManager(testDeviceContext(dev), SwapchainConfig{
				Surface:    testSurface,
				ImageCount: 3,
				Platform:   &fixedPlatform{tc.w, tc.h},
			})

			s, err := m.Create()
			if tc.want.IsZero() {
				require.True(t, errors.Is(err, ErrZeroExtent))
				require.Zero(t, dev.Count(gputest.OpCreateSwapchain))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, s.Extent)
		})
	}
}

func TestSwapchainNoFormat(t *testing.T) {
	dev := gputest.New()
	dev.Formats = []gpu.SurfaceFormat{{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}}

	_, err := newTestManager(dev, 3).Create()
	require.True(t, errors.Is(err, ErrNoSurfaceFormat))
	require.Zero(t, dev.Count(gputest.OpCreateSwapchain))
	require.Zero(t, dev.Live())
}

func TestSwapchainCreateFailure(t *testing.T) {
	dev := gputest.New()
	dev.CreateSwapchainResult = gpu.ErrorSurfaceLost

	_, err := newTestManager(dev, 3).Create()
	require.True(t, errors.Is(err, ErrSurfaceLost))
	require.Zero(t, dev.Live())
}

func TestSwapchainRecreateIdempotent(t *testing.T) {
	dev := gputest.New()
	m := newTestManager(dev, 3)

	first, err := m.Create()
	require.NoError(t, err)
	live := dev.Live()

	second, err := m.Recreate(first)
	require.NoError(t, err)
	third, err := m.Recreate(second)
	require.NoError(t, err)

	for _, s := range []*SwapchainState{second, third} {
		require.Equal(t, first.Extent, s.Extent)
		require.Equal(t, first.Format, s.Format)
		require.Equal(t, first.PresentMode, s.PresentMode)
		require.Equal(t, 3, s.ImageCount())
	}
	require.NotEqual(t, second.Handle, third.Handle)
	require.Zero(t, first.Handle)
	require.Equal(t, live, dev.Live())
	require.Equal(t, 2, dev.Count(gputest.OpWaitIdle))
	require.Empty(t, dev.Violations)
}

func TestSwapchainRecreateZeroExtent(t *testing.T) {
	dev := gputest.New()
	m := newTestManager(dev, 3)

	old, err := m.Create()
	require.NoError(t, err)
	handle := old.Handle

	dev.Caps.CurrentExtent = gpu.Extent2D{}
	_, err = m.Recreate(old)
	require.True(t, errors.Is(err, ErrZeroExtent))
	require.True(t, IsTransient(err))
	require.Equal(t, handle, old.Handle)
	require.Len(t, old.Views, 3)
	require.Zero(t, dev.Count(gputest.OpDestroySwapchain))

	dev.Caps.CurrentExtent = gpu.Extent2D{Width: 640, Height: 480}
	next, err := m.Recreate(old)
	require.NoError(t, err)
	require.Equal(t, gpu.Extent2D{Width: 640, Height: 480}, next.Extent)
	require.Empty(t, dev.Violations)
}

func TestSwapchainDestroyOrder(t *testing.T) {
	dev := gputest.New()
	m := newTestManager(dev, 3)

	s, err := m.Create()
	require.NoError(t, err)
	views := append([]gpu.ImageView(nil), s.Views...)
	handle := s.Handle
	start := len(dev.Calls)

	m.Destroy(s)
	calls := dev.Calls[start:]
	require.Len(t, calls, 4)
	for i := 0; i < 3; i++ {
		require.Equal(t, gputest.OpDestroyImageView, calls[i].Op)
		require.Equal(t, uint64(views[2-i]), calls[i].Handle)
	}
	require.Equal(t, gputest.OpDestroySwapchain, calls[3].Op)
	require.Equal(t, uint64(handle), calls[3].Handle)
	require.Zero(t, dev.Live())
	require.Empty(t, dev.Violations)

	// a second destroy is a no-op
	m.Destroy(s)
	require.Len(t, dev.Calls, start+4)
}

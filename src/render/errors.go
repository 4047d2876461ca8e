package render

import (
	"github.com/cockroachdb/errors"

	"github.com/mxplusb/epsilon/src/render/gpu"
)

var (
	// ErrNoSurfaceFormat means the surface offers no sRGB-nonlinear
	// BGRA8/RGBA8 sRGB format. There is no generic fallback.
	ErrNoSurfaceFormat = errors.New("render: no supported surface format")

	// ErrZeroExtent means the surface currently has no area, usually
	// because the window is minimised. It is transient.
	ErrZeroExtent = errors.New("render: surface extent is zero")

	ErrFenceTimeout   = errors.New("render: timed out waiting for frame fence")
	ErrAcquireTimeout = errors.New("render: timed out acquiring swapchain image")

	// ErrNotPrepared and ErrImageIndexMismatch are caller errors: the
	// submission does not pair with the last successful PrepareFrame.
	ErrNotPrepared        = errors.New("render: frame submitted without a successful prepare")
	ErrImageIndexMismatch = errors.New("render: submitted image index differs from the acquired one")

	ErrBadState          = errors.New("render: operation not valid in current frame state")
	ErrBufferingStrategy = errors.New("render: buffering strategy must be at least 2")

	// ErrBroken means a slot's fence could not be signalled again after a
	// failed submission. Every later PrepareFrame returns it.
	ErrBroken = errors.New("render: scheduler cannot continue after a failed submission")

	ErrOutOfDate   = errors.New("render: swapchain out of date")
	ErrDeviceLost  = errors.New("render: device lost")
	ErrSurfaceLost = errors.New("render: surface lost")
)

// NewError converts a failed gpu.Result into an error carrying the caller's
// stack. Device and surface loss are marked so they can be told apart from
// other fatal errors with errors.Is.
func NewError(retVal gpu.Result) error {
	if !IsError(retVal) {
		return nil
	}
	err := errors.NewWithDepthf(1, "gpu error: %s (%d)", retVal, int32(retVal))
	switch retVal {
	case gpu.ErrorDeviceLost:
		err = errors.Mark(err, ErrDeviceLost)
	case gpu.ErrorSurfaceLost:
		err = errors.Mark(err, ErrSurfaceLost)
	case gpu.ErrorOutOfDate:
		err = errors.Mark(err, ErrOutOfDate)
	}
	return err
}

func IsError(retVal gpu.Result) bool {
	return retVal.IsError()
}

// IsTransient reports whether err only means the current frame must be
// skipped while the swapchain catches up with the surface.
func IsTransient(err error) bool {
	return errors.IsAny(err, ErrOutOfDate, ErrZeroExtent)
}

// IsDeviceLost reports whether err was caused by losing the device. The
// device and everything created from it must be rebuilt.
func IsDeviceLost(err error) bool {
	return errors.Is(err, ErrDeviceLost)
}

// CheckError recovers a panic into *err. It must be deferred.
func CheckError(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = errors.Wrap(e, "render: recovered panic")
			return
		}
		*err = errors.Newf("render: recovered panic: %+v", v)
	}
}

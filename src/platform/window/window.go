// Package window is the glfw side of presentation: it owns the native
// window, creates its Vulkan surface and reports size changes.
//
// Everything here must run on the thread that called Init.
package window

import (
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type Config struct {
	Title     string
	Width     int
	Height    int
	Resizable bool
}

// Init initializes glfw for a window without a client API.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

// VulkanProcAddr is the loader entry point glfw found.
func VulkanProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one event arrived.
func WaitEvents() {
	glfw.WaitEvents()
}

type Window struct {
	win *glfw.Window
	// set from the framebuffer size callback, taken by the render loop
	resized atomic.Bool
}

func New(cfg Config) (*Window, error) {
	if !glfw.VulkanSupported() {
		return nil, errors.New("glfw: vulkan loader not found")
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	resizable := glfw.False
	if cfg.Resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	w := &Window{win: win}
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized.Store(true)
	})
	return w, nil
}

// FramebufferSize is the drawable size in pixels.
func (w *Window) FramebufferSize() (width, height int) {
	return w.win.GetFramebufferSize()
}

// RequiredInstanceExtensions lists the instance extensions surface
// creation needs.
func (w *Window) RequiredInstanceExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

// CreateSurface creates a surface for instance, a vk.Instance, and returns
// the raw handle.
func (w *Window) CreateSurface(instance interface{}) (uintptr, error) {
	ptr, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "create window surface")
	}
	return ptr, nil
}

// TakeResized reports whether the framebuffer changed size since the last
// call.
func (w *Window) TakeResized() bool {
	return w.resized.Swap(false)
}

// Minimised reports whether the window is iconified or has no area.
func (w *Window) Minimised() bool {
	if w.win.GetAttrib(glfw.Iconified) == glfw.True {
		return true
	}
	width, height := w.win.GetFramebufferSize()
	return width == 0 || height == 0
}

func (w *Window) ShouldClose() bool {
	return w.win.ShouldClose()
}

func (w *Window) Destroy() {
	if w.win != nil {
		w.win.Destroy()
		w.win = nil
	}
}

package vulkan

import (
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"github.com/mxplusb/epsilon/src/render"
	"github.com/mxplusb/epsilon/src/render/gpu"
)

var ErrNoSuitableDevice = errors.New("vulkan: no device can render and present to the surface")

// Context is an opened device together with the surface it presents to.
type Context struct {
	Device  *Device
	Render  render.DeviceContext
	Surface gpu.Surface
	Name    string

	inst    *Instance
	surface vk.Surface
}

type queueFamilies struct {
	graphics, present, compute int
}

func (q queueFamilies) complete() bool {
	return q.graphics >= 0 && q.present >= 0
}

// Open picks the first physical device that can render to and present on
// surfacePtr, creates a logical device with one queue per distinct family
// and takes ownership of the surface.
func Open(inst *Instance, surfacePtr uintptr, log *slog.Logger) (*Context, error) {
	if log == nil {
		log = slog.Default()
	}
	surface := vk.SurfaceFromPointer(surfacePtr)

	physical, families, name, err := pickPhysicalDevice(inst.handle, surface)
	if err != nil {
		vk.DestroySurface(inst.handle, surface, nil)
		return nil, err
	}

	unique := []uint32{uint32(families.graphics)}
	for _, f := range []int{families.present, families.compute} {
		if !containsFamily(unique, uint32(f)) {
			unique = append(unique, uint32(f))
		}
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(unique))
	for _, f := range unique {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: f,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		})
	}
	extensions := safeStrings(deviceExtensions)
	var device vk.Device
	ret := vk.CreateDevice(physical, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
	}, nil, &device)
	if ret != vk.Success {
		vk.DestroySurface(inst.handle, surface, nil)
		return nil, errors.Wrapf(vk.Error(ret), "create device on %s", name)
	}

	d := newDevice(physical, device)
	family := func(index int) gpu.QueueFamily {
		var q vk.Queue
		vk.GetDeviceQueue(device, uint32(index), 0, &q)
		return gpu.QueueFamily{Index: uint32(index), Queue: gpu.Queue(d.queues.add(q))}
	}
	c := &Context{
		Device: d,
		Render: render.DeviceContext{
			Device:   d,
			Graphics: family(families.graphics),
			Present:  family(families.present),
			Compute:  family(families.compute),
		},
		Surface: gpu.Surface(d.surfaces.add(surface)),
		Name:    name,
		inst:    inst,
		surface: surface,
	}
	log.Info("device opened",
		slog.String("name", name),
		slog.Int("graphics_family", families.graphics),
		slog.Int("present_family", families.present),
		slog.Int("compute_family", families.compute),
		slog.Int("memory_types", len(d.memory.Types)))
	return c, nil
}

// Close destroys the device and the surface. Everything created from the
// device must have been released.
func (c *Context) Close() {
	if c.Device != nil {
		vk.DeviceWaitIdle(c.Device.device)
		vk.DestroyDevice(c.Device.device, nil)
		c.Device = nil
	}
	if c.surface != nil {
		vk.DestroySurface(c.inst.handle, c.surface, nil)
		c.surface = nil
	}
}

func pickPhysicalDevice(instance vk.Instance, surface vk.Surface) (vk.PhysicalDevice, queueFamilies, string, error) {
	var count uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, queueFamilies{}, "", errors.Wrap(err, "enumerate physical devices")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &count, devices)); err != nil {
		return nil, queueFamilies{}, "", errors.Wrap(err, "enumerate physical devices")
	}

	for _, dev := range devices[:count] {
		if !hasExtensions(dev, deviceExtensions) || !canPresent(dev, surface) {
			continue
		}
		families := findQueueFamilies(dev, surface)
		if !families.complete() {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &props)
		props.Deref()
		return dev, families, vk.ToString(props.DeviceName[:]), nil
	}
	return nil, queueFamilies{}, "", errors.Wrapf(ErrNoSuitableDevice, "%d devices checked", count)
}

// findQueueFamilies prefers one family that does both graphics and present.
// Compute falls back to the graphics family.
func findQueueFamilies(dev vk.PhysicalDevice, surface vk.Surface) queueFamilies {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, props)

	q := queueFamilies{graphics: -1, present: -1, compute: -1}
	for i, p := range props[:count] {
		p.Deref()
		graphics := p.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		var support vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(dev, uint32(i), surface, &support)
		present := support == vk.True

		if graphics && present {
			q.graphics, q.present = i, i
		}
		if graphics && q.graphics < 0 {
			q.graphics = i
		}
		if present && q.present < 0 {
			q.present = i
		}
		if p.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 && q.compute < 0 {
			q.compute = i
		}
		if q.graphics >= 0 && q.graphics == q.present {
			break
		}
	}
	if q.compute < 0 {
		q.compute = q.graphics
	}
	return q
}

func hasExtensions(dev vk.PhysicalDevice, want []string) bool {
	var count uint32
	vk.EnumerateDeviceExtensionProperties(dev, "", &count, nil)
	available := make([]vk.ExtensionProperties, count)
	vk.EnumerateDeviceExtensionProperties(dev, "", &count, available)

	required := map[string]bool{}
	for _, name := range want {
		required[strings.TrimRight(name, "\x00")] = true
	}
	for _, ext := range available[:count] {
		ext.Deref()
		delete(required, vk.ToString(ext.ExtensionName[:]))
	}
	return len(required) == 0
}

func canPresent(dev vk.PhysicalDevice, surface vk.Surface) bool {
	var formats, modes uint32
	vk.GetPhysicalDeviceSurfaceFormats(dev, surface, &formats, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(dev, surface, &modes, nil)
	return formats > 0 && modes > 0
}

func containsFamily(list []uint32, f uint32) bool {
	for _, v := range list {
		if v == f {
			return true
		}
	}
	return false
}

// Package vulkan implements gpu.Device on top of vulkan-go and bootstraps
// the instance, physical device, logical device and queues it needs.
package vulkan

import (
	"context"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

var (
	ValidationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain"}
)

const debugReportExtension = "VK_EXT_debug_report"

// Load points the loader at the window system's vkGetInstanceProcAddr.
func Load(procAddr unsafe.Pointer) error {
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return errors.Wrap(err, "init vulkan loader")
	}
	return nil
}

type InstanceConfig struct {
	AppName string
	// Extensions are the instance extensions the window system needs.
	Extensions []string
	// Validation enables the Khronos validation layer and routes its
	// reports to Logger.
	Validation bool
	Logger     *slog.Logger
}

type Instance struct {
	handle vk.Instance
	debug  vk.DebugReportCallback
	log    *slog.Logger
}

func NewInstance(cfg InstanceConfig) (*Instance, error) {
	inst := &Instance{log: cfg.Logger}
	if inst.log == nil {
		inst.log = slog.Default()
	}

	extensions := cfg.Extensions
	var layers []string
	if cfg.Validation {
		if missing := missingLayers(ValidationLayers); len(missing) > 0 {
			return nil, errors.Newf("validation layers not available: %s", strings.Join(missing, ", "))
		}
		layers = ValidationLayers
		extensions = append(extensions[:len(extensions):len(extensions)], debugReportExtension)
	}
	extensions = safeStrings(extensions)
	layers = safeStrings(layers)

	info := vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   safeString(cfg.AppName),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PEngineName:        "epsilon\x00",
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			ApiVersion:         vk.ApiVersion10,
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}
	if ret := vk.CreateInstance(&info, nil, &inst.handle); ret != vk.Success {
		return nil, errors.Wrap(vk.Error(ret), "create instance")
	}
	if err := vk.InitInstance(inst.handle); err != nil {
		vk.DestroyInstance(inst.handle, nil)
		return nil, errors.Wrap(err, "load instance functions")
	}

	if cfg.Validation {
		ret := vk.CreateDebugReportCallback(inst.handle, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit | vk.DebugReportWarningBit | vk.DebugReportErrorBit),
			PfnCallback: inst.report,
		}, nil, &inst.debug)
		if ret != vk.Success {
			inst.log.Warn("debug report callback unavailable", slog.Int("result", int(ret)))
		}
	}
	return inst, nil
}

func (i *Instance) report(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64,
	location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vk.Bool32 {
	level := slog.LevelWarn
	if flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0 {
		level = slog.LevelError
	}
	i.log.Log(context.Background(), level, "validation",
		slog.String("layer", layerPrefix),
		slog.Int("code", int(messageCode)),
		slog.String("message", message))
	return vk.False
}

// Handle is the raw instance, for window systems that create surfaces.
func (i *Instance) Handle() vk.Instance {
	return i.handle
}

func (i *Instance) Destroy() {
	if i.debug != nil {
		vk.DestroyDebugReportCallback(i.handle, i.debug, nil)
		i.debug = nil
	}
	if i.handle != nil {
		vk.DestroyInstance(i.handle, nil)
		i.handle = nil
	}
}

func missingLayers(want []string) []string {
	var count uint32
	vk.EnumerateInstanceLayerProperties(&count, nil)
	available := make([]vk.LayerProperties, count)
	vk.EnumerateInstanceLayerProperties(&count, available)

	have := map[string]bool{}
	for _, l := range available[:count] {
		l.Deref()
		have[vk.ToString(l.LayerName[:])] = true
	}
	var missing []string
	for _, name := range want {
		if !have[strings.TrimRight(name, "\x00")] {
			missing = append(missing, name)
		}
	}
	return missing
}

func safeString(s string) string {
	return safeStrings([]string{s})[0]
}

package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer"
)

const VALIDATION_LAYER = "VK_LAYER_KHRONOS_validation"

// Window is the part of a glfw window the backend needs. *glfw.Window
// satisfies it.
type Window interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
	GetFramebufferSize() (int, int)
}

type Options struct {
	ApplicationName string
	// Minimum number of swapchain images; also the number of frame slots.
	BufferCount uint32
	VSync       bool
	Validation  bool
}

func DefaultOptions() Options {
	return Options{
		ApplicationName: "TexLab",
		BufferCount:     renderer.FRAME_COUNT,
		VSync:           true,
	}
}

/**
 * @brief Creates the instance, surface, logical device and swapchain.
 *
 * Everything created before a failure is destroyed again; the returned
 * error always wraps core.ErrDeviceInit.
 */
func New(window Window, opts Options) (*Device, error) {
	if opts.BufferCount < 2 {
		opts.BufferCount = renderer.FRAME_COUNT
	}
	d := &Device{opts: opts, locks: NewVulkanLockPool()}
	if err := d.initialize(window); err != nil {
		d.Release()
		err = fmt.Errorf("vulkan device: %w: %w", core.ErrDeviceInit, err)
		core.LogError(err.Error())
		return nil, err
	}
	return d, nil
}

func (d *Device) initialize(window Window) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("initialize loader: %w", err)
	}

	if err := d.createInstance(window.GetRequiredInstanceExtensions()); err != nil {
		return err
	}
	if d.opts.Validation {
		d.createDebugCallback()
	}

	core.LogDebug("Creating Vulkan surface...")
	ptr, err := window.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	d.surface = vk.SurfaceFromPointer(ptr)

	if err := d.selectPhysicalDevice(); err != nil {
		return err
	}
	if err := d.createLogicalDevice(); err != nil {
		return err
	}
	d.queue = &Queue{device: d}

	width, height := window.GetFramebufferSize()
	sc, err := newSwapchain(d, uint32(max(width, 0)), uint32(max(height, 0)))
	if err != nil {
		return err
	}
	d.swapchain = sc
	core.LogInfo("Vulkan device ready on %s.", d.name)
	return nil
}

func (d *Device) createInstance(windowExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 1, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   VulkanSafeString(d.opts.ApplicationName),
		PEngineName:        VulkanSafeString("TexLab"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{}, windowExtensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if d.opts.Validation {
		if hasInstanceLayer(VALIDATION_LAYER) {
			layers = append(layers, VALIDATION_LAYER)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		} else {
			core.LogWarn("Validation requested but %s is not installed.", VALIDATION_LAYER)
			d.opts.Validation = false
		}
	}
	for _, ext := range extensions {
		core.LogDebug("Instance extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := check(vk.CreateInstance(&createInfo, nil, &instance), "create instance"); err != nil {
		return err
	}
	d.instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return fmt.Errorf("init instance: %w", err)
	}
	core.LogInfo("Vulkan instance created.")
	return nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, available) != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Device) createDebugCallback() {
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(d.instance, &debugCreateInfo, nil, &dbg)); err != nil {
		core.LogWarn("Debug report callback unavailable: %s", err)
		return
	}
	d.debugCallback = dbg
	core.LogDebug("Vulkan debug callback created.")
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

// Release destroys the swapchain, device and instance. Every texture,
// buffer, allocator and fence must have been released before.
func (d *Device) Release() {
	if d.released {
		return
	}
	d.released = true
	if d.logicalDevice != nil {
		vk.DeviceWaitIdle(d.logicalDevice)
	}
	if d.solid != nil {
		d.solid.Release()
		d.solid = nil
	}
	if d.swapchain != nil {
		d.swapchain.Release()
		d.swapchain = nil
	}
	if d.logicalDevice != nil {
		vk.DestroyDevice(d.logicalDevice, nil)
		d.logicalDevice = nil
	}
	if d.surface != nil {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = nil
	}
	if d.debugCallback != nil {
		vk.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
		d.debugCallback = nil
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
	core.LogDebug("Vulkan device released.")
}

package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

type Device struct {
	opts  Options
	locks *VulkanLockPool

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	surface       vk.Surface

	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device
	memory         vk.PhysicalDeviceMemoryProperties
	name           string

	graphicsFamily uint32
	presentFamily  uint32
	graphicsQueue  vk.Queue
	presentQueue   vk.Queue

	rowPitchAlignment  uint64
	placementAlignment uint64

	queue     *Queue
	swapchain *Swapchain
	solid     *Texture
	released  bool
}

type physicalDeviceCandidate struct {
	handle         vk.PhysicalDevice
	name           string
	deviceType     vk.PhysicalDeviceType
	limits         vk.PhysicalDeviceLimits
	graphicsFamily uint32
	presentFamily  uint32
	portability    bool
	score          int
}

func (d *Device) selectPhysicalDevice() error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "enumerate physical devices"); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, devices), "enumerate physical devices"); err != nil {
		return err
	}

	var best *physicalDeviceCandidate
	for _, pd := range devices {
		c, reason := d.evaluatePhysicalDevice(pd)
		if c == nil {
			core.LogInfo("Skipping device: %s.", reason)
			continue
		}
		if best == nil || c.score > best.score {
			best = c
		}
	}
	if best == nil {
		return fmt.Errorf("no physical device meets the requirements")
	}

	d.physicalDevice = best.handle
	d.name = best.name
	d.graphicsFamily = best.graphicsFamily
	d.presentFamily = best.presentFamily
	d.rowPitchAlignment = max(1, uint64(best.limits.OptimalBufferCopyRowPitchAlignment))
	d.placementAlignment = max(1, uint64(best.limits.OptimalBufferCopyOffsetAlignment))

	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &d.memory)
	d.memory.Deref()
	for i := uint32(0); i < d.memory.MemoryHeapCount; i++ {
		heap := d.memory.MemoryHeaps[i]
		heap.Deref()
		gib := float64(heap.Size) / 1024 / 1024 / 1024
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared system memory: %.2f GiB", gib)
		}
	}
	core.LogInfo("Selected device '%s' (%s), graphics family %d, present family %d.",
		d.name, deviceTypeName(best.deviceType), d.graphicsFamily, d.presentFamily)
	return nil
}

// evaluatePhysicalDevice returns nil and the reason when pd cannot present
// to the surface.
func (d *Device) evaluatePhysicalDevice(pd vk.PhysicalDevice) (*physicalDeviceCandidate, string) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	props.Limits.Deref()
	c := &physicalDeviceCandidate{
		handle:     pd,
		name:       cString(props.DeviceName[:]),
		deviceType: props.DeviceType,
		limits:     props.Limits,
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)

	graphics, present := -1, -1
	for i := range families {
		families[i].Deref()
		isGraphics := families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.surface, &supportsPresent)
		canPresent := supportsPresent == vk.True
		if isGraphics && canPresent {
			graphics, present = i, i
			break
		}
		if isGraphics && graphics < 0 {
			graphics = i
		}
		if canPresent && present < 0 {
			present = i
		}
	}
	if graphics < 0 || present < 0 {
		return nil, fmt.Sprintf("%s has no graphics or present queue", c.name)
	}
	c.graphicsFamily, c.presentFamily = uint32(graphics), uint32(present)

	extensions := deviceExtensions(pd)
	if !extensions[vk.KhrSwapchainExtensionName] {
		return nil, fmt.Sprintf("%s lacks %s", c.name, vk.KhrSwapchainExtensionName)
	}
	c.portability = extensions["VK_KHR_portability_subset"]

	support, err := querySwapchainSupport(pd, d.surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, fmt.Sprintf("%s has no swapchain support for this surface", c.name)
	}

	switch c.deviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		c.score = 1000
	case vk.PhysicalDeviceTypeIntegratedGpu:
		c.score = 100
	case vk.PhysicalDeviceTypeVirtualGpu:
		c.score = 10
	}
	if graphics == present {
		c.score++
	}
	return c, ""
}

func deviceExtensions(pd vk.PhysicalDevice) map[string]bool {
	found := map[string]bool{}
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil) != vk.Success || count == 0 {
		return found
	}
	available := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, available) != vk.Success {
		return found
	}
	for i := range available {
		available[i].Deref()
		found[cString(available[i].ExtensionName[:])] = true
	}
	return found
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	default:
		return "unknown"
	}
}

func (d *Device) createLogicalDevice() error {
	families := []uint32{d.graphicsFamily}
	if d.presentFamily != d.graphicsFamily {
		families = append(families, d.presentFamily)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if runtime.GOOS == "darwin" && deviceExtensions(d.physicalDevice)["VK_KHR_portability_subset"] {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}
	var device vk.Device
	if err := check(vk.CreateDevice(d.physicalDevice, &deviceCreateInfo, nil, &device), "create logical device"); err != nil {
		return err
	}
	d.logicalDevice = device

	vk.GetDeviceQueue(device, d.graphicsFamily, 0, &d.graphicsQueue)
	vk.GetDeviceQueue(device, d.presentFamily, 0, &d.presentQueue)
	core.LogInfo("Logical device created.")
	return nil
}

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has every requested property.
func (d *Device) findMemoryIndex(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		memoryType := d.memory.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type matches filter %#x with properties %#x", typeFilter, uint32(properties))
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) Swapchain() *Swapchain {
	return d.swapchain
}

func (d *Device) CopyableFootprints(desc metadata.TextureDesc) (*metadata.FootprintTable, error) {
	return metadata.ComputeCopyableFootprints(desc, d.rowPitchAlignment, d.placementAlignment)
}

func (d *Device) CreateCommandAllocator() (renderer.CommandAllocator, error) {
	return newCommandAllocator(d)
}

func (d *Device) CreateCommandList(alloc renderer.CommandAllocator) (renderer.CommandList, error) {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return nil, fmt.Errorf("foreign command allocator %T", alloc)
	}
	return newCommandList(d, a), nil
}

func (d *Device) CreateFence(initial uint64) (renderer.Fence, error) {
	return newFence(d, initial), nil
}

func (d *Device) Queue() renderer.Queue {
	return d.queue
}

// supportsBlit reports whether format can be the source of a linear blit
// on this device.
func (d *Device) supportsBlit(format vk.Format) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physicalDevice, format, &props)
	props.Deref()
	want := vk.FormatFeatureFlags(vk.FormatFeatureBlitSrcBit | vk.FormatFeatureSampledImageFilterLinearBit)
	return props.OptimalTilingFeatures&want == want
}

package vulkan

import (
	"fmt"
	stdmath "math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// RenderTarget is one swapchain image.
type RenderTarget struct {
	id     core.ResourceID
	image  vk.Image
	width  uint32
	height uint32
	state  metadata.ResourceState
	layout vk.ImageLayout

	renderComplete vk.Semaphore
	// Set once a submission signaled renderComplete, cleared by present.
	rendered bool
}

func (rt *RenderTarget) ID() core.ResourceID {
	return rt.id
}

func (rt *RenderTarget) State() metadata.ResourceState {
	return rt.state
}

func (rt *RenderTarget) Width() uint32 {
	return rt.width
}

func (rt *RenderTarget) Height() uint32 {
	return rt.height
}

type SwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func querySwapchainSupport(pd vk.PhysicalDevice, surface vk.Surface) (*SwapchainSupportInfo, error) {
	info := &SwapchainSupportInfo{}
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &info.Capabilities), "surface capabilities"); err != nil {
		return nil, err
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil), "surface formats"); err != nil {
		return nil, err
	}
	if formatCount > 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, info.Formats), "surface formats"); err != nil {
			return nil, err
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil), "surface present modes"); err != nil {
		return nil, err
	}
	if modeCount > 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, info.PresentModes), "surface present modes"); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// chooseSurfaceFormat prefers 8-bit BGRA UNORM in the sRGB colour space.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	best := vk.PresentModeFifo
	for _, mode := range modes {
		switch mode {
		case vk.PresentModeMailbox:
			return mode
		case vk.PresentModeImmediate:
			best = mode
		}
	}
	return best
}

// chooseExtent uses the surface's fixed extent when it has one and clamps
// the requested size to what the surface allows otherwise.
func chooseExtent(current, minExtent, maxExtent vk.Extent2D, width, height uint32) vk.Extent2D {
	if current.Width != stdmath.MaxUint32 {
		return current
	}
	return vk.Extent2D{
		Width:  math.Clamp(width, minExtent.Width, maxExtent.Width),
		Height: math.Clamp(height, minExtent.Height, maxExtent.Height),
	}
}

func chooseImageCount(minCount, maxCount, wanted uint32) uint32 {
	count := max(minCount, wanted)
	if maxCount > 0 && count > maxCount {
		count = maxCount
	}
	return count
}

type Swapchain struct {
	device       *Device
	handle       vk.Swapchain
	format       vk.SurfaceFormat
	presentMode  vk.PresentMode
	extent       vk.Extent2D
	targets      []*RenderTarget
	index        uint32
	acquireFence vk.Fence
	presents     uint64
}

func newSwapchain(d *Device, width, height uint32) (*Swapchain, error) {
	s := &Swapchain{device: d}
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if err := check(vk.CreateFence(d.logicalDevice, &fenceCreateInfo, nil, &fence), "create acquire fence"); err != nil {
		return nil, err
	}
	s.acquireFence = fence
	if err := s.create(width, height); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create(width, height uint32) error {
	d := s.device
	support, err := querySwapchainSupport(d.physicalDevice, d.surface)
	if err != nil {
		return err
	}
	if len(support.Formats) == 0 {
		return fmt.Errorf("surface reports no formats")
	}
	caps := support.Capabilities
	if vk.ImageUsageFlagBits(caps.SupportedUsageFlags)&vk.ImageUsageTransferDstBit == 0 {
		return fmt.Errorf("surface images cannot be transfer destinations")
	}
	extent := chooseExtent(caps.CurrentExtent, caps.MinImageExtent, caps.MaxImageExtent, width, height)
	if extent.Width == 0 || extent.Height == 0 {
		return fmt.Errorf("surface extent is %dx%d: %w", extent.Width, extent.Height, core.ErrSwapchainBooting)
	}
	format := chooseSurfaceFormat(support.Formats)
	presentMode := choosePresentMode(support.PresentModes, d.opts.VSync)
	imageCount := chooseImageCount(caps.MinImageCount, caps.MaxImageCount, d.opts.BufferCount)
	if len(s.targets) > 0 {
		imageCount = uint32(len(s.targets))
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     s.handle,
	}
	if d.graphicsFamily != d.presentFamily {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{d.graphicsFamily, d.presentFamily}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	err = d.locks.SafeCall(SwapchainManagement, func() error {
		return check(vk.CreateSwapchain(d.logicalDevice, &swapchainCreateInfo, nil, &handle), "create swapchain")
	})
	if err != nil {
		return err
	}
	s.destroyTargets()
	if s.handle != nil {
		vk.DestroySwapchain(d.logicalDevice, s.handle, nil)
	}
	s.handle = handle
	s.format = format
	s.presentMode = presentMode
	s.extent = extent

	var count uint32
	if err := check(vk.GetSwapchainImages(d.logicalDevice, handle, &count, nil), "get swapchain images"); err != nil {
		return err
	}
	images := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(d.logicalDevice, handle, &count, images), "get swapchain images"); err != nil {
		return err
	}
	s.targets = make([]*RenderTarget, count)
	for i, image := range images {
		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		var semaphore vk.Semaphore
		if err := check(vk.CreateSemaphore(d.logicalDevice, &semaphoreCreateInfo, nil, &semaphore), "create semaphore"); err != nil {
			return err
		}
		s.targets[i] = &RenderTarget{
			id:             core.NewResourceID(),
			image:          image,
			width:          extent.Width,
			height:         extent.Height,
			state:          metadata.ResourceStatePresent,
			layout:         vk.ImageLayoutUndefined,
			renderComplete: semaphore,
		}
	}
	core.LogInfo("Swapchain created: %dx%d, %d images, format %d, present mode %d.", extent.Width, extent.Height, count, format.Format, presentMode)
	return s.acquire()
}

// acquire blocks until the next image is usable and makes it current.
func (s *Swapchain) acquire() error {
	d := s.device
	var index uint32
	res := vk.AcquireNextImage(d.logicalDevice, s.handle, ^uint64(0), nil, s.acquireFence, &index)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		core.LogDebug("Swapchain out of date on acquire, recreating.")
		vk.DeviceWaitIdle(d.logicalDevice)
		return s.create(s.extent.Width, s.extent.Height)
	default:
		return check(res, "acquire next image")
	}
	if err := check(vk.WaitForFences(d.logicalDevice, 1, []vk.Fence{s.acquireFence}, vk.True, ^uint64(0)), "wait for acquire"); err != nil {
		return err
	}
	if err := check(vk.ResetFences(d.logicalDevice, 1, []vk.Fence{s.acquireFence}), "reset acquire fence"); err != nil {
		return err
	}
	s.index = index
	return nil
}

func (s *Swapchain) BufferCount() uint32 {
	return uint32(len(s.targets))
}

func (s *Swapchain) CurrentBackBufferIndex() uint32 {
	return s.index
}

func (s *Swapchain) BackBuffer(index uint32) renderer.RenderTarget {
	return s.targets[index]
}

func (s *Swapchain) Extent() (uint32, uint32) {
	return s.extent.Width, s.extent.Height
}

func (s *Swapchain) Presents() uint64 {
	return s.presents
}

func (s *Swapchain) Present() error {
	d := s.device
	rt := s.targets[s.index]
	if !rt.rendered {
		return fmt.Errorf("present of image %d that was never submitted", s.index)
	}
	rt.rendered = false

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{rt.renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{s.index},
	}
	var res vk.Result
	d.locks.SafeQueueCall(d.presentFamily, func() error {
		res = vk.QueuePresent(d.presentQueue, &presentInfo)
		return nil
	})
	s.presents++

	switch res {
	case vk.Success:
		return s.acquire()
	case vk.Suboptimal, vk.ErrorOutOfDate:
		// The surface changed size under us; the new extent comes from the surface.
		core.LogDebug("Swapchain suboptimal or out of date on present, recreating.")
		vk.DeviceWaitIdle(d.logicalDevice)
		return s.create(s.extent.Width, s.extent.Height)
	default:
		return check(res, "present")
	}
}

// Resize recreates the swapchain. The caller waits for the GPU first.
func (s *Swapchain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("resize to %dx%d: %w", width, height, core.ErrSwapchainBooting)
	}
	return s.create(width, height)
}

func (s *Swapchain) destroyTargets() {
	for _, rt := range s.targets {
		if rt.renderComplete != nil {
			vk.DestroySemaphore(s.device.logicalDevice, rt.renderComplete, nil)
		}
	}
	s.targets = nil
}

func (s *Swapchain) Release() {
	d := s.device
	s.destroyTargets()
	if s.handle != nil {
		vk.DestroySwapchain(d.logicalDevice, s.handle, nil)
		s.handle = nil
	}
	if s.acquireFence != nil {
		vk.DestroyFence(d.logicalDevice, s.acquireFence, nil)
		s.acquireFence = nil
	}
}

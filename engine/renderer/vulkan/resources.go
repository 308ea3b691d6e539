package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

type Texture struct {
	device *Device
	id     core.ResourceID
	desc   metadata.TextureDesc
	state  metadata.ResourceState

	format   vk.Format
	image    vk.Image
	memory   vk.DeviceMemory
	layout   vk.ImageLayout
	blitable bool
}

func (d *Device) CreateTexture(desc metadata.TextureDesc, initial metadata.ResourceState) (renderer.Texture, error) {
	format, ok := VulkanFormat(desc.Format)
	if !ok {
		return nil, fmt.Errorf("%s: %w", desc.Format, core.ErrUnsupportedFormat)
	}
	t := &Texture{
		device:   d,
		id:       core.NewResourceID(),
		desc:     desc,
		state:    initial,
		format:   format,
		layout:   vk.ImageLayoutUndefined,
		blitable: d.supportsBlit(format),
	}

	err := d.locks.SafeCall(ResourceManagement, func() error {
		imageInfo := vk.ImageCreateInfo{
			SType:     vk.StructureTypeImageCreateInfo,
			ImageType: vk.ImageType2d,
			Format:    format,
			Extent: vk.Extent3D{
				Width:  desc.Width,
				Height: desc.Height,
				Depth:  1,
			},
			MipLevels:     desc.MipLevels,
			ArrayLayers:   desc.ArraySize,
			Samples:       vk.SampleCount1Bit,
			Tiling:        vk.ImageTilingOptimal,
			Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageSampledBit),
			SharingMode:   vk.SharingModeExclusive,
			InitialLayout: vk.ImageLayoutUndefined,
		}
		var image vk.Image
		if err := check(vk.CreateImage(d.logicalDevice, &imageInfo, nil, &image), "create image"); err != nil {
			return err
		}
		t.image = image

		var memReqs vk.MemoryRequirements
		vk.GetImageMemoryRequirements(d.logicalDevice, image, &memReqs)
		memReqs.Deref()
		memTypeIndex, err := d.findMemoryIndex(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
		if err != nil {
			return err
		}
		allocInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: memTypeIndex,
		}
		var memory vk.DeviceMemory
		if err := check(vk.AllocateMemory(d.logicalDevice, &allocInfo, nil, &memory), "allocate image memory"); err != nil {
			return err
		}
		t.memory = memory
		return check(vk.BindImageMemory(d.logicalDevice, image, memory, 0), "bind image memory")
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("create %dx%d %s texture: %w", desc.Width, desc.Height, desc.Format, err)
	}
	return t, nil
}

func (t *Texture) ID() core.ResourceID {
	return t.id
}

func (t *Texture) State() metadata.ResourceState {
	return t.state
}

func (t *Texture) Desc() metadata.TextureDesc {
	return t.desc
}

func (t *Texture) subresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     t.desc.MipLevels,
		BaseArrayLayer: 0,
		LayerCount:     t.desc.ArraySize,
	}
}

func (t *Texture) Release() {
	if t.image != nil {
		vk.DestroyImage(t.device.logicalDevice, t.image, nil)
		t.image = nil
	}
	if t.memory != nil {
		vk.FreeMemory(t.device.logicalDevice, t.memory, nil)
		t.memory = nil
	}
}

// StagingBuffer is a host-visible, host-coherent transfer source.
type StagingBuffer struct {
	device *Device
	size   uint64
	buffer vk.Buffer
	memory vk.DeviceMemory
	mapped bool
}

func (d *Device) CreateStagingBuffer(size uint64) (renderer.StagingBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("zero sized staging buffer: %w", core.ErrUpload)
	}
	b := &StagingBuffer{device: d, size: size}
	err := d.locks.SafeCall(ResourceManagement, func() error {
		bufferInfo := vk.BufferCreateInfo{
			SType:       vk.StructureTypeBufferCreateInfo,
			Size:        vk.DeviceSize(size),
			Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
			SharingMode: vk.SharingModeExclusive,
		}
		var buffer vk.Buffer
		if err := check(vk.CreateBuffer(d.logicalDevice, &bufferInfo, nil, &buffer), "create staging buffer"); err != nil {
			return err
		}
		b.buffer = buffer

		var memReqs vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(d.logicalDevice, buffer, &memReqs)
		memReqs.Deref()
		memTypeIndex, err := d.findMemoryIndex(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			return err
		}
		allocInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: memTypeIndex,
		}
		var memory vk.DeviceMemory
		if err := check(vk.AllocateMemory(d.logicalDevice, &allocInfo, nil, &memory), "allocate staging memory"); err != nil {
			return err
		}
		b.memory = memory
		return check(vk.BindBufferMemory(d.logicalDevice, buffer, memory, 0), "bind staging memory")
	})
	if err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

func (b *StagingBuffer) Size() uint64 {
	return b.size
}

func (b *StagingBuffer) Map() ([]byte, error) {
	if b.memory == nil {
		return nil, fmt.Errorf("map staging buffer: %w", core.ErrResourceReleased)
	}
	var data unsafe.Pointer
	if err := check(vk.MapMemory(b.device.logicalDevice, b.memory, 0, vk.DeviceSize(b.size), 0, &data), "map staging memory"); err != nil {
		return nil, err
	}
	b.mapped = true
	return unsafe.Slice((*byte)(data), b.size), nil
}

func (b *StagingBuffer) Unmap() {
	if b.mapped {
		vk.UnmapMemory(b.device.logicalDevice, b.memory)
		b.mapped = false
	}
}

func (b *StagingBuffer) Release() {
	b.Unmap()
	if b.buffer != nil {
		vk.DestroyBuffer(b.device.logicalDevice, b.buffer, nil)
		b.buffer = nil
	}
	if b.memory != nil {
		vk.FreeMemory(b.device.logicalDevice, b.memory, nil)
		b.memory = nil
	}
}

// solidTexture is the 1x1 image placeholder fills are cleared into and
// stretched from.
func (d *Device) solidTexture() (*Texture, error) {
	if d.solid != nil {
		return d.solid, nil
	}
	desc := metadata.TextureDesc{Width: 1, Height: 1, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1}
	t, err := d.CreateTexture(desc, metadata.ResourceStateCopyDest)
	if err != nil {
		return nil, err
	}
	d.solid = t.(*Texture)
	return d.solid, nil
}

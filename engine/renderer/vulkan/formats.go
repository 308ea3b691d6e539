package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

var pixelFormats = map[metadata.PixelFormat]vk.Format{
	metadata.PixelFormatR32G32B32A32Float: vk.FormatR32g32b32a32Sfloat,
	metadata.PixelFormatR16G16B16A16Float: vk.FormatR16g16b16a16Sfloat,
	metadata.PixelFormatR32G32Float:       vk.FormatR32g32Sfloat,
	metadata.PixelFormatR10G10B10A2Unorm:  vk.FormatA2b10g10r10UnormPack32,
	metadata.PixelFormatR11G11B10Float:    vk.FormatB10g11r11UfloatPack32,
	metadata.PixelFormatR8G8B8A8Unorm:     vk.FormatR8g8b8a8Unorm,
	metadata.PixelFormatR8G8B8A8UnormSrgb: vk.FormatR8g8b8a8Srgb,
	metadata.PixelFormatR16G16Float:       vk.FormatR16g16Sfloat,
	metadata.PixelFormatR32Float:          vk.FormatR32Sfloat,
	metadata.PixelFormatR8G8Unorm:         vk.FormatR8g8Unorm,
	metadata.PixelFormatR8G8Snorm:         vk.FormatR8g8Snorm,
	metadata.PixelFormatR16Float:          vk.FormatR16Sfloat,
	metadata.PixelFormatR8Unorm:           vk.FormatR8Unorm,
	metadata.PixelFormatR8Snorm:           vk.FormatR8Snorm,
	metadata.PixelFormatBC1Unorm:          vk.FormatBc1RgbaUnormBlock,
	metadata.PixelFormatBC1UnormSrgb:      vk.FormatBc1RgbaSrgbBlock,
	metadata.PixelFormatBC2Unorm:          vk.FormatBc2UnormBlock,
	metadata.PixelFormatBC2UnormSrgb:      vk.FormatBc2SrgbBlock,
	metadata.PixelFormatBC3Unorm:          vk.FormatBc3UnormBlock,
	metadata.PixelFormatBC3UnormSrgb:      vk.FormatBc3SrgbBlock,
	metadata.PixelFormatBC4Unorm:          vk.FormatBc4UnormBlock,
	metadata.PixelFormatBC4Snorm:          vk.FormatBc4SnormBlock,
	metadata.PixelFormatBC5Unorm:          vk.FormatBc5UnormBlock,
	metadata.PixelFormatBC5Snorm:          vk.FormatBc5SnormBlock,
	metadata.PixelFormatB8G8R8A8Unorm:     vk.FormatB8g8r8a8Unorm,
	metadata.PixelFormatB8G8R8A8UnormSrgb: vk.FormatB8g8r8a8Srgb,
	metadata.PixelFormatBC6HUF16:          vk.FormatBc6hUfloatBlock,
	metadata.PixelFormatBC6HSF16:          vk.FormatBc6hSfloatBlock,
	metadata.PixelFormatBC7Unorm:          vk.FormatBc7UnormBlock,
	metadata.PixelFormatBC7UnormSrgb:      vk.FormatBc7SrgbBlock,
}

// VulkanFormat maps a pixel format onto its Vulkan equivalent.
func VulkanFormat(f metadata.PixelFormat) (vk.Format, bool) {
	format, ok := pixelFormats[f]
	return format, ok
}

// imageLayout is the layout a resource state maps to. Render targets are
// written with transfer commands (clears and blits), never as attachments.
func imageLayout(state metadata.ResourceState) vk.ImageLayout {
	switch state {
	case metadata.ResourceStateCopyDest, metadata.ResourceStateRenderTarget:
		return vk.ImageLayoutTransferDstOptimal
	case metadata.ResourceStateShaderResource:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.ResourceStatePresent:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutGeneral
	}
}

// layoutAccess returns the access mask and pipeline stage that last touched
// (or will next touch) an image in layout.
func layoutAccess(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageTransferBit)
	case vk.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	case vk.ImageLayoutUndefined:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	default:
		return vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit), vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}
}

// bufferRowLength converts a footprint row pitch into the texel row length
// a buffer-to-image copy expects.
func bufferRowLength(fp metadata.SubresourceFootprint) uint32 {
	element := uint64(fp.Format.ElementBytes())
	if element == 0 {
		return 0
	}
	units := uint32(fp.RowPitch / element)
	if fp.Format.IsCompressed() {
		return units * 4
	}
	return units
}

// subresourceLayers splits a flat subresource index into mip and array slice.
func subresourceLayers(desc metadata.TextureDesc, subresource uint32) (mip, slice uint32) {
	if desc.MipLevels == 0 {
		return 0, 0
	}
	return subresource % desc.MipLevels, subresource / desc.MipLevels
}

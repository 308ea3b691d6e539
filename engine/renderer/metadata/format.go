package metadata

import "fmt"

// PixelFormat values match the DXGI_FORMAT numbering so they can be written
// straight into a DDS DX10 header.
type PixelFormat uint32

const (
	PixelFormatUnknown           PixelFormat = 0
	PixelFormatR32G32B32A32Float PixelFormat = 2
	PixelFormatR16G16B16A16Float PixelFormat = 10
	PixelFormatR32G32Float       PixelFormat = 16
	PixelFormatR10G10B10A2Unorm  PixelFormat = 24
	PixelFormatR11G11B10Float    PixelFormat = 26
	PixelFormatR8G8B8A8Unorm     PixelFormat = 28
	PixelFormatR8G8B8A8UnormSrgb PixelFormat = 29
	PixelFormatR16G16Float       PixelFormat = 34
	PixelFormatR32Float          PixelFormat = 41
	PixelFormatR8G8Unorm         PixelFormat = 49
	PixelFormatR8G8Snorm         PixelFormat = 51
	PixelFormatR16Float          PixelFormat = 54
	PixelFormatR8Unorm           PixelFormat = 61
	PixelFormatR8Snorm           PixelFormat = 63
	PixelFormatBC1Unorm          PixelFormat = 71
	PixelFormatBC1UnormSrgb      PixelFormat = 72
	PixelFormatBC2Unorm          PixelFormat = 74
	PixelFormatBC2UnormSrgb      PixelFormat = 75
	PixelFormatBC3Unorm          PixelFormat = 77
	PixelFormatBC3UnormSrgb      PixelFormat = 78
	PixelFormatBC4Unorm          PixelFormat = 80
	PixelFormatBC4Snorm          PixelFormat = 81
	PixelFormatBC5Unorm          PixelFormat = 83
	PixelFormatBC5Snorm          PixelFormat = 84
	PixelFormatB8G8R8A8Unorm     PixelFormat = 87
	PixelFormatB8G8R8A8UnormSrgb PixelFormat = 91
	PixelFormatBC6HUF16          PixelFormat = 95
	PixelFormatBC6HSF16          PixelFormat = 96
	PixelFormatBC7Unorm          PixelFormat = 98
	PixelFormatBC7UnormSrgb      PixelFormat = 99
)

type formatInfo struct {
	name string
	// Bytes per pixel for plain formats, bytes per 4x4 block for block-compressed ones.
	bytes      uint32
	compressed bool
	srgb       bool
}

var formatTable = map[PixelFormat]formatInfo{
	PixelFormatR32G32B32A32Float: {"R32G32B32A32_FLOAT", 16, false, false},
	PixelFormatR16G16B16A16Float: {"R16G16B16A16_FLOAT", 8, false, false},
	PixelFormatR32G32Float:       {"R32G32_FLOAT", 8, false, false},
	PixelFormatR10G10B10A2Unorm:  {"R10G10B10A2_UNORM", 4, false, false},
	PixelFormatR11G11B10Float:    {"R11G11B10_FLOAT", 4, false, false},
	PixelFormatR8G8B8A8Unorm:     {"R8G8B8A8_UNORM", 4, false, false},
	PixelFormatR8G8B8A8UnormSrgb: {"R8G8B8A8_UNORM_SRGB", 4, false, true},
	PixelFormatR16G16Float:       {"R16G16_FLOAT", 4, false, false},
	PixelFormatR32Float:          {"R32_FLOAT", 4, false, false},
	PixelFormatR8G8Unorm:         {"R8G8_UNORM", 2, false, false},
	PixelFormatR8G8Snorm:         {"R8G8_SNORM", 2, false, false},
	PixelFormatR16Float:          {"R16_FLOAT", 2, false, false},
	PixelFormatR8Unorm:           {"R8_UNORM", 1, false, false},
	PixelFormatR8Snorm:           {"R8_SNORM", 1, false, false},
	PixelFormatBC1Unorm:          {"BC1_UNORM", 8, true, false},
	PixelFormatBC1UnormSrgb:      {"BC1_UNORM_SRGB", 8, true, true},
	PixelFormatBC2Unorm:          {"BC2_UNORM", 16, true, false},
	PixelFormatBC2UnormSrgb:      {"BC2_UNORM_SRGB", 16, true, true},
	PixelFormatBC3Unorm:          {"BC3_UNORM", 16, true, false},
	PixelFormatBC3UnormSrgb:      {"BC3_UNORM_SRGB", 16, true, true},
	PixelFormatBC4Unorm:          {"BC4_UNORM", 8, true, false},
	PixelFormatBC4Snorm:          {"BC4_SNORM", 8, true, false},
	PixelFormatBC5Unorm:          {"BC5_UNORM", 16, true, false},
	PixelFormatBC5Snorm:          {"BC5_SNORM", 16, true, false},
	PixelFormatB8G8R8A8Unorm:     {"B8G8R8A8_UNORM", 4, false, false},
	PixelFormatB8G8R8A8UnormSrgb: {"B8G8R8A8_UNORM_SRGB", 4, false, true},
	PixelFormatBC6HUF16:          {"BC6H_UF16", 16, true, false},
	PixelFormatBC6HSF16:          {"BC6H_SF16", 16, true, false},
	PixelFormatBC7Unorm:          {"BC7_UNORM", 16, true, false},
	PixelFormatBC7UnormSrgb:      {"BC7_UNORM_SRGB", 16, true, true},
}

func (f PixelFormat) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return fmt.Sprintf("FORMAT(%d)", uint32(f))
}

func (f PixelFormat) IsValid() bool {
	_, ok := formatTable[f]
	return ok
}

// IsCompressed reports whether the format is stored in 4x4 blocks.
func (f PixelFormat) IsCompressed() bool {
	return formatTable[f].compressed
}

func (f PixelFormat) IsSRGB() bool {
	return formatTable[f].srgb
}

// ElementBytes is the size of one pixel, or one 4x4 block for compressed formats.
func (f PixelFormat) ElementBytes() uint32 {
	return formatTable[f].bytes
}

// RowInfo returns the unpadded byte size of one row and the number of rows for
// a surface of the given size. Compressed formats count rows of blocks.
func (f PixelFormat) RowInfo(width, height uint32) (rowBytes uint64, rowCount uint32) {
	info := formatTable[f]
	if info.compressed {
		bw := max(1, (width+3)/4)
		bh := max(1, (height+3)/4)
		return uint64(bw) * uint64(info.bytes), bh
	}
	return uint64(width) * uint64(info.bytes), height
}

// ParsePixelFormat accepts the names returned by String.
func ParsePixelFormat(name string) (PixelFormat, error) {
	for f, info := range formatTable {
		if info.name == name {
			return f, nil
		}
	}
	return PixelFormatUnknown, fmt.Errorf("unknown pixel format %q", name)
}

package codec

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

type Quality uint8

const (
	QualityFast Quality = iota
	QualityNormal
	QualityBest
	QualityCount
)

func (q Quality) String() string {
	switch q {
	case QualityFast:
		return "Fast"
	case QualityBest:
		return "Best"
	default:
		return "Normal"
	}
}

type MipFilter uint8

const (
	MipFilterPoint MipFilter = iota
	MipFilterBox
	MipFilterLinear
	MipFilterFant
	MipFilterKaiser
	MipFilterCount
)

func (f MipFilter) String() string {
	switch f {
	case MipFilterPoint:
		return "Point"
	case MipFilterBox:
		return "Box"
	case MipFilterLinear:
		return "Linear"
	case MipFilterKaiser:
		return "Kaiser"
	default:
		return "Fant"
	}
}

// CompressFlags tune the block encoders.
type CompressFlags uint32

const CompressDefault CompressFlags = 0

const (
	// Single pass endpoint fit for BC7.
	CompressBC7Quick CompressFlags = 1 << iota
	// Exhaustive endpoint refinement and p-bit search for BC7.
	CompressBC7Use3Subsets
	// Every channel weighs the same in the error metric.
	CompressUniform
)

// QualityFlags maps the three user facing quality levels onto encoder flags.
func QualityFlags(q Quality, normalMap bool) CompressFlags {
	flags := CompressDefault
	switch q {
	case QualityFast:
		flags |= CompressBC7Quick
	case QualityBest:
		flags |= CompressBC7Use3Subsets
	}
	if normalMap {
		flags |= CompressUniform
	}
	return flags
}

var srgbVariants = map[metadata.PixelFormat]metadata.PixelFormat{
	metadata.PixelFormatBC1Unorm:      metadata.PixelFormatBC1UnormSrgb,
	metadata.PixelFormatBC2Unorm:      metadata.PixelFormatBC2UnormSrgb,
	metadata.PixelFormatBC3Unorm:      metadata.PixelFormatBC3UnormSrgb,
	metadata.PixelFormatBC7Unorm:      metadata.PixelFormatBC7UnormSrgb,
	metadata.PixelFormatR8G8B8A8Unorm: metadata.PixelFormatR8G8B8A8UnormSrgb,
	metadata.PixelFormatB8G8R8A8Unorm: metadata.PixelFormatB8G8R8A8UnormSrgb,
}

// ResolveSRGB returns the sRGB variant of format when srgb is set and one
// exists. Everything else passes through unchanged.
func ResolveSRGB(format metadata.PixelFormat, srgb bool) metadata.PixelFormat {
	if !srgb {
		return format
	}
	if v, ok := srgbVariants[format]; ok {
		return v
	}
	return format
}

// CandidateFormats is the list of selectable targets in menu order.
var CandidateFormats = []metadata.PixelFormat{
	metadata.PixelFormatR8Unorm,
	metadata.PixelFormatR8Snorm,
	metadata.PixelFormatR8G8Unorm,
	metadata.PixelFormatR8G8Snorm,
	metadata.PixelFormatR8G8B8A8Unorm,
	metadata.PixelFormatR8G8B8A8UnormSrgb,
	metadata.PixelFormatB8G8R8A8Unorm,
	metadata.PixelFormatB8G8R8A8UnormSrgb,
	metadata.PixelFormatR10G10B10A2Unorm,
	metadata.PixelFormatR11G11B10Float,
	metadata.PixelFormatR16Float,
	metadata.PixelFormatR16G16Float,
	metadata.PixelFormatR16G16B16A16Float,
	metadata.PixelFormatR32Float,
	metadata.PixelFormatR32G32Float,
	metadata.PixelFormatR32G32B32A32Float,
	metadata.PixelFormatBC1Unorm,
	metadata.PixelFormatBC1UnormSrgb,
	metadata.PixelFormatBC2Unorm,
	metadata.PixelFormatBC2UnormSrgb,
	metadata.PixelFormatBC3Unorm,
	metadata.PixelFormatBC3UnormSrgb,
	metadata.PixelFormatBC4Unorm,
	metadata.PixelFormatBC4Snorm,
	metadata.PixelFormatBC5Unorm,
	metadata.PixelFormatBC5Snorm,
	metadata.PixelFormatBC6HUF16,
	metadata.PixelFormatBC6HSF16,
	metadata.PixelFormatBC7Unorm,
	metadata.PixelFormatBC7UnormSrgb,
}

// CandidateIndex returns the menu position of format, or -1.
func CandidateIndex(format metadata.PixelFormat) int {
	for i, f := range CandidateFormats {
		if f == format {
			return i
		}
	}
	return -1
}

// NextCandidate steps through CandidateFormats, wrapping at both ends.
func NextCandidate(format metadata.PixelFormat, step int) metadata.PixelFormat {
	n := len(CandidateFormats)
	i := CandidateIndex(format)
	if i < 0 {
		return CandidateFormats[0]
	}
	return CandidateFormats[((i+step)%n+n)%n]
}

func ParseQuality(s string) (Quality, error) {
	for q := Quality(0); q < QualityCount; q++ {
		if strings.EqualFold(q.String(), strings.TrimSpace(s)) {
			return q, nil
		}
	}
	return QualityNormal, fmt.Errorf("quality %q: %w", s, core.ErrUnknown)
}

func ParseMipFilter(s string) (MipFilter, error) {
	for f := MipFilter(0); f < MipFilterCount; f++ {
		if strings.EqualFold(f.String(), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return MipFilterFant, fmt.Errorf("mip filter %q: %w", s, core.ErrUnknown)
}

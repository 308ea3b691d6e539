package viewer

import (
	"github.com/spaghettifunk/texlab/engine/codec"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

const (
	MIN_ALPHA_WEIGHT float32 = 0
	MAX_ALPHA_WEIGHT float32 = 2
)

/**
 * @brief Everything the user can tune about the compressed preview.
 */
type Settings struct {
	Format          metadata.PixelFormat
	MipFilter       codec.MipFilter
	GenerateMipmaps bool
	SRGB            bool
	Quality         codec.Quality
	AlphaWeight     float32
	// Display hint only, never changes the compressed data.
	ChannelView  metadata.ChannelView
	IsNormalMap  bool
	ReconstructZ bool
}

func DefaultSettings() Settings {
	return Settings{
		Format:          metadata.PixelFormatBC7Unorm,
		MipFilter:       codec.MipFilterFant,
		GenerateMipmaps: true,
		SRGB:            false,
		Quality:         codec.QualityNormal,
		AlphaWeight:     1.0,
		ChannelView:     metadata.ChannelViewRGBA,
	}
}

// Normalized returns a copy with every field inside its valid range.
func (s Settings) Normalized() Settings {
	s.AlphaWeight = math.Clamp(s.AlphaWeight, MIN_ALPHA_WEIGHT, MAX_ALPHA_WEIGHT)
	if !s.Format.IsValid() {
		s.Format = metadata.PixelFormatBC7Unorm
	}
	if s.Quality >= codec.QualityCount {
		s.Quality = codec.QualityNormal
	}
	if s.MipFilter >= codec.MipFilterCount {
		s.MipFilter = codec.MipFilterFant
	}
	if s.ChannelView >= metadata.ChannelViewCount {
		s.ChannelView = metadata.ChannelViewRGBA
	}
	return s
}

// ResolvedFormat is the format actually passed to the compressor.
func (s Settings) ResolvedFormat() metadata.PixelFormat {
	return codec.ResolveSRGB(s.Format, s.SRGB)
}

func (s Settings) CompressFlags() codec.CompressFlags {
	return codec.QualityFlags(s.Quality, s.IsNormalMap)
}

// affectsCompression reports whether going from s to o needs a new preview.
func (s Settings) affectsCompression(o Settings) bool {
	s.ChannelView, o.ChannelView = 0, 0
	return s != o
}

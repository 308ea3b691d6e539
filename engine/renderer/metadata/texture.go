package metadata

import (
	"fmt"
	"strings"
)

/**
 * @brief Describes a device-resident 2D texture (optionally an array).
 */
type TextureDesc struct {
	Width     uint32
	Height    uint32
	Format    PixelFormat
	MipLevels uint32
	ArraySize uint32
}

func (m ImageMetadata) TextureDesc() TextureDesc {
	return TextureDesc{
		Width:     m.Width,
		Height:    m.Height,
		Format:    m.Format,
		MipLevels: m.MipLevels,
		ArraySize: m.ArraySize,
	}
}

func (d TextureDesc) SubresourceCount() uint32 {
	return d.MipLevels * d.ArraySize
}

// ResourceState is the usage a resource has been transitioned to.
type ResourceState uint8

const (
	ResourceStateCommon ResourceState = iota
	ResourceStateCopyDest
	ResourceStateShaderResource
	ResourceStateRenderTarget
	ResourceStatePresent
)

func (s ResourceState) String() string {
	switch s {
	case ResourceStateCopyDest:
		return "copy-dest"
	case ResourceStateShaderResource:
		return "shader-resource"
	case ResourceStateRenderTarget:
		return "render-target"
	case ResourceStatePresent:
		return "present"
	default:
		return "common"
	}
}

// ChannelView selects which channels the presentation shows.
type ChannelView uint8

const (
	ChannelViewRGBA ChannelView = iota
	ChannelViewR
	ChannelViewG
	ChannelViewB
	ChannelViewA
	ChannelViewDiff
	ChannelViewCount
)

func (c ChannelView) String() string {
	switch c {
	case ChannelViewR:
		return "R"
	case ChannelViewG:
		return "G"
	case ChannelViewB:
		return "B"
	case ChannelViewA:
		return "A"
	case ChannelViewDiff:
		return "Diff"
	default:
		return "RGBA"
	}
}

func ParseChannelView(s string) (ChannelView, error) {
	for c := ChannelView(0); c < ChannelViewCount; c++ {
		if strings.EqualFold(c.String(), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return ChannelViewRGBA, fmt.Errorf("unknown channel view %q", s)
}

package codec

import (
	"fmt"
	stdmath "math"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

var (
	boxKernel = &draw.Kernel{Support: 0.5, At: func(t float64) float64 {
		if t < 0.5 {
			return 1
		}
		return 0
	}}
	// Area average over a slightly wider footprint, smoother than box on odd sizes.
	fantKernel = &draw.Kernel{Support: 1, At: func(t float64) float64 {
		if t < 1 {
			return 1
		}
		return 0
	}}
	kaiserKernel = &draw.Kernel{Support: KAISER_SUPPORT, At: kaiser}
)

const (
	KAISER_SUPPORT = 3.0
	KAISER_ALPHA   = 4.0
)

// kaiser is a sinc windowed by a Kaiser window over [-KAISER_SUPPORT, KAISER_SUPPORT].
func kaiser(t float64) float64 {
	if t >= KAISER_SUPPORT {
		return 0
	}
	x := t / KAISER_SUPPORT
	window := besselI0(KAISER_ALPHA*stdmath.Sqrt(1-x*x)) / besselI0(KAISER_ALPHA)
	if t < 1e-8 {
		return window
	}
	return window * stdmath.Sin(stdmath.Pi*t) / (stdmath.Pi * t)
}

// besselI0 is the zeroth order modified Bessel function of the first kind.
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	q := x * x / 4
	for k := 1.0; term > sum*1e-12; k++ {
		term *= q / (k * k)
		sum += term
	}
	return sum
}

func scalerFor(filter MipFilter) draw.Scaler {
	switch filter {
	case MipFilterPoint:
		return draw.NearestNeighbor
	case MipFilterBox:
		return boxKernel
	case MipFilterLinear:
		return draw.BiLinear
	case MipFilterKaiser:
		return kaiserKernel
	default:
		return fantKernel
	}
}

// GenerateMipChain returns a copy of img with a full mip chain down to 1x1
// for every array slice. Existing lower levels are regenerated from level 0.
func GenerateMipChain(img *metadata.Image, filter MipFilter) (*metadata.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("mip chain: %w: %w", core.ErrCodec, err)
	}
	meta := img.Metadata
	if !isRGBA8(meta.Format) {
		return nil, fmt.Errorf("mip chain of %s: %w: %w", meta.Format, core.ErrCodec, core.ErrUnsupportedFormat)
	}
	meta.MipLevels = metadata.FullMipCount(meta.Width, meta.Height)
	out, err := metadata.NewImage(meta)
	if err != nil {
		return nil, fmt.Errorf("mip chain: %w: %w", core.ErrCodec, err)
	}

	scaler := scalerFor(filter)
	for slice := uint32(0); slice < meta.ArraySize; slice++ {
		prev := toNRGBA(img.Subresource(0, slice))
		copyNRGBA(out.Subresource(0, slice), prev)
		for mip := uint32(1); mip < meta.MipLevels; mip++ {
			sr := out.Subresource(mip, slice)
			dst := toNRGBA(sr)
			scaler.Scale(dst, dst.Rect, prev, prev.Rect, draw.Src, nil)
			prev = dst
		}
	}
	core.LogDebug("Generated %d mip levels (%s) for %dx%d x%d.", meta.MipLevels, filter, meta.Width, meta.Height, meta.ArraySize)
	return out, nil
}

// sampleNRGBA reads one pixel of an R8G8B8A8 subresource.
func sampleNRGBA(sr *metadata.Subresource, x, y uint32) (r, g, b, a uint8) {
	p := sr.Pixels[uint64(y)*sr.RowPitch+uint64(x)*4:]
	return p[0], p[1], p[2], p[3]
}

package codec

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

type blockEncoder func(b *block, out []byte, opts *encodeOptions)

var blockEncoders = map[metadata.PixelFormat]blockEncoder{
	metadata.PixelFormatBC1Unorm:     encodeBC1,
	metadata.PixelFormatBC1UnormSrgb: encodeBC1,
	metadata.PixelFormatBC2Unorm:     encodeBC2,
	metadata.PixelFormatBC2UnormSrgb: encodeBC2,
	metadata.PixelFormatBC3Unorm:     encodeBC3,
	metadata.PixelFormatBC3UnormSrgb: encodeBC3,
	metadata.PixelFormatBC4Unorm:     encodeBC4(false),
	metadata.PixelFormatBC4Snorm:     encodeBC4(true),
	metadata.PixelFormatBC5Unorm:     encodeBC5(false),
	metadata.PixelFormatBC5Snorm:     encodeBC5(true),
	metadata.PixelFormatBC7Unorm:     encodeBC7,
	metadata.PixelFormatBC7UnormSrgb: encodeBC7,
}

// Compress converts every subresource of an R8G8B8A8 image into target.
// sRGB targets are a relabel of the same encoding; the caller picks them
// with ResolveSRGB. Subresources are encoded concurrently.
func Compress(img *metadata.Image, target metadata.PixelFormat, flags CompressFlags, alphaWeight float32) (*metadata.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("compress: %w: %w", core.ErrCodec, err)
	}
	if !isRGBA8(img.Metadata.Format) {
		return nil, fmt.Errorf("compress from %s: %w: %w", img.Metadata.Format, core.ErrCodec, core.ErrUnsupportedFormat)
	}

	encodeBlock, isBlock := blockEncoders[target]
	writePixel, isPixel := pixelWriters[target]
	if !isBlock && !isPixel {
		return nil, fmt.Errorf("compress to %s: %w: %w", target, core.ErrCodec, core.ErrUnsupportedFormat)
	}

	meta := img.Metadata
	meta.Format = target
	out, err := metadata.NewImage(meta)
	if err != nil {
		return nil, fmt.Errorf("compress: %w: %w", core.ErrCodec, err)
	}
	opts := &encodeOptions{flags: flags, alphaWeight: alphaWeight}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range out.Subresources {
		src, dst := &img.Subresources[i], &out.Subresources[i]
		g.Go(func() error {
			if isBlock {
				encodeBlocks(src, dst, encodeBlock, opts)
			} else {
				convertPixels(src, dst, writePixel)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compress to %s: %w: %w", target, core.ErrCodec, err)
	}
	core.LogDebug("Compressed %dx%d (%d subresources) to %s.", meta.Width, meta.Height, len(out.Subresources), target)
	return out, nil
}

func convertPixels(src, dst *metadata.Subresource, write pixelWriter) {
	bpp := uint64(dst.Format.ElementBytes())
	for y := uint32(0); y < src.Height; y++ {
		row := dst.Row(y)
		for x := uint32(0); x < src.Width; x++ {
			r, g, b, a := sampleNRGBA(src, x, y)
			write(r, g, b, a, row[uint64(x)*bpp:])
		}
	}
}

func encodeBlocks(src, dst *metadata.Subresource, encode blockEncoder, opts *encodeOptions) {
	blockBytes := uint64(dst.Format.ElementBytes())
	blocksX := max(1, (src.Width+3)/4)
	blocksY := max(1, (src.Height+3)/4)
	var b block
	for by := uint32(0); by < blocksY; by++ {
		row := dst.Row(by)
		for bx := uint32(0); bx < blocksX; bx++ {
			gatherBlock(src, bx, by, &b)
			encode(&b, row[uint64(bx)*blockBytes:uint64(bx+1)*blockBytes], opts)
		}
	}
}

// gatherBlock reads a 4x4 tile, repeating the last row and column past the edge.
func gatherBlock(src *metadata.Subresource, bx, by uint32, b *block) {
	for y := uint32(0); y < 4; y++ {
		sy := min(by*4+y, src.Height-1)
		for x := uint32(0); x < 4; x++ {
			sx := min(bx*4+x, src.Width-1)
			r, g, bl, a := sampleNRGBA(src, sx, sy)
			b[y*4+x] = [4]uint8{r, g, bl, a}
		}
	}
}

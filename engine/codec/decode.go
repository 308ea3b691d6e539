package codec

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// Decode reads an image file into a single level R8G8B8A8_UNORM image with
// straight alpha.
func Decode(path string) (*metadata.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, core.ErrCodec, err)
	}
	defer f.Close()

	src, kind, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, core.ErrCodec, err)
	}
	img, err := FromImage(src)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	core.LogDebug("Decoded %s (%s, %dx%d).", path, kind, img.Metadata.Width, img.Metadata.Height)
	return img, nil
}

// FromImage converts any image.Image into the R8G8B8A8_UNORM layout.
func FromImage(src image.Image) (*metadata.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("nil source image: %w: %w", core.ErrCodec, core.ErrInvalidImage)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty source image: %w: %w", core.ErrCodec, core.ErrInvalidImage)
	}
	nrgba, ok := src.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Rect, src, b.Min, draw.Src)
	}
	return fromNRGBA(nrgba, 1)
}

// fromNRGBA wraps one or more equally sized slices into an image.
func fromNRGBA(slice *image.NRGBA, arraySize uint32) (*metadata.Image, error) {
	w, h := uint32(slice.Rect.Dx()), uint32(slice.Rect.Dy())
	img, err := metadata.NewImage(metadata.ImageMetadata{
		Width:     w,
		Height:    h,
		Format:    metadata.PixelFormatR8G8B8A8Unorm,
		MipLevels: 1,
		ArraySize: arraySize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCodec, err)
	}
	for s := uint32(0); s < arraySize; s++ {
		copyNRGBA(img.Subresource(0, s), slice)
	}
	return img, nil
}

func copyNRGBA(dst *metadata.Subresource, src *image.NRGBA) {
	rowBytes := int(dst.Width) * 4
	for y := 0; y < int(dst.Height); y++ {
		copy(dst.Row(uint32(y))[:rowBytes], src.Pix[y*src.Stride:y*src.Stride+rowBytes])
	}
}

// toNRGBA views an R8G8B8A8 subresource as an image.NRGBA sharing its pixels.
func toNRGBA(sr *metadata.Subresource) *image.NRGBA {
	return &image.NRGBA{
		Pix:    sr.Pixels,
		Stride: int(sr.RowPitch),
		Rect:   image.Rect(0, 0, int(sr.Width), int(sr.Height)),
	}
}

// ToNRGBA copies subresource 0 of an R8G8B8A8 image into an image.NRGBA.
func ToNRGBA(img *metadata.Image) (*image.NRGBA, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCodec, err)
	}
	if !isRGBA8(img.Metadata.Format) {
		return nil, fmt.Errorf("%s is not an 8 bit RGBA image: %w: %w", img.Metadata.Format, core.ErrCodec, core.ErrUnsupportedFormat)
	}
	src := toNRGBA(&img.Subresources[0])
	out := image.NewNRGBA(src.Rect)
	draw.Draw(out, out.Rect, src, image.Point{}, draw.Src)
	return out, nil
}

func isRGBA8(f metadata.PixelFormat) bool {
	return f == metadata.PixelFormatR8G8B8A8Unorm || f == metadata.PixelFormatR8G8B8A8UnormSrgb
}

// Package codec decodes images, builds mip chains, encodes block-compressed
// and plain GPU formats and writes DDS containers.
package codec

import (
	"fmt"
	stdmath "math"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// Native is the in-process codec used by the viewer.
type Native struct{}

func NewNative() *Native {
	return &Native{}
}

func (Native) Decode(path string) (*metadata.Image, error) {
	return Decode(path)
}

func (Native) GenerateMipChain(img *metadata.Image, filter MipFilter) (*metadata.Image, error) {
	return GenerateMipChain(img, filter)
}

func (Native) Compress(img *metadata.Image, target metadata.PixelFormat, flags CompressFlags, alphaWeight float32) (*metadata.Image, error) {
	return Compress(img, target, flags, alphaWeight)
}

func (Native) EncodeContainerFile(img *metadata.Image, path string) error {
	return EncodeContainerFile(img, path)
}

// ReconstructZ rewrites the blue channel of a tangent space normal map from
// its X (red) and Y (green) components.
func ReconstructZ(img *metadata.Image) error {
	if err := img.Validate(); err != nil {
		return fmt.Errorf("reconstruct z: %w: %w", core.ErrCodec, err)
	}
	if !isRGBA8(img.Metadata.Format) {
		return fmt.Errorf("reconstruct z on %s: %w: %w", img.Metadata.Format, core.ErrCodec, core.ErrUnsupportedFormat)
	}
	for i := range img.Subresources {
		sr := &img.Subresources[i]
		for y := uint32(0); y < sr.Height; y++ {
			row := sr.Row(y)
			for x := uint32(0); x < sr.Width; x++ {
				p := row[x*4 : x*4+4]
				nx := float64(p[0])/255*2 - 1
				ny := float64(p[1])/255*2 - 1
				nz := stdmath.Sqrt(max(0, 1-nx*nx-ny*ny))
				p[2] = uint8(stdmath.Round((nz + 1) / 2 * 255))
			}
		}
	}
	return nil
}

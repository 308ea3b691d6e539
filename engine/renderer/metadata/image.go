package metadata

import (
	"fmt"

	"github.com/spaghettifunk/texlab/engine/core"
)

/**
 * @brief Describes the shape of a decoded or compressed image.
 */
type ImageMetadata struct {
	Width     uint32
	Height    uint32
	Format    PixelFormat
	MipLevels uint32
	ArraySize uint32
}

/**
 * @brief One (mip level, array slice) unit of pixel data.
 */
type Subresource struct {
	Width      uint32
	Height     uint32
	Format     PixelFormat
	RowPitch   uint64
	SlicePitch uint64
	Pixels     []uint8
}

// Row returns the bytes of row y, including any source padding.
func (s *Subresource) Row(y uint32) []uint8 {
	start := uint64(y) * s.RowPitch
	return s.Pixels[start : start+s.RowPitch]
}

/**
 * @brief A CPU-side image with its subresources ordered array-slice major,
 * mip-minor, matching SubresourceIndex.
 */
type Image struct {
	Metadata     ImageMetadata
	Subresources []Subresource
}

// SubresourceIndex returns the flat index of a mip level inside an array slice.
func SubresourceIndex(mip, slice, mipLevels uint32) uint32 {
	return mip + slice*mipLevels
}

// MipExtent returns the size of the given mip level, never smaller than 1x1.
func MipExtent(width, height, mip uint32) (uint32, uint32) {
	return max(1, width>>mip), max(1, height>>mip)
}

// FullMipCount is the number of levels down to 1x1.
func FullMipCount(width, height uint32) uint32 {
	levels := uint32(1)
	for width > 1 || height > 1 {
		width = max(1, width/2)
		height = max(1, height/2)
		levels++
	}
	return levels
}

// NewImage allocates a tightly packed image for the given metadata.
func NewImage(meta ImageMetadata) (*Image, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	img := &Image{
		Metadata:     meta,
		Subresources: make([]Subresource, 0, meta.MipLevels*meta.ArraySize),
	}
	for slice := uint32(0); slice < meta.ArraySize; slice++ {
		for mip := uint32(0); mip < meta.MipLevels; mip++ {
			w, h := MipExtent(meta.Width, meta.Height, mip)
			rowBytes, rows := meta.Format.RowInfo(w, h)
			img.Subresources = append(img.Subresources, Subresource{
				Width:      w,
				Height:     h,
				Format:     meta.Format,
				RowPitch:   rowBytes,
				SlicePitch: rowBytes * uint64(rows),
				Pixels:     make([]uint8, rowBytes*uint64(rows)),
			})
		}
	}
	return img, nil
}

func (m ImageMetadata) Validate() error {
	if m.Width == 0 || m.Height == 0 {
		return fmt.Errorf("image is %dx%d: %w", m.Width, m.Height, core.ErrInvalidImage)
	}
	if m.MipLevels == 0 || m.ArraySize == 0 {
		return fmt.Errorf("image has %d mips and %d slices: %w", m.MipLevels, m.ArraySize, core.ErrInvalidImage)
	}
	if m.MipLevels > FullMipCount(m.Width, m.Height) {
		return fmt.Errorf("image %dx%d cannot have %d mips: %w", m.Width, m.Height, m.MipLevels, core.ErrInvalidImage)
	}
	if !m.Format.IsValid() {
		return fmt.Errorf("format %s: %w", m.Format, core.ErrUnsupportedFormat)
	}
	return nil
}

// Validate checks that every subresource is present and large enough for the
// rows the metadata implies.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("nil image: %w", core.ErrInvalidImage)
	}
	if err := img.Metadata.Validate(); err != nil {
		return err
	}
	want := int(img.Metadata.MipLevels * img.Metadata.ArraySize)
	if len(img.Subresources) != want {
		return fmt.Errorf("image has %d subresources, want %d: %w", len(img.Subresources), want, core.ErrInvalidImage)
	}
	for i := range img.Subresources {
		sr := &img.Subresources[i]
		if sr.Format != img.Metadata.Format {
			return fmt.Errorf("subresource %d is %s, image is %s: %w", i, sr.Format, img.Metadata.Format, core.ErrInvalidImage)
		}
		w, h := MipExtent(img.Metadata.Width, img.Metadata.Height, uint32(i)%img.Metadata.MipLevels)
		if sr.Width != w || sr.Height != h {
			return fmt.Errorf("subresource %d is %dx%d, want %dx%d: %w", i, sr.Width, sr.Height, w, h, core.ErrInvalidImage)
		}
		rowBytes, rows := sr.Format.RowInfo(sr.Width, sr.Height)
		if sr.RowPitch < rowBytes {
			return fmt.Errorf("subresource %d row pitch %d < row size %d: %w", i, sr.RowPitch, rowBytes, core.ErrInvalidImage)
		}
		if need := sr.RowPitch*uint64(rows-1) + rowBytes; uint64(len(sr.Pixels)) < need {
			return fmt.Errorf("subresource %d has %d bytes, want %d: %w", i, len(sr.Pixels), need, core.ErrInvalidImage)
		}
	}
	return nil
}

// Subresource returns the pixel data of a mip level inside an array slice.
func (img *Image) Subresource(mip, slice uint32) *Subresource {
	return &img.Subresources[SubresourceIndex(mip, slice, img.Metadata.MipLevels)]
}

func (img *Image) Clone() *Image {
	out := &Image{Metadata: img.Metadata, Subresources: make([]Subresource, len(img.Subresources))}
	for i, sr := range img.Subresources {
		sr.Pixels = append([]uint8(nil), sr.Pixels...)
		out.Subresources[i] = sr
	}
	return out
}

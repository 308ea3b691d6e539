package metadata

import (
	"fmt"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
)

const (
	// Row pitch alignment for buffer-to-texture copies on a D3D12-class device.
	TextureDataPitchAlignment uint64 = 256
	// Offset alignment of each subresource inside a staging buffer.
	TextureDataPlacementAlignment uint64 = 512
)

/**
 * @brief Memory layout of one subresource inside a linear staging buffer.
 */
type SubresourceFootprint struct {
	// Byte offset from the start of the staging buffer.
	Offset uint64
	Width  uint32
	Height uint32
	Format PixelFormat
	// Padded bytes between the starts of two consecutive rows.
	RowPitch uint64
	// Rows of pixels, or rows of 4x4 blocks for compressed formats.
	RowCount uint32
	// Unpadded bytes of pixel data per row.
	RowSize uint64
}

// Size is the number of bytes the subresource occupies including row padding.
func (f SubresourceFootprint) Size() uint64 {
	return f.RowPitch * uint64(f.RowCount)
}

/**
 * @brief Footprints for every subresource of a texture, in SubresourceIndex order.
 */
type FootprintTable struct {
	Footprints []SubresourceFootprint
	TotalSize  uint64
}

// ComputeCopyableFootprints lays out every subresource of desc in a linear
// buffer. Row pitch is rounded up to rowAlignment and each subresource offset
// to placementAlignment; both are widened so they stay multiples of the
// format's element size.
func ComputeCopyableFootprints(desc TextureDesc, rowAlignment, placementAlignment uint64) (*FootprintTable, error) {
	meta := ImageMetadata{
		Width:     desc.Width,
		Height:    desc.Height,
		Format:    desc.Format,
		MipLevels: desc.MipLevels,
		ArraySize: desc.ArraySize,
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("compute footprints: %w", err)
	}

	element := uint64(desc.Format.ElementBytes())
	rowAlignment = math.LCM(rowAlignment, element)
	placementAlignment = math.LCM(math.LCM(placementAlignment, element), 4)

	table := &FootprintTable{
		Footprints: make([]SubresourceFootprint, 0, desc.SubresourceCount()),
	}
	var offset uint64
	for slice := uint32(0); slice < desc.ArraySize; slice++ {
		for mip := uint32(0); mip < desc.MipLevels; mip++ {
			w, h := MipExtent(desc.Width, desc.Height, mip)
			rowSize, rows := desc.Format.RowInfo(w, h)

			offset = math.AlignUp(offset, placementAlignment)
			fp := SubresourceFootprint{
				Offset:   offset,
				Width:    w,
				Height:   h,
				Format:   desc.Format,
				RowPitch: math.AlignUp(rowSize, rowAlignment),
				RowCount: rows,
				RowSize:  rowSize,
			}
			table.Footprints = append(table.Footprints, fp)
			offset += fp.Size()
		}
	}
	table.TotalSize = offset
	return table, nil
}

// Validate checks the layout rules every footprint table must satisfy.
func (t *FootprintTable) Validate() error {
	var end, sum uint64
	for i, fp := range t.Footprints {
		if fp.RowPitch < fp.RowSize {
			return fmt.Errorf("footprint %d: row pitch %d < row size %d: %w", i, fp.RowPitch, fp.RowSize, core.ErrInvalidImage)
		}
		if fp.Offset < end {
			return fmt.Errorf("footprint %d: offset %d overlaps previous end %d: %w", i, fp.Offset, end, core.ErrInvalidImage)
		}
		end = fp.Offset + fp.Size()
		sum += fp.Size()
	}
	if t.TotalSize < sum || t.TotalSize < end {
		return fmt.Errorf("total size %d smaller than footprints (%d): %w", t.TotalSize, max(sum, end), core.ErrInvalidImage)
	}
	return nil
}

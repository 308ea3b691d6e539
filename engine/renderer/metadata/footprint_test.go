package metadata

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/texlab/engine/core"
)

func TestFootprintInvariants(t *testing.T) {
	formats := []PixelFormat{
		PixelFormatR8Unorm,
		PixelFormatR8G8Unorm,
		PixelFormatR8G8B8A8Unorm,
		PixelFormatR16G16B16A16Float,
		PixelFormatR32G32B32A32Float,
		PixelFormatBC1Unorm,
		PixelFormatBC7Unorm,
	}
	sizes := [][2]uint32{{1, 1}, {3, 5}, {37, 19}, {64, 64}, {256, 256}, {1000, 3}}
	alignments := [][2]uint64{
		{TextureDataPitchAlignment, TextureDataPlacementAlignment},
		{1, 1},
		{64, 16},
	}

	for _, f := range formats {
		for _, sz := range sizes {
			for _, al := range alignments {
				for _, arraySize := range []uint32{1, 3} {
					mips := FullMipCount(sz[0], sz[1])
					desc := TextureDesc{Width: sz[0], Height: sz[1], Format: f, MipLevels: mips, ArraySize: arraySize}
					table, err := ComputeCopyableFootprints(desc, al[0], al[1])
					if err != nil {
						t.Fatalf("%s %v: %v", f, sz, err)
					}
					if got := len(table.Footprints); got != int(mips*arraySize) {
						t.Fatalf("%s %v: got %d footprints, want %d", f, sz, got, mips*arraySize)
					}
					if err := table.Validate(); err != nil {
						t.Fatalf("%s %v align %v: %v", f, sz, al, err)
					}
					var prev uint64
					var sum uint64
					for i, fp := range table.Footprints {
						if i > 0 && fp.Offset < prev {
							t.Fatalf("%s %v: offset %d decreased from %d", f, sz, fp.Offset, prev)
						}
						prev = fp.Offset
						if fp.RowPitch < fp.RowSize {
							t.Fatalf("%s %v: pitch %d < row size %d", f, sz, fp.RowPitch, fp.RowSize)
						}
						if fp.RowPitch%al[0] != 0 {
							t.Fatalf("%s %v: pitch %d not aligned to %d", f, sz, fp.RowPitch, al[0])
						}
						if fp.Offset%al[1] != 0 {
							t.Fatalf("%s %v: offset %d not aligned to %d", f, sz, fp.Offset, al[1])
						}
						sum += fp.RowPitch * uint64(fp.RowCount)
					}
					if table.TotalSize < sum {
						t.Fatalf("%s %v: total %d < sum %d", f, sz, table.TotalSize, sum)
					}
				}
			}
		}
	}
}

func TestFootprintKnownLayout(t *testing.T) {
	desc := TextureDesc{Width: 37, Height: 19, Format: PixelFormatR8G8B8A8Unorm, MipLevels: 2, ArraySize: 1}
	table, err := ComputeCopyableFootprints(desc, TextureDataPitchAlignment, TextureDataPlacementAlignment)
	if err != nil {
		t.Fatal(err)
	}
	top := table.Footprints[0]
	if top.RowSize != 148 || top.RowPitch != 256 || top.RowCount != 19 {
		t.Fatalf("top: got size %d pitch %d rows %d, want 148 256 19", top.RowSize, top.RowPitch, top.RowCount)
	}
	second := table.Footprints[1]
	// 256*19 = 4864, aligned to 512 -> 5120
	if second.Offset != 5120 || second.Width != 18 || second.Height != 9 {
		t.Fatalf("mip 1: got offset %d size %dx%d, want 5120 18x9", second.Offset, second.Width, second.Height)
	}
	if table.TotalSize != 5120+256*9 {
		t.Fatalf("total: got %d, want %d", table.TotalSize, 5120+256*9)
	}
}

func TestFootprintBlockCompressed(t *testing.T) {
	desc := TextureDesc{Width: 6, Height: 6, Format: PixelFormatBC1Unorm, MipLevels: 3, ArraySize: 1}
	table, err := ComputeCopyableFootprints(desc, TextureDataPitchAlignment, TextureDataPlacementAlignment)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		rowSize uint64
		rows    uint32
	}{
		{16, 2}, // 6x6 -> 2x2 blocks
		{8, 1},  // 3x3 -> 1 block
		{8, 1},  // 1x1 -> 1 block
	}
	for i, w := range want {
		fp := table.Footprints[i]
		if fp.RowSize != w.rowSize || fp.RowCount != w.rows {
			t.Fatalf("mip %d: got row size %d rows %d, want %d %d", i, fp.RowSize, fp.RowCount, w.rowSize, w.rows)
		}
	}
}

func TestFootprintRejectsInvalid(t *testing.T) {
	tests := []TextureDesc{
		{Width: 0, Height: 4, Format: PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1},
		{Width: 4, Height: 4, Format: PixelFormatR8G8B8A8Unorm, MipLevels: 0, ArraySize: 1},
		{Width: 4, Height: 4, Format: PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 0},
		{Width: 4, Height: 4, Format: PixelFormatR8G8B8A8Unorm, MipLevels: 4, ArraySize: 1},
		{Width: 4, Height: 4, Format: PixelFormatUnknown, MipLevels: 1, ArraySize: 1},
	}
	for _, desc := range tests {
		if _, err := ComputeCopyableFootprints(desc, 256, 512); err == nil {
			t.Fatalf("%+v: got nil error", desc)
		} else if !errors.Is(err, core.ErrInvalidImage) && !errors.Is(err, core.ErrUnsupportedFormat) {
			t.Fatalf("%+v: got %v, want invalid image or unsupported format", desc, err)
		}
	}
}

func TestSubresourceIndexOrder(t *testing.T) {
	img, err := NewImage(ImageMetadata{Width: 8, Height: 4, Format: PixelFormatR8G8B8A8Unorm, MipLevels: 4, ArraySize: 2})
	if err != nil {
		t.Fatal(err)
	}
	sr := img.Subresource(2, 1)
	if sr != &img.Subresources[6] {
		t.Fatal("Subresource(2, 1): not index 6")
	}
	if sr.Width != 2 || sr.Height != 1 {
		t.Fatalf("Subresource(2, 1): got %dx%d, want 2x1", sr.Width, sr.Height)
	}
	if err := img.Validate(); err != nil {
		t.Fatal(err)
	}
}

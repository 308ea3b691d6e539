package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

const (
	ddsMagic = 0x20534444 // "DDS "
	dx10CC   = 0x30315844 // "DX10"

	ddsdCaps        = 0x1
	ddsdHeight      = 0x2
	ddsdWidth       = 0x4
	ddsdPitch       = 0x8
	ddsdPixelFormat = 0x1000
	ddsdMipMapCount = 0x20000
	ddsdLinearSize  = 0x80000

	ddpfFourCC = 0x4

	ddsCapsComplex = 0x8
	ddsCapsTexture = 0x1000
	ddsCapsMipMap  = 0x400000

	d3d10ResourceDimensionTexture2D = 3
)

type ddsPixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      uint32
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

type ddsHeader struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       ddsPixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

type ddsHeaderDX10 struct {
	DXGIFormat        uint32
	ResourceDimension uint32
	MiscFlag          uint32
	ArraySize         uint32
	MiscFlags2        uint32
}

// WriteDDS writes img as a DDS file with the DX10 extension header. Pixel
// data follows array slice by array slice, each with its full mip chain.
func WriteDDS(w io.Writer, img *metadata.Image) error {
	if err := img.Validate(); err != nil {
		return fmt.Errorf("write dds: %w: %w", core.ErrCodec, err)
	}
	meta := img.Metadata
	top := &img.Subresources[0]

	h := ddsHeader{
		Size:        124,
		Flags:       ddsdCaps | ddsdHeight | ddsdWidth | ddsdPixelFormat,
		Height:      meta.Height,
		Width:       meta.Width,
		MipMapCount: meta.MipLevels,
		PixelFormat: ddsPixelFormat{Size: 32, Flags: ddpfFourCC, FourCC: dx10CC},
		Caps:        ddsCapsTexture,
	}
	rowBytes, rows := meta.Format.RowInfo(top.Width, top.Height)
	if meta.Format.IsCompressed() {
		h.Flags |= ddsdLinearSize
		h.PitchOrLinearSize = uint32(rowBytes * uint64(rows))
	} else {
		h.Flags |= ddsdPitch
		h.PitchOrLinearSize = uint32(rowBytes)
	}
	if meta.MipLevels > 1 {
		h.Flags |= ddsdMipMapCount
		h.Caps |= ddsCapsComplex | ddsCapsMipMap
	}
	dx10 := ddsHeaderDX10{
		DXGIFormat:        uint32(meta.Format),
		ResourceDimension: d3d10ResourceDimensionTexture2D,
		ArraySize:         meta.ArraySize,
	}

	for _, v := range []interface{}{uint32(ddsMagic), &h, &dx10} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write dds header: %w: %w", core.ErrCodec, err)
		}
	}
	for i := range img.Subresources {
		sr := &img.Subresources[i]
		rowBytes, rows := sr.Format.RowInfo(sr.Width, sr.Height)
		for y := uint32(0); y < rows; y++ {
			if _, err := w.Write(sr.Row(y)[:rowBytes]); err != nil {
				return fmt.Errorf("write dds subresource %d: %w: %w", i, core.ErrCodec, err)
			}
		}
	}
	return nil
}

// EncodeContainerFile writes img to path as DDS. A failed write leaves no file.
func EncodeContainerFile(img *metadata.Image, path string) error {
	if err := img.Validate(); err != nil {
		return fmt.Errorf("save %s: %w: %w", path, core.ErrCodec, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w: %w", path, core.ErrCodec, err)
	}
	bw := bufio.NewWriter(f)
	err = WriteDDS(bw, img)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("save %s: %w", path, err)
	}
	core.LogInfo("Saved %s (%s, %d mips).", path, img.Metadata.Format, img.Metadata.MipLevels)
	return nil
}

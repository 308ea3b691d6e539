package codec

import (
	"encoding/binary"
	stdmath "math"

	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// pixelWriter stores one straight-alpha RGBA8 pixel in a target layout.
type pixelWriter func(r, g, b, a uint8, out []byte)

func unorm(v uint8) float32 {
	return float32(v) / 255
}

// snorm8 maps [0,255] onto [-127,127].
func snorm8(v uint8) int8 {
	return int8(stdmath.Round(float64(v)/255*254 - 127))
}

func quantize(v uint8, maxValue uint32) uint32 {
	return uint32(stdmath.Round(float64(v) / 255 * float64(maxValue)))
}

var pixelWriters = map[metadata.PixelFormat]pixelWriter{
	metadata.PixelFormatR8Unorm: func(r, g, b, a uint8, out []byte) {
		out[0] = r
	},
	metadata.PixelFormatR8Snorm: func(r, g, b, a uint8, out []byte) {
		out[0] = byte(snorm8(r))
	},
	metadata.PixelFormatR8G8Unorm: func(r, g, b, a uint8, out []byte) {
		out[0], out[1] = r, g
	},
	metadata.PixelFormatR8G8Snorm: func(r, g, b, a uint8, out []byte) {
		out[0], out[1] = byte(snorm8(r)), byte(snorm8(g))
	},
	metadata.PixelFormatR8G8B8A8Unorm: func(r, g, b, a uint8, out []byte) {
		out[0], out[1], out[2], out[3] = r, g, b, a
	},
	metadata.PixelFormatR8G8B8A8UnormSrgb: func(r, g, b, a uint8, out []byte) {
		out[0], out[1], out[2], out[3] = r, g, b, a
	},
	metadata.PixelFormatB8G8R8A8Unorm: func(r, g, b, a uint8, out []byte) {
		out[0], out[1], out[2], out[3] = b, g, r, a
	},
	metadata.PixelFormatB8G8R8A8UnormSrgb: func(r, g, b, a uint8, out []byte) {
		out[0], out[1], out[2], out[3] = b, g, r, a
	},
	metadata.PixelFormatR10G10B10A2Unorm: func(r, g, b, a uint8, out []byte) {
		v := quantize(r, 1023) | quantize(g, 1023)<<10 | quantize(b, 1023)<<20 | quantize(a, 3)<<30
		binary.LittleEndian.PutUint32(out, v)
	},
	metadata.PixelFormatR11G11B10Float: func(r, g, b, a uint8, out []byte) {
		v := uint32(halfToFloat11(float32ToHalf(unorm(r)))) |
			uint32(halfToFloat11(float32ToHalf(unorm(g))))<<11 |
			uint32(halfToFloat10(float32ToHalf(unorm(b))))<<22
		binary.LittleEndian.PutUint32(out, v)
	},
	metadata.PixelFormatR16Float: func(r, g, b, a uint8, out []byte) {
		binary.LittleEndian.PutUint16(out, float32ToHalf(unorm(r)))
	},
	metadata.PixelFormatR16G16Float: func(r, g, b, a uint8, out []byte) {
		binary.LittleEndian.PutUint16(out, float32ToHalf(unorm(r)))
		binary.LittleEndian.PutUint16(out[2:], float32ToHalf(unorm(g)))
	},
	metadata.PixelFormatR16G16B16A16Float: func(r, g, b, a uint8, out []byte) {
		for i, v := range [4]uint8{r, g, b, a} {
			binary.LittleEndian.PutUint16(out[i*2:], float32ToHalf(unorm(v)))
		}
	},
	metadata.PixelFormatR32Float: func(r, g, b, a uint8, out []byte) {
		binary.LittleEndian.PutUint32(out, stdmath.Float32bits(unorm(r)))
	},
	metadata.PixelFormatR32G32Float: func(r, g, b, a uint8, out []byte) {
		binary.LittleEndian.PutUint32(out, stdmath.Float32bits(unorm(r)))
		binary.LittleEndian.PutUint32(out[4:], stdmath.Float32bits(unorm(g)))
	},
	metadata.PixelFormatR32G32B32A32Float: func(r, g, b, a uint8, out []byte) {
		for i, v := range [4]uint8{r, g, b, a} {
			binary.LittleEndian.PutUint32(out[i*4:], stdmath.Float32bits(unorm(v)))
		}
	},
}

// float32ToHalf converts to IEEE 754 binary16, rounding half up.
func float32ToHalf(f float32) uint16 {
	bits := stdmath.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case bits&0x7fffffff > 0x7f800000:
		return sign | 0x7e00
	case exp >= 31:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := mant >> shift
		if (mant>>(shift-1))&1 != 0 {
			half++
		}
		return sign | uint16(half)
	}
	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	if mant&0x1000 != 0 {
		// A carry into the exponent is still the correctly rounded value.
		half++
	}
	return half
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)
	switch {
	case exp == 0 && mant == 0:
		return stdmath.Float32frombits(sign)
	case exp == 0:
		f := float32(mant) / 1024 / 16384
		if sign != 0 {
			return -f
		}
		return f
	case exp == 31:
		return stdmath.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return stdmath.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}

// Unsigned 11 and 10 bit floats share the half exponent and truncate the mantissa.
func halfToFloat11(h uint16) uint16 {
	if h&0x8000 != 0 {
		return 0
	}
	return (h >> 4) & 0x7ff
}

func halfToFloat10(h uint16) uint16 {
	if h&0x8000 != 0 {
		return 0
	}
	return (h >> 5) & 0x3ff
}

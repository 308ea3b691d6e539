package codec

import (
	"encoding/binary"
	stdmath "math"
)

func to565(c [4]float32) uint16 {
	r := uint16(stdmath.Round(float64(c[0]) * 31 / 255))
	g := uint16(stdmath.Round(float64(c[1]) * 63 / 255))
	b := uint16(stdmath.Round(float64(c[2]) * 31 / 255))
	return r<<11 | g<<5 | b
}

func from565(v uint16) [4]float32 {
	r := (v >> 11) & 0x1f
	g := (v >> 5) & 0x3f
	b := v & 0x1f
	return [4]float32{
		float32(r<<3 | r>>2),
		float32(g<<2 | g>>4),
		float32(b<<3 | b>>2),
		255,
	}
}

func lerp(a, b [4]float32, num, den float32) [4]float32 {
	var out [4]float32
	for c := range out {
		out[c] = (a[c]*(den-num) + b[c]*num) / den
	}
	return out
}

// colorPalette expands two 565 endpoints the way a BC1 decoder does.
func colorPalette(c0, c1 uint16) (p [4][4]float32, threeColor bool) {
	p[0], p[1] = from565(c0), from565(c1)
	if c0 > c1 {
		p[2] = lerp(p[0], p[1], 1, 3)
		p[3] = lerp(p[0], p[1], 2, 3)
		return p, false
	}
	p[2] = lerp(p[0], p[1], 1, 2)
	return p, true
}

// encodeColorBlock writes the 8 byte BC1 colour block for b. With
// allowTransparent, pixels with alpha below 128 use the punch-through index.
func encodeColorBlock(b *block, out []byte, opts *encodeOptions, allowTransparent bool) {
	w := opts.weights()
	transparent := false
	if allowTransparent {
		for _, p := range b {
			if p[3] < 128 {
				transparent = true
				break
			}
		}
	}

	lo, hi := fitEndpoints(b, 3, opts.usePCA())
	c0, c1, indices, err := encodeColorEndpoints(b, lo, hi, w, transparent)
	if opts.refine() && !transparent {
		var t [16]float32
		steps := [4]float32{0, 1, 1.0 / 3, 2.0 / 3}
		for i := range t {
			t[i] = steps[(indices>>(2*i))&3]
		}
		if rlo, rhi, ok := leastSquares(b, &t, 3); ok {
			r0, r1, ridx, rerr := encodeColorEndpoints(b, rlo, rhi, w, false)
			if rerr < err {
				c0, c1, indices = r0, r1, ridx
			}
		}
	}

	binary.LittleEndian.PutUint16(out[0:], c0)
	binary.LittleEndian.PutUint16(out[2:], c1)
	binary.LittleEndian.PutUint32(out[4:], indices)
}

func encodeColorEndpoints(b *block, lo, hi [4]float32, w [4]float32, transparent bool) (c0, c1 uint16, indices uint32, total float32) {
	c0, c1 = to565(hi), to565(lo)
	if transparent {
		// Three colour mode needs c0 <= c1.
		if c0 > c1 {
			c0, c1 = c1, c0
		}
	} else {
		if c0 < c1 {
			c0, c1 = c1, c0
		}
		if c0 == c1 {
			return c0, c1, 0, solidError(b, from565(c0), w)
		}
	}

	palette, threeColor := colorPalette(c0, c1)
	entries := 4
	if threeColor {
		entries = 3
	}
	for i, p := range b {
		if transparent && p[3] < 128 {
			indices |= 3 << (2 * i)
			continue
		}
		best, bestErr := 0, float32(stdmath.MaxFloat32)
		for e := 0; e < entries; e++ {
			if d := colorError(p, palette[e], w, 3); d < bestErr {
				best, bestErr = e, d
			}
		}
		indices |= uint32(best) << (2 * i)
		total += bestErr
	}
	return c0, c1, indices, total
}

func solidError(b *block, c [4]float32, w [4]float32) float32 {
	var total float32
	for _, p := range b {
		total += colorError(p, c, w, 3)
	}
	return total
}

func encodeBC1(b *block, out []byte, opts *encodeOptions) {
	encodeColorBlock(b, out, opts, true)
}

// BC2: 4 bit explicit alpha followed by a four colour block.
func encodeBC2(b *block, out []byte, opts *encodeOptions) {
	var alpha uint64
	for i, p := range b {
		alpha |= uint64(quantize(p[3], 15)) << (4 * i)
	}
	binary.LittleEndian.PutUint64(out[0:], alpha)
	encodeColorBlock(b, out[8:], opts, false)
}

// BC3: interpolated alpha followed by a four colour block.
func encodeBC3(b *block, out []byte, opts *encodeOptions) {
	var a [16]int32
	for i, p := range b {
		a[i] = int32(p[3])
	}
	encodeScalarBlock(&a, out[0:8], false)
	encodeColorBlock(b, out[8:], opts, false)
}

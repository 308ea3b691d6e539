package codec

import "encoding/binary"

// scalarPalette expands two BC4 endpoints in eight value mode (a0 > a1).
func scalarPalette(a0, a1 int32) [8]int32 {
	var p [8]int32
	p[0], p[1] = a0, a1
	for i := int32(1); i < 7; i++ {
		p[i+1] = ((7-i)*a0 + i*a1) / 7
	}
	return p
}

// encodeScalarBlock writes one 8 byte BC4 block. Signed blocks take values in
// [-127,127], unsigned ones in [0,255].
func encodeScalarBlock(v *[16]int32, out []byte, signed bool) {
	lo, hi := v[0], v[0]
	for _, x := range v {
		lo = min(lo, x)
		hi = max(hi, x)
	}

	// Eight value mode needs a0 > a1; a solid block only uses index 0.
	a0, a1 := hi, lo
	var indices uint64
	if a0 != a1 {
		palette := scalarPalette(a0, a1)
		for i, x := range v {
			best, bestErr := 0, int32(1<<30)
			for e, p := range palette {
				d := x - p
				if d < 0 {
					d = -d
				}
				if d < bestErr {
					best, bestErr = e, d
				}
			}
			indices |= uint64(best) << (3 * i)
		}
	}

	if signed {
		out[0], out[1] = byte(int8(a0)), byte(int8(a1))
	} else {
		out[0], out[1] = byte(a0), byte(a1)
	}
	var tail [8]byte
	binary.LittleEndian.PutUint64(tail[:], indices)
	copy(out[2:8], tail[:6])
}

func channelValues(b *block, channel int, signed bool) [16]int32 {
	var v [16]int32
	for i, p := range b {
		if signed {
			v[i] = int32(snorm8(p[channel]))
		} else {
			v[i] = int32(p[channel])
		}
	}
	return v
}

func encodeBC4(signed bool) blockEncoder {
	return func(b *block, out []byte, opts *encodeOptions) {
		v := channelValues(b, 0, signed)
		encodeScalarBlock(&v, out, signed)
	}
}

func encodeBC5(signed bool) blockEncoder {
	return func(b *block, out []byte, opts *encodeOptions) {
		r := channelValues(b, 0, signed)
		g := channelValues(b, 1, signed)
		encodeScalarBlock(&r, out[0:8], signed)
		encodeScalarBlock(&g, out[8:16], signed)
	}
}

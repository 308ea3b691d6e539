package codec

import (
	"encoding/binary"
	stdmath "math"
)

// BC7 is encoded in mode 6: one subset, RGBA 7.7.7.7 endpoints with a
// unique p-bit each and 4 bit indices.

var bc7Weights4 = [16]int32{0, 4, 9, 13, 17, 21, 26, 30, 34, 38, 43, 47, 51, 55, 60, 64}

type bc7Endpoint struct {
	c [4]uint8
	p uint8
}

func (e bc7Endpoint) expand() [4]int32 {
	var out [4]int32
	for i, c := range e.c {
		out[i] = int32(c)<<1 | int32(e.p)
	}
	return out
}

func quantizeBC7(v [4]float32, p uint8, w [4]float32) (bc7Endpoint, float32) {
	e := bc7Endpoint{p: p}
	var err float32
	for i := range v {
		q := stdmath.Round(float64(v[i]-float32(p)) / 2)
		e.c[i] = uint8(min(max(q, 0), 127))
		d := v[i] - float32(int32(e.c[i])<<1|int32(p))
		err += d * d * w[i]
	}
	return e, err
}

func bestPBit(v [4]float32, w [4]float32) bc7Endpoint {
	e0, err0 := quantizeBC7(v, 0, w)
	e1, err1 := quantizeBC7(v, 1, w)
	if err1 < err0 {
		return e1
	}
	return e0
}

func bc7Palette(e0, e1 bc7Endpoint) [16][4]float32 {
	a, b := e0.expand(), e1.expand()
	var p [16][4]float32
	for i, wt := range bc7Weights4 {
		for c := 0; c < 4; c++ {
			p[i][c] = float32(((64-wt)*a[c] + wt*b[c] + 32) >> 6)
		}
	}
	return p
}

func bc7Indices(b *block, e0, e1 bc7Endpoint, w [4]float32) (idx [16]uint8, total float32) {
	palette := bc7Palette(e0, e1)
	for i, p := range b {
		best, bestErr := 0, float32(stdmath.MaxFloat32)
		for e := range palette {
			if d := colorError(p, palette[e], w, 4); d < bestErr {
				best, bestErr = e, d
			}
		}
		idx[i] = uint8(best)
		total += bestErr
	}
	return idx, total
}

type bc7Candidate struct {
	e0, e1 bc7Endpoint
	idx    [16]uint8
	err    float32
}

func bc7Fit(b *block, lo, hi [4]float32, w [4]float32, exhaustive bool) bc7Candidate {
	if !exhaustive {
		e0, e1 := bestPBit(lo, w), bestPBit(hi, w)
		idx, err := bc7Indices(b, e0, e1, w)
		return bc7Candidate{e0, e1, idx, err}
	}
	best := bc7Candidate{err: float32(stdmath.MaxFloat32)}
	for p0 := uint8(0); p0 < 2; p0++ {
		for p1 := uint8(0); p1 < 2; p1++ {
			e0, _ := quantizeBC7(lo, p0, w)
			e1, _ := quantizeBC7(hi, p1, w)
			idx, err := bc7Indices(b, e0, e1, w)
			if err < best.err {
				best = bc7Candidate{e0, e1, idx, err}
			}
		}
	}
	return best
}

func encodeBC7(b *block, out []byte, opts *encodeOptions) {
	w := opts.weights()
	lo, hi := fitEndpoints(b, 4, opts.usePCA())
	best := bc7Fit(b, lo, hi, w, opts.refine())

	if opts.refine() {
		for iter := 0; iter < 2 && best.err > 0; iter++ {
			var t [16]float32
			for i, ix := range best.idx {
				t[i] = float32(bc7Weights4[ix]) / 64
			}
			rlo, rhi, ok := leastSquares(b, &t, 4)
			if !ok {
				break
			}
			c := bc7Fit(b, rlo, rhi, w, true)
			if c.err >= best.err {
				break
			}
			best = c
		}
	}

	// The anchor index drops its top bit, so pixel 0 must use the lower half.
	if best.idx[0] >= 8 {
		best.e0, best.e1 = best.e1, best.e0
		for i := range best.idx {
			best.idx[i] = 15 - best.idx[i]
		}
	}
	writeBC7Mode6(out, best.e0, best.e1, &best.idx)
}

type bitWriter struct {
	lo, hi uint64
	pos    uint
}

func (w *bitWriter) write(v uint64, n uint) {
	for i := uint(0); i < n; i++ {
		bit := (v >> i) & 1
		if w.pos < 64 {
			w.lo |= bit << w.pos
		} else {
			w.hi |= bit << (w.pos - 64)
		}
		w.pos++
	}
}

func writeBC7Mode6(out []byte, e0, e1 bc7Endpoint, idx *[16]uint8) {
	var w bitWriter
	w.write(1<<6, 7)
	for c := 0; c < 4; c++ {
		w.write(uint64(e0.c[c]), 7)
		w.write(uint64(e1.c[c]), 7)
	}
	w.write(uint64(e0.p), 1)
	w.write(uint64(e1.p), 1)
	w.write(uint64(idx[0]), 3)
	for i := 1; i < 16; i++ {
		w.write(uint64(idx[i]), 4)
	}
	binary.LittleEndian.PutUint64(out[0:], w.lo)
	binary.LittleEndian.PutUint64(out[8:], w.hi)
}

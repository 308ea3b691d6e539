package codec

import stdmath "math"

// block is a 4x4 tile of RGBA8 pixels in row-major order.
type block [16][4]uint8

type encodeOptions struct {
	flags       CompressFlags
	alphaWeight float32
}

// weights returns the per-channel error weights for RGBA.
func (o *encodeOptions) weights() [4]float32 {
	if o.flags&CompressUniform != 0 {
		return [4]float32{1, 1, 1, o.alphaWeight}
	}
	return [4]float32{0.299 * 3, 0.587 * 3, 0.114 * 3, o.alphaWeight}
}

func (o *encodeOptions) usePCA() bool {
	return o.flags&CompressBC7Quick == 0
}

func (o *encodeOptions) refine() bool {
	return o.flags&CompressBC7Use3Subsets != 0
}

// fitEndpoints picks two endpoints spanning the first channels of the block.
// The bounding box is used when pca is false, otherwise the extremes of the
// projection onto the principal axis.
func fitEndpoints(b *block, channels int, pca bool) (lo, hi [4]float32) {
	if !pca {
		for c := 0; c < channels; c++ {
			lo[c], hi[c] = 255, 0
		}
		for _, p := range b {
			for c := 0; c < channels; c++ {
				v := float32(p[c])
				lo[c] = min(lo[c], v)
				hi[c] = max(hi[c], v)
			}
		}
		return lo, hi
	}

	var mean [4]float32
	for _, p := range b {
		for c := 0; c < channels; c++ {
			mean[c] += float32(p[c])
		}
	}
	for c := 0; c < channels; c++ {
		mean[c] /= 16
	}

	var cov [4][4]float32
	for _, p := range b {
		var d [4]float32
		for c := 0; c < channels; c++ {
			d[c] = float32(p[c]) - mean[c]
		}
		for i := 0; i < channels; i++ {
			for j := 0; j < channels; j++ {
				cov[i][j] += d[i] * d[j]
			}
		}
	}

	// Power iteration seeded with the diagonal.
	var axis [4]float32
	for c := 0; c < channels; c++ {
		axis[c] = cov[c][c]
	}
	for iter := 0; iter < 8; iter++ {
		var next [4]float32
		for i := 0; i < channels; i++ {
			for j := 0; j < channels; j++ {
				next[i] += cov[i][j] * axis[j]
			}
		}
		if !normalize(&next, channels) {
			break
		}
		axis = next
	}
	if !normalize(&axis, channels) {
		return mean, mean
	}

	tmin, tmax := float32(stdmath.MaxFloat32), float32(-stdmath.MaxFloat32)
	for _, p := range b {
		var t float32
		for c := 0; c < channels; c++ {
			t += (float32(p[c]) - mean[c]) * axis[c]
		}
		tmin = min(tmin, t)
		tmax = max(tmax, t)
	}
	for c := 0; c < channels; c++ {
		lo[c] = clampf(mean[c]+tmin*axis[c], 0, 255)
		hi[c] = clampf(mean[c]+tmax*axis[c], 0, 255)
	}
	return lo, hi
}

func normalize(v *[4]float32, channels int) bool {
	var n float32
	for c := 0; c < channels; c++ {
		n += v[c] * v[c]
	}
	if n < 1e-12 {
		return false
	}
	inv := 1 / float32(stdmath.Sqrt(float64(n)))
	for c := 0; c < channels; c++ {
		v[c] *= inv
	}
	return true
}

// leastSquares solves for the endpoints that best reproduce the block given
// each pixel's interpolation factor t in [0,1].
func leastSquares(b *block, t *[16]float32, channels int) (lo, hi [4]float32, ok bool) {
	var a, m, c float32
	var d0, d1 [4]float32
	for i, p := range b {
		s := 1 - t[i]
		a += s * s
		m += s * t[i]
		c += t[i] * t[i]
		for ch := 0; ch < channels; ch++ {
			d0[ch] += s * float32(p[ch])
			d1[ch] += t[i] * float32(p[ch])
		}
	}
	det := a*c - m*m
	if stdmath.Abs(float64(det)) < 1e-6 {
		return lo, hi, false
	}
	for ch := 0; ch < channels; ch++ {
		lo[ch] = clampf((c*d0[ch]-m*d1[ch])/det, 0, 255)
		hi[ch] = clampf((a*d1[ch]-m*d0[ch])/det, 0, 255)
	}
	return lo, hi, true
}

func clampf(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

func colorError(p [4]uint8, q [4]float32, w [4]float32, channels int) float32 {
	var e float32
	for c := 0; c < channels; c++ {
		d := float32(p[c]) - q[c]
		e += d * d * w[c]
	}
	return e
}

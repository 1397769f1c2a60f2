package imgbuf

import "math"

// Interp samples the image at the continuous position (x,y) with bilinear
// interpolation of the 2x2 neighborhood, writing per-channel results into
// pixel. Pixel centers sit at integer coordinates + 0.5. Out-of-window
// neighbors resolve per wrap.
func (b *Buffer) Interp(x, y float32, pixel []float32, wrap WrapMode) {
	clear(pixel)
	if !b.validatePixels() || b.spec.Deep {
		return
	}
	n := len(pixel)
	if n > b.spec.NChannels {
		n = b.spec.NChannels
	}
	fx := float64(x) - 0.5
	fy := float64(y) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := float32(fx - float64(x0))
	ty := float32(fy - float64(y0))

	scratch := make([]float32, 4*n)
	p00, p10 := scratch[:n], scratch[n:2*n]
	p01, p11 := scratch[2*n:3*n], scratch[3*n:]
	z := b.spec.Z
	b.GetPixel(x0, y0, z, p00, wrap)
	b.GetPixel(x0+1, y0, z, p10, wrap)
	b.GetPixel(x0, y0+1, z, p01, wrap)
	b.GetPixel(x0+1, y0+1, z, p11, wrap)
	for c := 0; c < n; c++ {
		top := p00[c] + tx*(p10[c]-p00[c])
		bot := p01[c] + tx*(p11[c]-p01[c])
		pixel[c] = top + ty*(bot-top)
	}
}

// InterpNDC is Interp addressed in normalized [0,1] coordinates spanning the
// full/display window.
func (b *Buffer) InterpNDC(sx, sy float32, pixel []float32, wrap WrapMode) {
	s := b.Spec()
	x := float32(s.FullX) + sx*float32(s.FullWidth)
	y := float32(s.FullY) + sy*float32(s.FullHeight)
	b.Interp(x, y, pixel, wrap)
}

// InterpBicubic samples with cubic B-spline weights over the 4x4
// neighborhood. Smoother than bilinear; does not interpolate the original
// samples exactly (B-spline is approximating, not interpolating).
func (b *Buffer) InterpBicubic(x, y float32, pixel []float32, wrap WrapMode) {
	clear(pixel)
	if !b.validatePixels() || b.spec.Deep {
		return
	}
	n := len(pixel)
	if n > b.spec.NChannels {
		n = b.spec.NChannels
	}
	fx := float64(x) - 0.5
	fy := float64(y) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := float32(fx - float64(x0))
	ty := float32(fy - float64(y0))

	var wx, wy [4]float32
	bsplineWeights(tx, &wx)
	bsplineWeights(ty, &wy)

	scratch := make([]float32, n)
	z := b.spec.Z
	for j := 0; j < 4; j++ {
		if wy[j] == 0 {
			continue
		}
		for i := 0; i < 4; i++ {
			w := wx[i] * wy[j]
			if w == 0 {
				continue
			}
			b.GetPixel(x0-1+i, y0-1+j, z, scratch, wrap)
			for c := 0; c < n; c++ {
				pixel[c] += w * scratch[c]
			}
		}
	}
}

// InterpBicubicNDC is InterpBicubic in normalized full-window coordinates.
func (b *Buffer) InterpBicubicNDC(sx, sy float32, pixel []float32, wrap WrapMode) {
	s := b.Spec()
	x := float32(s.FullX) + sx*float32(s.FullWidth)
	y := float32(s.FullY) + sy*float32(s.FullHeight)
	b.InterpBicubic(x, y, pixel, wrap)
}

// bsplineWeights fills w with the four cubic B-spline basis weights for
// fractional offset t in [0,1). The weights sum to 1.
func bsplineWeights(t float32, w *[4]float32) {
	t2 := t * t
	t3 := t2 * t
	w[0] = (1 - 3*t + 3*t2 - t3) / 6
	w[1] = (4 - 6*t2 + 3*t3) / 6
	w[2] = (1 + 3*t + 3*t2 - 3*t3) / 6
	w[3] = t3 / 6
}

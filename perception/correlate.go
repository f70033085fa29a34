package perception

import (
	"image"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// grayFrame is a frame prepared for template search. Window sums come from
// the integral images, correlations from the padded spectrum.
type grayFrame struct {
	bounds image.Rectangle
	w, h   int
	pixels []float64

	// (w+1)*(h+1) summed-area tables of the luminance and its square
	sum, sq []int64

	pw, ph   int
	spectrum []complex128
}

func newGrayFrame(img image.Image) *grayFrame {
	pixels, b := gray(img)
	g := &grayFrame{
		bounds: b,
		w:      b.Dx(),
		h:      b.Dy(),
		pixels: pixels,
		pw:     fftSize(b.Dx()),
		ph:     fftSize(b.Dy()),
	}
	g.integrate()

	g.spectrum = make([]complex128, g.pw*g.ph)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			g.spectrum[y*g.pw+x] = complex(pixels[y*g.w+x], 0)
		}
	}
	fft2(g.spectrum, g.pw, g.ph, false)
	return g
}

func (g *grayFrame) integrate() {
	stride := g.w + 1
	g.sum = make([]int64, stride*(g.h+1))
	g.sq = make([]int64, stride*(g.h+1))
	for y := 0; y < g.h; y++ {
		var rs, rq int64
		for x := 0; x < g.w; x++ {
			v := int64(g.pixels[y*g.w+x])
			rs += v
			rq += v * v
			i := (y+1)*stride + x + 1
			g.sum[i] = g.sum[i-stride] + rs
			g.sq[i] = g.sq[i-stride] + rq
		}
	}
}

// window returns the sum and the sum of squares of the w×h window at (x, y).
func (g *grayFrame) window(x, y, w, h int) (int64, int64) {
	stride := g.w + 1
	a := y*stride + x
	b := y*stride + x + w
	c := (y+h)*stride + x
	d := (y+h)*stride + x + w
	return g.sum[d] - g.sum[b] - g.sum[c] + g.sum[a], g.sq[d] - g.sq[b] - g.sq[c] + g.sq[a]
}

// dot correlates the mean subtracted template with the window at (x, y)
// directly on the frame rows.
func (g *grayFrame) dot(x, y int, t *template) float64 {
	sum := 0.0
	for row := 0; row < t.h; row++ {
		start := (y+row)*g.w + x
		sum += floats.Dot(g.pixels[start:start+t.w], t.values[row*t.w:(row+1)*t.w])
	}
	return sum
}

// correlate returns, for every top-left offset, the dot product of the
// template with the frame window there, laid out with row stride g.pw.
// The template values have zero mean, so this is the NCC numerator.
func (g *grayFrame) correlate(t *template) []float64 {
	buf := make([]complex128, g.pw*g.ph)
	for y := 0; y < t.h; y++ {
		for x := 0; x < t.w; x++ {
			buf[y*g.pw+x] = complex(t.values[y*t.w+x], 0)
		}
	}
	fft2(buf, g.pw, g.ph, false)
	for i := range buf {
		buf[i] = g.spectrum[i] * cmplx.Conj(buf[i])
	}
	fft2(buf, g.pw, g.ph, true)

	scale := float64(g.pw * g.ph)
	out := make([]float64, len(buf))
	for i, v := range buf {
		out[i] = real(v) / scale
	}
	return out
}

// fft2 transforms a row-major w×h grid in place. The inverse is unnormalized.
func fft2(data []complex128, w, h int, inverse bool) {
	rows := fourier.NewCmplxFFT(w)
	for y := 0; y < h; y++ {
		row := data[y*w : (y+1)*w]
		if inverse {
			rows.Sequence(row, row)
		} else {
			rows.Coefficients(row, row)
		}
	}
	cols := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = data[y*w+x]
		}
		if inverse {
			cols.Sequence(col, col)
		} else {
			cols.Coefficients(col, col)
		}
		for y := 0; y < h; y++ {
			data[y*w+x] = col[y]
		}
	}
}

// fftSize is the smallest length >= n whose only prime factors are 2, 3
// and 5. Zero padding up to it keeps the correlation free of wrap-around
// for every window that fits in the frame.
func fftSize(n int) int {
	if n < 1 {
		return 1
	}
	for m := n; ; m++ {
		r := m
		for _, p := range []int{2, 3, 5} {
			for r%p == 0 {
				r /= p
			}
		}
		if r == 1 {
			return m
		}
	}
}

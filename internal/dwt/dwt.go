// Package dwt implements the one-level 2D Haar wavelet transform used on each
// color channel.
//
// Odd widths or heights are padded by repeating the last column or row, and the
// padding is dropped again by Reconstruct, so every non-empty rectangular
// channel round-trips exactly.
package dwt

import (
	"errors"
	"fmt"
	"math"
)

// Haar is the wavelet family identifier recorded with every embedding.
const Haar = "haar"

var (
	ErrShape = errors.New("channel shape is not compatible with the haar transform")
)

// Bands is the decomposition of one channel.
type Bands struct {
	// A is the low-frequency approximation. H, V and D are the detail sub-bands.
	A, H, V, D []float64
	// Rows and Cols are the sub-band dimensions.
	Rows, Cols int

	width, height int
}

// Width returns the width of the channel the bands were computed from.
func (b Bands) Width() int { return b.width }

// Height returns the height of the channel the bands were computed from.
func (b Bands) Height() int { return b.height }

// Decompose applies the Haar transform to a row-major channel of width w.
func Decompose(data []float64, w int) (Bands, error) {
	if w <= 0 || len(data) == 0 || len(data)%w != 0 {
		return Bands{}, fmt.Errorf("%w: %d samples with width %d", ErrShape, len(data), w)
	}
	h := len(data) / w

	hw, hh := (w+1)/2, (h+1)/2
	l := hw * hh
	b := Bands{
		A:      make([]float64, l),
		H:      make([]float64, l),
		V:      make([]float64, l),
		D:      make([]float64, l),
		Rows:   hh,
		Cols:   hw,
		width:  w,
		height: h,
	}

	for y0 := 0; y0 < h; y0 += 2 {
		y1 := y0 + 1
		if y1 >= h {
			y1 = y0
		}
		for x0 := 0; x0 < w; x0 += 2 {
			x1 := x0 + 1
			if x1 >= w {
				x1 = x0
			}
			a1, d1 := cacd(data[y0*w+x0], data[y1*w+x0])
			a2, d2 := cacd(data[y0*w+x1], data[y1*w+x1])

			idx := (y0/2)*hw + (x0 / 2)
			b.A[idx], b.V[idx] = cacd(a1, a2)
			b.H[idx], b.D[idx] = cacd(d1, d2)
		}
	}
	return b, nil
}

// Reconstruct applies the inverse transform and returns the row-major channel.
func Reconstruct(b Bands) []float64 {
	w, h := b.width, b.height
	data := make([]float64, w*h)
	hw := (w + 1) / 2
	for y0 := 0; y0 < h; y0 += 2 {
		for x0 := 0; x0 < w; x0 += 2 {
			idx := (y0/2)*hw + (x0 / 2)

			a1, a2 := icacd(b.A[idx], b.V[idx])
			d1, d2 := icacd(b.H[idx], b.D[idx])

			v1, v2 := icacd(a1, d1)
			v3, v4 := icacd(a2, d2)

			data[y0*w+x0] = v1
			if y0+1 < h {
				data[(y0+1)*w+x0] = v2
			}
			if x0+1 < w {
				data[y0*w+(x0+1)] = v3
			}
			if y0+1 < h && x0+1 < w {
				data[(y0+1)*w+(x0+1)] = v4
			}
		}
	}
	return data
}

func cacd(v1, v2 float64) (float64, float64) {
	avr := (v1 + v2) / 2.0
	return avr * math.Sqrt2, (v1 - avr) * math.Sqrt2
}

func icacd(a, d float64) (float64, float64) {
	avr := a / math.Sqrt2
	return avr + d/math.Sqrt2, avr - d/math.Sqrt2
}

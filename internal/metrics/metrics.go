// Package metrics compares two luminance planes of the same size.
package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Constants of the structural similarity index for 8-bit data.
const (
	WindowSize   = 7
	K1           = 0.01
	K2           = 0.03
	DynamicRange = 255.0
)

var ErrShape = errors.New("planes differ in shape")

// Result holds every similarity measure of one comparison.
type Result struct {
	PCC    float64 // signed Pearson correlation
	PCCAbs float64
	MSE    float64
	SSIM   float64
	PSNR   float64 // +Inf for identical planes
}

type jsonResult struct {
	PCC    float64         `json:"pcc"`
	PCCAbs float64         `json:"pcc_abs"`
	MSE    float64         `json:"mse"`
	SSIM   float64         `json:"ssim"`
	PSNR   json.RawMessage `json:"psnr"`
}

const infinity = `"inf"`

// MarshalJSON writes an infinite PSNR as the string "inf".
func (r Result) MarshalJSON() ([]byte, error) {
	psnr := json.RawMessage(infinity)
	if !math.IsInf(r.PSNR, 1) {
		b, err := json.Marshal(r.PSNR)
		if err != nil {
			return nil, err
		}
		psnr = b
	}
	return json.Marshal(jsonResult{PCC: r.PCC, PCCAbs: r.PCCAbs, MSE: r.MSE, SSIM: r.SSIM, PSNR: psnr})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var j jsonResult
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = Result{PCC: j.PCC, PCCAbs: j.PCCAbs, MSE: j.MSE, SSIM: j.SSIM}
	if string(j.PSNR) == infinity {
		r.PSNR = math.Inf(1)
		return nil
	}
	return json.Unmarshal(j.PSNR, &r.PSNR)
}

// Compute measures a against b, both row-major planes of width w.
func Compute(a, b []float64, w int) (Result, error) {
	if len(a) == 0 || len(a) != len(b) || w <= 0 || len(a)%w != 0 {
		return Result{}, fmt.Errorf("%w: %d and %d samples, width %d", ErrShape, len(a), len(b), w)
	}
	pcc := PCC(a, b)
	mse := MSE(a, b)
	return Result{
		PCC:    pcc,
		PCCAbs: math.Abs(pcc),
		MSE:    mse,
		SSIM:   SSIM(a, b, w),
		PSNR:   PSNR(mse),
	}, nil
}

// PCC returns the Pearson correlation of a and b. A pair in which either
// plane is constant correlates 1 when the planes are equal and 0 otherwise.
func PCC(a, b []float64) float64 {
	if constant(a) || constant(b) {
		if floats.Equal(a, b) {
			return 1
		}
		return 0
	}
	return stat.Correlation(a, b, nil)
}

func constant(s []float64) bool {
	return floats.Max(s) == floats.Min(s)
}

// MSE returns the mean squared difference.
func MSE(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum / float64(len(a))
}

// PSNR converts a mean squared error to decibels against DynamicRange.
func PSNR(mse float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return 20 * math.Log10(DynamicRange/math.Sqrt(mse))
}

// SSIM returns the mean structural similarity over every WindowSize square
// window that lies fully inside the planes, using sample covariances. Planes
// smaller than the window use the largest odd window that fits.
func SSIM(a, b []float64, w int) float64 {
	h := len(a) / w
	win := min(WindowSize, w, h)
	if win%2 == 0 {
		win--
	}
	np := float64(win * win)
	covNorm := 1.0
	if win > 1 {
		covNorm = np / (np - 1)
	}
	c1 := (K1 * DynamicRange) * (K1 * DynamicRange)
	c2 := (K2 * DynamicRange) * (K2 * DynamicRange)

	sa := newTable(w, h, func(i int) float64 { return a[i] })
	sb := newTable(w, h, func(i int) float64 { return b[i] })
	saa := newTable(w, h, func(i int) float64 { return a[i] * a[i] })
	sbb := newTable(w, h, func(i int) float64 { return b[i] * b[i] })
	sab := newTable(w, h, func(i int) float64 { return a[i] * b[i] })

	var total float64
	var n int
	for y := 0; y+win <= h; y++ {
		for x := 0; x+win <= w; x++ {
			ux := sa.sum(x, y, win) / np
			uy := sb.sum(x, y, win) / np
			vx := covNorm * (saa.sum(x, y, win)/np - ux*ux)
			vy := covNorm * (sbb.sum(x, y, win)/np - uy*uy)
			vxy := covNorm * (sab.sum(x, y, win)/np - ux*uy)

			num := (2*ux*uy + c1) * (2*vxy + c2)
			den := (ux*ux + uy*uy + c1) * (vx + vy + c2)
			total += num / den
			n++
		}
	}
	return total / float64(n)
}

// table is a summed-area table with a zero first row and column.
type table struct {
	stride int
	v      []float64
}

func newTable(w, h int, f func(i int) float64) table {
	t := table{stride: w + 1, v: make([]float64, (w+1)*(h+1))}
	for y := range h {
		var row float64
		for x := range w {
			row += f(y*w + x)
			t.v[(y+1)*t.stride+x+1] = t.v[y*t.stride+x+1] + row
		}
	}
	return t
}

// sum returns the total of the size x size square at (x, y).
func (t table) sum(x, y, size int) float64 {
	x1, y1 := x+size, y+size
	return t.v[y1*t.stride+x1] - t.v[y*t.stride+x1] - t.v[y1*t.stride+x] + t.v[y*t.stride+x]
}

package dct

import "math"

// DCT is an orthonormal 2D DCT-II for w x h row-major data.
type DCT struct {
	w, h       int
	phiW, phiH []float64
}

func New(w, h int) *DCT {
	return &DCT{
		w:    w,
		h:    h,
		phiW: basis(w),
		phiH: basis(h),
	}
}

// basis returns the 1D basis functions, phi[i*n+j] for frequency i and sample j.
func basis(n int) []float64 {
	nf := float64(n)
	phi := make([]float64, n*n)
	for j := range n {
		// i = 0
		phi[j] = 1.0 / math.Sqrt(nf)
	}
	for i := 1; i < n; i++ {
		for j := range n {
			phi[i*n+j] = math.Sqrt(2.0/nf) *
				math.Cos(
					(float64(i)*math.Pi*(float64(j)*2+1))/
						(2.0*nf),
				)
		}
	}
	return phi
}

// Forward returns the DCT coefficients of data, row-major with the same shape.
func (dct *DCT) Forward(data []float64) []float64 {
	w, h := dct.w, dct.h
	// columns first, then rows
	tmp := make([]float64, w*h)
	for i := range h {
		for y := range w {
			sum := 0.0
			for x := range h {
				sum += dct.phiH[i*h+x] * data[x*w+y]
			}
			tmp[i*w+y] = sum
		}
	}
	result := make([]float64, w*h)
	for i := range h {
		for j := range w {
			sum := 0.0
			for y := range w {
				sum += dct.phiW[j*w+y] * tmp[i*w+y]
			}
			result[i*w+j] = sum
		}
	}
	return result
}

// Inverse returns the samples of the coefficients produced by Forward.
func (dct *DCT) Inverse(coef []float64) []float64 {
	w, h := dct.w, dct.h
	tmp := make([]float64, w*h)
	for x := range h {
		for j := range w {
			sum := 0.0
			for i := range h {
				sum += dct.phiH[i*h+x] * coef[i*w+j]
			}
			tmp[x*w+j] = sum
		}
	}
	data := make([]float64, w*h)
	for x := range h {
		for y := range w {
			sum := 0.0
			for j := range w {
				sum += dct.phiW[j*w+y] * tmp[x*w+j]
			}
			data[x*w+y] = sum
		}
	}
	return data
}

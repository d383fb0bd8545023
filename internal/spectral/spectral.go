// Package spectral mixes a watermark into the singular values of a host
// sub-band and recovers it again.
package spectral

import (
	"errors"
	"fmt"
	"math"

	"github.com/yyyoichi/watermark_svd/internal/svd"
	"gonum.org/v1/gonum/mat"
)

// MinAlpha is the smallest scaling factor treated as non-zero. Below it the
// division during extraction only amplifies noise.
const MinAlpha = 1e-9

var (
	ErrInvalidAlpha = errors.New("alpha must lie in (0, 1]")
)

// ValidateAlpha reports whether alpha can be used for embedding and extraction.
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < MinAlpha || alpha > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidAlpha, alpha)
	}
	return nil
}

// Embed adds alpha times the watermark's singular values to the host's and
// rebuilds the sub-band with the host's singular vectors. It returns the
// modified sub-band and the unmodified host singular values.
func Embed(host, mark mat.Matrix, alpha float64) (*mat.Dense, []float64, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return nil, nil, err
	}
	h, err := svd.Factorize(host)
	if err != nil {
		return nil, nil, fmt.Errorf("host: %w", err)
	}
	m, err := svd.Factorize(mark)
	if err != nil {
		return nil, nil, fmt.Errorf("watermark: %w", err)
	}

	s := make([]float64, len(h.S))
	copy(s, h.S)
	for i := range min(len(s), len(m.S)) {
		s[i] += alpha * m.S[i]
	}
	return svd.Reconstruct(s, h.U, h.V), h.S, nil
}

// Extract recovers the watermark singular values from a suspect sub-band:
// (S_suspect - hostS) / alpha. Sequences of different length are compared over
// their common prefix. Negative estimates are clamped to zero and counted.
func Extract(suspect mat.Matrix, hostS []float64, alpha float64) (recovered []float64, clamped int, err error) {
	if err := ValidateAlpha(alpha); err != nil {
		return nil, 0, err
	}
	t, err := svd.Factorize(suspect)
	if err != nil {
		return nil, 0, fmt.Errorf("suspect: %w", err)
	}
	recovered = make([]float64, min(len(t.S), len(hostS)))
	for i := range recovered {
		v := (t.S[i] - hostS[i]) / alpha
		if v < 0 {
			v = 0
			clamped++
		}
		recovered[i] = v
	}
	return recovered, clamped, nil
}

// ReconstructFromValues rebuilds a sub-band from singular values and the
// singular vectors of some reference decomposition.
func ReconstructFromValues(s []float64, u, v *mat.Dense) *mat.Dense {
	return svd.Reconstruct(s, u, v)
}

// Matrix wraps a row-major sub-band without copying.
func Matrix(rows, cols int, data []float64) *mat.Dense {
	return mat.NewDense(rows, cols, data)
}

// Flatten copies m into a new row-major slice.
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := range r {
		for j := range c {
			data = append(data, m.At(i, j))
		}
	}
	return data
}

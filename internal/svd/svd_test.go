package svd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFactorize_RoundTrip(t *testing.T) {
	testCases := []struct {
		name   string
		width  int
		height int
		data   []float64
	}{
		{
			name:   "2x2_simple",
			width:  2,
			height: 2,
			data:   []float64{3, 1, 1, 3},
		},
		{
			name:   "3x3_identity",
			width:  3,
			height: 3,
			data:   []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		},
		{
			name:   "3x2_rectangular",
			width:  2,
			height: 3,
			data:   []float64{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "2x3_rectangular",
			width:  3,
			height: 2,
			data:   []float64{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "3x3_diagonal",
			width:  3,
			height: 3,
			data:   []float64{5, 0, 0, 0, 3, 0, 0, 0, 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := mat.NewDense(tc.height, tc.width, tc.data)
			tr, err := Factorize(a)
			require.NoError(t, err)

			require.Len(t, tr.S, min(tc.width, tc.height))
			for i := 1; i < len(tr.S); i++ {
				assert.GreaterOrEqual(t, tr.S[i-1], tr.S[i], "values must be descending")
				assert.GreaterOrEqual(t, tr.S[i], 0.0)
			}

			got := Reconstruct(tr.S, tr.U, tr.V)
			r, c := got.Dims()
			require.Equal(t, tc.height, r)
			require.Equal(t, tc.width, c)

			const tolerance = 1e-10
			for i := range tc.height {
				for j := range tc.width {
					assert.InDelta(t, a.At(i, j), got.At(i, j), tolerance, "at (%d,%d)", i, j)
				}
			}
		})
	}
}

func TestFactorize_KnownValues(t *testing.T) {
	// [[3,1],[1,3]] has eigenvalues 4 and 2, equal to its singular values
	tr, err := Factorize(mat.NewDense(2, 2, []float64{3, 1, 1, 3}))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, tr.S[0], 1e-12)
	assert.InDelta(t, 2.0, tr.S[1], 1e-12)
}

func TestReconstruct(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{2, 0, 0, 0, 1, 0, 0, 0, 0.5})
	tr, err := Factorize(a)
	require.NoError(t, err)

	t.Run("truncated values keep the shape", func(t *testing.T) {
		got := Reconstruct(tr.S[:1], tr.U, tr.V)
		r, c := got.Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, 3, c)
		assert.InDelta(t, 2.0, got.At(0, 0), 1e-12)
		assert.InDelta(t, 0.0, got.At(1, 1), 1e-12)
	})

	t.Run("extra values are ignored", func(t *testing.T) {
		got := Reconstruct(append([]float64{}, 2, 1, 0.5, 100), tr.U, tr.V)
		assert.True(t, mat.EqualApprox(a, got, 1e-12))
	})

	t.Run("no values yields zeros", func(t *testing.T) {
		got := Reconstruct(nil, tr.U, tr.V)
		assert.Equal(t, 0.0, mat.Sum(got))
	})
}

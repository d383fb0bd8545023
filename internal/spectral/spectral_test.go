package spectral

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/watermark_svd/internal/svd"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rd *rand.Rand, r, c int, lo, hi float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = lo + rd.Float64()*(hi-lo)
	}
	return mat.NewDense(r, c, data)
}

func TestValidateAlpha(t *testing.T) {
	test := []struct {
		name  string
		alpha float64
		ok    bool
	}{
		{"zero", 0, false},
		{"negative", -0.1, false},
		{"near zero", 1e-12, false},
		{"above one", 1.0001, false},
		{"nan", math.NaN(), false},
		{"one", 1, true},
		{"default", 0.6, true},
		{"small", 0.01, true},
	}
	for _, tt := range test {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAlpha(tt.alpha)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidAlpha)
		})
	}
}

func TestEmbedExtract(t *testing.T) {
	rd := rand.New(rand.NewPCG(7, 11))
	for _, alpha := range []float64{0.05, 0.6, 1} {
		host := randomMatrix(rd, 12, 12, 40, 200)
		mark := randomMatrix(rd, 12, 12, 0, 120)

		modified, hostS, err := Embed(host, mark, alpha)
		require.NoError(t, err)

		want, err := svd.Factorize(host)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want.S, hostS, 1e-9, "host values are returned unmodified")

		recovered, clamped, err := Extract(modified, hostS, alpha)
		require.NoError(t, err)
		assert.Zero(t, clamped)

		markT, err := svd.Factorize(mark)
		require.NoError(t, err)
		require.Len(t, recovered, len(markT.S))
		for i := range recovered {
			assert.InDelta(t, markT.S[i], recovered[i], 1e-6, "alpha %v value %d", alpha, i)
		}

		// rebuilt with the watermark's own vectors the sub-band comes back
		rebuilt := ReconstructFromValues(recovered, markT.U, markT.V)
		assert.True(t, mat.EqualApprox(mark, rebuilt, 1e-6))
	}
}

func TestEmbed_KeepsHostVectors(t *testing.T) {
	rd := rand.New(rand.NewPCG(3, 5))
	host := randomMatrix(rd, 8, 6, 10, 100)
	mark := randomMatrix(rd, 8, 6, 0, 50)

	modified, _, err := Embed(host, mark, 0.3)
	require.NoError(t, err)
	r, c := modified.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 6, c)
	assert.False(t, mat.EqualApprox(host, modified, 1e-6))
}

func TestExtract_ClampsNegative(t *testing.T) {
	rd := rand.New(rand.NewPCG(9, 9))
	host := randomMatrix(rd, 6, 6, 10, 100)
	h, err := svd.Factorize(host)
	require.NoError(t, err)

	// pretending the host had larger values drives every estimate below zero
	inflated := make([]float64, len(h.S))
	for i := range inflated {
		inflated[i] = h.S[i] + 10
	}
	recovered, clamped, err := Extract(host, inflated, 0.5)
	require.NoError(t, err)
	assert.Equal(t, len(inflated), clamped)
	for _, v := range recovered {
		assert.Equal(t, 0.0, v)
	}
}

func TestExtract_LengthGuard(t *testing.T) {
	rd := rand.New(rand.NewPCG(1, 1))
	host := randomMatrix(rd, 6, 6, 10, 100)
	recovered, _, err := Extract(host, []float64{1, 2, 3}, 0.5)
	require.NoError(t, err)
	assert.Len(t, recovered, 3)
}

func TestInvalidAlpha(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	_, _, err := Embed(m, m, 0)
	assert.ErrorIs(t, err, ErrInvalidAlpha)
	_, _, err = Extract(m, []float64{1, 1}, 1e-15)
	assert.ErrorIs(t, err, ErrInvalidAlpha)
}

func TestFlatten(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	m := Matrix(2, 3, data)
	got := Flatten(m)
	assert.Equal(t, data, got)
	got[0] = 100
	assert.Equal(t, 1.0, data[0], "Flatten copies")
}

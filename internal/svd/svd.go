package svd

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrFactorize = errors.New("cannot factorize")
)

// Triple is the thin singular value decomposition of a matrix:
// A = U * diag(S) * V^T with S in descending order.
type Triple struct {
	U, V *mat.Dense
	S    []float64
}

// Factorize computes the thin SVD of a.
func Factorize(a mat.Matrix) (Triple, error) {
	var result mat.SVD
	if ok := result.Factorize(a, mat.SVDThin); !ok {
		return Triple{}, ErrFactorize
	}
	t := Triple{
		U: new(mat.Dense),
		V: new(mat.Dense),
		S: result.Values(nil),
	}
	result.UTo(t.U)
	result.VTo(t.V)
	return t, nil
}

// Reconstruct returns U * diag(s) * V^T using the leading len(s) singular
// vectors. Extra values beyond the available vectors are ignored.
func Reconstruct(s []float64, u, v *mat.Dense) *mat.Dense {
	rows, uc := u.Dims()
	cols, vc := v.Dims()
	k := min(len(s), uc, vc)
	if k == 0 {
		return mat.NewDense(rows, cols, nil)
	}

	// scale the leading columns of U by s, then multiply by V^T
	us := mat.NewDense(rows, k, nil)
	for i := range rows {
		for j := range k {
			us.Set(i, j, u.At(i, j)*s[j])
		}
	}
	var res mat.Dense
	res.Mul(us, v.Slice(0, cols, 0, k).T())
	return &res
}

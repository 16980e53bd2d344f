package tensor

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Truncation bounds the number of singular values kept by SVD.
// The zero value keeps every singular value.
type Truncation struct {
	// MaxSingularValues caps the number of kept singular values.
	// Zero means unbounded.
	MaxSingularValues int
	// MaxError is the largest allowed norm of the discarded singular values, sqrt(sum s_i^2).
	// Zero means no error based truncation.
	MaxError float64
}

// keep returns the number of singular values to keep out of the descending values s.
// When both constraints are set, the stricter one binds.
// At least one singular value is always kept.
func (tr Truncation) keep(s []float64) int {
	n := len(s)
	if tr.MaxError > 0 {
		// Drop from the smallest singular value upwards while the accumulated error stays within budget.
		var sq float64
		for n > 1 {
			next := sq + s[n-1]*s[n-1]
			if math.Sqrt(next) > tr.MaxError {
				break
			}
			sq = next
			n--
		}
	}
	if tr.MaxSingularValues > 0 {
		n = min(n, tr.MaxSingularValues)
	}
	return max(n, 1)
}

// SVD factorizes a = u * diag(s) * v, splitting the axes of a into the first nLeft axes and the rest.
// u has the shape of the left axes followed by the kept bond, v has the kept bond followed by the right axes.
// The singular values s are in descending order.
// discarded holds the singular values dropped by the truncation, also in descending order.
func SVD(a *Dense, nLeft int, trunc Truncation) (u *Dense, s []float64, v *Dense, discarded []float64, err error) {
	if nLeft <= 0 || nLeft >= len(a.shape) {
		panic(fmt.Sprintf("%d %#v", nLeft, a.shape))
	}
	leftShape, rightShape := a.shape[:nLeft], a.shape[nLeft:]
	rows, cols := size(leftShape), size(rightShape)
	if rows == 0 || cols == 0 {
		return nil, nil, nil, nil, errors.Errorf("%#v", a.shape)
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(rows, cols, a.data), mat.SVDThin); !ok {
		return nil, nil, nil, nil, errors.Errorf("svd failed %#v", a.shape)
	}
	values := svd.Values(nil)
	var um, vm mat.Dense
	svd.UTo(&um)
	svd.VTo(&vm)

	k := trunc.keep(values)
	s = values[:k:k]
	discarded = append([]float64{}, values[k:]...)

	uShape := append(append([]int{}, leftShape...), k)
	u = Zeros(uShape...)
	for i := range rows {
		for j := range k {
			u.data[i*k+j] = um.At(i, j)
		}
	}

	vShape := append([]int{k}, rightShape...)
	v = Zeros(vShape...)
	for i := range k {
		for j := range cols {
			v.data[i*cols+j] = vm.At(j, i)
		}
	}
	return u, s, v, discarded, nil
}

// Package exactdiag diagonalizes small matrix product operators exactly.
// It serves as a reference for the variational solvers.
package exactdiag

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/tndmrg/mps"
	"github.com/fumin/tndmrg/tensor"
)

// MaxDim is the largest Hilbert space dimension Matrix accepts.
const MaxDim = 1 << 12

var (
	ErrTooLarge = errors.New("exactdiag: hilbert space too large")
)

// ValVec is an eigenvalue and its unit norm eigenvector.
type ValVec struct {
	Val float64
	Vec []float64
}

// Matrix returns the full matrix of w.
// Basis states are ordered row-major over the sites, so site 0 is the most significant.
func Matrix(w mps.MPO) (*mat.SymDense, error) {
	if w.Len() == 0 {
		return nil, errors.Errorf("empty mpo")
	}
	dim := 1
	for _, s := range w.Sites {
		dim *= s.Shape()[2]
		if dim > MaxDim {
			return nil, errors.Wrap(ErrTooLarge, fmt.Sprintf("%d sites", w.Len()))
		}
	}

	// full has axes {mpoBond, up_0, down_0, up_1, down_1, ..., mpoBond}.
	full := w.Sites[0]
	for _, s := range w.Sites[1:] {
		full = tensor.Product(nil, full, s, [][2]int{{full.Rank() - 1, 0}})
	}

	// Gather the up axes before the down axes.
	n := w.Len()
	axes := make([]int, 0, full.Rank())
	axes = append(axes, 0)
	for i := range n {
		axes = append(axes, 1+2*i)
	}
	for i := range n {
		axes = append(axes, 2+2*i)
	}
	axes = append(axes, full.Rank()-1)
	data := full.Transpose(axes...).Data()

	m := mat.NewSymDense(dim, nil)
	for i := range dim {
		for j := i; j < dim; j++ {
			a, b := data[i*dim+j], data[j*dim+i]
			if math.Abs(a-b) > 1e-10*max(1, math.Abs(a)) {
				return nil, errors.Errorf("not symmetric at %d %d: %f %f", i, j, a, b)
			}
			m.SetSym(i, j, a)
		}
	}
	return m, nil
}

// Eigen returns the eigenpairs of w in ascending order of eigenvalue.
func Eigen(w mps.MPO) ([]ValVec, error) {
	m, err := Matrix(w)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(m, true); !ok {
		return nil, errors.Errorf("eigen decomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	rows, _ := vecs.Dims()
	vvs := make([]ValVec, 0, len(vals))
	for i, v := range vals {
		vec := make([]float64, rows)
		mat.Col(vec, i, &vecs)
		vvs = append(vvs, ValVec{Val: v, Vec: vec})
	}
	return vvs, nil
}

// State reshapes the vector vec into a tensor with one axis per site, suitable for mps.NewMPS.
func State(vec []float64, physDims []int) (*tensor.Dense, error) {
	dim := 1
	for _, d := range physDims {
		dim *= d
	}
	if dim != len(vec) {
		return nil, errors.Errorf("%d %v", len(vec), physDims)
	}
	data := make([]float64, len(vec))
	copy(data, vec)
	return tensor.New(data, physDims...), nil
}

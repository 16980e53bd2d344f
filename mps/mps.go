// Package mps implements finite matrix product states and matrix product operators.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package mps

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/tndmrg/tensor"
)

const (
	// mpsLeftAxis is the axis of a_{l-1} in Figure 6.
	mpsLeftAxis  = 0
	mpsUpAxis    = 1
	mpsRightAxis = 2
	// mpoLeftAxis is the axis of b_{l-1} in Figure 35.
	// mpoUpAxis is the outgoing (bra) physical axis, and mpoDownAxis the incoming (ket) one.
	mpoLeftAxis  = 0
	mpoUpAxis    = 1
	mpoDownAxis  = 2
	mpoRightAxis = 3
)

var (
	ErrLengthMismatch = errors.New("mps: length mismatch")
	ErrOutOfRange     = errors.New("mps: site out of range")
	ErrShortChain     = errors.New("mps: chain must have at least two sites")
)

// MPS is a finite matrix product state.
// Site i has axes (bond i-1, physical i, bond i), and the outermost bonds have dimension one.
type MPS struct {
	Sites []*tensor.Dense
	// Center is the orthogonality center.
	// Sites left of Center are left-normalized, and sites right of it are right-normalized.
	Center int
}

// MPO is a finite matrix product operator.
// Site i has axes (bond i-1, outgoing physical i, incoming physical i, bond i), and the outermost bonds have dimension one.
type MPO struct {
	Sites []*tensor.Dense
}

// Len returns the number of sites.
func (w MPO) Len() int { return len(w.Sites) }

// Len returns the number of sites.
func (psi *MPS) Len() int { return len(psi.Sites) }

// BondDimensions returns the dimensions of the L-1 inner bonds.
func (psi *MPS) BondDimensions() []int {
	dims := make([]int, 0, max(len(psi.Sites)-1, 0))
	for _, m := range psi.Sites[:len(psi.Sites)-1] {
		dims = append(dims, m.Shape()[mpsRightAxis])
	}
	return dims
}

// MaxBondDimension returns the largest bond dimension.
func (psi *MPS) MaxBondDimension() int {
	d := 1
	for _, b := range psi.BondDimensions() {
		d = max(d, b)
	}
	return d
}

// PhysicalDimensions returns the dimension of the physical axis of each site.
func (psi *MPS) PhysicalDimensions() []int {
	dims := make([]int, 0, len(psi.Sites))
	for _, m := range psi.Sites {
		dims = append(dims, m.Shape()[mpsUpAxis])
	}
	return dims
}

// Copy returns a deep copy of psi.
func (psi *MPS) Copy() *MPS {
	c := &MPS{Sites: make([]*tensor.Dense, 0, len(psi.Sites)), Center: psi.Center}
	for _, m := range psi.Sites {
		c.Sites = append(c.Sites, m.Copy())
	}
	return c
}

// NewMPS creates a matrix product representation from a general state.
// The shape of state lists the physical dimensions of the sites.
// The returned MPS is left-normalized with its orthogonality center at the last site.
func NewMPS(state *tensor.Dense) (*MPS, error) {
	shape := state.Shape()
	if len(shape) < 2 {
		return nil, errors.Wrap(ErrShortChain, fmt.Sprintf("%#v", shape))
	}

	psi := &MPS{Sites: make([]*tensor.Dense, 0, len(shape)), Center: len(shape) - 1}
	leftD := 1
	rest := state.Copy()
	for _, physD := range shape[:len(shape)-1] {
		u, s, v, _, err := tensor.SVD(rest.Reshape(leftD, physD, -1), 2, tensor.Truncation{})
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		psi.Sites = append(psi.Sites, u)

		leftD = len(s)
		rest = v.ScaleRows(s)
	}
	psi.Sites = append(psi.Sites, rest.Reshape(leftD, shape[len(shape)-1], 1))
	return psi, nil
}

// ProductState returns the product state in which site i is in the basis state states[i] of a d-dimensional physical space.
// The orthogonality center is at site 0.
func ProductState(d int, states []int) (*MPS, error) {
	if len(states) < 2 {
		return nil, errors.Wrap(ErrShortChain, fmt.Sprintf("%d", len(states)))
	}
	psi := &MPS{Sites: make([]*tensor.Dense, 0, len(states))}
	for i, s := range states {
		if s < 0 || s >= d {
			return nil, errors.Errorf("site %d state %d dimension %d", i, s, d)
		}
		m := tensor.Zeros(1, d, 1)
		m.SetAt([]int{0, s, 0}, 1)
		psi.Sites = append(psi.Sites, m)
	}
	return psi, nil
}

// RandMPS creates a random normalized matrix product state with its orthogonality center at site 0.
// maxD is the maximum bond dimension, which is D in the discussion below equation 71 in section 4.1.4, Ulrich Schollwock.
func RandMPS(mpo MPO, maxD int) (*MPS, error) {
	if mpo.Len() < 2 {
		return nil, errors.Wrap(ErrShortChain, fmt.Sprintf("%d", mpo.Len()))
	}
	if maxD < 1 {
		return nil, errors.Errorf("%d", maxD)
	}
	n := mpo.Len()
	psi := &MPS{Sites: make([]*tensor.Dense, 0, n)}

	// Bonds grow exponentially from both ends, capped by maxD.
	leftD := 1
	for i := range n {
		physD := mpo.Sites[i].Shape()[mpoDownAxis]
		rightD := 1
		if i < n-1 {
			rightD = min(leftD*physD, maxD, bondCap(mpo, i+1))
		}
		psi.Sites = append(psi.Sites, randTensor(leftD, physD, rightD))
		leftD = rightD
	}

	if err := psi.Canonicalize(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return psi, nil
}

// bondCap returns the largest useful dimension of the bond left of site i, which is the product of the physical dimensions to its right.
func bondCap(mpo MPO, i int) int {
	c := 1
	for _, w := range mpo.Sites[i:] {
		c *= w.Shape()[mpoDownAxis]
		if c > math.MaxInt32 {
			return math.MaxInt32
		}
	}
	return c
}

// Canonicalize right-normalizes all sites except the first, normalizes the state, and sets the orthogonality center to 0.
func (psi *MPS) Canonicalize() error {
	if len(psi.Sites) < 2 {
		return errors.Wrap(ErrShortChain, fmt.Sprintf("%d", len(psi.Sites)))
	}
	for i := len(psi.Sites) - 1; i >= 1; i-- {
		if err := psi.rightNormalize(i); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}
	psi.Center = 0
	norm := psi.Sites[0].Norm()
	if norm == 0 {
		return errors.Errorf("zero state")
	}
	psi.Sites[0].Scale(1 / norm)
	return nil
}

// Position moves the orthogonality center to site.
// Only the sites between the current and new centers are modified.
func (psi *MPS) Position(site int) error {
	if site < 0 || site >= len(psi.Sites) {
		return errors.Wrap(ErrOutOfRange, fmt.Sprintf("%d %d", site, len(psi.Sites)))
	}
	for psi.Center < site {
		if err := psi.leftNormalize(psi.Center); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", psi.Center))
		}
		psi.Center++
	}
	for psi.Center > site {
		if err := psi.rightNormalize(psi.Center); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", psi.Center))
		}
		psi.Center--
	}
	return nil
}

// leftNormalize normalizes a MPS site from the left, and multiplies the remainder into the next site.
// See Section 4.4.1 Generation of a left-canonical MPS, Ulrich Schollwock.
func (psi *MPS) leftNormalize(i int) error {
	// Decompose ms[i] = u @ s @ v.
	u, s, v, _, err := tensor.SVD(psi.Sites[i], 2, tensor.Truncation{})
	if err != nil {
		return errors.Wrap(err, "")
	}

	// ms[i+1] = s @ v @ ms[i+1].
	sv := v.ScaleRows(s)
	psi.Sites[i+1] = tensor.Product(nil, sv, psi.Sites[i+1], [][2]int{{1, mpsLeftAxis}})

	// ms[i] = u.
	psi.Sites[i] = u
	return nil
}

// rightNormalize normalizes a MPS site from the right, and multiplies the remainder into the previous site.
// See Section 4.4.2 Generation of a right-canonical MPS, Ulrich Schollwock.
func (psi *MPS) rightNormalize(i int) error {
	// Decompose ms[i] = u @ s @ v.
	u, s, v, _, err := tensor.SVD(psi.Sites[i], 1, tensor.Truncation{})
	if err != nil {
		return errors.Wrap(err, "")
	}

	// ms[i-1] = ms[i-1] @ u @ s.
	us := u.ScaleColumns(s)
	psi.Sites[i-1] = tensor.Product(nil, psi.Sites[i-1], us, [][2]int{{mpsRightAxis, 0}})

	// ms[i] = v.
	psi.Sites[i] = v
	return nil
}

// InnerProduct computes the inner product <x|y>.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y *MPS) (float64, error) {
	if len(x.Sites) != len(y.Sites) {
		return math.NaN(), errors.Wrap(ErrLengthMismatch, fmt.Sprintf("%d %d", len(x.Sites), len(y.Sites)))
	}

	// f is of shape {yBond, xBond}.
	f := ones(1, 1)
	for i, xi := range x.Sites {
		yi := y.Sites[i]
		f = tensor.Ncon([]*tensor.Dense{f, yi, xi.Conj()}, [][]int{{1, 3}, {1, 2, -1}, {3, 2, -2}})
	}

	if !slices.Equal(f.Shape(), []int{1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0), nil
}

// Norm returns sqrt(<psi|psi>).
func (psi *MPS) Norm() float64 {
	ip, err := InnerProduct(psi, psi)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return math.Sqrt(ip)
}

// Expectation returns <psi|w|psi>.
// See Equation 192, Section 6.2 Applying a Hamiltonian MPO to a mixed canonical state, Ulrich Schollwock.
func Expectation(w MPO, psi *MPS) (float64, error) {
	if w.Len() != psi.Len() {
		return math.NaN(), errors.Wrap(ErrLengthMismatch, fmt.Sprintf("%d %d", w.Len(), psi.Len()))
	}

	f := ones(1, 1, 1)
	for i, wi := range w.Sites {
		f = LExpression(f, wi, psi.Sites[i])
	}

	if !slices.Equal(f.Shape(), []int{1, 1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0, 0), nil
}

// ExpectationSquared returns <psi|w^2|psi>.
// See Figure 44, Section 6.4 Conventional DMRG in MPS language: the subtle differences, Ulrich Schollwock for a graphical explanation.
func ExpectationSquared(w MPO, psi *MPS) (float64, error) {
	if w.Len() != psi.Len() {
		return math.NaN(), errors.Wrap(ErrLengthMismatch, fmt.Sprintf("%d %d", w.Len(), psi.Len()))
	}

	// f is of shape {mpsBond, mpoBond, mpoBond2, mpsBond.conj}.
	f := ones(1, 1, 1, 1)
	for i, wi := range w.Sites {
		m := psi.Sites[i]
		nodes := []*tensor.Dense{f, m, wi, wi, m.Conj()}
		f = tensor.Ncon(nodes, [][]int{{1, 3, 5, 7}, {1, 2, -1}, {3, 4, 2, -2}, {5, 6, 4, -3}, {7, 6, -4}})
	}

	if !slices.Equal(f.Shape(), []int{1, 1, 1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0, 0, 0), nil
}

// LExpression extends the left environment f of shape {mpsBond, mpoBond, mpsBond.conj} by one site with MPO tensor w and MPS tensor m.
// See Equation 192 and Figure 38, Ulrich Schollwock.
func LExpression(f, w, m *tensor.Dense) *tensor.Dense {
	nodes := []*tensor.Dense{f, m, w, m.Conj()}
	return tensor.Ncon(nodes, [][]int{{1, 3, 5}, {1, 2, -1}, {3, 4, 2, -2}, {5, 4, -3}})
}

// RExpression extends the right environment f of shape {mpsBond, mpoBond, mpsBond.conj} by one site with MPO tensor w and MPS tensor m.
// See Equation 193 and Figure 38, Ulrich Schollwock.
func RExpression(f, w, m *tensor.Dense) *tensor.Dense {
	nodes := []*tensor.Dense{f, m, w, m.Conj()}
	return tensor.Ncon(nodes, [][]int{{1, 3, 5}, {-1, 2, 1}, {-2, 4, 2, 3}, {-3, 4, 5}})
}

// Ones returns a tensor of the given shape filled with ones.
// A 1x1x1 Ones is the boundary environment of a chain.
func Ones(shape ...int) *tensor.Dense {
	return ones(shape...)
}

func ones(shape ...int) *tensor.Dense {
	t := tensor.Zeros(shape...)
	for i := range t.Data() {
		t.Data()[i] = 1
	}
	return t
}

func randTensor(shape ...int) *tensor.Dense {
	t := tensor.Zeros(shape...)
	for i := range t.Data() {
		t.Data()[i] = rand.Float64()*2 - 1
	}
	return t
}

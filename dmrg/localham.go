package dmrg

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fumin/tndmrg/mps"
	"github.com/fumin/tndmrg/tensor"
)

// LocalHam is the effective Hamiltonian of a two site window {pos, pos+1} of a chain.
//
// It keeps two stacks of environments.
// lenvs[k] is the contraction of sites [0, k), and renvs[k] is the contraction of sites [L-k, L).
// At window position pos, the top of lenvs covers [0, pos) and the top of renvs covers [pos+2, L).
// Environments have axes {mpsBond, mpoBond, mpsBond.conj}.
type LocalHam struct {
	h   mps.MPO
	psi *mps.MPS
	pos int

	lenvs []*tensor.Dense
	renvs []*tensor.Dense
}

// NewLocalHam builds the environments of the window at pos.
func NewLocalHam(h mps.MPO, psi *mps.MPS, pos int) (*LocalHam, error) {
	if h.Len() != psi.Len() {
		return nil, errors.Wrap(ErrLengthMismatch, fmt.Sprintf("mpo %d mps %d", h.Len(), psi.Len()))
	}
	n := h.Len()
	if pos < 0 || pos > n-2 {
		return nil, errors.Wrap(ErrOutOfRange, fmt.Sprintf("%d %d", pos, n))
	}

	lh := &LocalHam{h: h, psi: psi, pos: pos}
	lh.lenvs = make([]*tensor.Dense, 0, n)
	lh.lenvs = append(lh.lenvs, mps.Ones(1, 1, 1))
	for i := range pos {
		lh.pushLeft(i)
	}
	lh.renvs = make([]*tensor.Dense, 0, n)
	lh.renvs = append(lh.renvs, mps.Ones(1, 1, 1))
	for i := n - 1; i >= pos+2; i-- {
		lh.pushRight(i)
	}
	return lh, nil
}

// Pos returns the position of the window.
func (lh *LocalHam) Pos() int { return lh.pos }

// Dim returns the dimension of the two site space the effective Hamiltonian acts on.
func (lh *LocalHam) Dim() int {
	shape := lh.wfShape()
	return shape[0] * shape[1] * shape[2] * shape[3]
}

// Position moves the window to pos.
// Each site crossed is absorbed into exactly one new environment.
func (lh *LocalHam) Position(pos int) error {
	n := lh.h.Len()
	if pos < 0 || pos > n-2 {
		return errors.Wrap(ErrOutOfRange, fmt.Sprintf("%d %d", pos, n))
	}

	for lh.pos < pos {
		lh.renvs = lh.renvs[:len(lh.renvs)-1]
		lh.pushLeft(lh.pos)
		lh.pos++
	}
	for lh.pos > pos {
		lh.lenvs = lh.lenvs[:len(lh.lenvs)-1]
		lh.pushRight(lh.pos + 1)
		lh.pos--
	}
	return nil
}

// Apply computes dst = H_eff * src, where src is the flattened two site wavefunction with axes {lbond, s_pos, s_pos+1, rbond}.
// It does not modify the environments.
func (lh *LocalHam) Apply(dst, src []float64) {
	shape := lh.wfShape()
	v := tensor.New(src, shape...)
	out := lh.apply(v)
	copy(dst, out.Data())
}

func (lh *LocalHam) apply(v *tensor.Dense) *tensor.Dense {
	nodes := []*tensor.Dense{lh.lenvs[len(lh.lenvs)-1], v, lh.h.Sites[lh.pos], lh.h.Sites[lh.pos+1], lh.renvs[len(lh.renvs)-1]}
	return tensor.Ncon(nodes, [][]int{{1, 3, -1}, {1, 2, 4, 6}, {3, -2, 2, 5}, {5, -3, 4, 7}, {6, 7, -4}})
}

// Energy returns <psi|H|psi> by contracting the window with its environments.
// It equals the energy of a normalized psi only if the orthogonality center lies within the window.
func (lh *LocalHam) Energy() float64 {
	wf := lh.wavefunction()
	return tensor.Dot(wf.Conj(), lh.apply(wf))
}

// wavefunction returns the two site tensor of the window.
func (lh *LocalHam) wavefunction() *tensor.Dense {
	return twoSite(lh.psi, lh.pos)
}

func (lh *LocalHam) wfShape() []int {
	phys := lh.psi.PhysicalDimensions()
	return []int{
		lh.lenvs[len(lh.lenvs)-1].Shape()[0],
		phys[lh.pos],
		phys[lh.pos+1],
		lh.renvs[len(lh.renvs)-1].Shape()[0],
	}
}

func (lh *LocalHam) pushLeft(i int) {
	l := lh.lenvs[len(lh.lenvs)-1]
	lh.lenvs = append(lh.lenvs, mps.LExpression(l, lh.h.Sites[i], lh.psi.Sites[i]))
}

func (lh *LocalHam) pushRight(i int) {
	r := lh.renvs[len(lh.renvs)-1]
	lh.renvs = append(lh.renvs, mps.RExpression(r, lh.h.Sites[i], lh.psi.Sites[i]))
}

// twoSite contracts sites b and b+1 into a tensor with axes {lbond, s_b, s_b+1, rbond}.
func twoSite(psi *mps.MPS, b int) *tensor.Dense {
	return tensor.Ncon([]*tensor.Dense{psi.Sites[b], psi.Sites[b+1]}, [][]int{{-1, -2, 1}, {1, -3, -4}})
}

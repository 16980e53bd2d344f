package dmrg

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/fumin/tndmrg/mps"
	"github.com/fumin/tndmrg/tensor"
)

// Direction is the side of an updated bond that keeps the orthonormal factor.
type Direction int

const (
	// Left puts the singular values into the left site, moving the orthogonality center to the left site of the bond.
	Left Direction = iota + 1
	// Right puts the singular values into the right site, moving the orthogonality center to the right site of the bond.
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// UpdateBond splits the two site tensor wf into sites b and b+1 of psi.
// wf has axes {lbond, s_b, s_b+1, rbond}.
// The kept singular values are normalized, and the discarded ones are returned in descending order.
//
// With Right, site b becomes left-normalized and a center at b moves to b+1.
// With Left, site b+1 becomes right-normalized and a center at b+1 moves to b.
// A center elsewhere is left unchanged.
// The new sites share no storage with wf.
func UpdateBond(psi *mps.MPS, b int, wf *tensor.Dense, ortho Direction, trunc tensor.Truncation) ([]float64, error) {
	if ortho != Left && ortho != Right {
		return nil, errors.Wrap(ErrInvalidDirection, fmt.Sprintf("%d", int(ortho)))
	}
	if b < 0 || b > psi.Len()-2 {
		return nil, errors.Wrap(ErrOutOfRange, fmt.Sprintf("%d %d", b, psi.Len()))
	}
	if err := checkTwoSite(psi, b, wf); err != nil {
		return nil, errors.Wrap(err, "")
	}

	u, s, v, discarded, err := tensor.SVD(wf, 2, trunc)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	norm := floats.Norm(s, 2)
	if norm == 0 {
		return nil, errors.Errorf("zero wavefunction at bond %d", b)
	}
	floats.Scale(1/norm, s)

	// u and v are fresh tensors from the SVD, so scaling them in place does not touch wf.
	switch ortho {
	case Right:
		psi.Sites[b] = u
		psi.Sites[b+1] = v.ScaleRows(s)
		if psi.Center == b {
			psi.Center++
		}
	case Left:
		psi.Sites[b] = u.ScaleColumns(s)
		psi.Sites[b+1] = v
		if psi.Center == b+1 {
			psi.Center--
		}
	}
	return discarded, nil
}

// checkTwoSite checks that wf can replace sites b and b+1 of psi.
func checkTwoSite(psi *mps.MPS, b int, wf *tensor.Dense) error {
	if wf.Rank() != 4 {
		return errors.Wrap(ErrShapeMismatch, fmt.Sprintf("%#v", wf.Shape()))
	}
	shape := wf.Shape()
	left, right := psi.Sites[b].Shape(), psi.Sites[b+1].Shape()
	if shape[0] != left[0] || shape[1] != left[1] || shape[2] != right[1] || shape[3] != right[2] {
		return errors.Wrap(ErrShapeMismatch, fmt.Sprintf("%#v %#v %#v", shape, left, right))
	}
	return nil
}

// discardedWeight returns the sum of squares of the discarded singular values.
func discardedWeight(discarded []float64) float64 {
	return floats.Dot(discarded, discarded)
}

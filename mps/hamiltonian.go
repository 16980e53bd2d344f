package mps

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/tndmrg/tensor"
)

var (
	zero = [][]float64{
		{0, 0},
		{0, 0},
	}
	identity = [][]float64{
		{1, 0},
		{0, 1},
	}
	PauliX = [][]float64{
		{0, 1},
		{1, 0},
	}
	PauliZ = [][]float64{
		{1, 0},
		{0, -1},
	}
)

// Ising returns the MPO of the transverse field Ising chain of length l,
//
//	H = J sum_i Z_i Z_{i+1} + h sum_i X_i.
func Ising(l int, h, j float64) (MPO, error) {
	mul := func(c float64, x [][]float64) [][]float64 {
		return tensor.T2(x).Scale(c).ToSlice2()
	}
	w := [][][][]float64{
		{identity, zero, zero},
		{PauliZ, zero, zero},
		{mul(h, PauliX), mul(j, PauliZ), identity},
	}
	return newMPO(w, l)
}

// MagnetizationZ returns the MPO of sum_i Z_i.
func MagnetizationZ(l int) (MPO, error) {
	w := [][][][]float64{
		{identity, zero},
		{PauliZ, identity},
	}
	return newMPO(w, l)
}

// Identity returns the identity MPO on l sites of physical dimension d.
func Identity(l, d int) (MPO, error) {
	if l < 2 {
		return MPO{}, errors.Wrap(ErrShortChain, fmt.Sprintf("%d", l))
	}
	mpo := MPO{Sites: make([]*tensor.Dense, 0, l)}
	for range l {
		w := tensor.Zeros(1, d, d, 1)
		for s := range d {
			w.SetAt([]int{0, s, s, 0}, 1)
		}
		mpo.Sites = append(mpo.Sites, w)
	}
	return mpo, nil
}

// IsingCriticalEnergy returns the exact ground state energy of the open Ising chain of length l at the critical point h = j.
func IsingCriticalEnergy(l int, j float64) float64 {
	return -j * (1 - 1/math.Sin(math.Pi/float64(4*l+2)))
}

// newMPO builds an MPO from the lower triangular operator valued matrix w, where w[a][b] is the operator between bond states a and b.
func newMPO(w [][][][]float64, l int) (MPO, error) {
	if l < 2 {
		return MPO{}, errors.Wrap(ErrShortChain, fmt.Sprintf("%d", l))
	}
	// bulk has axes {mpoLeft, mpoUp, mpoDown, mpoRight}.
	bulk := tensor.T4(w).Transpose(0, 2, 3, 1)
	d0, d1, d2, d3 := bulk.Shape()[0], bulk.Shape()[1], bulk.Shape()[2], bulk.Shape()[3]
	mpo := MPO{Sites: make([]*tensor.Dense, 0, l)}

	// First MPO is w[-1].
	mpo.Sites = append(mpo.Sites, bulk.Slice([][2]int{{d0 - 1, d0}, {0, d1}, {0, d2}, {0, d3}}))

	for range l - 2 {
		mpo.Sites = append(mpo.Sites, bulk.Copy())
	}

	// Last MPO is w[:, 0].
	mpo.Sites = append(mpo.Sites, bulk.Slice([][2]int{{0, d0}, {0, d1}, {0, d2}, {0, 1}}))

	return mpo, nil
}

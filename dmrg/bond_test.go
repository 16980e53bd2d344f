package dmrg

import (
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/pkg/errors"

	"github.com/fumin/tndmrg/mps"
	"github.com/fumin/tndmrg/tensor"
)

func TestUpdateBond(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ortho Direction
		trunc tensor.Truncation
		// kept is the expected number of kept singular values.
		kept int
	}{
		{ortho: Right, trunc: tensor.Truncation{}, kept: 4},
		{ortho: Left, trunc: tensor.Truncation{}, kept: 4},
		{ortho: Right, trunc: tensor.Truncation{MaxSingularValues: 2}, kept: 2},
		{ortho: Left, trunc: tensor.Truncation{MaxSingularValues: 1}, kept: 1},
		{ortho: Right, trunc: tensor.Truncation{MaxSingularValues: 10, MaxError: 1e-14}, kept: 4},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %+v", test.ortho, test.trunc), func(t *testing.T) {
			t.Parallel()
			const l, b = 4, 1
			h, err := mps.Ising(l, -1, -1)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			psi, err := mps.RandMPS(h, 4)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			// Bond b has dimension 2 on both outer legs, so the two site tensor has at most 4 singular values.
			start := b
			if test.ortho == Left {
				start = b + 1
			}
			if err := psi.Position(start); err != nil {
				t.Fatalf("%+v", err)
			}

			wf := tensor.New(randVec(2*2*2*2), 2, 2, 2, 2)
			wf.Scale(1 / wf.Norm())
			wfData := slices.Clone(wf.Data())

			discarded, err := UpdateBond(psi, b, wf, test.ortho, test.trunc)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			// Center bookkeeping.
			expectedCenter := b + 1
			if test.ortho == Left {
				expectedCenter = b
			}
			if psi.Center != expectedCenter {
				t.Fatalf("%d, expected %d", psi.Center, expectedCenter)
			}
			if d := psi.BondDimensions()[b]; d != test.kept {
				t.Fatalf("%d, expected %d", d, test.kept)
			}
			if len(discarded) != 4-test.kept {
				t.Fatalf("%v", discarded)
			}

			// The new sites are normalized, and the kept weight plus the discarded weight is the weight of wf.
			updated := twoSite(psi, b)
			if n := updated.Norm(); math.Abs(n-1) > 1e-10 {
				t.Fatalf("%f", n)
			}
			overlap := tensor.Dot(wf, updated)
			total := overlap*overlap + discardedWeight(discarded)
			if math.Abs(total-1) > 1e-10 {
				t.Fatalf("%f", total)
			}
			if len(discarded) > 0 && discardedWeight(discarded) <= 0 {
				t.Fatalf("%v", discarded)
			}

			// wf is untouched and shares no storage with psi.
			if !slices.Equal(wf.Data(), wfData) {
				t.Fatalf("wf modified")
			}
			psi.Sites[b].Data()[0] += 1
			psi.Sites[b+1].Data()[0] += 1
			if !slices.Equal(wf.Data(), wfData) {
				t.Fatalf("wf shares storage")
			}
		})
	}
}

func TestUpdateBondCenterAway(t *testing.T) {
	t.Parallel()
	for _, ortho := range []Direction{Left, Right} {
		t.Run(fmt.Sprintf("%v", ortho), func(t *testing.T) {
			t.Parallel()
			const l, b = 6, 3
			h, err := mps.Ising(l, -1, -1)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			psi, err := mps.RandMPS(h, 4)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if psi.Center != 0 {
				t.Fatalf("%d", psi.Center)
			}

			if _, err := UpdateBond(psi, b, twoSite(psi, b), ortho, tensor.Truncation{}); err != nil {
				t.Fatalf("%+v", err)
			}
			if psi.Center != 0 {
				t.Fatalf("%v at bond %d moved the center to %d", ortho, b, psi.Center)
			}
		})
	}
}

func TestUpdateBondNormalized(t *testing.T) {
	t.Parallel()
	const l = 6
	h, err := mps.Ising(l, -1, -1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	psi, err := mps.RandMPS(h, 4)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// Sweep right and back, replacing each bond with its own contraction.
	for b := 0; b <= l-2; b++ {
		if err := psi.Position(b); err != nil {
			t.Fatalf("%+v", err)
		}
		if _, err := UpdateBond(psi, b, twoSite(psi, b), Right, tensor.Truncation{}); err != nil {
			t.Fatalf("%+v", err)
		}
		checkNormalized(t, psi)
	}
	for b := l - 3; b >= 0; b-- {
		if err := psi.Position(b + 1); err != nil {
			t.Fatalf("%+v", err)
		}
		if _, err := UpdateBond(psi, b, twoSite(psi, b), Left, tensor.Truncation{}); err != nil {
			t.Fatalf("%+v", err)
		}
		checkNormalized(t, psi)
	}
	if psi.Center != 0 {
		t.Fatalf("%d", psi.Center)
	}
	if n := psi.Norm(); math.Abs(n-1) > 1e-10 {
		t.Fatalf("%f", n)
	}
}

func TestUpdateBondErrors(t *testing.T) {
	t.Parallel()
	h, err := mps.Ising(4, -1, -1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	psi, err := mps.RandMPS(h, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	before := psi.Copy()
	wf := twoSite(psi, 0)

	for _, d := range []Direction{0, 3, -1} {
		if _, err := UpdateBond(psi, 0, wf, d, tensor.Truncation{}); !errors.Is(err, ErrInvalidDirection) {
			t.Fatalf("%v %+v", d, err)
		}
	}
	for _, b := range []int{-1, 3} {
		if _, err := UpdateBond(psi, b, wf, Right, tensor.Truncation{}); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("%d %+v", b, err)
		}
	}
	misfits := []struct {
		b  int
		wf *tensor.Dense
	}{
		{b: 1, wf: wf},
		{b: 0, wf: tensor.Zeros(1, 2, 4)},
		{b: 0, wf: tensor.Zeros(1, 2, 2, 3)},
		{b: 0, wf: tensor.Zeros(1, 3, 2, 2)},
	}
	for _, m := range misfits {
		if _, err := UpdateBond(psi, m.b, m.wf, Right, tensor.Truncation{}); !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("%d %#v %+v", m.b, m.wf.Shape(), err)
		}
	}
	if psi.Center != before.Center {
		t.Fatalf("%d %d", psi.Center, before.Center)
	}
	for i, m := range psi.Sites {
		if !m.EqualApprox(before.Sites[i], 0) {
			t.Fatalf("site %d modified", i)
		}
	}
	if s := Direction(7).String(); s != "Direction(7)" {
		t.Fatalf("%s", s)
	}
}

// checkNormalized checks that the sites left of the center are left-normalized and those right of it are right-normalized.
func checkNormalized(t *testing.T, psi *mps.MPS) {
	for i, m := range psi.Sites {
		var mm *tensor.Dense
		switch {
		case i < psi.Center:
			mm = tensor.Product(nil, m, m, [][2]int{{0, 0}, {1, 1}})
		case i > psi.Center:
			mm = tensor.Product(nil, m, m, [][2]int{{1, 1}, {2, 2}})
		default:
			continue
		}
		d := mm.Shape()[0]
		for a := range d {
			for b := range d {
				var id float64
				if a == b {
					id = 1
				}
				if math.Abs(mm.At(a, b)-id) > 1e-10 {
					t.Fatalf("site %d center %d %v", i, psi.Center, mm)
				}
			}
		}
	}
}

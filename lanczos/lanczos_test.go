package lanczos

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestSmallest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dim      int
		settings Settings
	}{
		{dim: 1},
		{dim: 5},
		{dim: 40},
		{dim: 200, settings: Settings{KrylovDim: 8, MaxRestarts: 1000}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %#v", test.dim, test.settings), func(t *testing.T) {
			t.Parallel()
			rnd := rand.New(rand.NewPCG(uint64(test.dim), 1))
			a := mat.NewSymDense(test.dim, nil)
			for i := range test.dim {
				for j := i; j < test.dim; j++ {
					a.SetSym(i, j, rnd.Float64()*2-1)
				}
			}
			op := func(dst, src []float64) {
				dv := mat.NewVecDense(len(dst), dst)
				dv.MulVec(a, mat.NewVecDense(len(src), src))
			}

			x0 := make([]float64, test.dim)
			for i := range x0 {
				x0[i] = rnd.Float64()
			}
			res, err := Smallest(op, x0, test.settings)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			var eig mat.EigenSym
			if !eig.Factorize(a, false) {
				t.Fatalf("factorize failed")
			}
			expected := eig.Values(nil)[0]
			if math.Abs(res.Value-expected) > 1e-8 {
				t.Fatalf("%f, expected %f", res.Value, expected)
			}

			// Check the eigenvector.
			if math.Abs(floats.Norm(res.Vector, 2)-1) > 1e-10 {
				t.Fatalf("%f", floats.Norm(res.Vector, 2))
			}
			ax := make([]float64, test.dim)
			op(ax, res.Vector)
			floats.AddScaled(ax, -res.Value, res.Vector)
			if r := floats.Norm(ax, 2); r > 1e-6 {
				t.Fatalf("residual %g", r)
			}
			if res.Stats.MatVec == 0 || res.Stats.Restarts == 0 {
				t.Fatalf("%#v", res.Stats)
			}
		})
	}
}

func TestSmallestZeroStart(t *testing.T) {
	t.Parallel()
	diag := []float64{3, -2, 5, 1}
	op := func(dst, src []float64) {
		for i, v := range src {
			dst[i] = diag[i] * v
		}
	}
	res, err := Smallest(op, make([]float64, len(diag)), Settings{})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(res.Value+2) > 1e-10 {
		t.Fatalf("%f", res.Value)
	}
	if math.Abs(math.Abs(res.Vector[1])-1) > 1e-8 {
		t.Fatalf("%v", res.Vector)
	}
}

func TestSmallestNotConverged(t *testing.T) {
	t.Parallel()
	const dim = 400
	op := func(dst, src []float64) {
		for i, v := range src {
			dst[i] = float64(i) * v
		}
	}
	x0 := make([]float64, dim)
	for i := range x0 {
		x0[i] = 1
	}
	settings := Settings{Tolerance: 1e-14, KrylovDim: 3, MaxRestarts: 2}
	res, err := Smallest(op, x0, settings)
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("%+v", err)
	}
	if res.Stats.Restarts != 2 || len(res.Vector) != dim {
		t.Fatalf("%#v", res.Stats)
	}
}

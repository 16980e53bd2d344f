// Package lanczos finds the smallest eigenpair of a large symmetric operator known only through its action on vectors.
package lanczos

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotConverged is returned when the restart limit is reached before the residual is small enough.
	ErrNotConverged = errors.New("lanczos: not converged")
)

// Operator computes dst = A*src for a symmetric A.
// dst and src have the same length and do not overlap.
type Operator func(dst, src []float64)

// Settings holds the settings of Smallest.
type Settings struct {
	// Tolerance is the relative residual at which the eigenpair is accepted,
	//  |A*x - θ*x| < Tolerance * max(1, |θ|).
	// Zero means 1e-8.
	Tolerance float64 `yaml:"tolerance"`

	// KrylovDim is the maximum size of the Krylov subspace built before restarting.
	// Zero means 20.
	KrylovDim int `yaml:"krylov_dim"`

	// MaxRestarts limits the number of restarts.
	// Zero means 100.
	MaxRestarts int `yaml:"max_restarts"`
}

// DefaultSettings returns the default settings.
func DefaultSettings() Settings {
	s := Settings{}
	defaultSettings(&s)
	return s
}

func defaultSettings(s *Settings) {
	if s.Tolerance == 0 {
		s.Tolerance = 1e-8
	}
	if s.KrylovDim == 0 {
		s.KrylovDim = 20
	}
	if s.MaxRestarts == 0 {
		s.MaxRestarts = 100
	}
}

// Stats holds statistics about a solve.
type Stats struct {
	// Restarts is the number of Krylov subspaces built.
	Restarts int
	// MatVec is the number of operator applications.
	MatVec int
	// Residual is the final norm |A*x - θ*x|.
	Residual float64
	// StartTime is an approximate time when the solve was started.
	StartTime time.Time
	// Runtime is an approximate duration of the solve.
	Runtime time.Duration
}

// Result is the outcome of Smallest.
type Result struct {
	// Value is the smallest eigenvalue.
	Value float64
	// Vector is the unit norm eigenvector.
	Vector []float64
	Stats  Stats
}

// Smallest returns the smallest eigenvalue of a and its eigenvector, starting from x0.
// The length of x0 determines the dimension of the problem.
// If x0 is zero, a random start vector is used.
// When the restart limit is reached, the best estimate is returned together with ErrNotConverged.
func Smallest(a Operator, x0 []float64, settings Settings) (Result, error) {
	dim := len(x0)
	switch {
	case dim == 0:
		panic("lanczos: zero dimension")
	case a == nil:
		panic("lanczos: nil operator")
	}
	defaultSettings(&settings)
	stats := Stats{StartTime: time.Now()}

	x := make([]float64, dim)
	copy(x, x0)
	if floats.Norm(x, 2) == 0 {
		for i := range x {
			x[i] = rand.Float64()*2 - 1
		}
	}
	floats.Scale(1/floats.Norm(x, 2), x)

	l := newLanczos(dim, min(settings.KrylovDim, dim))
	var theta float64
	for {
		var residual float64
		theta, residual = l.pass(a, x, &stats)
		stats.Restarts++
		stats.Residual = residual
		if residual < settings.Tolerance*max(1, math.Abs(theta)) {
			break
		}
		if stats.Restarts >= settings.MaxRestarts {
			stats.Runtime = time.Since(stats.StartTime)
			res := Result{Value: theta, Vector: x, Stats: stats}
			return res, errors.Wrapf(ErrNotConverged, "residual %g after %d restarts", residual, stats.Restarts)
		}
	}

	stats.Runtime = time.Since(stats.StartTime)
	return Result{Value: theta, Vector: x, Stats: stats}, nil
}

type lanczos struct {
	// basis holds the orthonormal Lanczos vectors.
	basis [][]float64
	alpha []float64
	beta  []float64
	w     []float64
}

func newLanczos(dim, krylovDim int) *lanczos {
	l := &lanczos{
		basis: make([][]float64, krylovDim),
		alpha: make([]float64, 0, krylovDim),
		beta:  make([]float64, 0, krylovDim),
		w:     make([]float64, dim),
	}
	for i := range l.basis {
		l.basis[i] = make([]float64, dim)
	}
	return l
}

// pass builds a Krylov subspace from the unit vector x, and overwrites x with the Ritz vector of the smallest Ritz value.
// It returns the Ritz value and the residual norm of the Ritz pair.
func (l *lanczos) pass(a Operator, x []float64, stats *Stats) (float64, float64) {
	l.alpha, l.beta = l.alpha[:0], l.beta[:0]
	copy(l.basis[0], x)

	// breakdown is true when the Krylov subspace is invariant under a.
	var breakdown bool
	m := len(l.basis)
	for j := range len(l.basis) {
		vj := l.basis[j]
		a(l.w, vj)
		stats.MatVec++

		alpha := floats.Dot(vj, l.w)
		l.alpha = append(l.alpha, alpha)
		// Full reorthogonalization against all previous vectors, done twice for stability.
		for range 2 {
			for i := 0; i <= j; i++ {
				floats.AddScaled(l.w, -floats.Dot(l.basis[i], l.w), l.basis[i])
			}
		}

		beta := floats.Norm(l.w, 2)
		if beta <= 1e-14*max(1, math.Abs(alpha)) {
			breakdown = true
			m = j + 1
			break
		}
		l.beta = append(l.beta, beta)
		if j+1 == len(l.basis) {
			break
		}
		floats.ScaleTo(l.basis[j+1], 1/beta, l.w)
	}

	// Solve the tridiagonal eigenproblem.
	t := mat.NewSymDense(m, nil)
	for i := range m {
		t.SetSym(i, i, l.alpha[i])
		if i+1 < m {
			t.SetSym(i, i+1, l.beta[i])
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(t, true); !ok {
		panic("lanczos: tridiagonal eigen decomposition failed")
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues are in ascending order.
	theta := values[0]
	for i := range x {
		x[i] = 0
	}
	for i := range m {
		floats.AddScaled(x, vecs.At(i, 0), l.basis[i])
	}
	floats.Scale(1/floats.Norm(x, 2), x)

	var residual float64
	if !breakdown {
		residual = math.Abs(l.beta[m-1] * vecs.At(m-1, 0))
	}
	return theta, residual
}

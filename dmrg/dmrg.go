// Package dmrg searches for the ground state of a matrix product operator with the two site density matrix renormalization group.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package dmrg

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/fumin/tndmrg/lanczos"
	"github.com/fumin/tndmrg/mps"
	"github.com/fumin/tndmrg/tensor"
	"github.com/fumin/tndmrg/util"
)

var (
	ErrLengthMismatch   = mps.ErrLengthMismatch
	ErrOutOfRange       = mps.ErrOutOfRange
	ErrInvalidDirection = errors.New("dmrg: invalid direction")
	ErrShapeMismatch    = errors.New("dmrg: two site tensor does not fit the bond")
)

// Sweep bounds the truncation of every bond update in one sweep.
type Sweep struct {
	// MaxBondDim is the maximum number of singular values kept, zero means unbounded.
	MaxBondDim int `yaml:"max_bond_dim"`
	// MaxTruncErr is the largest allowed norm of the discarded singular values, zero means none.
	MaxTruncErr float64 `yaml:"max_trunc_err"`
}

func (s Sweep) truncation() tensor.Truncation {
	return tensor.Truncation{MaxSingularValues: s.MaxBondDim, MaxError: s.MaxTruncErr}
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Sweep  int
	Energy float64
	// MaxBondDim is the largest bond dimension after the sweep.
	MaxBondDim int
	// DiscardedWeight is the sum of squared discarded singular values over all bond updates.
	DiscardedWeight float64
	// MaxDiscardedWeight is the largest discarded weight of a single bond update.
	MaxDiscardedWeight float64
	// MatVec is the number of effective Hamiltonian applications.
	MatVec   int
	Duration time.Duration
}

// Options are options for Run.
type Options struct {
	logger   *slog.Logger
	lanczos  lanczos.Settings
	onSweep  func(SweepStats)
	debugGap time.Duration
}

// NewOptions returns the default options.
func NewOptions() *Options {
	opt := &Options{
		lanczos:  lanczos.DefaultSettings(),
		debugGap: time.Second,
	}
	return opt
}

// Logger sets the logger, which defaults to slog.Default().
func (opt *Options) Logger(l *slog.Logger) *Options {
	opt.logger = l
	return opt
}

// Lanczos sets the settings of the local eigensolver.
func (opt *Options) Lanczos(s lanczos.Settings) *Options {
	opt.lanczos = s
	return opt
}

// OnSweep sets a function called with the statistics of each finished sweep.
func (opt *Options) OnSweep(fn func(SweepStats)) *Options {
	opt.onSweep = fn
	return opt
}

// DebugInterval sets the minimum interval between per bond debug logs.
func (opt *Options) DebugInterval(d time.Duration) *Options {
	opt.debugGap = d
	return opt
}

// Run optimizes psi in place towards the ground state of h, performing one sweep per entry of sweeps.
// Each sweep updates bonds 0 to L-2 from left to right, and then bonds L-3 to 0 from right to left.
// Run returns one energy per sweep, which is the eigenvalue of the last bond optimization of that sweep.
func Run(h mps.MPO, psi *mps.MPS, sweeps []Sweep, options ...*Options) ([]float64, error) {
	opt := NewOptions()
	if len(options) > 0 && options[0] != nil {
		opt = options[0]
	}
	logger := opt.logger
	if logger == nil {
		logger = slog.Default()
	}

	if h.Len() != psi.Len() {
		return nil, errors.Wrap(ErrLengthMismatch, fmt.Sprintf("mpo %d mps %d", h.Len(), psi.Len()))
	}
	if err := psi.Position(0); err != nil {
		return nil, errors.Wrap(err, "")
	}
	lh, err := NewLocalHam(h, psi, 0)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	r := &runner{psi: psi, lh: lh, opt: opt, logger: logger, throttler: util.NewSkipThrottler(opt.debugGap)}
	energies := make([]float64, 0, len(sweeps))
	for i, sweep := range sweeps {
		stats, err := r.sweep(i, sweep)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("sweep %d", i))
		}
		energies = append(energies, stats.Energy)

		logger.Info("sweep", "sweep", stats.Sweep, "energy", stats.Energy, "maxBondDim", stats.MaxBondDim, "discardedWeight", stats.DiscardedWeight, "matVec", stats.MatVec, "duration", stats.Duration)
		if opt.onSweep != nil {
			opt.onSweep(stats)
		}
	}
	return energies, nil
}

type runner struct {
	psi       *mps.MPS
	lh        *LocalHam
	opt       *Options
	logger    *slog.Logger
	throttler *util.SkipThrottler
}

func (r *runner) sweep(i int, sweep Sweep) (SweepStats, error) {
	stats := SweepStats{Sweep: i}
	start := time.Now()
	n := r.psi.Len()

	type step struct {
		bond int
		dir  Direction
	}
	steps := make([]step, 0, 2*n-3)
	for b := 0; b <= n-2; b++ {
		steps = append(steps, step{bond: b, dir: Right})
	}
	for b := n - 3; b >= 0; b-- {
		steps = append(steps, step{bond: b, dir: Left})
	}

	for _, s := range steps {
		energy, discarded, matVec, err := r.optimize(s.bond, s.dir, sweep.truncation())
		if err != nil {
			return stats, errors.Wrap(err, fmt.Sprintf("bond %d %v", s.bond, s.dir))
		}
		w := discardedWeight(discarded)
		stats.Energy = energy
		stats.DiscardedWeight += w
		stats.MaxDiscardedWeight = max(stats.MaxDiscardedWeight, w)
		stats.MatVec += matVec

		if r.throttler.Ok() {
			r.logger.Debug("bond", "sweep", i, "bond", s.bond, "dir", s.dir, "energy", energy, "discarded", len(discarded), "bondDims", r.psi.BondDimensions())
		}
	}

	stats.MaxBondDim = r.psi.MaxBondDimension()
	stats.Duration = time.Since(start)
	return stats, nil
}

// optimize replaces bond b of psi with the lowest eigenvector of the effective Hamiltonian at b.
func (r *runner) optimize(b int, dir Direction, trunc tensor.Truncation) (float64, []float64, int, error) {
	if err := r.psi.Position(b); err != nil {
		return 0, nil, 0, errors.Wrap(err, "")
	}
	if err := r.lh.Position(b); err != nil {
		return 0, nil, 0, errors.Wrap(err, "")
	}

	wf := twoSite(r.psi, b)
	res, err := lanczos.Smallest(r.lh.Apply, wf.Data(), r.opt.lanczos)
	if err != nil {
		return res.Value, nil, res.Stats.MatVec, errors.Wrap(err, "")
	}

	eigvec := tensor.New(res.Vector, wf.Shape()...)
	discarded, err := UpdateBond(r.psi, b, eigvec, dir, trunc)
	if err != nil {
		return res.Value, nil, res.Stats.MatVec, errors.Wrap(err, "")
	}
	return res.Value, discarded, res.Stats.MatVec, nil
}

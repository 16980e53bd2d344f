// Command dmrg searches for the ground state of a transverse field Ising chain.
//
// The sweep schedule is read from a YAML file:
//
//	model: {l: 30, h: -1, j: -1}
//	sweeps:
//	  - {max_bond_dim: 0, max_trunc_err: 1e-12}
//	repeat: 10
//
// Per sweep statistics are printed to stdout as CSV and recorded in an SQLite database in the run directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fumin/tndmrg/dmrg"
	"github.com/fumin/tndmrg/exactdiag"
	"github.com/fumin/tndmrg/mps"
	"github.com/fumin/tndmrg/store"
)

const (
	fnameDB = "runs.db"
)

var (
	runDir      = flag.String("d", filepath.Join("runs", "dmrg"), "run directory")
	cfgPath     = flag.String("c", "", "YAML config, defaults to the critical chain of length 30")
	verbose     = flag.Bool("v", false, "log every bond update")
	maxExact    = flag.Int("exact", 12, "compare with exact diagonalization for chains up to this length")
	metricsAddr = flag.String("metrics", "", "serve prometheus metrics on this address, for example :9090")
)

// Statistics are observables of the final state.
type Statistics struct {
	Energy float64
	// Magnetization is sqrt(<M^2>)/L with M = sum Z_i.
	Magnetization float64
	// Variance is <H^2> - <H>^2.
	Variance float64
	// Exact is the exact ground state energy, NaN if the chain is too long.
	Exact float64
}

func solve(db *store.DB, m *metrics, cfg Config, logger *slog.Logger) (Statistics, error) {
	h, err := mps.Ising(cfg.Model.L, cfg.Model.H, cfg.Model.J)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	psi, err := mps.RandMPS(h, cfg.InitBondDim)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}

	schedule, err := yaml.Marshal(cfg)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	runID, err := db.CreateRun(store.Run{L: cfg.Model.L, H: cfg.Model.H, J: cfg.Model.J, Schedule: string(schedule)})
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	logger = logger.With("run", runID)

	fmt.Printf("sweep,energy,max_bond_dim,discarded_weight,mat_vec,seconds\n")
	var storeErr error
	onSweep := func(s dmrg.SweepStats) {
		fmt.Printf("%d,%.12f,%d,%g,%d,%f\n", s.Sweep, s.Energy, s.MaxBondDim, s.DiscardedWeight, s.MatVec, s.Duration.Seconds())
		m.observe(s)
		if err := db.AddSweep(runID, s); err != nil && storeErr == nil {
			storeErr = err
		}
	}
	opt := dmrg.NewOptions().Logger(logger).Lanczos(cfg.Lanczos).OnSweep(onSweep)
	if *verbose {
		opt = opt.DebugInterval(0)
	}
	energies, err := dmrg.Run(h, psi, cfg.schedule(), opt)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	if storeErr != nil {
		return Statistics{}, errors.Wrap(storeErr, "")
	}

	stats, err := observe(h, psi, *maxExact)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	if len(energies) > 0 {
		stats.Energy = energies[len(energies)-1]
	}
	if err := db.Finish(runID, stats.Energy, stats.Magnetization, stats.Variance, stats.Exact); err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	return stats, nil
}

// observe measures the final state psi, and diagonalizes h exactly if the chain has at most maxExact sites.
func observe(h mps.MPO, psi *mps.MPS, maxExact int) (Statistics, error) {
	var stats Statistics
	var err error
	stats.Energy, err = mps.Expectation(h, psi)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	h2, err := mps.ExpectationSquared(h, psi)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	stats.Variance = h2 - stats.Energy*stats.Energy

	mz, err := mps.MagnetizationZ(psi.Len())
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	m2, err := mps.ExpectationSquared(mz, psi)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	stats.Magnetization = math.Sqrt(max(m2, 0)) / float64(psi.Len())

	stats.Exact = math.NaN()
	if psi.Len() <= maxExact && fitsExact(psi.PhysicalDimensions()) {
		vvs, err := exactdiag.Eigen(h)
		if err != nil {
			return Statistics{}, errors.Wrap(err, "")
		}
		stats.Exact = vvs[0].Val
	}
	return stats, nil
}

// fitsExact reports whether the Hilbert space of a chain with the given physical dimensions is small enough for exactdiag.
func fitsExact(physDims []int) bool {
	dim := 1
	for _, d := range physDims {
		dim *= d
		if dim > exactdiag.MaxDim {
			return false
		}
	}
	return true
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	}))
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg := defaultConfig()
	if *cfgPath != "" {
		var err error
		cfg, err = readConfig(*cfgPath)
		if err != nil {
			return errors.Wrap(err, "")
		}
	}

	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	db, err := store.Open(filepath.Join(*runDir, fnameDB))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()

	m := newMetrics()
	if *metricsAddr != "" {
		srv := m.serve(*metricsAddr, logger)
		defer srv.Close()
	}

	stats, err := solve(db, m, cfg, logger)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("%#v", cfg.Model))
	}

	fmt.Printf("l,h,j,e0,m,variance,exact\n")
	fmt.Printf("%d,%f,%f,%.12f,%f,%g,%.12f\n", cfg.Model.L, cfg.Model.H, cfg.Model.J, stats.Energy, stats.Magnetization, stats.Variance, stats.Exact)
	if !math.IsNaN(stats.Exact) {
		logger.Info("exact", "energy", stats.Energy, "exact", stats.Exact, "diff", stats.Energy-stats.Exact)
	}
	return nil
}

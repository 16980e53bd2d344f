package dmrg

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/pkg/errors"

	"github.com/fumin/tndmrg/exactdiag"
	"github.com/fumin/tndmrg/lanczos"
	"github.com/fumin/tndmrg/mps"
)

func TestRunCritical(t *testing.T) {
	if testing.Short() {
		t.Skip("long")
	}
	t.Parallel()
	const l, j = 30, -1
	h, err := mps.Ising(l, j, j)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	psi, err := mps.RandMPS(h, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	sweeps := make([]Sweep, 10)
	for i := range sweeps {
		sweeps[i] = Sweep{MaxTruncErr: 1e-12}
	}

	var stats []SweepStats
	opt := NewOptions().Logger(testLogger()).OnSweep(func(s SweepStats) { stats = append(stats, s) })
	energies, err := Run(h, psi, sweeps, opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(energies) != len(sweeps) {
		t.Fatalf("%d %d", len(energies), len(sweeps))
	}
	for i := 1; i < len(energies); i++ {
		if energies[i] > energies[i-1]+1e-8 {
			t.Fatalf("sweep %d energy increased %v", i, energies)
		}
	}
	expected := mps.IsingCriticalEnergy(l, j)
	if e := energies[len(energies)-1]; math.Abs(e-expected) > 1e-6 {
		t.Fatalf("%f, expected %f", e, expected)
	}

	if len(stats) != len(sweeps) {
		t.Fatalf("%d", len(stats))
	}
	for i, s := range stats {
		if s.Sweep != i || s.Energy != energies[i] || s.MatVec <= 0 {
			t.Fatalf("%d %+v", i, s)
		}
	}

	// The final state is normalized and its energy agrees with the last sweep.
	if n := psi.Norm(); math.Abs(n-1) > 1e-8 {
		t.Fatalf("%f", n)
	}
	e, err := mps.Expectation(h, psi)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(e-energies[len(energies)-1]) > 1e-6 {
		t.Fatalf("%f %f", e, energies[len(energies)-1])
	}
}

func TestRunExact(t *testing.T) {
	t.Parallel()
	tests := []struct {
		l int
		h float64
		j float64
	}{
		{l: 2, h: -1, j: -1},
		{l: 3, h: 0.4, j: 1},
		{l: 6, h: -0.5, j: -1},
		{l: 8, h: -1, j: -1},
		{l: 8, h: -2, j: 1},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %f %f", test.l, test.h, test.j), func(t *testing.T) {
			t.Parallel()
			h, err := mps.Ising(test.l, test.h, test.j)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			vvs, err := exactdiag.Eigen(h)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			psi, err := mps.RandMPS(h, 2)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			sweeps := []Sweep{{MaxBondDim: 4}, {MaxBondDim: 8}, {MaxBondDim: 16}, {MaxBondDim: 16}, {MaxBondDim: 16}}
			energies, err := Run(h, psi, sweeps, NewOptions().Logger(testLogger()))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if e := energies[len(energies)-1]; math.Abs(e-vvs[0].Val) > 1e-8 {
				t.Fatalf("%v, expected %f", energies, vvs[0].Val)
			}
			if d := psi.MaxBondDimension(); d > 16 {
				t.Fatalf("%d", d)
			}
			if psi.Center != 0 {
				t.Fatalf("%d", psi.Center)
			}
		})
	}
}

func TestRunScheduleLength(t *testing.T) {
	t.Parallel()
	h, err := mps.Ising(5, -1, -1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, n := range []int{0, 1, 3} {
		psi, err := mps.RandMPS(h, 2)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		sweeps := make([]Sweep, n)
		for i := range sweeps {
			sweeps[i] = Sweep{MaxBondDim: 3, MaxTruncErr: 1e-10}
		}
		energies, err := Run(h, psi, sweeps, NewOptions().Logger(testLogger()))
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if len(energies) != n {
			t.Fatalf("%d %d", len(energies), n)
		}
		if d := psi.MaxBondDimension(); n > 0 && d > 3 {
			t.Fatalf("%d", d)
		}
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()
	h, err := mps.Ising(5, -1, -1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	short, err := mps.Ising(4, -1, -1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	psi, err := mps.RandMPS(short, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := Run(h, psi, []Sweep{{}}); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("%+v", err)
	}

	// A single Lanczos vector without restarts cannot converge.
	psi, err = mps.RandMPS(h, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	opt := NewOptions().Logger(testLogger()).Lanczos(lanczos.Settings{Tolerance: 1e-14, KrylovDim: 1, MaxRestarts: 1})
	energies, err := Run(h, psi, []Sweep{{}}, opt)
	if !errors.Is(err, lanczos.ErrNotConverged) {
		t.Fatalf("%+v", err)
	}
	if energies != nil {
		t.Fatalf("%v", energies)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}

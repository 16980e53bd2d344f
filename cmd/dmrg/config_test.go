package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/fumin/tndmrg/dmrg"
	"github.com/fumin/tndmrg/mps"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		yaml     string
		model    Model
		schedule []dmrg.Sweep
	}{
		{
			yaml: `
model: {l: 30, h: -1, j: -1}
sweeps:
  - {max_bond_dim: 0, max_trunc_err: 1e-12}
repeat: 3
`,
			model:    Model{L: 30, H: -1, J: -1},
			schedule: []dmrg.Sweep{{MaxTruncErr: 1e-12}, {MaxTruncErr: 1e-12}, {MaxTruncErr: 1e-12}},
		},
		{
			yaml: `
model: {l: 8, h: -0.5, j: 1}
sweeps:
  - {max_bond_dim: 4}
  - {max_bond_dim: 8, max_trunc_err: 1e-10}
`,
			model:    Model{L: 8, H: -0.5, J: 1},
			schedule: []dmrg.Sweep{{MaxBondDim: 4}, {MaxBondDim: 8, MaxTruncErr: 1e-10}},
		},
		{
			yaml:     `model: {l: 4, h: 1, j: 1}`,
			model:    Model{L: 4, H: 1, J: 1},
			schedule: defaultConfig().schedule(),
		},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			t.Parallel()
			cfg, err := parseConfig([]byte(test.yaml))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if cfg.Model != test.model {
				t.Fatalf("%#v, expected %#v", cfg.Model, test.model)
			}
			schedule := cfg.schedule()
			if len(schedule) != len(test.schedule) {
				t.Fatalf("%#v, expected %#v", schedule, test.schedule)
			}
			for j, s := range schedule {
				if s != test.schedule[j] {
					t.Fatalf("%d %#v, expected %#v", j, s, test.schedule[j])
				}
			}
			if cfg.InitBondDim != 2 {
				t.Fatalf("%d", cfg.InitBondDim)
			}
		})
	}
}

func TestParseConfigInvalid(t *testing.T) {
	t.Parallel()
	tests := []string{
		`model: {l: 1, h: 1, j: 1}`,
		`model: {l: 4}
init_bond_dim: 0`,
		`model: {l: 4}
sweeps: [{max_bond_dim: -1}]`,
		`model: {l: 4}
sweeps: [{max_bond_dim: 2}]
repeat: -2`,
		`model: [`,
	}
	for _, test := range tests {
		t.Run(test, func(t *testing.T) {
			t.Parallel()
			if _, err := parseConfig([]byte(test)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestObserve(t *testing.T) {
	t.Parallel()
	cfg, err := parseConfig([]byte(`
model: {l: 6, h: -1, j: -1}
sweeps:
  - {max_bond_dim: 8}
repeat: 4
`))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	h, psi := runConfig(t, cfg)
	stats, err := observe(h, psi, 12)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if d := stats.Energy - stats.Exact; d < -1e-10 || d > 1e-8 {
		t.Fatalf("%f %f", stats.Energy, stats.Exact)
	}
	if stats.Variance > 1e-7 {
		t.Fatalf("%g", stats.Variance)
	}
	if !(stats.Magnetization > 0 && stats.Magnetization < 1) {
		t.Fatalf("%f", stats.Magnetization)
	}
}

func TestObserveTooLong(t *testing.T) {
	t.Parallel()
	const l = 13
	h, err := mps.Ising(l, -1, -1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	psi, err := mps.ProductState(2, make([]int, l))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	stats, err := observe(h, psi, 20)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !math.IsNaN(stats.Exact) {
		t.Fatalf("%f", stats.Exact)
	}
	if math.Abs(stats.Energy-(-(l-1))) > 1e-10 || math.Abs(stats.Variance-l) > 1e-8 {
		t.Fatalf("%+v", stats)
	}
}

func runConfig(t *testing.T, cfg Config) (mps.MPO, *mps.MPS) {
	h, err := mps.Ising(cfg.Model.L, cfg.Model.H, cfg.Model.J)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	psi, err := mps.RandMPS(h, cfg.InitBondDim)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if _, err := dmrg.Run(h, psi, cfg.schedule(), dmrg.NewOptions().Logger(logger).Lanczos(cfg.Lanczos)); err != nil {
		t.Fatalf("%+v", err)
	}
	return h, psi
}

package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fumin/tndmrg/dmrg"
	"github.com/fumin/tndmrg/lanczos"
)

// Model is a transverse field Ising chain H = J sum Z_i Z_{i+1} + h sum X_i.
type Model struct {
	L int     `yaml:"l"`
	H float64 `yaml:"h"`
	J float64 `yaml:"j"`
}

// Config is a ground state search.
type Config struct {
	Model Model `yaml:"model"`
	// InitBondDim is the bond dimension of the random initial state.
	InitBondDim int          `yaml:"init_bond_dim"`
	Sweeps      []dmrg.Sweep `yaml:"sweeps"`
	// Repeat is the number of times Sweeps is run, zero means once.
	Repeat  int              `yaml:"repeat"`
	Lanczos lanczos.Settings `yaml:"lanczos"`
}

func defaultConfig() Config {
	cfg := Config{
		Model:       Model{L: 30, H: -1, J: -1},
		InitBondDim: 2,
		Sweeps:      []dmrg.Sweep{{MaxTruncErr: 1e-12}},
		Repeat:      10,
	}
	return cfg
}

func readConfig(fpath string) (Config, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	cfg, err := parseConfig(b)
	if err != nil {
		return Config{}, errors.Wrap(err, fpath)
	}
	return cfg, nil
}

func parseConfig(b []byte) (Config, error) {
	def := defaultConfig()
	cfg := Config{InitBondDim: def.InitBondDim}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	if len(cfg.Sweeps) == 0 {
		cfg.Sweeps, cfg.Repeat = def.Sweeps, def.Repeat
	}
	if err := cfg.validate(); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.Model.L < 2 {
		return errors.Errorf("chain length %d", cfg.Model.L)
	}
	if cfg.InitBondDim < 1 {
		return errors.Errorf("initial bond dimension %d", cfg.InitBondDim)
	}
	if cfg.Repeat < 0 {
		return errors.Errorf("repeat %d", cfg.Repeat)
	}
	for i, s := range cfg.Sweeps {
		if s.MaxBondDim < 0 || s.MaxTruncErr < 0 {
			return errors.Errorf("sweep %d %#v", i, s)
		}
	}
	return nil
}

// schedule returns the sweeps to run.
func (cfg Config) schedule() []dmrg.Sweep {
	repeat := max(cfg.Repeat, 1)
	sweeps := make([]dmrg.Sweep, 0, repeat*len(cfg.Sweeps))
	for range repeat {
		sweeps = append(sweeps, cfg.Sweeps...)
	}
	return sweeps
}

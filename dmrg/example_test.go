package dmrg_test

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/fumin/tndmrg/dmrg"
	"github.com/fumin/tndmrg/mps"
)

func Example() {
	// Create a critical Ising chain of length n.
	const n = 4
	mpo, err := mps.Ising(n, -1, -1)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	// Search for the ground state.
	const bondDim = 2
	state, err := mps.RandMPS(mpo, bondDim)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	sweeps := []dmrg.Sweep{{MaxBondDim: 4}, {MaxBondDim: 4}, {MaxBondDim: 4}}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	energies, err := dmrg.Run(mpo, state, sweeps, dmrg.NewOptions().Logger(logger))
	if err != nil {
		log.Fatalf("%+v", err)
	}
	fmt.Printf("Ground energy %.4f\n", energies[len(energies)-1])

	// Output:
	// Ground energy -4.7588
}

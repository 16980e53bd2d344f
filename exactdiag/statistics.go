package exactdiag

import (
	"math"

	"github.com/pkg/errors"
)

// Statistics are observables of the ground state of a spin one half chain.
type Statistics struct {
	EigenValue []float64
	// Magnetization is the mean spin along z, measured in the sector where the majority of spins are up.
	Magnetization  float64
	BinderCumulant float64
}

// GetStatistics computes the statistics of the eigenpairs vvs of a chain of l spins.
// vvs must be sorted with the ground state first.
func GetStatistics(l int, vvs []ValVec) (Statistics, error) {
	if len(vvs) == 0 {
		return Statistics{}, errors.Errorf("no eigenpairs")
	}
	var stats Statistics
	for _, vv := range vvs {
		stats.EigenValue = append(stats.EigenValue, vv.Val)
	}
	ground := vvs[0]
	if len(ground.Vec) != 1<<l {
		return Statistics{}, errors.Errorf("%d %d", len(ground.Vec), 1<<l)
	}

	var totalProb, m2, m4 float64
	for i, amplitude := range ground.Vec {
		probability := amplitude * amplitude
		m := majorityUp(i, l)

		totalProb += probability
		stats.Magnetization += probability * m
		m2 += probability * m * m
		m4 += probability * math.Pow(m, 4)
	}
	if math.Abs(totalProb-1) > 1e-6 {
		return Statistics{}, errors.Errorf("%f", totalProb)
	}

	stats.Magnetization /= float64(l)
	stats.BinderCumulant = 1 - m4/(3*m2*m2)
	return stats, nil
}

// majorityUp returns the total z magnetization of the basis state i, flipped if needed so that it is non-negative.
// A zero bit is spin up, and site 0 is the most significant bit.
func majorityUp(i, l int) float64 {
	var m int
	for site := range l {
		switch (i >> (l - 1 - site)) & 1 {
		case 0:
			m++
		default:
			m--
		}
	}
	if m < 0 {
		m = -m
	}
	return float64(m)
}

package qpstream

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// pcgStream is the fixed second PCG word; the seed supplies the first.
const pcgStream uint64 = 0x9e3779b97f4a7c15

// Source is the single seeded random stream of a simulation. Every draw in a
// run (arrival counts and wavelength choices) comes from it, so a run is
// reproducible from the seed and the order of calls.
//
// A Source is not safe for concurrent use.
type Source struct {
	pcg *rand.PCG
	rng *rand.Rand
}

// NewSource returns a deterministic stream for seed.
func NewSource(seed int64) *Source {
	pcg := rand.NewPCG(uint64(seed), pcgStream)
	return &Source{
		pcg: pcg,
		rng: rand.New(pcg),
	}
}

// DrawPoisson returns n Poisson variates with mean ratePerSample, in order.
// A zero rate yields all zeros.
func (s *Source) DrawPoisson(ratePerSample float64, n int) []int {
	counts := make([]int, n)
	if n == 0 {
		return counts
	}
	dist := distuv.Poisson{Lambda: ratePerSample, Src: s.pcg}
	for i := range counts {
		counts[i] = int(dist.Rand())
	}
	return counts
}

// ChooseWavelength picks one element of allowed uniformly at random.
// It panics if allowed is empty; SimulationConfig never is.
func (s *Source) ChooseWavelength(allowed []float64) float64 {
	return allowed[s.rng.IntN(len(allowed))]
}

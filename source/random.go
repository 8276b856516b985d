package source

import "math/rand/v2"

// NewRand returns the deterministic random source used by every simulator.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Normal draws from N(mean, std).
func Normal(rng *rand.Rand, mean, std float64) float64 {
	return mean + std*rng.NormFloat64()
}

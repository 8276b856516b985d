package forecast

import (
	"math/rand/v2"
	"time"
)

// history is what an estimator is fitted on: the target values, their days
// and optional exogenous columns of the same length.
type history struct {
	timestamps []time.Time
	values     []float64
	exog       map[string][]float64
}

// future describes the days to predict and, when known, their exogenous values.
type future struct {
	timestamps []time.Time
	exog       map[string][]float64
}

type estimator interface {
	fit(h history) error
	predict(f future) ([]float64, error)
}

// Factory builds an unfitted estimator for kind using rng as its only source
// of randomness.
type Factory func(kind Kind, rng *rand.Rand) estimator

// Registry is the set of algorithms available in this build. Anything not in
// the registry is treated as unavailable and skipped.
type Registry map[Algorithm]Factory

func DefaultRegistry() Registry {
	return Registry{
		Baseline:        newBaseline,
		Seasonal:        newSeasonal,
		GradientBoosted: newBoosted,
	}
}

// resolve keeps the available preferences in order and appends Baseline.
func (r Registry) resolve(prefs []Algorithm) []Algorithm {
	res := make([]Algorithm, 0, len(prefs)+1)
	for _, a := range prefs {
		if a == Baseline {
			continue
		}
		if _, ok := r[a]; ok {
			res = append(res, a)
		}
	}
	return append(res, Baseline)
}

func (r Registry) factory(a Algorithm) Factory {
	if a == Baseline {
		return newBaseline
	}
	return r[a]
}

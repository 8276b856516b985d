package forecast

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/angas/solarcast/slice"
	"gonum.org/v1/gonum/stat"
)

const (
	levelWindow = 30
	trendWindow = 7
)

type baseline struct {
	kind  Kind
	rng   *rand.Rand
	level float64
	trend float64
	std   float64
}

func newBaseline(kind Kind, rng *rand.Rand) estimator {
	return &baseline{kind: kind, rng: rng}
}

func (b *baseline) fit(h history) error {
	values := slice.Finite(h.values)
	if len(values) == 0 {
		return errors.New("no finite observations")
	}

	tail := slice.Tail(values, levelWindow)
	b.level = stat.Mean(tail, nil)
	b.std = 0
	if len(tail) > 1 {
		b.std = stat.StdDev(tail, nil)
	}

	b.trend = 0
	if n := len(values); n >= 2*trendWindow {
		last := values[n-trendWindow:]
		prev := values[n-2*trendWindow : n-trendWindow]
		b.trend = stat.Mean(last, nil) - stat.Mean(prev, nil)
	}
	return nil
}

// predict drifts consumption along the trend. Production is the level with
// Gaussian noise of the historical spread, never below zero.
func (b *baseline) predict(f future) ([]float64, error) {
	res := make([]float64, len(f.timestamps))
	for i := range res {
		switch b.kind {
		case KindProduction:
			res[i] = math.Max(0, b.level+b.std*b.rng.NormFloat64())
		default:
			res[i] = b.level + b.trend*float64(i)
		}
	}
	return res, nil
}

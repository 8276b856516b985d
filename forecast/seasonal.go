package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/angas/solarcast/days"
	"gonum.org/v1/gonum/stat"
)

const (
	seasonalPeriod  = 7
	seasonalMinObs  = 2 * seasonalPeriod
	seasonalHistory = 120
)

// seasonal fits a linear trend over the recent history and an additive
// day-of-week profile on the detrended residuals.
type seasonal struct {
	kind    Kind
	alpha   float64
	beta    float64
	n       int
	profile [seasonalPeriod]float64
}

func newSeasonal(kind Kind, _ *rand.Rand) estimator {
	return &seasonal{kind: kind}
}

func (s *seasonal) fit(h history) error {
	start := max(0, len(h.values)-seasonalHistory)
	values := h.values[start:]
	stamps := h.timestamps[start:]

	xs := make([]float64, 0, len(values))
	ys := make([]float64, 0, len(values))
	dows := make([]int, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, v)
		dows = append(dows, days.DayOfWeek(stamps[i]))
	}
	if len(ys) < seasonalMinObs {
		return fmt.Errorf("seasonal needs at least %d observations, got %d", seasonalMinObs, len(ys))
	}

	s.alpha, s.beta = stat.LinearRegression(xs, ys, nil, false)
	s.n = len(values)

	var sums, counts [seasonalPeriod]float64
	for i, y := range ys {
		sums[dows[i]] += y - (s.alpha + s.beta*xs[i])
		counts[dows[i]]++
	}
	for d := range s.profile {
		if counts[d] == 0 {
			return fmt.Errorf("no observations for day of week %d", d)
		}
		s.profile[d] = sums[d] / counts[d]
	}
	return nil
}

func (s *seasonal) predict(f future) ([]float64, error) {
	res := make([]float64, len(f.timestamps))
	for i, t := range f.timestamps {
		x := float64(s.n + i)
		res[i] = s.alpha + s.beta*x + s.profile[days.DayOfWeek(t)]
		if math.IsNaN(res[i]) || math.IsInf(res[i], 0) {
			return nil, fmt.Errorf("non-finite seasonal prediction at step %d", i)
		}
	}
	return res, nil
}

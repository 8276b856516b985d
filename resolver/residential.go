package resolver

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
)

const residentialOrigin = "residential"

// simulateConsumption models a household: ~100 kWh/day with a weekly swing.
func simulateConsumption(start, end time.Time, rng *rand.Rand) series.Series {
	n := len(days.Range(start, end))
	values := make([]float64, n)
	for d := range values {
		weekly := 20 * math.Sin(float64(d)*2*math.Pi/7)
		values[d] = math.Max(0, 100+weekly+source.Normal(rng, 0, 5))
	}
	return series.FromValues(series.Consumption, residentialOrigin, days.Truncate(start), values)
}

// simulateProduction follows irradiance when it covers every day, otherwise a
// yearly cycle around 90 kWh/day.
func simulateProduction(start, end time.Time, ghi []float64, rng *rand.Rand) series.Series {
	n := len(days.Range(start, end))
	values := make([]float64, n)
	useGHI := len(ghi) == n
	for d := range values {
		var v float64
		if useGHI {
			v = 110*ghi[d]/1000 + source.Normal(rng, 0, 10)
		} else {
			v = 90 + 25*math.Sin(float64(d)*2*math.Pi/365) + source.Normal(rng, 0, 10)
		}
		values[d] = math.Max(0, v)
	}
	return series.FromValues(series.Production, residentialOrigin, days.Truncate(start), values)
}

// dailyIrradiance returns one GHI value per day of [start, end], or nil when
// the climate bundle does not cover every day.
func dailyIrradiance(climate series.Bundle, start, end time.Time) []float64 {
	s, ok := climate.Get(series.Irradiance)
	if !ok || s.IsEmpty() {
		return nil
	}
	byDay := make(map[time.Time]float64, s.Len())
	for _, smp := range s.Samples {
		d := days.Truncate(smp.Timestamp)
		if _, seen := byDay[d]; !seen && !math.IsNaN(smp.Value) {
			byDay[d] = smp.Value
		}
	}
	index := days.Range(start, end)
	res := make([]float64, len(index))
	for i, d := range index {
		v, ok := byDay[d]
		if !ok {
			return nil
		}
		res[i] = v
	}
	return res
}

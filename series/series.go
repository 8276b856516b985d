package series

import (
	"slices"
	"time"
)

// Column names shared by connectors, the resolver and the models.
const (
	Consumption = "consumption_kwh"
	Production  = "production_kwh"
	Price       = "pld_brl_mwh"
	Load        = "load_kwh"
	Generation  = "generation_kwh"
	Temperature = "temp_c"
	Wind        = "wind_ms"
	Irradiance  = "ghi_wm2"
	DirectIrr   = "dni_wm2"
	DiffuseIrr  = "dhi_wm2"
	Humidity    = "humidity"
	Pressure    = "pressure"
)

// Sample is one daily observation. Origin names what it was observed for,
// e.g. a grid region, a market submarket or a weather station.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Origin    string    `json:"origin"`
}

// Series is a single quantity from a single source.
type Series struct {
	Quantity string   `json:"quantity"`
	Samples  []Sample `json:"samples"`
}

func (s Series) Len() int {
	return len(s.Samples)
}

func (s Series) IsEmpty() bool {
	return len(s.Samples) == 0
}

func (s Series) Values() []float64 {
	res := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		res[i] = smp.Value
	}
	return res
}

// FromValues builds a series with one sample per day, starting at start.
func FromValues(quantity, origin string, start time.Time, values []float64) Series {
	s := Series{Quantity: quantity, Samples: make([]Sample, len(values))}
	for i, v := range values {
		s.Samples[i] = Sample{Timestamp: start.AddDate(0, 0, i), Value: v, Origin: origin}
	}
	return s
}

// Bundle is everything a connector returned for one request.
type Bundle struct {
	Connector string   `json:"connector"`
	Series    []Series `json:"series"`
}

func (b Bundle) Get(quantity string) (Series, bool) {
	i := slices.IndexFunc(b.Series, func(s Series) bool { return s.Quantity == quantity })
	if i < 0 {
		return Series{}, false
	}
	return b.Series[i], true
}

// Has reports whether the bundle carries a non-empty series for quantity.
func (b Bundle) Has(quantity string) bool {
	s, ok := b.Get(quantity)
	return ok && !s.IsEmpty()
}

func (b Bundle) IsEmpty() bool {
	for _, s := range b.Series {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}

func (b Bundle) Quantities() []string {
	res := make([]string, 0, len(b.Series))
	for _, s := range b.Series {
		res = append(res, s.Quantity)
	}
	return res
}

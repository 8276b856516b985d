package inmet

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
)

const (
	Name           = "inmet"
	DefaultBaseURL = "https://apitempo.inmet.gov.br"
	// RAD_GLO is reported in kJ/m² accumulated over the hour.
	kjPerHourToWatts = 1000.0 / 3600.0
)

type Inmet struct {
	client  *source.Client
	baseURL string
}

func New(baseURL string, params source.Params) Inmet {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Inmet{client: source.NewClient(Name, params), baseURL: baseURL}
}

func Connector(baseURL string, params source.Params, opts ...source.Option) *source.Connector {
	return source.New(Name, New(baseURL, params), Simulator{}, opts...)
}

// Key is the station code, e.g. A701 for São Paulo (Mirante).
func Key(station string) string {
	return station
}

// Fetch reads the hourly observations of the station in req.Key and averages
// temperature, wind speed and global radiation per day.
func (i Inmet) Fetch(ctx context.Context, req source.Request) (series.Bundle, error) {
	u := fmt.Sprintf("%s/estacao/%s/%s/%s", i.baseURL, days.Format(req.Start), days.Format(req.End), req.Key)

	var rows []map[string]any
	if err := i.client.GetJSON(ctx, u, nil, &rows); err != nil {
		return series.Bundle{}, fmt.Errorf("failed to fetch station %s from inmet: %w", req.Key, err)
	}

	temp, wind, ghi := source.NewDaily(), source.NewDaily(), source.NewDaily()
	for _, r := range rows {
		t, ok := source.Time(r["DT_MEDICAO"], "2006-01-02")
		if !ok {
			continue
		}
		if v, ok := source.Float(r["TEM_INS"]); ok {
			temp.Add(t, v, req.Start, req.End)
		}
		if v, ok := source.Float(r["VEN_VEL"]); ok {
			wind.Add(t, v, req.Start, req.End)
		}
		// Night hours carry no radiation value; they count as zero irradiance.
		v, ok := source.Float(r["RAD_GLO"])
		if !ok || v < 0 {
			v = 0
		}
		ghi.Add(t, v*kjPerHourToWatts, req.Start, req.End)
	}
	if temp.Len() == 0 {
		return series.Bundle{}, fmt.Errorf("no observations for station %s", req.Key)
	}

	return series.Bundle{Connector: Name, Series: []series.Series{
		temp.Series(series.Temperature, req.Key, nil),
		wind.Series(series.Wind, req.Key, nil),
		ghi.Series(series.Irradiance, req.Key, nil),
	}}, nil
}

// Simulator produces tropical station weather with a yearly cycle.
type Simulator struct{}

func (Simulator) Simulate(req source.Request, rng *rand.Rand) series.Bundle {
	n := req.Days()
	temp := make([]float64, n)
	wind := make([]float64, n)
	ghi := make([]float64, n)
	for d := range n {
		temp[d] = 25 + 5*math.Sin(float64(d)*2*math.Pi/365) + source.Normal(rng, 0, 2)
	}
	for d := range n {
		wind[d] = source.Normal(rng, 5, 2)
	}
	for d := range n {
		ghi[d] = 800*math.Max(0, math.Sin(float64(d)*math.Pi/365)) + source.Normal(rng, 0, 100)
	}
	return series.Bundle{Connector: Name, Series: []series.Series{
		series.FromValues(series.Temperature, req.Key, req.Start, temp),
		series.FromValues(series.Wind, req.Key, req.Start, wind),
		series.FromValues(series.Irradiance, req.Key, req.Start, ghi),
	}}
}

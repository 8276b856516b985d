package openweather

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
	"github.com/angas/solarcast/types"
)

const (
	Name           = "openweather"
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	clearSkyGHI    = 1000.0
)

type current struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
}

type OpenWeather struct {
	client  *source.Client
	baseURL string
	apiKey  string
	coord   types.Coordinates
}

// New returns a fetcher that issues one current-weather request per day,
// paced by params.RequestDelay to stay inside the free-tier quota.
func New(baseURL, apiKey string, coord types.Coordinates, params source.Params) OpenWeather {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return OpenWeather{
		client:  source.NewClient(Name, params).Paced(),
		baseURL: baseURL,
		apiKey:  apiKey,
		coord:   coord,
	}
}

func Connector(baseURL, apiKey string, coord types.Coordinates, params source.Params, opts ...source.Option) *source.Connector {
	return source.New(Name, New(baseURL, apiKey, coord, params), Simulator{}, opts...)
}

func Key(coord types.Coordinates) string {
	return coord.String()
}

// EstimateGHI derives irradiance from cloud cover in percent, the free API
// does not report irradiance.
func EstimateGHI(cloudPercent float64) float64 {
	return clearSkyGHI * (1 - cloudPercent/100*0.7)
}

func (o OpenWeather) Fetch(ctx context.Context, req source.Request) (series.Bundle, error) {
	if o.apiKey == "" {
		return series.Bundle{}, errors.New("no api key configured")
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(o.coord.Latitude, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(o.coord.Longitude, 'f', 4, 64))
	q.Set("appid", o.apiKey)
	q.Set("units", "metric")

	dates := days.Range(req.Start, req.End)
	temp := make([]float64, len(dates))
	wind := make([]float64, len(dates))
	ghi := make([]float64, len(dates))
	humidity := make([]float64, len(dates))
	pressure := make([]float64, len(dates))

	for i, d := range dates {
		var c current
		if err := o.client.GetJSON(ctx, o.baseURL, q, &c); err != nil {
			return series.Bundle{}, fmt.Errorf("failed to fetch weather for %s: %w", days.Format(d), err)
		}
		temp[i] = c.Main.Temp
		wind[i] = c.Wind.Speed
		ghi[i] = EstimateGHI(c.Clouds.All)
		humidity[i] = c.Main.Humidity
		pressure[i] = c.Main.Pressure
	}

	return bundle(req, temp, wind, ghi, humidity, pressure), nil
}

func bundle(req source.Request, temp, wind, ghi, humidity, pressure []float64) series.Bundle {
	origin := req.Key
	return series.Bundle{Connector: Name, Series: []series.Series{
		series.FromValues(series.Temperature, origin, req.Start, temp),
		series.FromValues(series.Wind, origin, req.Start, wind),
		series.FromValues(series.Irradiance, origin, req.Start, ghi),
		series.FromValues(series.Humidity, origin, req.Start, humidity),
		series.FromValues(series.Pressure, origin, req.Start, pressure),
	}}
}

type Simulator struct{}

func (Simulator) Simulate(req source.Request, rng *rand.Rand) series.Bundle {
	n := req.Days()
	temp := make([]float64, n)
	wind := make([]float64, n)
	ghi := make([]float64, n)
	humidity := make([]float64, n)
	pressure := make([]float64, n)
	for d := range n {
		temp[d] = source.Normal(rng, 25, 5)
		wind[d] = source.Normal(rng, 5, 2)
		ghi[d] = source.Normal(rng, 800, 100)
		humidity[d] = 60
		pressure[d] = 1013
	}
	return bundle(req, temp, wind, ghi, humidity, pressure)
}

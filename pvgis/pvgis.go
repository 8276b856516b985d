package pvgis

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"net/url"
	"strconv"
	"time"

	"github.com/angas/solarcast/convert"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
	"github.com/angas/solarcast/types"
)

const (
	Name           = "pvgis"
	DefaultBaseURL = "https://re.jrc.ec.europa.eu/api/v5_2/seriescalc"
)

type seriesCalc struct {
	Outputs struct {
		Hourly []map[string]any `json:"hourly"`
		Daily  []map[string]any `json:"daily"`
	} `json:"outputs"`
}

type Pvgis struct {
	client  *source.Client
	baseURL string
	coord   types.Coordinates
}

func New(baseURL string, coord types.Coordinates, params source.Params) Pvgis {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Pvgis{client: source.NewClient(Name, params), baseURL: baseURL, coord: coord}
}

func Connector(baseURL string, coord types.Coordinates, params source.Params, opts ...source.Option) *source.Connector {
	return source.New(Name, New(baseURL, coord, params), Simulator{Coord: coord}, opts...)
}

func Key(coord types.Coordinates) string {
	return coord.String()
}

// Fetch requests irradiance only (no PV calculation) for the years the
// request spans and averages it per day.
func (p Pvgis) Fetch(ctx context.Context, req source.Request) (series.Bundle, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.coord.Latitude, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(p.coord.Longitude, 'f', 4, 64))
	q.Set("startyear", strconv.Itoa(req.Start.Year()))
	q.Set("endyear", strconv.Itoa(req.End.Year()))
	q.Set("pvcalculation", "0")
	q.Set("components", "1")
	q.Set("outputformat", "json")
	q.Set("raddatabase", "PVGIS-SARAH2")

	var sc seriesCalc
	if err := p.client.GetJSON(ctx, p.baseURL, q, &sc); err != nil {
		return series.Bundle{}, fmt.Errorf("failed to fetch irradiance from pvgis: %w", err)
	}

	ghi, dni, dhi := source.NewDaily(), source.NewDaily(), source.NewDaily()
	for _, r := range sc.Outputs.Hourly {
		t, ok := source.Time(r["time"], "20060102:1504")
		if !ok {
			continue
		}
		addComponents(r, t, req, ghi, dni, dhi)
	}
	for _, r := range sc.Outputs.Daily {
		t, ok := dailyTime(r)
		if !ok {
			continue
		}
		addComponents(r, t, req, ghi, dni, dhi)
	}

	if ghi.Len() == 0 {
		return series.Bundle{}, fmt.Errorf("no irradiance between %s and %s", req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))
	}

	return series.Bundle{Connector: Name, Series: []series.Series{
		ghi.Series(series.Irradiance, req.Key, nil),
		dni.Series(series.DirectIrr, req.Key, nil),
		dhi.Series(series.DiffuseIrr, req.Key, nil),
	}}, nil
}

func addComponents(r map[string]any, t time.Time, req source.Request, ghi, dni, dhi *source.Daily) {
	if v, ok := source.Float(r["G(i)"]); ok {
		ghi.Add(t, v, req.Start, req.End)
	}
	if v, ok := source.Float(r["Gb(i)"]); ok {
		dni.Add(t, v, req.Start, req.End)
	}
	if v, ok := source.Float(r["Gd(i)"]); ok {
		dhi.Add(t, v, req.Start, req.End)
	}
}

func dailyTime(r map[string]any) (time.Time, bool) {
	y, ok1 := source.Float(r["year"])
	m, ok2 := source.Float(r["month"])
	d, ok3 := source.Float(r["day"])
	if !ok1 || !ok2 || !ok3 {
		return time.Time{}, false
	}
	return time.Date(int(y), time.Month(int(m)), int(d), 0, 0, 0, 0, time.UTC), true
}

// Simulator approximates daily irradiance from solar declination and latitude.
type Simulator struct {
	Coord types.Coordinates
}

func (s Simulator) Simulate(req source.Request, rng *rand.Rand) series.Bundle {
	n := req.Days()
	ghi := make([]float64, n)
	dni := make([]float64, n)
	dhi := make([]float64, n)
	for d := range n {
		doy := float64(req.Start.AddDate(0, 0, d).YearDay())
		declination := 23.45 * math.Sin(convert.DegToRad(360*(284+doy)/365))
		elevation := 90 - math.Abs(s.Coord.Latitude-declination)
		base := 1000 * math.Max(0, math.Sin(convert.DegToRad(elevation)))
		g := math.Max(0, base*0.7+source.Normal(rng, 0, 100))
		ghi[d] = g
		dni[d] = g * 0.6
		dhi[d] = g * 0.3
	}
	return series.Bundle{Connector: Name, Series: []series.Series{
		series.FromValues(series.Irradiance, req.Key, req.Start, ghi),
		series.FromValues(series.DirectIrr, req.Key, req.Start, dni),
		series.FromValues(series.DiffuseIrr, req.Key, req.Start, dhi),
	}}
}

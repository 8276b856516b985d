package ons

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/angas/solarcast/convert"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
)

const (
	Name           = "ons"
	DefaultBaseURL = "https://dados.ons.org.br"
)

// Config points the connector at the ONS open-data datastore resources for
// daily load and generation. Both report average MW per day and subsystem.
type Config struct {
	BaseURL            string `mapstructure:"base_url"`
	LoadResource       string `mapstructure:"load_resource"`
	GenerationResource string `mapstructure:"generation_resource"`
	PageSize           int    `mapstructure:"page_size"`
}

var instantLayouts = []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

type Ons struct {
	client *source.Client
	config Config
}

func New(config Config, params source.Params) Ons {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.PageSize <= 0 {
		config.PageSize = 5000
	}
	return Ons{client: source.NewClient(Name, params), config: config}
}

// Connector wires the ONS fetcher and its grid-scale simulator.
func Connector(config Config, params source.Params, opts ...source.Option) *source.Connector {
	return source.New(Name, New(config, params), Simulator{}, opts...)
}

// Key is the cache key for a subsystem (SE, S, NE, N).
func Key(region string) string {
	return "load_" + region
}

// Fetch returns the load and generation series for the subsystem encoded in
// req.Key, converted from MW to kWh.
func (o Ons) Fetch(ctx context.Context, req source.Request) (series.Bundle, error) {
	region := regionFromKey(req.Key)

	load, err := o.fetchResource(ctx, o.config.LoadResource, region, "val_cargaenergiamwmed", series.Load, req)
	if err != nil {
		return series.Bundle{}, fmt.Errorf("failed to fetch load from ons: %w", err)
	}

	generation, err := o.fetchResource(ctx, o.config.GenerationResource, region, "val_geracao", series.Generation, req)
	if err != nil {
		return series.Bundle{}, fmt.Errorf("failed to fetch generation from ons: %w", err)
	}

	return series.Bundle{Connector: Name, Series: []series.Series{load, generation}}, nil
}

func (o Ons) fetchResource(ctx context.Context, resource, region, field, quantity string, req source.Request) (series.Series, error) {
	records, err := o.client.DatastoreSearch(ctx, o.config.BaseURL, resource, map[string]string{"id_subsistema": region}, o.config.PageSize)
	if err != nil {
		return series.Series{}, err
	}

	daily := source.NewDaily()
	for _, r := range records {
		t, ok := source.Time(r["din_instante"], instantLayouts...)
		if !ok {
			continue
		}
		v, ok := source.Float(r[field])
		if !ok {
			continue
		}
		daily.Add(t, v, req.Start, req.End)
	}
	if daily.Len() == 0 {
		return series.Series{}, fmt.Errorf("no %s records for %s", field, region)
	}

	return daily.Series(quantity, region, convert.MWToKWh), nil
}

func regionFromKey(key string) string {
	return strings.TrimPrefix(key, "load_")
}

// Simulator generates grid-scale load with a weekly pattern and a flat
// generation level slightly below it.
type Simulator struct{}

const (
	loadBaseMW = 50000.0
	weeklyMW   = 5000.0
)

func (Simulator) Simulate(req source.Request, rng *rand.Rand) series.Bundle {
	n := req.Days()
	region := regionFromKey(req.Key)
	load := make([]float64, n)
	generation := make([]float64, n)
	for d := range n {
		weekly := math.Sin(float64(d) * 2 * math.Pi / 7)
		load[d] = convert.MWToKWh(loadBaseMW + weekly*weeklyMW + source.Normal(rng, 0, 1000))
	}
	for d := range n {
		generation[d] = convert.MWToKWh(loadBaseMW*0.95 + source.Normal(rng, 0, 2000))
	}
	return series.Bundle{Connector: Name, Series: []series.Series{
		series.FromValues(series.Load, region, req.Start, load),
		series.FromValues(series.Generation, region, req.Start, generation),
	}}
}

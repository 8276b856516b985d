package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/source"
	"github.com/angas/solarcast/types"
)

// Provenance records which connector delivered a quantity and how.
type Provenance struct {
	Connector string        `json:"connector"`
	Origin    source.Origin `json:"origin"`
}

const (
	QuantityConsumption = "consumption"
	QuantityProduction  = "production"
	QuantityPrice       = "price"
	QuantityClimate     = "climate"
)

type Request struct {
	Start       time.Time
	End         time.Time
	UseRealData bool
}

type Resolved struct {
	Start       time.Time
	End         time.Time
	Consumption series.Series
	Production  series.Series
	Price       series.Series
	Climate     series.Bundle
	Provenance  map[string]Provenance
}

type Resolver struct {
	sources Sources
	seed    uint64
	logger  *slog.Logger
}

func New(sources Sources, seed uint64) *Resolver {
	return &Resolver{
		sources: sources,
		seed:    seed,
		logger:  slog.Default().With("module", "resolver"),
	}
}

// Resolve picks, per quantity, real data when requested and available and a
// simulation otherwise. Consumption and production always come from the same
// place: if either is missing from the grid source, both are simulated.
// The only errors returned are fatal ones (bad request, unwritable cache).
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	if req.End.Before(req.Start) {
		return nil, types.NewConfigurationError("end", "end date is before start date")
	}
	if len(r.sources.Climate) == 0 {
		return nil, types.NewConfigurationError("climate", "no climate source configured")
	}

	rng := source.NewRand(r.seed)
	res := &Resolved{Start: req.Start, End: req.End, Provenance: make(map[string]Provenance)}

	if err := r.resolveClimate(ctx, req, rng, res); err != nil {
		return nil, err
	}
	if err := r.resolveEnergy(ctx, req, rng, res); err != nil {
		return nil, err
	}
	if err := r.resolvePrice(ctx, req, rng, res); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "data resolved",
		slog.Bool("useRealData", req.UseRealData),
		slog.Any("provenance", res.Provenance))
	return res, nil
}

func (r *Resolver) resolveClimate(ctx context.Context, req Request, rng *rand.Rand, res *Resolved) error {
	if req.UseRealData {
		for _, src := range r.sources.Climate {
			got, ok, err := r.fetchReal(ctx, src, req)
			if err != nil {
				return err
			}
			if ok {
				res.Climate = got.Bundle
				res.Provenance[QuantityClimate] = Provenance{Connector: src.Connector.Name(), Origin: got.Origin}
				return nil
			}
		}
	}

	last := r.sources.Climate[len(r.sources.Climate)-1]
	res.Climate = last.Connector.Simulate(r.request(last, req), rng)
	res.Provenance[QuantityClimate] = Provenance{Connector: last.Connector.Name(), Origin: source.OriginSynthetic}
	return nil
}

func (r *Resolver) resolveEnergy(ctx context.Context, req Request, rng *rand.Rand, res *Resolved) error {
	if req.UseRealData {
		grid := r.sources.Grid
		got, ok, err := r.fetchReal(ctx, grid, req)
		if err != nil {
			return err
		}
		load, hasLoad := got.Bundle.Get(series.Load)
		generation, hasGeneration := got.Bundle.Get(series.Generation)
		if ok && hasLoad && !load.IsEmpty() && hasGeneration && !generation.IsEmpty() {
			res.Consumption = rename(load, series.Consumption)
			res.Production = rename(generation, series.Production)
			p := Provenance{Connector: grid.Connector.Name(), Origin: got.Origin}
			res.Provenance[QuantityConsumption] = p
			res.Provenance[QuantityProduction] = p
			return nil
		}
		r.logger.WarnContext(ctx, "grid data incomplete, simulating consumption and production")
	}

	res.Consumption = simulateConsumption(req.Start, req.End, rng)
	res.Production = simulateProduction(req.Start, req.End, dailyIrradiance(res.Climate, req.Start, req.End), rng)
	p := Provenance{Connector: residentialOrigin, Origin: source.OriginSynthetic}
	res.Provenance[QuantityConsumption] = p
	res.Provenance[QuantityProduction] = p
	return nil
}

func (r *Resolver) resolvePrice(ctx context.Context, req Request, rng *rand.Rand, res *Resolved) error {
	market := r.sources.Market
	if req.UseRealData {
		got, ok, err := r.fetchReal(ctx, market, req)
		if err != nil {
			return err
		}
		if price, has := got.Bundle.Get(series.Price); ok && has && !price.IsEmpty() {
			res.Price = price
			res.Provenance[QuantityPrice] = Provenance{Connector: market.Connector.Name(), Origin: got.Origin}
			return nil
		}
	}

	b := market.Connector.Simulate(r.request(market, req), rng)
	price, _ := b.Get(series.Price)
	res.Price = price
	res.Provenance[QuantityPrice] = Provenance{Connector: market.Connector.Name(), Origin: source.OriginSynthetic}
	return nil
}

// fetchReal absorbs acquisition failures and reports whether real data came back.
func (r *Resolver) fetchReal(ctx context.Context, src Source, req Request) (source.Result, bool, error) {
	got, err := src.Connector.FetchReal(ctx, r.request(src, req))
	if err != nil {
		var ae *types.AcquisitionError
		if !errors.As(err, &ae) {
			return source.Result{}, false, fmt.Errorf("%s: %w", src.Connector.Name(), err)
		}
		r.logger.InfoContext(ctx, "source unavailable", slog.String("connector", src.Connector.Name()), slog.Any("error", err))
		return got, false, nil
	}
	return got, got.Real(), nil
}

func (r *Resolver) request(src Source, req Request) source.Request {
	return source.Request{Key: src.Key, Start: req.Start, End: req.End}
}

func rename(s series.Series, quantity string) series.Series {
	return series.Series{Quantity: quantity, Samples: s.Samples}
}

// Merge aligns every resolved quantity onto the daily range and fills gaps
// exactly once.
func Merge(res *Resolved) (*series.Frame, error) {
	all := []series.Series{res.Consumption, res.Production, res.Price}
	all = append(all, res.Climate.Series...)

	f, err := series.Align(res.Start, res.End, all...)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{series.Consumption, series.Production, series.Price} {
		c, ok := f.Column(name)
		if !ok || !hasValue(c) {
			return nil, fmt.Errorf("no %s values in the requested range", name)
		}
	}

	// Climate columns without a single value in range cannot be filled.
	var keep []string
	for _, name := range f.Names() {
		if c, _ := f.Column(name); hasValue(c) {
			keep = append(keep, name)
		}
	}
	f = f.Select(keep...)

	if err := f.Fill(); err != nil {
		return nil, err
	}
	return f, nil
}

func hasValue(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

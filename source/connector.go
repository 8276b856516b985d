package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/types"
)

type Origin string

const (
	OriginCache     Origin = "cache"
	OriginNetwork   Origin = "network"
	OriginSynthetic Origin = "synthetic"
	// OriginNone marks a real-only fetch that produced nothing.
	OriginNone Origin = "none"
)

// Request selects what a connector should deliver. Key identifies the
// upstream selection (region, submarket, station or coordinates) and is
// part of the cache identity.
type Request struct {
	Key   string
	Start time.Time
	End   time.Time
}

func (r Request) String() string {
	return fmt.Sprintf("%s_%s_%s", r.Key, days.Format(r.Start), days.Format(r.End))
}

// Days returns the number of daily samples the request covers.
func (r Request) Days() int {
	return len(days.Range(r.Start, r.End))
}

// Fetcher pulls real data from an upstream source.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (series.Bundle, error)
}

// Simulator produces plausible data for a request from the given random source.
type Simulator interface {
	Simulate(req Request, rng *rand.Rand) series.Bundle
}

type Result struct {
	Bundle series.Bundle
	Origin Origin
	// Stored is the origin recorded with a cached artifact. Only set when
	// Origin is OriginCache.
	Stored Origin
	// Acquisition holds the upstream failure that was absorbed, if any.
	Acquisition *types.AcquisitionError
}

// Real reports whether the result holds non-synthetic, non-empty data.
func (r Result) Real() bool {
	if r.Bundle.IsEmpty() {
		return false
	}
	return r.Origin == OriginNetwork || (r.Origin == OriginCache && r.Stored == OriginNetwork)
}

// Observer is told about every result a connector hands out.
type Observer func(connector string, origin Origin)

type Connector struct {
	name      string
	fetcher   Fetcher
	simulator Simulator
	cache     *Cache
	seed      uint64
	observer  Observer
	logger    *slog.Logger
}

type Option func(*Connector)

func WithCache(c *Cache) Option {
	return func(conn *Connector) { conn.cache = c }
}

func WithSeed(seed uint64) Option {
	return func(conn *Connector) { conn.seed = seed }
}

func WithObserver(o Observer) Option {
	return func(conn *Connector) { conn.observer = o }
}

func New(name string, fetcher Fetcher, simulator Simulator, opts ...Option) *Connector {
	c := &Connector{
		name:      name,
		fetcher:   fetcher,
		simulator: simulator,
		seed:      DefaultParams().Seed,
		logger:    slog.Default().With("module", "source", "connector", name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) Name() string {
	return c.name
}

// Fetch returns cached data when available, otherwise real data, otherwise a
// seeded simulation. Upstream failures never surface as errors; the only
// error returned is a failure to persist the result in the cache.
func (c *Connector) Fetch(ctx context.Context, req Request) (Result, error) {
	res, err := c.fetch(ctx, req, true)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// FetchReal behaves like Fetch but never simulates. Cached synthetic artifacts
// are skipped so the upstream is asked again. An upstream failure is returned
// as an *types.AcquisitionError so the caller can pick its own fallback.
func (c *Connector) FetchReal(ctx context.Context, req Request) (Result, error) {
	res, err := c.fetch(ctx, req, false)
	if err != nil {
		return Result{}, err
	}
	if res.Acquisition != nil {
		return res, res.Acquisition
	}
	return res, nil
}

// Simulate produces the connector's synthetic series without touching the
// network or the cache.
func (c *Connector) Simulate(req Request, rng *rand.Rand) series.Bundle {
	b := c.simulator.Simulate(req, rng)
	b.Connector = c.name
	return b
}

func (c *Connector) fetch(ctx context.Context, req Request, fallback bool) (Result, error) {
	if c.cache != nil {
		if hit, ok := c.cache.Load(c.name, req); ok {
			if fallback || hit.Origin != OriginSynthetic {
				c.logger.DebugContext(ctx, "serving from cache", slog.String("request", req.String()), slog.String("stored", string(hit.Origin)))
				c.observe(OriginCache)
				return Result{Bundle: hit.Bundle, Origin: OriginCache, Stored: hit.Origin}, nil
			}
			c.logger.DebugContext(ctx, "skipping cached synthetic result", slog.String("request", req.String()))
		}
	}

	res := Result{Origin: OriginNetwork}
	b, err := c.fetcher.Fetch(ctx, req)
	if err == nil && b.IsEmpty() {
		err = errors.New("empty payload")
	}
	if err != nil {
		res.Acquisition = &types.AcquisitionError{Connector: c.name, Err: err}
		c.logger.WarnContext(ctx, "acquisition failed", slog.String("request", req.String()), slog.Any("error", err))
		if !fallback {
			res.Origin = OriginNone
			c.observe(OriginNone)
			return res, nil
		}
		b = c.Simulate(req, NewRand(c.seed))
		res.Origin = OriginSynthetic
	}
	b.Connector = c.name
	res.Bundle = b

	if c.cache != nil {
		if err := c.cache.Store(c.name, req, res.Bundle, res.Origin); err != nil {
			return Result{}, fmt.Errorf("failed to cache %s result: %w", c.name, err)
		}
	}

	c.observe(res.Origin)
	return res, nil
}

func (c *Connector) observe(origin Origin) {
	if c.observer != nil {
		c.observer(c.name, origin)
	}
}

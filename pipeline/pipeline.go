package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/angas/solarcast/decision"
	"github.com/angas/solarcast/features"
	"github.com/angas/solarcast/forecast"
	"github.com/angas/solarcast/logging"
	"github.com/angas/solarcast/metrics"
	"github.com/angas/solarcast/profit"
	"github.com/angas/solarcast/resolver"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/slice"
	"github.com/angas/solarcast/source"
	"github.com/angas/solarcast/types"
	"github.com/angas/solarcast/types/maybe"
	"github.com/angas/solarcast/validate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	StageResolve  = "resolve"
	StageMerge    = "merge"
	StageFeatures = "features"
	StageFit      = "fit"
	StageValidate = "validate"
	StagePredict  = "predict"
	StagePrice    = "price"
	StageDecide   = "decide"

	forwardPriceWindow = 30
)

var validateInput = validator.New(validator.WithRequiredStructEnabled())

// Input is everything a single run depends on.
type Input struct {
	Start                 time.Time                      `json:"start" validate:"required"`
	End                   time.Time                      `json:"end" validate:"required"`
	Region                string                         `json:"region" validate:"required"`
	Submarket             string                         `json:"submarket" validate:"required"`
	Station               string                         `json:"station"`
	UseRealData           bool                           `json:"use_real_data"`
	Coordinates           maybe.Maybe[types.Coordinates] `json:"coordinates"`
	ConsumptionAlgorithms []string                       `json:"consumption_algorithms"`
	ProductionAlgorithms  []string                       `json:"production_algorithms"`
	Horizon               int                            `json:"horizon"`
	Features              bool                           `json:"features"`
	Validate              bool                           `json:"validate"`
	BacktestStep          int                            `json:"backtest_step" validate:"gte=0"`
	Finance               profit.FinanceParams           `json:"finance"`
	Decision              decision.Params                `json:"decision"`
}

// Settings are the connector level settings shared by every run.
type Settings struct {
	Endpoints      resolver.Endpoints
	OpenWeatherKey string
	Params         source.Params
	Cache          *source.Cache
}

// Reporter receives each finished result. Reporter failures never fail a run.
type Reporter interface {
	Name() string
	Report(ctx context.Context, res *Result) error
}

type Pipeline struct {
	settings  Settings
	recorder  *metrics.Recorder
	reporters []Reporter
	registry  forecast.Registry
	sources   func(Input) resolver.Sources
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Pipeline)

func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func WithReporters(r ...Reporter) Option {
	return func(p *Pipeline) { p.reporters = append(p.reporters, r...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRegistry restricts the forecast algorithms available to the models.
func WithRegistry(r forecast.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithSources replaces the connector set derived from the settings.
func WithSources(fn func(Input) resolver.Sources) Option {
	return func(p *Pipeline) { p.sources = fn }
}

func New(settings Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		settings: settings,
		registry: forecast.DefaultRegistry(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("module", "pipeline")
	if p.sources == nil {
		p.sources = p.defaultSources
	}
	return p
}

func (p *Pipeline) defaultSources(in Input) resolver.Sources {
	s := resolver.Settings{
		Region:         in.Region,
		Submarket:      in.Submarket,
		Station:        in.Station,
		Coordinates:    in.Coordinates,
		OpenWeatherKey: p.settings.OpenWeatherKey,
		Endpoints:      p.settings.Endpoints,
		Params:         p.settings.Params,
		Cache:          p.settings.Cache,
	}
	if p.recorder != nil {
		s.Observer = p.recorder.RecordFetch
	}
	return resolver.NewSources(s)
}

// run carries the intermediate state of one invocation.
type run struct {
	id          uuid.UUID
	in          Input
	engine      *profit.Engine
	strategy    *decision.ThresholdStrategy
	consumption *forecast.Model
	production  *forecast.Model

	resolved   *resolver.Resolved
	frame      *series.Frame
	exog       []string
	predictedC []float64
	predictedP []float64
	forward    []float64
	res        *Result
}

// Run executes every stage in order. Configuration and state errors are
// returned as they are; anything else that fails a stage comes back as a
// *StageError. No result is returned unless every stage succeeded.
// Everything logged through ctx during the run carries the run id.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	r, err := p.prepare(in)
	if err != nil {
		p.failed(ctx, err)
		return nil, err
	}
	ctx = logging.WithRunID(ctx, r.id.String())

	stages := []struct {
		name string
		fn   func(context.Context, *run) error
	}{
		{StageResolve, p.resolve},
		{StageMerge, p.merge},
		{StageFeatures, p.features},
		{StageFit, p.fit},
		{StageValidate, p.validate},
		{StagePredict, p.predict},
		{StagePrice, p.price},
		{StageDecide, p.decide},
	}
	for _, s := range stages {
		if err := p.stage(ctx, s.name, r, s.fn); err != nil {
			p.failed(ctx, err)
			return nil, err
		}
	}

	res := r.res
	p.logger.InfoContext(ctx, "run finished",
		slog.Int("periods", len(res.Records)),
		slog.String("net_profit_brl", res.Summary.NetProfitBRL.StringFixed(2)))
	if p.recorder != nil {
		f, _ := res.Summary.NetProfitBRL.Float64()
		p.recorder.RecordSuccess(res.CreatedAt, f)
	}

	p.report(ctx, res)
	return res, nil
}

func (p *Pipeline) failed(ctx context.Context, err error) {
	p.logger.ErrorContext(ctx, "run failed", slog.Any("error", err))
	if p.recorder != nil {
		p.recorder.RecordFailure()
	}
}

func (p *Pipeline) prepare(in Input) (*run, error) {
	if err := validateInput.Struct(in); err != nil {
		return nil, types.NewConfigurationError("input", "%v", err)
	}
	if in.Horizon <= 0 {
		return nil, types.NewConfigurationError("horizon", "must be > 0, got %d", in.Horizon)
	}
	if in.End.Before(in.Start) {
		return nil, types.NewConfigurationError("dates", "end %s is before start %s", in.End.Format(time.DateOnly), in.Start.Format(time.DateOnly))
	}

	engine, err := profit.New(in.Finance)
	if err != nil {
		return nil, err
	}
	strategy, err := decision.NewThresholdStrategy(in.Decision)
	if err != nil {
		return nil, err
	}

	opts := []forecast.Option{forecast.WithRegistry(p.registry), forecast.WithSeed(p.settings.Params.Seed)}
	if p.recorder != nil {
		opts = append(opts, forecast.WithFallbackObserver(p.recorder.RecordFallback))
	}
	consumption, err := forecast.NewConsumptionModel(in.ConsumptionAlgorithms, opts...)
	if err != nil {
		return nil, err
	}
	production, err := forecast.NewProductionModel(in.ProductionAlgorithms, opts...)
	if err != nil {
		return nil, err
	}

	return &run{
		id:          uuid.New(),
		in:          in,
		engine:      engine,
		strategy:    strategy,
		consumption: consumption,
		production:  production,
	}, nil
}

// stage runs fn, recovering panics and attaching the stage name to
// unexpected errors.
func (p *Pipeline) stage(ctx context.Context, name string, r *run, fn func(context.Context, *run) error) (err error) {
	logger := p.logger.With("stage", name)
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = &StageError{Stage: name, Err: fmt.Errorf("panic: %v", rec)}
		}
		if p.recorder != nil {
			p.recorder.ObserveStage(name, time.Since(start))
		}
		if err != nil {
			logger.ErrorContext(ctx, "stage failed", slog.Any("error", err))
		} else {
			logger.DebugContext(ctx, "stage done", slog.Duration("elapsed", time.Since(start)))
		}
	}()

	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	if err := fn(ctx, r); err != nil {
		if types.IsFatal(err) {
			return err
		}
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func (p *Pipeline) resolve(ctx context.Context, r *run) error {
	res, err := resolver.New(p.sources(r.in), p.settings.Params.Seed).Resolve(ctx, resolver.Request{
		Start:       r.in.Start,
		End:         r.in.End,
		UseRealData: r.in.UseRealData,
	})
	if err != nil {
		return err
	}
	for quantity, prov := range res.Provenance {
		p.logger.InfoContext(ctx, "quantity resolved",
			slog.String("quantity", quantity),
			slog.String("connector", prov.Connector),
			slog.String("origin", string(prov.Origin)))
	}
	r.resolved = res
	return nil
}

func (p *Pipeline) merge(_ context.Context, r *run) error {
	f, err := resolver.Merge(r.resolved)
	if err != nil {
		return err
	}
	r.frame = f
	return nil
}

// features adds derived climate covariates and picks the gap free climate
// columns the production model may use.
func (p *Pipeline) features(_ context.Context, r *run) error {
	f := r.frame
	if r.in.Features {
		var err error
		if f, err = features.WithClimate(f); err != nil {
			return err
		}
	}
	r.frame = f
	r.exog = exogenous(f)
	return nil
}

func exogenous(f *series.Frame) []string {
	var res []string
	for _, name := range f.Names() {
		if slices.Contains([]string{series.Consumption, series.Production, series.Price}, name) {
			continue
		}
		c, _ := f.Column(name)
		if slice.All(c, func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }) {
			res = append(res, name)
		}
	}
	return res
}

func (p *Pipeline) fit(_ context.Context, r *run) error {
	if err := r.consumption.Fit(r.frame, series.Consumption, nil); err != nil {
		return err
	}
	return r.production.Fit(r.frame, series.Production, r.exog)
}

func (p *Pipeline) validate(ctx context.Context, r *run) error {
	r.res = &Result{
		Validation: make(map[string]maybe.Maybe[validate.Metrics]),
	}
	if !r.in.Validate {
		return nil
	}
	targets := []struct {
		model  *forecast.Model
		target string
		exog   []string
	}{
		{r.consumption, series.Consumption, nil},
		{r.production, series.Production, r.exog},
	}
	for _, t := range targets {
		m, err := validate.Validate(t.model, r.frame, t.target, t.exog)
		if err != nil {
			p.logger.WarnContext(ctx, "validation unavailable for this target", slog.String("target", t.target), slog.Any("error", err))
		} else if m.IsValid() {
			p.logger.InfoContext(ctx, "holdout metrics", slog.String("target", t.target), slog.Any("metrics", m.Value()))
		}
		r.res.Validation[t.target] = m
	}
	if r.in.BacktestStep > 0 {
		r.res.Backtest = make(map[string]maybe.Maybe[validate.Metrics], len(targets))
		for _, t := range targets {
			r.res.Backtest[t.target] = p.backtest(ctx, t.model, r.frame, t.target, t.exog, r.in.BacktestStep)
		}
	}
	return nil
}

// backtest scores an expanding window backtest over the second half of the
// history. Like the holdout it never fails the run.
func (p *Pipeline) backtest(ctx context.Context, model *forecast.Model, h *series.Frame, target string, exog []string, step int) (res maybe.Maybe[validate.Metrics]) {
	logger := p.logger.With(slog.String("target", target))
	defer func() {
		if rec := recover(); rec != nil {
			logger.WarnContext(ctx, "backtest unavailable", slog.Any("error", rec))
			res = maybe.None[validate.Metrics]()
		}
	}()

	initial := h.Len() / 2
	if initial == 0 {
		logger.WarnContext(ctx, "backtest unavailable, history too short", slog.Int("rows", h.Len()))
		return maybe.None[validate.Metrics]()
	}
	points, err := validate.Backtest(model, h, target, exog, initial, step)
	if err != nil {
		logger.WarnContext(ctx, "backtest unavailable", slog.Any("error", err))
		return maybe.None[validate.Metrics]()
	}
	m, err := validate.ScorePoints(points)
	if err != nil {
		logger.WarnContext(ctx, "backtest unavailable", slog.Any("error", err))
		return maybe.None[validate.Metrics]()
	}
	logger.InfoContext(ctx, "backtest metrics", slog.Int("step", step), slog.Any("metrics", m))
	return maybe.Some(m)
}

func (p *Pipeline) predict(_ context.Context, r *run) error {
	var err error
	if r.predictedC, err = r.consumption.Predict(r.in.Horizon, nil); err != nil {
		return err
	}
	if r.predictedP, err = r.production.Predict(r.in.Horizon, nil); err != nil {
		return err
	}
	if len(r.predictedC) != r.in.Horizon || len(r.predictedP) != r.in.Horizon {
		return fmt.Errorf("expected %d predictions, got %d consumption and %d production", r.in.Horizon, len(r.predictedC), len(r.predictedP))
	}
	return nil
}

func (p *Pipeline) price(_ context.Context, r *run) error {
	price, err := ForwardPrice(r.frame, r.in.Horizon)
	if err != nil {
		return err
	}
	r.forward = price
	return nil
}

// ForwardPrice repeats the mean of the trailing price window over the horizon.
func ForwardPrice(f *series.Frame, horizon int) ([]float64, error) {
	c, ok := f.Column(series.Price)
	if !ok {
		return nil, fmt.Errorf("no %s column", series.Price)
	}
	tail := slice.Finite(slice.Tail(c, forwardPriceWindow))
	if len(tail) == 0 {
		return nil, fmt.Errorf("no finite %s values", series.Price)
	}
	var sum float64
	for _, v := range tail {
		sum += v
	}
	return slice.Repeat(sum/float64(len(tail)), horizon), nil
}

func (p *Pipeline) decide(_ context.Context, r *run) error {
	records, err := r.engine.Evaluate(r.predictedC, r.predictedP, r.forward)
	if err != nil {
		return err
	}
	if err := profit.Stamp(records, r.consumption.Timestamps(r.in.Horizon)); err != nil {
		return err
	}
	advice, err := r.strategy.Decide(r.predictedC, r.predictedP, r.forward)
	if err != nil {
		return err
	}

	res := r.res
	res.RunID = r.id
	res.CreatedAt = p.now().UTC()
	res.Input = r.in
	res.Records = records
	res.Advice = advice
	res.ForwardPrice = r.forward[0]
	res.Provenance = r.resolved.Provenance
	res.Algorithms = map[string]string{
		series.Consumption: r.consumption.Algorithm().String(),
		series.Production:  r.production.Algorithm().String(),
	}
	res.Summary = profit.Summarize(records)
	res.Models = map[string]*forecast.Model{
		series.Consumption: r.consumption,
		series.Production:  r.production,
	}
	return nil
}

// report hands the result to every reporter. A failing reporter is logged
// and the remaining ones still run.
func (p *Pipeline) report(ctx context.Context, res *Result) {
	for _, rep := range p.reporters {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					p.reportFailed(ctx, rep.Name(), fmt.Errorf("panic: %v", rec))
				}
			}()
			if err := rep.Report(ctx, res); err != nil {
				p.reportFailed(ctx, rep.Name(), err)
			}
		}()
	}
}

func (p *Pipeline) reportFailed(ctx context.Context, name string, err error) {
	p.logger.WarnContext(ctx, "core result available, secondary output failed", slog.String("reporter", name), slog.Any("error", err))
	if p.recorder != nil {
		p.recorder.RecordReporterFailure(name)
	}
}

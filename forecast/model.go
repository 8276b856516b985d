package forecast

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/angas/solarcast/convert"
	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/types"
)

const defaultSeed = 42

// FallbackObserver is told whenever a preferred algorithm could not be fitted.
type FallbackObserver func(kind Kind, from Algorithm, err error)

// Model is a forecast model for one target. It starts unfitted; Fit moves it
// to fitted and Predict is only valid afterwards.
type Model struct {
	kind        Kind
	preferences []Algorithm
	registry    Registry
	seed        uint64
	rng         *rand.Rand
	onFallback  FallbackObserver
	logger      *slog.Logger

	estimator estimator
	algorithm Algorithm
	target    string
	exog      []string
	last      time.Time
}

type Option func(*Model)

// WithRegistry replaces the set of available algorithms.
func WithRegistry(r Registry) Option {
	return func(m *Model) { m.registry = r }
}

// WithSeed seeds the random source of stochastic estimators.
func WithSeed(seed uint64) Option {
	return func(m *Model) { m.seed = seed }
}

func WithFallbackObserver(o FallbackObserver) Option {
	return func(m *Model) { m.onFallback = o }
}

func NewConsumptionModel(preferences []string, opts ...Option) (*Model, error) {
	return newModel(KindConsumption, preferences, opts...)
}

func NewProductionModel(preferences []string, opts ...Option) (*Model, error) {
	return newModel(KindProduction, preferences, opts...)
}

func newModel(kind Kind, preferences []string, opts ...Option) (*Model, error) {
	prefs, err := ParsePreferences(preferences)
	if err != nil {
		return nil, err
	}
	m := &Model{
		kind:     kind,
		registry: DefaultRegistry(),
		seed:     defaultSeed,
		logger:   slog.Default().With("module", "forecast", "model", kind.String()),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.preferences = m.registry.resolve(prefs)
	m.rng = rand.New(rand.NewPCG(m.seed, m.seed))
	return m, nil
}

func (m *Model) Kind() Kind {
	return m.kind
}

// Preferences returns the algorithms that will be tried, Baseline last.
func (m *Model) Preferences() []Algorithm {
	return slices.Clone(m.preferences)
}

func (m *Model) IsFitted() bool {
	return m.estimator != nil
}

// Algorithm returns the algorithm of the fitted estimator.
func (m *Model) Algorithm() Algorithm {
	return m.algorithm
}

// Target returns the column the model was fitted on.
func (m *Model) Target() string {
	return m.target
}

// Scratch returns an unfitted model with the same configuration. It shares
// no state with m.
func (m *Model) Scratch() *Model {
	return &Model{
		kind:        m.kind,
		preferences: slices.Clone(m.preferences),
		registry:    m.registry,
		seed:        m.seed,
		rng:         rand.New(rand.NewPCG(m.seed, m.seed)),
		onFallback:  m.onFallback,
		logger:      m.logger,
	}
}

// Fit trains on target (and the exogenous columns, when the algorithm uses
// them) trying the preferred algorithms in order. An algorithm that fails is
// skipped silently; Baseline only fails on empty history.
func (m *Model) Fit(h *series.Frame, target string, exog []string) error {
	if h == nil || h.Len() == 0 {
		return types.NewConfigurationError("history", "empty history")
	}
	values, ok := h.Column(target)
	if !ok {
		return types.NewConfigurationError("target", "unknown column %s", target)
	}
	hist := history{
		timestamps: h.Timestamps(),
		values:     values,
		exog:       make(map[string][]float64, len(exog)),
	}
	for _, name := range exog {
		col, ok := h.Column(name)
		if !ok {
			return types.NewConfigurationError("exogenous", "unknown column %s", name)
		}
		hist.exog[name] = col
	}

	for _, a := range m.preferences {
		est := m.registry.factory(a)(m.kind, m.rng)
		err := est.fit(hist)
		if err == nil {
			m.estimator = est
			m.algorithm = a
			m.target = target
			m.exog = slices.Clone(exog)
			m.last = h.Last()
			m.logger.Debug("model fitted", slog.String("algorithm", a.String()), slog.Int("observations", h.Len()))
			return nil
		}
		if a == Baseline {
			return types.NewConfigurationError("history", "%v", err)
		}
		m.logger.Debug("algorithm unavailable, downgrading", slog.String("algorithm", a.String()), slog.Any("error", err))
		if m.onFallback != nil {
			m.onFallback(m.kind, a, err)
		}
	}
	return types.NewStateError("fit", "no algorithm available")
}

// Predict forecasts horizon days after the last fitted day. exog may carry
// future values for the exogenous columns; missing ones are held at their
// last observed value.
func (m *Model) Predict(horizon int, exog *series.Frame) ([]float64, error) {
	if !m.IsFitted() {
		return nil, types.NewStateError("predict", fmt.Sprintf("%s model is not fitted", m.kind))
	}
	if horizon <= 0 {
		return nil, types.NewConfigurationError("horizon", "must be > 0, got %d", horizon)
	}

	f := future{timestamps: days.Following(m.last, horizon), exog: make(map[string][]float64)}
	if exog != nil {
		for _, name := range m.exog {
			if col, ok := exog.Column(name); ok {
				f.exog[name] = col
			}
		}
	}

	res, err := m.estimator.predict(f)
	if err != nil {
		return nil, fmt.Errorf("%s prediction with %s: %w", m.kind, m.algorithm, err)
	}
	if m.kind == KindProduction {
		for i, v := range res {
			res[i] = convert.NonNegative(v)
		}
	}
	return res, nil
}

// Timestamps returns the days Predict(horizon) refers to.
func (m *Model) Timestamps(horizon int) []time.Time {
	return days.Following(m.last, horizon)
}

package forecast

import (
	"bytes"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyFrame(t *testing.T, values []float64) *series.Frame {
	t.Helper()
	start, err := days.Parse("2024-01-01")
	require.NoError(t, err)
	f := series.NewFrame(days.Range(start, start.AddDate(0, 0, len(values)-1)))
	require.NoError(t, f.SetColumn(series.Consumption, values))
	require.NoError(t, f.SetColumn(series.Production, values))
	return f
}

func weekly(n int, noise float64) []float64 {
	rng := rand.New(rand.NewPCG(3, 3))
	values := make([]float64, n)
	for i := range values {
		values[i] = 100 + 20*math.Sin(float64(i)*2*math.Pi/7) + noise*rng.NormFloat64()
	}
	return values
}

func TestPredictBeforeFitIsStateError(t *testing.T) {
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)

	_, err = m.Predict(3, nil)
	var se *types.StateError
	assert.True(t, errors.As(err, &se))
}

func TestFitEmptyHistoryIsConfigurationError(t *testing.T) {
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)

	var ce *types.ConfigurationError
	assert.True(t, errors.As(m.Fit(series.NewFrame(nil), series.Consumption, nil), &ce))
	assert.True(t, errors.As(m.Fit(nil, series.Consumption, nil), &ce))
}

func TestInvalidHorizon(t *testing.T) {
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, []float64{1, 2, 3}), series.Consumption, nil))

	for _, h := range []int{0, -1} {
		_, err := m.Predict(h, nil)
		var ce *types.ConfigurationError
		assert.True(t, errors.As(err, &ce), "horizon %d", h)
	}
}

func TestPreferences(t *testing.T) {
	m, err := NewConsumptionModel([]string{"seasonal", "gradient_boosted"})
	require.NoError(t, err)
	assert.Equal(t, []Algorithm{Seasonal, GradientBoosted, Baseline}, m.Preferences())

	m, err = NewConsumptionModel([]string{"gradient_boosted", "seasonal"}, WithRegistry(Registry{Seasonal: newSeasonal}))
	require.NoError(t, err)
	assert.Equal(t, []Algorithm{Seasonal, Baseline}, m.Preferences(), "unavailable algorithms are dropped")

	var ce *types.ConfigurationError
	_, err = NewConsumptionModel([]string{"prophet"})
	assert.True(t, errors.As(err, &ce))
	_, err = NewConsumptionModel([]string{"seasonal", "Seasonal"})
	assert.True(t, errors.As(err, &ce))
}

func TestEmptyPreferencesMeanBaselineOnly(t *testing.T) {
	for _, prefs := range [][]string{nil, {}} {
		m, err := NewProductionModel(prefs)
		require.NoError(t, err)
		assert.Equal(t, []Algorithm{Baseline}, m.Preferences())
	}
}

func TestBaselineConsumptionLevelAndTrend(t *testing.T) {
	values := make([]float64, 14)
	for i := range values {
		if i < 7 {
			values[i] = 10
		} else {
			values[i] = 20
		}
	}
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, values), series.Consumption, nil))

	got, err := m.Predict(3, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{15, 25, 35}, got)
	assert.Equal(t, Baseline, m.Algorithm())
}

func TestBaselineNoTrendBelowFourteenObservations(t *testing.T) {
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}), series.Consumption, nil))

	got, err := m.Predict(2, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7}, got)
}

func TestBaselineUsesTrailingThirty(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		if i >= 10 {
			values[i] = 5
		} else {
			values[i] = 1000
		}
	}
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, values), series.Consumption, nil))
	got, err := m.Predict(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, got)
}

func TestBaselineConsumptionIsDeterministic(t *testing.T) {
	h := historyFrame(t, weekly(60, 5))
	predict := func() []float64 {
		m, err := NewConsumptionModel(nil)
		require.NoError(t, err)
		require.NoError(t, m.Fit(h, series.Consumption, nil))
		got, err := m.Predict(10, nil)
		require.NoError(t, err)
		return got
	}
	assert.Equal(t, predict(), predict())
}

func TestBaselineProductionIsNonNegative(t *testing.T) {
	// Mean close to zero with a large spread forces negative draws.
	values := []float64{0, 50, 0, 0, 60, 0, 0, 0, 40, 0}
	for seed := uint64(0); seed < 20; seed++ {
		m, err := NewProductionModel(nil, WithSeed(seed))
		require.NoError(t, err)
		require.NoError(t, m.Fit(historyFrame(t, values), series.Production, nil))
		got, err := m.Predict(50, nil)
		require.NoError(t, err)
		for _, v := range got {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestProductionSeedIsReproducible(t *testing.T) {
	h := historyFrame(t, weekly(40, 10))
	run := func() []float64 {
		m, err := NewProductionModel(nil, WithSeed(9))
		require.NoError(t, err)
		require.NoError(t, m.Fit(h, series.Production, nil))
		got, err := m.Predict(5, nil)
		require.NoError(t, err)
		return got
	}
	assert.Equal(t, run(), run())
}

func TestSeasonalFollowsWeeklyPattern(t *testing.T) {
	values := weekly(70, 0)
	m, err := NewConsumptionModel([]string{"seasonal"})
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, values), series.Consumption, nil))
	assert.Equal(t, Seasonal, m.Algorithm())

	got, err := m.Predict(7, nil)
	require.NoError(t, err)
	for i, v := range got {
		want := 100 + 20*math.Sin(float64(70+i)*2*math.Pi/7)
		assert.InDelta(t, want, v, 3.0, "step %d", i)
	}
}

func TestSeasonalDowngradesOnShortHistory(t *testing.T) {
	var fallbacks []Algorithm
	m, err := NewConsumptionModel([]string{"seasonal"}, WithFallbackObserver(func(k Kind, a Algorithm, err error) {
		fallbacks = append(fallbacks, a)
	}))
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, []float64{1, 2, 3, 4, 5}), series.Consumption, nil))
	assert.Equal(t, Baseline, m.Algorithm())
	assert.Equal(t, []Algorithm{Seasonal}, fallbacks)
}

func TestGradientBoostedLearnsWeeklyPattern(t *testing.T) {
	values := weekly(120, 1)
	m, err := NewConsumptionModel([]string{"gradient_boosted"})
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, values), series.Consumption, nil))
	assert.Equal(t, GradientBoosted, m.Algorithm())

	got, err := m.Predict(7, nil)
	require.NoError(t, err)
	require.Len(t, got, 7)
	var mae float64
	for i, v := range got {
		mae += math.Abs(v-(100+20*math.Sin(float64(120+i)*2*math.Pi/7))) / 7
	}
	// A flat forecast at the mean would be off by about 12.7 on average.
	assert.Less(t, mae, 8.0)
}

func TestGradientBoostedUsesExogenous(t *testing.T) {
	n := 80
	ghi := make([]float64, n)
	prod := make([]float64, n)
	rng := rand.New(rand.NewPCG(5, 5))
	for i := range ghi {
		ghi[i] = 100 + 800*rng.Float64()
		prod[i] = ghi[i] / 10
	}
	h := historyFrame(t, prod)
	require.NoError(t, h.SetColumn(series.Production, prod))
	require.NoError(t, h.SetColumn(series.Irradiance, ghi))

	m, err := NewProductionModel([]string{"gradient_boosted"})
	require.NoError(t, err)
	require.NoError(t, m.Fit(h, series.Production, []string{series.Irradiance}))

	future := series.NewFrame(m.Timestamps(2))
	require.NoError(t, future.SetColumn(series.Irradiance, []float64{250, 750}))
	got, err := m.Predict(2, future)
	require.NoError(t, err)
	assert.Less(t, got[0], got[1])
	for _, v := range got {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestBoostedTrainingRowsMatchForecastRows(t *testing.T) {
	values := weekly(45, 3)
	h := historyFrame(t, values)
	irr := make([]float64, len(values))
	for i := range irr {
		irr[i] = float64(200 + i)
	}
	hist := history{
		timestamps: h.Timestamps(),
		values:     values,
		exog:       map[string][]float64{"irradiance": irr},
	}
	b := &boosted{kind: KindConsumption, exog: []string{"irradiance"}}

	rows, ys, err := b.trainingRows(hist)
	require.NoError(t, err)
	first := 14
	require.Len(t, rows, len(values)-first)
	require.Len(t, ys, len(values)-first)

	for i, row := range rows {
		day := first + i
		want := b.row(values[:day], hist.timestamps[day], map[string]float64{"irradiance": irr[day]})
		assert.Equal(t, want, row, "day %d", day)
		assert.Equal(t, values[day], ys[i])
	}
}

func TestUnknownExogenousColumn(t *testing.T) {
	m, err := NewProductionModel(nil)
	require.NoError(t, err)
	var ce *types.ConfigurationError
	assert.True(t, errors.As(m.Fit(historyFrame(t, []float64{1}), series.Production, []string{"nope"}), &ce))
}

func TestScratchSharesNoState(t *testing.T) {
	m, err := NewConsumptionModel([]string{"seasonal"})
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, weekly(30, 1)), series.Consumption, nil))

	s := m.Scratch()
	assert.False(t, s.IsFitted())
	assert.Equal(t, m.Preferences(), s.Preferences())

	require.NoError(t, s.Fit(historyFrame(t, []float64{1, 2}), series.Consumption, nil))
	assert.Equal(t, Seasonal, m.Algorithm())
	assert.Equal(t, Baseline, s.Algorithm())
}

func TestPredictTimestampsStartAfterHistory(t *testing.T) {
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	h := historyFrame(t, []float64{1, 2, 3})
	require.NoError(t, m.Fit(h, series.Consumption, nil))
	ts := m.Timestamps(2)
	assert.Equal(t, "2024-01-04", days.Format(ts[0]))
	assert.Equal(t, "2024-01-05", days.Format(ts[1]))
}

func TestSaveLoad(t *testing.T) {
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, weekly(30, 2)), series.Consumption, nil))
	want, err := m.Predict(5, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	restored, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	require.NoError(t, restored.Load(&buf))
	got, err := restored.Predict(5, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, m.Timestamps(5), restored.Timestamps(5))
}

func TestRestorePicksTheSavedKind(t *testing.T) {
	m, err := NewProductionModel(nil, WithSeed(7))
	require.NoError(t, err)
	require.NoError(t, m.Fit(historyFrame(t, weekly(30, 2)), series.Production, nil))

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	restored, err := Restore(bytes.NewReader(buf.Bytes()), WithSeed(7))
	require.NoError(t, err)
	assert.Equal(t, KindProduction, restored.Kind())
	assert.Equal(t, series.Production, restored.Target())
	assert.True(t, restored.IsFitted())
	assert.Equal(t, m.Timestamps(3), restored.Timestamps(3))

	consumption, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	var ce *types.ConfigurationError
	assert.True(t, errors.As(consumption.Load(bytes.NewReader(buf.Bytes())), &ce))
}

func TestRestoreRejectsUnknownKind(t *testing.T) {
	_, err := Restore(bytes.NewReader([]byte(`{"kind":"wind","algorithm":"baseline"}`)))
	var ce *types.ConfigurationError
	assert.True(t, errors.As(err, &ce))

	_, err = Restore(bytes.NewReader([]byte(`{"kind":"production","algorithm":"seasonal"}`)))
	assert.True(t, errors.As(err, &ce))
}

func TestSaveUnfitted(t *testing.T) {
	m, err := NewConsumptionModel(nil)
	require.NoError(t, err)
	var se *types.StateError
	assert.True(t, errors.As(m.Save(&bytes.Buffer{}), &se))
}

func TestAlgorithmNames(t *testing.T) {
	for a := Baseline; a < algorithmCount; a++ {
		parsed, err := ParseAlgorithm(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
		assert.True(t, a.IsValid())
	}
	assert.False(t, algorithmCount.IsValid())
}

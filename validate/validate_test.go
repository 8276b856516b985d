package validate

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/forecast"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, values []float64) *series.Frame {
	t.Helper()
	start, err := days.Parse("2024-03-01")
	require.NoError(t, err)
	f := series.NewFrame(days.Range(start, days.Add(start, len(values)-1)))
	require.NoError(t, f.SetColumn(series.Consumption, values))
	return f
}

func noisy(n int) []float64 {
	rng := rand.New(rand.NewPCG(1, 2))
	values := make([]float64, n)
	for i := range values {
		values[i] = 50 + 10*math.Sin(float64(i)*2*math.Pi/7) + rng.NormFloat64()
	}
	return values
}

func TestHoldoutSize(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 0},
		{3, 0},
		{4, 1},
		{12, 3},
		{28, 7},
		{365, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HoldoutSize(tt.n), "n=%d", tt.n)
	}
}

func TestValidateSkipsShortHistory(t *testing.T) {
	m, err := forecast.NewConsumptionModel(nil)
	require.NoError(t, err)

	res, err := Validate(m, frame(t, []float64{1, 2, 3}), series.Consumption, nil)
	require.NoError(t, err)
	assert.False(t, res.IsValid())
}

func TestValidateDoesNotTouchModel(t *testing.T) {
	m, err := forecast.NewConsumptionModel(nil)
	require.NoError(t, err)

	res, err := Validate(m, frame(t, noisy(40)), series.Consumption, nil)
	require.NoError(t, err)
	require.True(t, res.IsValid())
	assert.Equal(t, 7, res.Value().N)
	assert.False(t, m.IsFitted())
}

func TestValidateUnknownTargetIsValidationError(t *testing.T) {
	m, err := forecast.NewConsumptionModel(nil)
	require.NoError(t, err)

	_, err = Validate(m, frame(t, noisy(20)), "nope", nil)
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "nope", ve.Target)
}

func TestScore(t *testing.T) {
	m, err := Score([]float64{1, 2, 3, 4}, []float64{2, 2, 3, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, m.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/4), m.RMSE, 1e-12)
	assert.InDelta(t, (1.0+0+0+0.5)/4*100, m.MAPE, 1e-6)
	assert.InDelta(t, 1-5/5.0, m.R2, 1e-12)
	assert.Equal(t, 4, m.N)
}

func TestScorePerfect(t *testing.T) {
	m, err := Score([]float64{3, 5, 7}, []float64{3, 5, 7})
	require.NoError(t, err)
	assert.Equal(t, Metrics{R2: 1, N: 3}, m)
}

func TestScoreConstantActualHasZeroR2(t *testing.T) {
	m, err := Score([]float64{5, 5, 5}, []float64{4, 6, 5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.R2)
}

func TestScoreZeroActualStaysFinite(t *testing.T) {
	m, err := Score([]float64{0, 0}, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.MAPE)
}

func TestScoreTruncatesToShorter(t *testing.T) {
	m, err := Score([]float64{1, 2, 3}, []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, m.N)
	assert.Equal(t, 0.0, m.MAE)

	_, err = Score(nil, []float64{1})
	assert.Error(t, err)
}

func TestBacktest(t *testing.T) {
	m, err := forecast.NewConsumptionModel(nil)
	require.NoError(t, err)
	h := frame(t, noisy(30))

	points, err := Backtest(m, h, series.Consumption, nil, 20, 3)
	require.NoError(t, err)
	require.Len(t, points, 10)
	assert.Equal(t, h.Timestamps()[20], points[0].Timestamp)
	assert.Equal(t, h.Timestamps()[29], points[9].Timestamp)

	score, err := ScorePoints(points)
	require.NoError(t, err)
	assert.Equal(t, 10, score.N)
	assert.False(t, m.IsFitted())
}

func TestBacktestInvalidWindow(t *testing.T) {
	m, err := forecast.NewConsumptionModel(nil)
	require.NoError(t, err)
	var ce *types.ConfigurationError
	_, err = Backtest(m, frame(t, noisy(10)), series.Consumption, nil, 0, 1)
	assert.True(t, errors.As(err, &ce))
}

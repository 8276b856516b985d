package features

import (
	"math"
	"testing"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, n int) *series.Frame {
	start, err := days.Parse("2024-01-01")
	require.NoError(t, err)
	f := series.NewFrame(days.Range(start, start.AddDate(0, 0, n-1)))
	values := make([]float64, n)
	ghi := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
		ghi[i] = 500
	}
	require.NoError(t, f.SetColumn(series.Consumption, values))
	require.NoError(t, f.SetColumn(series.Irradiance, ghi))
	require.NoError(t, f.Fill())
	return f
}

func TestLag(t *testing.T) {
	got := Lag([]float64{1, 2, 3, 4}, 2)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, []float64{1, 2}, got[2:])
}

func TestRollingMinPeriodsOne(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, []float64{1, 1.5, 2, 3, 4}, Rolling(values, 3, Mean))
	assert.Equal(t, []float64{1, 1, 1, 2, 3}, Rolling(values, 3, Min))
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, Rolling(values, 3, Max))

	std := Rolling(values, 3, Std)
	assert.Equal(t, 0.0, std[0])
	assert.InDelta(t, math.Sqrt(0.5), std[1], 1e-12)
	assert.InDelta(t, 1.0, std[4], 1e-12)
}

func TestEngineerPreservesRowsAndAvoidsLookAhead(t *testing.T) {
	f := frame(t, 40)
	res, err := Engineer(f, series.Consumption, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, f.Len(), res.Len())
	assert.Equal(t, f.Timestamps(), res.Timestamps())

	lag7, ok := res.Column(LagName(series.Consumption, 7))
	require.True(t, ok)
	for i := 0; i < 7; i++ {
		assert.True(t, math.IsNaN(lag7[i]), "row %d has no past", i)
	}
	assert.Equal(t, 3.0, lag7[9])

	// Changing the future must not change earlier feature rows.
	future := f.Clone()
	c, _ := future.Column(series.Consumption)
	c[39] = 1e6
	res2, err := Engineer(future, series.Consumption, DefaultOptions())
	require.NoError(t, err)
	for _, name := range res.Names() {
		a, _ := res.Column(name)
		b, _ := res2.Column(name)
		for i := 0; i < 39; i++ {
			if math.IsNaN(a[i]) {
				assert.True(t, math.IsNaN(b[i]))
				continue
			}
			assert.Equal(t, a[i], b[i], "%s row %d", name, i)
		}
	}
}

func TestEngineerAddsExpectedColumns(t *testing.T) {
	res, err := Engineer(frame(t, 10), series.Consumption, DefaultOptions())
	require.NoError(t, err)

	for _, name := range []string{
		"consumption_kwh_lag24",
		"consumption_kwh_rolling30_mean",
		"consumption_kwh_rolling7_std",
		"day_of_week_sin",
		"clearness_index",
		"ghi_wm2_lag1",
		"ghi_wm2_rolling7_mean",
	} {
		assert.True(t, res.Has(name), name)
	}
	assert.False(t, res.Has("temp_c_lag1"), "no temperature column in frame")

	ci, _ := res.Column("clearness_index")
	assert.Equal(t, 0.5, ci[0])
}

func TestCalendarValues(t *testing.T) {
	d, _ := days.Parse("2024-03-31") // Sunday, month end
	v := CalendarValues(d)
	require.Len(t, v, len(CalendarNames))
	assert.Equal(t, 6.0, v[0])
	assert.Equal(t, 3.0, v[1])
	assert.Equal(t, 31.0, v[2])
	assert.Equal(t, 1.0, v[4])
	assert.Equal(t, 0.0, v[5])
	assert.Equal(t, 1.0, v[6])
}

func TestUnknownColumn(t *testing.T) {
	_, err := WithLags(frame(t, 3), "missing", []int{1})
	assert.Error(t, err)
	_, err = WithRolling(frame(t, 3), series.Consumption, []int{0}, []Stat{Mean})
	assert.Error(t, err)
}

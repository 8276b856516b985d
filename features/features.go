package features

import (
	"fmt"
	"math"
	"time"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
	"gonum.org/v1/gonum/stat"
)

type Stat string

const (
	Mean Stat = "mean"
	Std  Stat = "std"
	Min  Stat = "min"
	Max  Stat = "max"
)

type Options struct {
	Lags     []int
	Windows  []int
	Stats    []Stat
	Calendar bool
	Climate  bool
}

func DefaultOptions() Options {
	return Options{
		Lags:     []int{1, 2, 3, 7, 14, 24},
		Windows:  []int{7, 14, 30},
		Stats:    []Stat{Mean, Std},
		Calendar: true,
		Climate:  true,
	}
}

// CalendarNames lists the calendar columns in the order CalendarValues returns them.
var CalendarNames = []string{
	"day_of_week", "month", "day_of_month", "week_of_year",
	"is_weekend", "is_month_start", "is_month_end",
	"day_of_week_sin", "day_of_week_cos", "month_sin", "month_cos",
}

func LagName(column string, k int) string {
	return fmt.Sprintf("%s_lag%d", column, k)
}

func RollingName(column string, w int, s Stat) string {
	return fmt.Sprintf("%s_rolling%d_%s", column, w, s)
}

// Lag shifts values k rows forward. The first k rows have no past and are NaN.
func Lag(values []float64, k int) []float64 {
	res := make([]float64, len(values))
	for i := range res {
		if i-k < 0 || i-k >= len(values) {
			res[i] = math.NaN()
		} else {
			res[i] = values[i-k]
		}
	}
	return res
}

// Rolling computes s over the trailing window ending at each row, using
// whatever is available at the start (min periods of one). NaNs are skipped.
func Rolling(values []float64, w int, s Stat) []float64 {
	res := make([]float64, len(values))
	for i := range res {
		res[i] = Aggregate(values[max(0, i-w+1):i+1], s)
	}
	return res
}

// Aggregate reduces a window to one statistic. The standard deviation of a
// single observation is 0; an empty window gives NaN.
func Aggregate(window []float64, s Stat) float64 {
	xs := make([]float64, 0, len(window))
	for _, v := range window {
		if !math.IsNaN(v) {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return math.NaN()
	}
	switch s {
	case Mean:
		return stat.Mean(xs, nil)
	case Std:
		if len(xs) < 2 {
			return 0
		}
		return stat.StdDev(xs, nil)
	case Min:
		m := xs[0]
		for _, v := range xs[1:] {
			m = math.Min(m, v)
		}
		return m
	case Max:
		m := xs[0]
		for _, v := range xs[1:] {
			m = math.Max(m, v)
		}
		return m
	default:
		return math.NaN()
	}
}

// CalendarValues returns the calendar features of one day.
func CalendarValues(t time.Time) []float64 {
	dow := float64(days.DayOfWeek(t))
	month := float64(t.Month())
	return []float64{
		dow,
		month,
		float64(t.Day()),
		float64(days.WeekOfYear(t)),
		boolToFloat(days.IsWeekend(t)),
		boolToFloat(days.IsMonthStart(t)),
		boolToFloat(days.IsMonthEnd(t)),
		math.Sin(2 * math.Pi * dow / 7),
		math.Cos(2 * math.Pi * dow / 7),
		math.Sin(2 * math.Pi * month / 12),
		math.Cos(2 * math.Pi * month / 12),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// WithLags adds <column>_lag<k> for every k.
func WithLags(f *series.Frame, column string, lags []int) (*series.Frame, error) {
	values, ok := f.Column(column)
	if !ok {
		return nil, fmt.Errorf("unknown column %s", column)
	}
	res := f.Clone()
	for _, k := range lags {
		if k <= 0 {
			return nil, fmt.Errorf("lag must be positive, got %d", k)
		}
		if err := res.SetColumn(LagName(column, k), Lag(values, k)); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// WithRolling adds <column>_rolling<w>_<stat> for every window and statistic.
func WithRolling(f *series.Frame, column string, windows []int, stats []Stat) (*series.Frame, error) {
	values, ok := f.Column(column)
	if !ok {
		return nil, fmt.Errorf("unknown column %s", column)
	}
	res := f.Clone()
	for _, w := range windows {
		if w <= 0 {
			return nil, fmt.Errorf("window must be positive, got %d", w)
		}
		for _, s := range stats {
			if err := res.SetColumn(RollingName(column, w, s), Rolling(values, w, s)); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func WithCalendar(f *series.Frame) (*series.Frame, error) {
	res := f.Clone()
	cols := make([][]float64, len(CalendarNames))
	for i := range cols {
		cols[i] = make([]float64, f.Len())
	}
	for row, t := range f.Timestamps() {
		for i, v := range CalendarValues(t) {
			cols[i][row] = v
		}
	}
	for i, name := range CalendarNames {
		if err := res.SetColumn(name, cols[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// WithClimate derives irradiance and temperature features for the columns
// that are present; a frame without climate data is returned unchanged.
func WithClimate(f *series.Frame) (*series.Frame, error) {
	res := f.Clone()
	if ghi, ok := f.Column(series.Irradiance); ok {
		clearness := make([]float64, len(ghi))
		for i, v := range ghi {
			clearness[i] = v / 1000
		}
		if err := res.SetColumn("clearness_index", clearness); err != nil {
			return nil, err
		}
		if err := res.SetColumn(LagName(series.Irradiance, 1), Lag(ghi, 1)); err != nil {
			return nil, err
		}
		if err := res.SetColumn(RollingName(series.Irradiance, 7, Mean), Rolling(ghi, 7, Mean)); err != nil {
			return nil, err
		}
	}
	if temp, ok := f.Column(series.Temperature); ok {
		if err := res.SetColumn(LagName(series.Temperature, 1), Lag(temp, 1)); err != nil {
			return nil, err
		}
		if err := res.SetColumn(RollingName(series.Temperature, 7, Mean), Rolling(temp, 7, Mean)); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Engineer applies every enabled transform for target. Row count and order
// are preserved and no row sees values from a later row.
func Engineer(f *series.Frame, target string, opts Options) (*series.Frame, error) {
	res, err := WithLags(f, target, opts.Lags)
	if err != nil {
		return nil, err
	}
	if res, err = WithRolling(res, target, opts.Windows, opts.Stats); err != nil {
		return nil, err
	}
	if opts.Calendar {
		if res, err = WithCalendar(res); err != nil {
			return nil, err
		}
	}
	if opts.Climate {
		if res, err = WithClimate(res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

package source

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
)

// Daily averages sub-daily observations into one value per day.
type Daily struct {
	sums   map[time.Time]float64
	counts map[time.Time]int
}

func NewDaily() *Daily {
	return &Daily{sums: make(map[time.Time]float64), counts: make(map[time.Time]int)}
}

// Add ignores observations outside [start, end] and non-finite values.
func (d *Daily) Add(t time.Time, v float64, start, end time.Time) {
	day := days.Truncate(t)
	if day.Before(days.Truncate(start)) || day.After(days.Truncate(end)) {
		return
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	d.sums[day] += v
	d.counts[day]++
}

func (d *Daily) Len() int {
	return len(d.sums)
}

// Series returns the daily means in ascending order, passed through scale.
func (d *Daily) Series(quantity, origin string, scale func(float64) float64) series.Series {
	s := series.Series{Quantity: quantity, Samples: make([]series.Sample, 0, len(d.sums))}
	for _, day := range slices.SortedFunc(maps.Keys(d.sums), func(a, b time.Time) int { return a.Compare(b) }) {
		v := d.sums[day] / float64(d.counts[day])
		if scale != nil {
			v = scale(v)
		}
		s.Samples = append(s.Samples, series.Sample{Timestamp: day, Value: v, Origin: origin})
	}
	return s
}

// Float reads a number that upstream APIs encode as a JSON number, a numeric
// string or a string with a decimal comma. nil and blanks are not numbers.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		x = strings.TrimSpace(strings.ReplaceAll(x, ",", "."))
		if x == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Time reads a timestamp using the first layout that matches.
func Time(v any, layouts ...string) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package series

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/types"
)

// Frame is a set of named columns sharing one strictly ascending daily index.
type Frame struct {
	timestamps []time.Time
	names      []string
	columns    map[string][]float64
	filled     bool
}

func NewFrame(timestamps []time.Time) *Frame {
	return &Frame{
		timestamps: slices.Clone(timestamps),
		columns:    make(map[string][]float64),
	}
}

func (f *Frame) Len() int {
	return len(f.timestamps)
}

func (f *Frame) Timestamps() []time.Time {
	return f.timestamps
}

// Last returns the last timestamp, or the zero time for an empty frame.
func (f *Frame) Last() time.Time {
	if len(f.timestamps) == 0 {
		return time.Time{}
	}
	return f.timestamps[len(f.timestamps)-1]
}

func (f *Frame) Names() []string {
	return slices.Clone(f.names)
}

func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.columns[name]
	return c, ok
}

// SetColumn adds or replaces a column. The values must match the index length.
func (f *Frame) SetColumn(name string, values []float64) error {
	if len(values) != len(f.timestamps) {
		return types.NewConfigurationError(name, "column has %d values, frame has %d rows", len(values), len(f.timestamps))
	}
	if _, ok := f.columns[name]; !ok {
		f.names = append(f.names, name)
	}
	f.columns[name] = values
	return nil
}

func (f *Frame) Filled() bool {
	return f.filled
}

// Fill forward-fills and then backward-fills every column. A frame is filled
// exactly once; later gaps (e.g. leading lag rows) must stay as they are.
func (f *Frame) Fill() error {
	if f.filled {
		return types.NewStateError("fill", "frame has already been filled")
	}
	for _, name := range f.names {
		fill(f.columns[name])
	}
	f.filled = true
	return nil
}

func fill(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
		} else {
			next = values[i]
		}
	}
}

// Slice returns rows [from, to) as a new frame sharing nothing with f.
func (f *Frame) Slice(from, to int) *Frame {
	from = max(0, min(from, f.Len()))
	to = max(from, min(to, f.Len()))
	res := NewFrame(f.timestamps[from:to])
	for _, name := range f.names {
		res.names = append(res.names, name)
		res.columns[name] = slices.Clone(f.columns[name][from:to])
	}
	res.filled = f.filled
	return res
}

func (f *Frame) Head(n int) *Frame {
	return f.Slice(0, n)
}

func (f *Frame) Tail(n int) *Frame {
	return f.Slice(f.Len()-n, f.Len())
}

func (f *Frame) Clone() *Frame {
	return f.Slice(0, f.Len())
}

// Select returns a frame with only the named columns that exist in f.
func (f *Frame) Select(names ...string) *Frame {
	res := NewFrame(f.timestamps)
	for _, name := range names {
		if c, ok := f.columns[name]; ok {
			res.names = append(res.names, name)
			res.columns[name] = slices.Clone(c)
		}
	}
	res.filled = f.filled
	return res
}

// Align reindexes every series onto the full daily range [start, end].
// Days without a sample are NaN. When a series repeats a day, the first
// sample wins. Later series with a quantity already present are ignored.
func Align(start, end time.Time, all ...Series) (*Frame, error) {
	index := days.Range(start, end)
	if len(index) == 0 {
		return nil, types.NewConfigurationError("end", "end date %s is before start date %s", days.Format(end), days.Format(start))
	}
	pos := make(map[time.Time]int, len(index))
	for i, d := range index {
		pos[d] = i
	}

	f := NewFrame(index)
	for _, s := range all {
		if f.Has(s.Quantity) {
			continue
		}
		values := make([]float64, len(index))
		seen := make([]bool, len(index))
		for i := range values {
			values[i] = math.NaN()
		}
		for _, smp := range s.Samples {
			i, ok := pos[days.Truncate(smp.Timestamp)]
			if !ok || seen[i] {
				continue
			}
			seen[i] = true
			values[i] = smp.Value
		}
		if err := f.SetColumn(s.Quantity, values); err != nil {
			return nil, fmt.Errorf("failed to align %s: %w", s.Quantity, err)
		}
	}
	return f, nil
}

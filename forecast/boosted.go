package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"time"

	"github.com/angas/solarcast/features"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/slice"
	"gonum.org/v1/gonum/stat"
)

var (
	boostLags    = []int{1, 2, 3, 7, 14}
	boostWindows = []int{7, 30}
)

const (
	boostRounds       = 100
	boostLearningRate = 0.1
	boostMaxSplits    = 16
	boostMinTrainRows = 14
	boostMinLeaf      = 3
)

type stump struct {
	feature   int
	threshold float64
	left      float64
	right     float64
}

func (s stump) eval(row []float64) float64 {
	if row[s.feature] <= s.threshold {
		return s.left
	}
	return s.right
}

// boosted is a gradient boosted ensemble of regression stumps, trained on
// lags, trailing means, calendar features and exogenous columns. Multi-step
// forecasts feed each prediction back in as history.
type boosted struct {
	kind     Kind
	base     float64
	stumps   []stump
	exog     []string
	values   []float64
	lastExog map[string]float64
}

func newBoosted(kind Kind, _ *rand.Rand) estimator {
	return &boosted{kind: kind}
}

func (b *boosted) fit(h history) error {
	for _, v := range h.values {
		if math.IsNaN(v) {
			return fmt.Errorf("gradient boosting needs a gap free target")
		}
	}
	maxLag := slices.Max(boostLags)
	if len(h.values)-maxLag < boostMinTrainRows {
		return fmt.Errorf("gradient boosting needs at least %d observations, got %d", maxLag+boostMinTrainRows, len(h.values))
	}

	b.exog = b.exog[:0]
	for name := range h.exog {
		b.exog = append(b.exog, name)
	}
	sort.Strings(b.exog)
	b.lastExog = make(map[string]float64, len(b.exog))
	for _, name := range b.exog {
		col := h.exog[name]
		b.lastExog[name] = col[len(col)-1]
	}

	rows, ys, err := b.trainingRows(h)
	if err != nil {
		return err
	}

	b.base = stat.Mean(ys, nil)
	pred := make([]float64, len(ys))
	for i := range pred {
		pred[i] = b.base
	}
	resid := make([]float64, len(ys))
	b.stumps = b.stumps[:0]
	for range boostRounds {
		for i := range ys {
			resid[i] = ys[i] - pred[i]
		}
		s, ok := bestStump(rows, resid)
		if !ok {
			break
		}
		b.stumps = append(b.stumps, s)
		for i, row := range rows {
			pred[i] += boostLearningRate * s.eval(row)
		}
	}

	b.values = slices.Clone(h.values)
	return nil
}

func (b *boosted) predict(f future) ([]float64, error) {
	values := slices.Clone(b.values)
	res := make([]float64, len(f.timestamps))
	for i, t := range f.timestamps {
		exog := make(map[string]float64, len(b.exog))
		for _, name := range b.exog {
			exog[name] = b.lastExog[name]
			if col, ok := f.exog[name]; ok && i < len(col) && !math.IsNaN(col[i]) {
				exog[name] = col[i]
			}
		}
		y := b.base
		row := b.row(values, t, exog)
		for _, s := range b.stumps {
			y += boostLearningRate * s.eval(row)
		}
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("non-finite prediction at step %d", i)
		}
		res[i] = y
		values = append(values, y)
	}
	return res, nil
}

// trainingRows engineers the lag, rolling and calendar columns of the
// history and lays them out the way row does for a single day. Rolling
// columns include their own row, so day t reads them from t-1.
func (b *boosted) trainingRows(h history) ([][]float64, []float64, error) {
	const target = "target"
	f := series.NewFrame(h.timestamps)
	if err := f.SetColumn(target, h.values); err != nil {
		return nil, nil, err
	}
	eng, err := features.Engineer(f, target, features.Options{
		Lags:     boostLags,
		Windows:  boostWindows,
		Stats:    []features.Stat{features.Mean},
		Calendar: true,
	})
	if err != nil {
		return nil, nil, err
	}

	column := func(name string) []float64 {
		c, _ := eng.Column(name)
		return c
	}
	lags := slice.Map(boostLags, func(k int) []float64 { return column(features.LagName(target, k)) })
	rolling := slice.Map(boostWindows, func(w int) []float64 { return column(features.RollingName(target, w, features.Mean)) })
	calendar := slice.Map(features.CalendarNames, column)

	var rows [][]float64
	var ys []float64
	for t := slices.Max(boostLags); t < len(h.values); t++ {
		row := make([]float64, 0, len(lags)+len(rolling)+len(calendar)+len(b.exog))
		for _, c := range lags {
			row = append(row, c[t])
		}
		for _, c := range rolling {
			row = append(row, c[t-1])
		}
		for _, c := range calendar {
			row = append(row, c[t])
		}
		for _, name := range b.exog {
			row = append(row, h.exog[name][t])
		}
		rows = append(rows, row)
		ys = append(ys, h.values[t])
	}
	return rows, ys, nil
}

// row builds the feature vector for day t from the values strictly before it.
func (b *boosted) row(past []float64, t time.Time, exog map[string]float64) []float64 {
	n := len(past)
	row := make([]float64, 0, len(boostLags)+len(boostWindows)+len(features.CalendarNames)+len(b.exog))
	for _, k := range boostLags {
		row = append(row, past[n-k])
	}
	for _, w := range boostWindows {
		row = append(row, features.Aggregate(past[max(0, n-w):], features.Mean))
	}
	row = append(row, features.CalendarValues(t)...)
	for _, name := range b.exog {
		row = append(row, exog[name])
	}
	return row
}

// bestStump finds the single split that most reduces the squared error of resid.
func bestStump(rows [][]float64, resid []float64) (stump, bool) {
	best := stump{}
	bestGain := 0.0
	total := 0.0
	for _, r := range resid {
		total += r
	}
	n := float64(len(resid))

	for j := range rows[0] {
		for _, th := range candidates(rows, j) {
			var sumL, cntL float64
			for i, row := range rows {
				if row[j] <= th {
					sumL += resid[i]
					cntL++
				}
			}
			cntR := n - cntL
			if cntL < boostMinLeaf || cntR < boostMinLeaf {
				continue
			}
			sumR := total - sumL
			gain := sumL*sumL/cntL + sumR*sumR/cntR - total*total/n
			if gain > bestGain {
				bestGain = gain
				best = stump{feature: j, threshold: th, left: sumL / cntL, right: sumR / cntR}
			}
		}
	}
	return best, bestGain > 1e-12
}

// candidates returns up to boostMaxSplits quantile thresholds of feature j.
func candidates(rows [][]float64, j int) []float64 {
	vals := make([]float64, 0, len(rows))
	for _, row := range rows {
		if !math.IsNaN(row[j]) {
			vals = append(vals, row[j])
		}
	}
	slices.Sort(vals)
	vals = slices.Compact(vals)
	if len(vals) < 2 {
		return nil
	}
	if len(vals)-1 <= boostMaxSplits {
		return vals[:len(vals)-1]
	}
	res := make([]float64, 0, boostMaxSplits)
	for k := 1; k <= boostMaxSplits; k++ {
		res = append(res, vals[k*(len(vals)-1)/(boostMaxSplits+1)])
	}
	return slices.Compact(res)
}

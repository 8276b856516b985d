package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/angas/solarcast/forecast"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/types"
	"github.com/angas/solarcast/types/maybe"
	"gonum.org/v1/gonum/stat"
)

const (
	maxHoldout = 7
	mapeEps    = 1e-10
)

// Metrics are holdout scores of one target. MAPE is a percentage.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
	R2   float64 `json:"r2"`
	N    int     `json:"n"`
}

func (m Metrics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("mae", m.MAE),
		slog.Float64("rmse", m.RMSE),
		slog.Float64("mape", m.MAPE),
		slog.Float64("r2", m.R2),
		slog.Int("n", m.N),
	)
}

// HoldoutSize is the number of trailing rows held out of an n row history.
func HoldoutSize(n int) int {
	return max(0, min(maxHoldout, n/4))
}

// Validate scores a scratch copy of model on the tail of history. It never
// touches model itself. None is returned when the history is too short to
// hold anything out; any failure is a *types.ValidationError.
func Validate(model *forecast.Model, history *series.Frame, target string, exog []string) (res maybe.Maybe[Metrics], err error) {
	defer func() {
		if r := recover(); r != nil {
			res = maybe.None[Metrics]()
			err = &types.ValidationError{Target: target, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if history == nil {
		return maybe.None[Metrics](), nil
	}
	k := HoldoutSize(history.Len())
	if k == 0 {
		return maybe.None[Metrics](), nil
	}

	train := history.Head(history.Len() - k)
	holdout := history.Tail(k)

	scratch := model.Scratch()
	if err := scratch.Fit(train, target, exog); err != nil {
		return maybe.None[Metrics](), &types.ValidationError{Target: target, Err: err}
	}
	predicted, err := scratch.Predict(k, holdout)
	if err != nil {
		return maybe.None[Metrics](), &types.ValidationError{Target: target, Err: err}
	}
	actual, _ := holdout.Column(target)

	m, err := Score(actual, predicted)
	if err != nil {
		return maybe.None[Metrics](), &types.ValidationError{Target: target, Err: err}
	}
	return maybe.Some(m), nil
}

// Score compares predicted with actual over their common length.
func Score(actual, predicted []float64) (Metrics, error) {
	n := min(len(actual), len(predicted))
	if n == 0 {
		return Metrics{}, errors.New("nothing to score")
	}
	actual, predicted = actual[:n], predicted[:n]

	var absSum, sqSum, pctSum float64
	for i := range n {
		diff := actual[i] - predicted[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		pctSum += math.Abs(diff / (actual[i] + mapeEps))
	}

	m := Metrics{
		MAE:  absSum / float64(n),
		RMSE: math.Sqrt(sqSum / float64(n)),
		MAPE: pctSum / float64(n) * 100,
		N:    n,
	}

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, y := range actual {
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot > 0 {
		m.R2 = 1 - sqSum/ssTot
	}

	for _, v := range []float64{m.MAE, m.RMSE, m.MAPE, m.R2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Metrics{}, fmt.Errorf("non-finite score %v", v)
		}
	}
	return m, nil
}

package validate

import (
	"time"

	"github.com/angas/solarcast/forecast"
	"github.com/angas/solarcast/series"
	"github.com/angas/solarcast/types"
)

// Point is one backtest forecast next to what actually happened.
type Point struct {
	Timestamp time.Time
	Actual    float64
	Predicted float64
}

// Backtest refits a scratch copy of model on an expanding window. The first
// window has initial rows; each round forecasts the next step rows and then
// grows the window by step.
func Backtest(model *forecast.Model, history *series.Frame, target string, exog []string, initial, step int) ([]Point, error) {
	if initial <= 0 || step <= 0 {
		return nil, types.NewConfigurationError("backtest", "initial and step must be > 0, got %d and %d", initial, step)
	}
	actual, ok := history.Column(target)
	if !ok {
		return nil, types.NewConfigurationError("target", "unknown column %s", target)
	}

	var res []Point
	stamps := history.Timestamps()
	for end := initial; end < history.Len(); end += step {
		horizon := min(step, history.Len()-end)
		scratch := model.Scratch()
		if err := scratch.Fit(history.Head(end), target, exog); err != nil {
			return nil, err
		}
		predicted, err := scratch.Predict(horizon, history.Slice(end, end+horizon))
		if err != nil {
			return nil, err
		}
		for i, p := range predicted {
			res = append(res, Point{Timestamp: stamps[end+i], Actual: actual[end+i], Predicted: p})
		}
	}
	return res, nil
}

// ScorePoints scores a backtest as a whole.
func ScorePoints(points []Point) (Metrics, error) {
	actual := make([]float64, len(points))
	predicted := make([]float64, len(points))
	for i, p := range points {
		actual[i] = p.Actual
		predicted[i] = p.Predicted
	}
	return Score(actual, predicted)
}

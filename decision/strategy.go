package decision

import (
	"fmt"

	"github.com/angas/solarcast/convert"
	"github.com/angas/solarcast/types"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Params of the threshold strategy. PriceThreshold is in R$/kWh.
type Params struct {
	BufferKWh      float64 `mapstructure:"buffer_kwh" json:"buffer_kwh" default:"1.0" validate:"gte=0"`
	PriceThreshold float64 `mapstructure:"price_threshold" json:"price_threshold" default:"0.05" validate:"gte=0"`
}

func DefaultParams() Params {
	var p Params
	if err := defaults.Set(&p); err != nil {
		panic(fmt.Sprintf("decision defaults: %v", err))
	}
	return p
}

// Advice is the threshold strategy's suggestion for one period. Favorable
// tells whether the spot price makes the action attractive; it never changes
// the action itself.
type Advice struct {
	Action    Action `json:"action"`
	Favorable bool   `json:"favorable"`
}

type ThresholdStrategy struct {
	params Params
}

func NewThresholdStrategy(params Params) (*ThresholdStrategy, error) {
	if err := validate.Struct(params); err != nil {
		return nil, types.NewConfigurationError("decision", "%v", err)
	}
	return &ThresholdStrategy{params: params}, nil
}

func (s *ThresholdStrategy) Params() Params {
	return s.params
}

// Decide advises per period from the production/consumption gap. price is
// in R$/MWh and may be nil.
func (s *ThresholdStrategy) Decide(consumption, production, price []float64) ([]Advice, error) {
	if len(consumption) != len(production) {
		return nil, types.NewConfigurationError("decision", "consumption has %d periods, production %d", len(consumption), len(production))
	}
	if price != nil && len(price) != len(consumption) {
		return nil, types.NewConfigurationError("decision", "price has %d periods, expected %d", len(price), len(consumption))
	}

	res := make([]Advice, len(consumption))
	for i := range consumption {
		gap := production[i] - consumption[i]
		var a Advice
		switch {
		case gap > s.params.BufferKWh:
			a.Action = Sell
		case gap < -s.params.BufferKWh:
			a.Action = Buy
		default:
			a.Action = Hold
		}
		if price != nil {
			unit := convert.PerMWhToPerKWh(price[i])
			switch a.Action {
			case Sell:
				a.Favorable = unit > s.params.PriceThreshold
			case Buy:
				a.Favorable = unit < s.params.PriceThreshold
			}
		}
		res[i] = a
	}
	return res, nil
}

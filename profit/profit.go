package profit

import (
	"fmt"
	"time"

	"github.com/angas/solarcast/calc"
	"github.com/angas/solarcast/decision"
	"github.com/angas/solarcast/types"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FinanceParams prices energy. SellPrice and BuyPrice are in R$/kWh and are
// used when no spot price is given or price based pricing is off.
type FinanceParams struct {
	SellPrice            float64 `mapstructure:"sell_price" json:"sell_price" default:"0.75" validate:"gte=0"`
	BuyPrice             float64 `mapstructure:"buy_price" json:"buy_price" default:"0.90" validate:"gte=0"`
	CostRate             float64 `mapstructure:"cost_rate" json:"cost_rate" default:"0.10" validate:"gte=0,lte=1"`
	PriceDiscount        float64 `mapstructure:"price_discount" json:"price_discount" default:"0.10" validate:"gte=0,lte=1"`
	PricePremium         float64 `mapstructure:"price_premium" json:"price_premium" default:"0.10" validate:"gte=0,lte=1"`
	UsePriceBasedPricing bool    `mapstructure:"use_price_based_pricing" json:"use_price_based_pricing" default:"true"`
}

func DefaultFinanceParams() FinanceParams {
	var p FinanceParams
	if err := defaults.Set(&p); err != nil {
		panic(fmt.Sprintf("finance defaults: %v", err))
	}
	return p
}

// DecisionRecord is the economic outcome of one forecast day.
type DecisionRecord struct {
	Timestamp      time.Time       `json:"timestamp"`
	ConsumptionKWh float64         `json:"consumption_kwh"`
	ProductionKWh  float64         `json:"production_kwh"`
	SurplusKWh     float64         `json:"surplus_kwh"`
	DeficitKWh     float64         `json:"deficit_kwh"`
	SellRevenueBRL float64         `json:"sell_revenue_brl"`
	BuyCostBRL     float64         `json:"buy_cost_brl"`
	FixedCostBRL   float64         `json:"fixed_cost_brl"`
	NetProfitBRL   float64         `json:"net_profit_brl"`
	Decision       decision.Action `json:"decision"`
}

type Engine struct {
	params FinanceParams
}

func New(params FinanceParams) (*Engine, error) {
	if err := validate.Struct(params); err != nil {
		return nil, types.NewConfigurationError("finance", "%v", err)
	}
	return &Engine{params: params}, nil
}

func (e *Engine) Params() FinanceParams {
	return e.params
}

// Evaluate prices every period. price is the spot price in R$/MWh and may be
// nil. Records carry no timestamps; see Stamp.
func (e *Engine) Evaluate(consumption, production, price []float64) ([]DecisionRecord, error) {
	if len(consumption) != len(production) {
		return nil, types.NewConfigurationError("finance", "consumption has %d periods, production %d", len(consumption), len(production))
	}
	if price != nil && len(price) != len(consumption) {
		return nil, types.NewConfigurationError("finance", "price has %d periods, expected %d", len(price), len(consumption))
	}

	res := make([]DecisionRecord, len(consumption))
	for i := range consumption {
		surplus := calc.Surplus(production[i], consumption[i])
		deficit := calc.Deficit(production[i], consumption[i])

		sellUnit, buyUnit := e.params.SellPrice, e.params.BuyPrice
		if price != nil && e.params.UsePriceBasedPricing {
			sellUnit = calc.SellUnitPrice(price[i], e.params.PriceDiscount)
			buyUnit = calc.BuyUnitPrice(price[i], e.params.PricePremium)
		}

		revenue := surplus * sellUnit
		cost := deficit * buyUnit
		fixed := calc.FixedCost(revenue, cost, e.params.CostRate)

		action := decision.Hold
		if surplus > 0 {
			action = decision.Sell
		} else if deficit > 0 {
			action = decision.Buy
		}

		res[i] = DecisionRecord{
			ConsumptionKWh: consumption[i],
			ProductionKWh:  production[i],
			SurplusKWh:     surplus,
			DeficitKWh:     deficit,
			SellRevenueBRL: revenue,
			BuyCostBRL:     cost,
			FixedCostBRL:   fixed,
			NetProfitBRL:   calc.NetProfit(revenue, cost, fixed),
			Decision:       action,
		}
	}
	return res, nil
}

// Stamp sets the record timestamps. It fails unless there is exactly one
// timestamp per record.
func Stamp(records []DecisionRecord, timestamps []time.Time) error {
	if len(records) != len(timestamps) {
		return types.NewConfigurationError("finance", "%d records but %d timestamps", len(records), len(timestamps))
	}
	for i := range records {
		records[i].Timestamp = timestamps[i]
	}
	return nil
}

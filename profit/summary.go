package profit

import (
	"github.com/angas/solarcast/decision"
	"github.com/shopspring/decimal"
)

// Summary totals a decision table. Money is rounded to cents, energy to
// three decimals.
type Summary struct {
	Periods        int                     `json:"periods"`
	SurplusKWh     decimal.Decimal         `json:"surplus_kwh"`
	DeficitKWh     decimal.Decimal         `json:"deficit_kwh"`
	SellRevenueBRL decimal.Decimal         `json:"sell_revenue_brl"`
	BuyCostBRL     decimal.Decimal         `json:"buy_cost_brl"`
	FixedCostBRL   decimal.Decimal         `json:"fixed_cost_brl"`
	NetProfitBRL   decimal.Decimal         `json:"net_profit_brl"`
	Actions        map[decision.Action]int `json:"actions"`
}

func Summarize(records []DecisionRecord) Summary {
	s := Summary{
		Periods: len(records),
		Actions: make(map[decision.Action]int),
	}
	for _, r := range records {
		s.SurplusKWh = s.SurplusKWh.Add(decimal.NewFromFloat(r.SurplusKWh))
		s.DeficitKWh = s.DeficitKWh.Add(decimal.NewFromFloat(r.DeficitKWh))
		s.SellRevenueBRL = s.SellRevenueBRL.Add(decimal.NewFromFloat(r.SellRevenueBRL))
		s.BuyCostBRL = s.BuyCostBRL.Add(decimal.NewFromFloat(r.BuyCostBRL))
		s.FixedCostBRL = s.FixedCostBRL.Add(decimal.NewFromFloat(r.FixedCostBRL))
		s.NetProfitBRL = s.NetProfitBRL.Add(decimal.NewFromFloat(r.NetProfitBRL))
		s.Actions[r.Decision]++
	}
	s.SurplusKWh = s.SurplusKWh.Round(3)
	s.DeficitKWh = s.DeficitKWh.Round(3)
	s.SellRevenueBRL = s.SellRevenueBRL.Round(2)
	s.BuyCostBRL = s.BuyCostBRL.Round(2)
	s.FixedCostBRL = s.FixedCostBRL.Round(2)
	s.NetProfitBRL = s.NetProfitBRL.Round(2)
	return s
}

package www

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/angas/solarcast/database"
	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/slice"
)

type runView struct {
	ID                   string          `json:"id"`
	CreatedAt            time.Time       `json:"created_at"`
	Start                string          `json:"start_date"`
	End                  string          `json:"end_date"`
	Region               string          `json:"region"`
	Submarket            string          `json:"submarket"`
	UseRealData          bool            `json:"use_real_data"`
	Horizon              int             `json:"horizon"`
	ConsumptionAlgorithm string          `json:"consumption_algorithm"`
	ProductionAlgorithm  string          `json:"production_algorithm"`
	ForwardPrice         float64         `json:"forward_price_brl_mwh"`
	SellRevenue          float64         `json:"sell_revenue_brl"`
	BuyCost              float64         `json:"buy_cost_brl"`
	FixedCost            float64         `json:"fixed_cost_brl"`
	NetProfit            float64         `json:"net_profit_brl"`
	Provenance           json.RawMessage `json:"provenance,omitempty"`
}

type decisionView struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption_kwh"`
	Production  float64 `json:"production_kwh"`
	Surplus     float64 `json:"surplus_kwh"`
	Deficit     float64 `json:"deficit_kwh"`
	SellRevenue float64 `json:"sell_revenue_brl"`
	BuyCost     float64 `json:"buy_cost_brl"`
	FixedCost   float64 `json:"fixed_cost_brl"`
	NetProfit   float64 `json:"net_profit_brl"`
	Decision    string  `json:"decision"`
	Advice      string  `json:"advice"`
	Favorable   bool    `json:"favorable"`
}

type validationView struct {
	Target string  `json:"target"`
	MAE    float64 `json:"mae"`
	RMSE   float64 `json:"rmse"`
	MAPE   float64 `json:"mape"`
	R2     float64 `json:"r2"`
	N      int     `json:"n"`
}

type runDetailView struct {
	Run        runView          `json:"run"`
	Decisions  []decisionView   `json:"decisions"`
	Validation []validationView `json:"validation"`
}

type logEntryView struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Attrs     string    `json:"attrs"`
	RunID     string    `json:"run_id,omitempty"`
}

func newRunView(r database.RunRow) runView {
	v := runView{
		ID:                   r.ID,
		CreatedAt:            r.CreatedAt,
		Start:                days.Format(r.Start),
		End:                  days.Format(r.End),
		Region:               r.Region,
		Submarket:            r.Submarket,
		UseRealData:          r.UseRealData,
		Horizon:              r.Horizon,
		ConsumptionAlgorithm: r.ConsumptionAlgorithm,
		ProductionAlgorithm:  r.ProductionAlgorithm,
		ForwardPrice:         r.ForwardPrice,
		SellRevenue:          r.SellRevenue,
		BuyCost:              r.BuyCost,
		FixedCost:            r.FixedCost,
		NetProfit:            r.NetProfit,
	}
	if json.Valid([]byte(r.Provenance)) {
		v.Provenance = json.RawMessage(r.Provenance)
	}
	return v
}

func newDecisionViews(rows []database.DecisionRow) []decisionView {
	res := make([]decisionView, 0, len(rows))
	for _, r := range rows {
		res = append(res, decisionView{
			Date:        days.Format(r.Date),
			Consumption: r.Consumption,
			Production:  r.Production,
			Surplus:     r.Surplus,
			Deficit:     r.Deficit,
			SellRevenue: r.SellRevenue,
			BuyCost:     r.BuyCost,
			FixedCost:   r.FixedCost,
			NetProfit:   r.NetProfit,
			Decision:    r.Decision,
			Advice:      r.Advice,
			Favorable:   r.Favorable,
		})
	}
	return res
}

func newValidationViews(rows []database.ValidationRow) []validationView {
	return slice.Map(rows, func(r database.ValidationRow) validationView {
		return validationView{Target: r.Target, MAE: r.MAE, RMSE: r.RMSE, MAPE: r.MAPE, R2: r.R2, N: r.N}
	})
}

func newLogEntryViews(rows []database.LogEntryRow) []logEntryView {
	return slice.Map(rows, func(r database.LogEntryRow) logEntryView {
		return logEntryView{
			Timestamp: r.Timestamp,
			Level:     slog.Level(r.Level).String(),
			Message:   r.Message,
			Attrs:     r.Attrs,
			RunID:     r.RunID,
		}
	})
}

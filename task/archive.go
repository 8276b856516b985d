package task

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/angas/solarcast/database"
	"github.com/angas/solarcast/pipeline"
	"github.com/angas/solarcast/series"
)

type RunStore interface {
	SaveRun(ctx context.Context, run database.RunRow, decisions []database.DecisionRow, validation []database.ValidationRow) error
}

// Archive is the pipeline reporter that stores every finished run.
type Archive struct {
	store RunStore
}

func NewArchive(store RunStore) *Archive {
	return &Archive{store: store}
}

func (a *Archive) Name() string {
	return "database"
}

func (a *Archive) Report(ctx context.Context, res *pipeline.Result) error {
	run, decisions, validation, err := Rows(res)
	if err != nil {
		return err
	}
	return a.store.SaveRun(ctx, run, decisions, validation)
}

// Rows flattens a result into archive rows.
func Rows(res *pipeline.Result) (database.RunRow, []database.DecisionRow, []database.ValidationRow, error) {
	provenance, err := json.Marshal(res.Provenance)
	if err != nil {
		return database.RunRow{}, nil, nil, fmt.Errorf("encoding provenance: %w", err)
	}

	id := res.RunID.String()
	s := res.Summary
	run := database.RunRow{
		ID:                   id,
		CreatedAt:            res.CreatedAt,
		Start:                res.Input.Start,
		End:                  res.Input.End,
		Region:               res.Input.Region,
		Submarket:            res.Input.Submarket,
		UseRealData:          res.Input.UseRealData,
		Horizon:              res.Input.Horizon,
		ConsumptionAlgorithm: res.Algorithms[series.Consumption],
		ProductionAlgorithm:  res.Algorithms[series.Production],
		ForwardPrice:         res.ForwardPrice,
		SellRevenue:          s.SellRevenueBRL.InexactFloat64(),
		BuyCost:              s.BuyCostBRL.InexactFloat64(),
		FixedCost:            s.FixedCostBRL.InexactFloat64(),
		NetProfit:            s.NetProfitBRL.InexactFloat64(),
		Provenance:           string(provenance),
	}

	decisions := make([]database.DecisionRow, len(res.Records))
	for i, r := range res.Records {
		decisions[i] = database.DecisionRow{
			RunID:       id,
			Date:        r.Timestamp,
			Consumption: r.ConsumptionKWh,
			Production:  r.ProductionKWh,
			Surplus:     r.SurplusKWh,
			Deficit:     r.DeficitKWh,
			SellRevenue: r.SellRevenueBRL,
			BuyCost:     r.BuyCostBRL,
			FixedCost:   r.FixedCostBRL,
			NetProfit:   r.NetProfitBRL,
			Decision:    r.Decision.String(),
		}
		if i < len(res.Advice) {
			decisions[i].Advice = res.Advice[i].Action.String()
			decisions[i].Favorable = res.Advice[i].Favorable
		}
	}

	targets := make([]string, 0, len(res.Validation))
	for target := range res.Validation {
		targets = append(targets, target)
	}
	slices.Sort(targets)

	var validation []database.ValidationRow
	for _, target := range targets {
		m := res.Validation[target]
		if !m.IsValid() {
			continue
		}
		v := m.Value()
		validation = append(validation, database.ValidationRow{
			RunID:  id,
			Target: target,
			MAE:    v.MAE,
			RMSE:   v.RMSE,
			MAPE:   v.MAPE,
			R2:     v.R2,
			N:      v.N,
		})
	}

	return run, decisions, validation, nil
}

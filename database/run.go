package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/solarcast/convert"
	"github.com/angas/solarcast/days"
)

type RunRow struct {
	ID                   string
	CreatedAt            time.Time
	Start                time.Time
	End                  time.Time
	Region               string
	Submarket            string
	UseRealData          bool
	Horizon              int
	ConsumptionAlgorithm string
	ProductionAlgorithm  string
	ForwardPrice         float64
	SellRevenue          float64
	BuyCost              float64
	FixedCost            float64
	NetProfit            float64
	Provenance           string
}

type DecisionRow struct {
	RunID       string
	Date        time.Time
	Consumption float64
	Production  float64
	Surplus     float64
	Deficit     float64
	SellRevenue float64
	BuyCost     float64
	FixedCost   float64
	NetProfit   float64
	Decision    string
	Advice      string
	Favorable   bool
}

type ValidationRow struct {
	RunID  string
	Target string
	MAE    float64
	RMSE   float64
	MAPE   float64
	R2     float64
	N      int
}

// SaveRun stores a run with its decision table and validation metrics in a
// single transaction; readers never see a partial run.
func (d *Database) SaveRun(ctx context.Context, run RunRow, decisions []DecisionRow, validation []ValidationRow) error {
	d.logger.Debug("saving run", "run", run.ID, "decisions", len(decisions))

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction for run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run (
			id,
			created_at,
			start_date,
			end_date,
			region,
			submarket,
			use_real_data,
			horizon,
			consumption_algorithm,
			production_algorithm,
			forward_price,
			sell_revenue,
			buy_cost,
			fixed_cost,
			net_profit,
			provenance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339),
		days.Format(run.Start),
		days.Format(run.End),
		run.Region,
		run.Submarket,
		run.UseRealData,
		run.Horizon,
		run.ConsumptionAlgorithm,
		run.ProductionAlgorithm,
		convert.TwoDecimals(run.ForwardPrice),
		convert.TwoDecimals(run.SellRevenue),
		convert.TwoDecimals(run.BuyCost),
		convert.TwoDecimals(run.FixedCost),
		convert.TwoDecimals(run.NetProfit),
		run.Provenance,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}

	for _, row := range decisions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decision (
				run_id,
				date,
				consumption,
				production,
				surplus,
				deficit,
				sell_revenue,
				buy_cost,
				fixed_cost,
				net_profit,
				decision,
				advice,
				favorable
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			days.Format(row.Date),
			row.Consumption,
			row.Production,
			row.Surplus,
			row.Deficit,
			row.SellRevenue,
			row.BuyCost,
			row.FixedCost,
			row.NetProfit,
			row.Decision,
			row.Advice,
			row.Favorable,
		)
		if err != nil {
			return fmt.Errorf("saving decision %s of run %s: %w", days.Format(row.Date), run.ID, err)
		}
	}

	for _, row := range validation {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO validation (run_id, target, mae, rmse, mape, r2, n)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, row.Target, row.MAE, row.RMSE, row.MAPE, row.R2, row.N)
		if err != nil {
			return fmt.Errorf("saving %s validation of run %s: %w", row.Target, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `
	id,
	created_at,
	start_date,
	end_date,
	region,
	submarket,
	use_real_data,
	horizon,
	consumption_algorithm,
	production_algorithm,
	forward_price,
	sell_revenue,
	buy_cost,
	fixed_cost,
	net_profit,
	provenance`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRow, error) {
	var r RunRow
	var created, start, end string
	err := s.Scan(
		&r.ID,
		&created,
		&start,
		&end,
		&r.Region,
		&r.Submarket,
		&r.UseRealData,
		&r.Horizon,
		&r.ConsumptionAlgorithm,
		&r.ProductionAlgorithm,
		&r.ForwardPrice,
		&r.SellRevenue,
		&r.BuyCost,
		&r.FixedCost,
		&r.NetProfit,
		&r.Provenance)
	if err != nil {
		return RunRow{}, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return RunRow{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.Start, err = days.Parse(start); err != nil {
		return RunRow{}, err
	}
	if r.End, err = days.Parse(end); err != nil {
		return RunRow{}, err
	}
	return r, nil
}

// GetLatestRun returns sql.ErrNoRows when nothing has been archived yet.
func (d *Database) GetLatestRun(ctx context.Context) (RunRow, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT`+runColumns+`
		FROM run
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, sql.ErrNoRows
	}
	if err != nil {
		return RunRow{}, fmt.Errorf("scanning latest run: %w", err)
	}
	return r, nil
}

func (d *Database) GetRun(ctx context.Context, id string) (RunRow, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT`+runColumns+`
		FROM run
		WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, sql.ErrNoRows
	}
	if err != nil {
		return RunRow{}, fmt.Errorf("scanning run %s: %w", id, err)
	}
	return r, nil
}

// GetRuns returns the newest runs first.
func (d *Database) GetRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := d.read.QueryContext(ctx, `
		SELECT`+runColumns+`
		FROM run
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching runs: %w", err)
	}
	defer rows.Close()

	var res []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading run rows: %w", err)
	}
	return res, nil
}

func (d *Database) GetDecisions(ctx context.Context, runID string) ([]DecisionRow, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT
			run_id,
			date,
			consumption,
			production,
			surplus,
			deficit,
			sell_revenue,
			buy_cost,
			fixed_cost,
			net_profit,
			decision,
			advice,
			favorable
		FROM decision
		WHERE run_id = ?
		ORDER BY date ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching decisions of run %s: %w", runID, err)
	}
	defer rows.Close()

	var res []DecisionRow
	var date string
	for rows.Next() {
		var r DecisionRow
		err := rows.Scan(
			&r.RunID,
			&date,
			&r.Consumption,
			&r.Production,
			&r.Surplus,
			&r.Deficit,
			&r.SellRevenue,
			&r.BuyCost,
			&r.FixedCost,
			&r.NetProfit,
			&r.Decision,
			&r.Advice,
			&r.Favorable)
		if err != nil {
			return nil, err
		}
		if r.Date, err = days.Parse(date); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading decision rows: %w", err)
	}
	return res, nil
}

func (d *Database) GetValidation(ctx context.Context, runID string) ([]ValidationRow, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT run_id, target, mae, rmse, mape, r2, n
		FROM validation
		WHERE run_id = ?
		ORDER BY target ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching validation of run %s: %w", runID, err)
	}
	defer rows.Close()

	var res []ValidationRow
	for rows.Next() {
		var r ValidationRow
		if err := rows.Scan(&r.RunID, &r.Target, &r.MAE, &r.RMSE, &r.MAPE, &r.R2, &r.N); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading validation rows: %w", err)
	}
	return res, nil
}

// PurgeRuns deletes runs older than retentionDays along with everything
// recorded for them, their log entries included.
func (d *Database) PurgeRuns(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	before := time.Now().UTC().Add(-24 * time.Hour * time.Duration(retentionDays))
	res, err := d.write.ExecContext(ctx, `
		DELETE FROM log
		WHERE run_id IN (SELECT id FROM run WHERE created_at < ?)`,
		before.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("error when purging log of old runs: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.logger.Debug("purged log of old runs", slog.Int64("entries", n))
	}
	return d.purgeTable(ctx, "run", "created_at", retentionDays)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/angas/solarcast/database"
	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/forecast"
	"github.com/angas/solarcast/pipeline"
	"github.com/angas/solarcast/task"
	"github.com/spf13/cobra"
)

var runFlags struct {
	start    string
	end      string
	real     bool
	horizon  int
	archive  string
	json     bool
	backtest int
	modelOut string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the forecast pipeline once and print the decision table",
	Long: `Runs the whole pipeline once: resolve data, fit and validate the
consumption and production models, forecast the horizon and print one
sell/buy/hold decision per day.

Example:
  solarcast run --start 2024-01-01 --end 2024-06-30 --horizon 14
  solarcast run --real --archive data/solarcast.db
  solarcast run --backtest 14 --model-out models`,
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.start, "start", "", "first historical day, YYYY-MM-DD")
	f.StringVar(&runFlags.end, "end", "", "last historical day, YYYY-MM-DD")
	f.BoolVar(&runFlags.real, "real", false, "fetch real data instead of simulating it")
	f.IntVar(&runFlags.horizon, "horizon", 0, "days to forecast")
	f.StringVar(&runFlags.archive, "archive", "", "database to archive the run in")
	f.BoolVar(&runFlags.json, "json", false, "print the full result as JSON")
	f.IntVar(&runFlags.backtest, "backtest", 0, "also backtest the models, forecasting this many days per round")
	f.StringVar(&runFlags.modelOut, "model-out", "", "directory to save the fitted baseline models in")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cnfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.start != "" {
		cnfg.Data.Start = runFlags.start
	}
	if runFlags.end != "" {
		cnfg.Data.End = runFlags.end
	}
	if cmd.Flags().Changed("real") {
		cnfg.Data.UseRealData = runFlags.real
	}
	if runFlags.horizon != 0 {
		cnfg.Forecast.Horizon = runFlags.horizon
	}
	if cmd.Flags().Changed("backtest") {
		cnfg.Forecast.BacktestStep = runFlags.backtest
	}

	in, err := cnfg.Input(time.Now())
	if err != nil {
		return err
	}
	settings, err := cnfg.Settings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []pipeline.Option
	if runFlags.archive != "" {
		db, err := database.New(ctx, runFlags.archive)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		opts = append(opts, pipeline.WithReporters(task.NewArchive(db)))
	}

	res, err := pipeline.New(settings, opts...).Run(ctx, in)
	if err != nil {
		return err
	}

	if runFlags.modelOut != "" {
		if err := saveModels(runFlags.modelOut, res); err != nil {
			return err
		}
	}

	if runFlags.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printResult(os.Stdout, res)
}

func printResult(out io.Writer, res *pipeline.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "date\tconsumption\tproduction\tsurplus\tdeficit\tnet (R$)\tdecision\tadvice\t")
	for i, r := range res.Records {
		advice := "-"
		if i < len(res.Advice) {
			advice = res.Advice[i].Action.String()
			if res.Advice[i].Favorable {
				advice += "*"
			}
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%s\t\n",
			days.Format(r.Timestamp),
			r.ConsumptionKWh,
			r.ProductionKWh,
			r.SurplusKWh,
			r.DeficitKWh,
			r.NetProfitBRL,
			r.Decision,
			advice)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s := res.Summary
	fmt.Fprintf(out, "\nrun %s, forward price %.2f R$/MWh\n", res.RunID, res.ForwardPrice)
	fmt.Fprintf(out, "surplus %s kWh, deficit %s kWh\n", s.SurplusKWh, s.DeficitKWh)
	fmt.Fprintf(out, "revenue R$ %s, cost R$ %s, fixed R$ %s, net R$ %s\n",
		s.SellRevenueBRL, s.BuyCostBRL, s.FixedCostBRL, s.NetProfitBRL)

	targets := make([]string, 0, len(res.Validation))
	for target := range res.Validation {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	for _, target := range targets {
		m := res.Validation[target]
		if !m.IsValid() {
			fmt.Fprintf(out, "%s: %s, not validated\n", target, res.Algorithms[target])
			continue
		}
		v := m.Value()
		fmt.Fprintf(out, "%s: %s, MAE %.2f RMSE %.2f MAPE %.1f%% R2 %.3f (n=%d)\n",
			target, res.Algorithms[target], v.MAE, v.RMSE, v.MAPE, v.R2, v.N)
	}

	for _, target := range slices.Sorted(maps.Keys(res.Backtest)) {
		m := res.Backtest[target]
		if !m.IsValid() {
			fmt.Fprintf(out, "%s backtest: unavailable\n", target)
			continue
		}
		v := m.Value()
		fmt.Fprintf(out, "%s backtest: MAE %.2f RMSE %.2f MAPE %.1f%% R2 %.3f (n=%d)\n",
			target, v.MAE, v.RMSE, v.MAPE, v.R2, v.N)
	}

	slog.Debug("result printed", slog.Int("records", len(res.Records)))
	return nil
}

// saveModels writes one snapshot per fitted model. Only baseline models can
// be saved; the others are skipped with a warning.
func saveModels(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	for _, target := range slices.Sorted(maps.Keys(res.Models)) {
		m := res.Models[target]
		if m.Algorithm() != forecast.Baseline {
			slog.Warn("only baseline models can be saved, skipping",
				slog.String("target", target),
				slog.String("algorithm", m.Algorithm().String()))
			continue
		}
		path := filepath.Join(dir, target+".json")
		if err := saveModel(path, m); err != nil {
			return err
		}
		slog.Info("model saved", slog.String("target", target), slog.String("path", path))
	}
	return nil
}

func saveModel(path string, m *forecast.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to save %s model: %w", m.Kind(), err)
	}
	return f.Close()
}

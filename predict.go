package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/forecast"
	"github.com/spf13/cobra"
)

var predictHorizon int

var predictCmd = &cobra.Command{
	Use:   "predict <snapshot>",
	Short: "Forecast from a model saved with run --model-out",
	Long: `Restores a saved baseline model and forecasts the days after its
last fitted day, without fetching any data.

Example:
  solarcast predict models/consumption.json --horizon 14`,
	Args: cobra.ExactArgs(1),
	RunE: predict,
}

func init() {
	predictCmd.Flags().IntVar(&predictHorizon, "horizon", 7, "days to forecast")
}

func predict(_ *cobra.Command, args []string) error {
	cnfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	m, err := forecast.Restore(f, forecast.WithSeed(cnfg.Connectors.Seed))
	if err != nil {
		return err
	}
	values, err := m.Predict(predictHorizon, nil)
	if err != nil {
		return err
	}
	slog.Debug("model restored", slog.String("kind", m.Kind().String()), slog.String("target", m.Target()))

	for i, t := range m.Timestamps(predictHorizon) {
		fmt.Printf("Date: %s, Quantity: %s, Value: %f\n", days.Format(t), m.Target(), values[i])
	}
	return nil
}

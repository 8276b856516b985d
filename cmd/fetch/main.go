package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/angas/solarcast/config"
	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/resolver"
	"github.com/angas/solarcast/slice"
	"github.com/angas/solarcast/source"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	configPath string
	start      string
	end        string
	offline    bool
)

var cmd = &cobra.Command{
	Use:   "fetch <ons|ccee|openweather|pvgis|inmet>",
	Short: "Fetch one connector and print its daily series",
	Args:  cobra.ExactArgs(1),
	RunE:  fetch,
}

func main() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC3339Nano,
		}),
	))

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().BoolVar(&offline, "offline", false, "print the simulated series instead")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func fetch(_ *cobra.Command, args []string) error {
	cnfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if start != "" {
		cnfg.Data.Start = start
	}
	if end != "" {
		cnfg.Data.End = end
	}

	in, err := cnfg.Input(time.Now())
	if err != nil {
		return err
	}
	settings, err := cnfg.Settings()
	if err != nil {
		return err
	}

	sources := resolver.NewSources(resolver.Settings{
		Region:         in.Region,
		Submarket:      in.Submarket,
		Station:        in.Station,
		Coordinates:    in.Coordinates,
		OpenWeatherKey: settings.OpenWeatherKey,
		Endpoints:      settings.Endpoints,
		Params:         settings.Params,
		Cache:          settings.Cache,
	})

	all := append([]resolver.Source{sources.Grid, sources.Market}, sources.Climate...)
	src, ok := slice.Find(all, func(s resolver.Source) bool { return strings.EqualFold(s.Connector.Name(), args[0]) })
	if !ok {
		return fmt.Errorf("unknown or unconfigured connector %s", args[0])
	}
	req := source.Request{Key: src.Key, Start: in.Start, End: in.End}

	var res source.Result
	if offline {
		res = source.Result{Bundle: src.Connector.Simulate(req, source.NewRand(settings.Params.Seed)), Origin: source.OriginSynthetic}
	} else if res, err = src.Connector.FetchReal(context.Background(), req); err != nil {
		return err
	}

	fmt.Printf("Connector: %s, Key: %s, Origin: %s\n", res.Bundle.Connector, src.Key, res.Origin)
	for _, s := range res.Bundle.Series {
		for _, smp := range s.Samples {
			fmt.Printf("Date: %s, Quantity: %s, Value: %f, Origin: %s\n",
				days.Format(smp.Timestamp), s.Quantity, smp.Value, smp.Origin)
		}
	}
	return nil
}

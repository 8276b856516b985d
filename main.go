package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/angas/solarcast/config"
	"github.com/angas/solarcast/logging"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var Version = "?.?.?"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "solarcast",
	Short:         "Energy consumption and production forecast with sell/buy decisions",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(runCmd, serveCmd, predictCmd)
}

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		exitWithError(slog.Default(), err)
	}
}

func loadConfig() (*config.AppConfig, slog.Handler, error) {
	cnfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	consoleHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.SetDefault(slog.New(logging.NewMultiHandler(consoleHandler)))
	return cnfg, consoleHandler, nil
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}
	os.Exit(1)
}

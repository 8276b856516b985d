package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angas/solarcast/config"
	"github.com/angas/solarcast/database"
	"github.com/angas/solarcast/logging"
	"github.com/angas/solarcast/metrics"
	"github.com/angas/solarcast/pipeline"
	"github.com/angas/solarcast/publish"
	"github.com/angas/solarcast/task"
	"github.com/angas/solarcast/www"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the forecast on a schedule, serve the api and publish decisions",
	RunE:  serve,
}

func serve(_ *cobra.Command, _ []string) error {
	cnfg, consoleHandler, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Default().Debug("solarcast is starting...", slog.String("version", Version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	config.Watch(logger.With("module", "config"), func(e fsnotify.Event) {
		if e.Has(fsnotify.Remove) {
			logger.Warn("config file removed, the running configuration is kept")
		}
	})

	settings, err := cnfg.Settings()
	if err != nil {
		return err
	}

	recorder := metrics.New()

	var tasks *task.Tasks
	server := www.NewServer(db, recorder, func() bool { return tasks.Forecast.Start() }, cnfg.Api)

	reporters := []pipeline.Reporter{task.NewArchive(db), server.Feed()}
	if cnfg.Mqtt.Enabled() {
		publisher, client := publish.New(cnfg.Mqtt)
		if err := publish.Connect(client, 10*time.Second); err != nil {
			logger.Warn("MQTT broker not reachable yet, retrying in the background", slog.Any("error", err))
		}
		defer client.Disconnect(250)
		reporters = append(reporters, publisher)
	} else {
		logger.Info("no MQTT host configured, decisions are not published")
	}

	runner := pipeline.New(settings,
		pipeline.WithLogger(logger),
		pipeline.WithRecorder(recorder),
		pipeline.WithReporters(reporters...))

	tasks = task.NewTasks(runner, db, cnfg)
	tasks.Run()
	defer tasks.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)
	logger.Info("application is shutting down...")
	return nil
}

package task

import (
	"context"
	"log/slog"

	"github.com/angas/solarcast/config"
	"github.com/angas/solarcast/database"
	"github.com/robfig/cron/v3"
)

type Tasks struct {
	cron            *cron.Cron
	cnfg            *config.AppConfig
	Forecast        *ForecastTask
	MaintenanceTask func()
}

func NewTasks(runner Runner, db *database.Database, cnfg *config.AppConfig) *Tasks {
	logger := slog.Default().With("module", "tasks")
	return &Tasks{
		cron:            cron.New(),
		cnfg:            cnfg,
		Forecast:        NewForecastTask(logger.With(slog.String("task", "forecast")), runner, db, cnfg),
		MaintenanceTask: NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg),
	}
}

func (t *Tasks) Run() {
	_, err := t.cron.AddFunc(t.cnfg.Schedule.RunAt, func() { t.Forecast.Run() })
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc(t.cnfg.Schedule.MaintenanceAt, t.MaintenanceTask)
	if err != nil {
		panic(err)
	}
	t.cron.Start()
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}

package task

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/angas/solarcast/config"
	"github.com/angas/solarcast/database"
	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/pipeline"
)

const forecastTimeout = 10 * time.Minute

type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

type LatestRun interface {
	GetLatestRun(ctx context.Context) (database.RunRow, error)
}

// ForecastTask runs the pipeline with the configured input. At most one run
// is in flight; a request made while one is running is dropped.
type ForecastTask struct {
	mu     sync.Mutex
	logger *slog.Logger
	runner Runner
	cnfg   *config.AppConfig
}

// NewForecastTask returns the scheduled pipeline run. When no run has been
// archived today one is started right away.
func NewForecastTask(logger *slog.Logger, runner Runner, db LatestRun, cnfg *config.AppConfig) *ForecastTask {
	t := &ForecastTask{logger: logger, runner: runner, cnfg: cnfg}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if needImmediateRun(ctx, db, time.Now()) {
		logger.Info("no run archived today, running forecast now")
		t.Start()
	} else {
		logger.Debug("no need for an immediate forecast run")
	}
	return t
}

// Run blocks until the run is done. It reports false, without running, when
// another run is in progress.
func (t *ForecastTask) Run() bool {
	if !t.mu.TryLock() {
		t.logger.Warn("forecast run already in progress, skipping")
		return false
	}
	defer t.mu.Unlock()
	t.run()
	return true
}

// Start runs in the background and reports whether a run was started.
func (t *ForecastTask) Start() bool {
	if !t.mu.TryLock() {
		t.logger.Warn("forecast run already in progress, skipping")
		return false
	}
	go func() {
		defer t.mu.Unlock()
		t.run()
	}()
	return true
}

func (t *ForecastTask) run() {
	t.logger.Debug("running forecast task...")

	ctx, cancel := context.WithTimeout(context.Background(), forecastTimeout)
	defer cancel()

	in, err := t.cnfg.Input(time.Now())
	if err != nil {
		t.logger.Error("forecast task error, invalid input", slog.Any("error", err))
		return
	}

	res, err := t.runner.Run(ctx, in)
	if err != nil {
		t.logger.Error("forecast task error", slog.Any("error", err))
		return
	}

	t.logger.Info("forecast task done",
		slog.String("run", res.RunID.String()),
		slog.String("from", days.Format(in.Start)),
		slog.String("to", days.Format(in.End)),
		slog.Int("horizon", len(res.Records)))
}

func needImmediateRun(ctx context.Context, db LatestRun, now time.Time) bool {
	latest, err := db.GetLatestRun(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	if err != nil {
		return false
	}
	return days.Truncate(latest.CreatedAt).Before(days.Truncate(now))
}

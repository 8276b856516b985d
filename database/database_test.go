package database

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solarcast.db")
	d, err := New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, path
}

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func sampleRun(id string, created time.Time) RunRow {
	return RunRow{
		ID:                   id,
		CreatedAt:            created,
		Start:                day("2024-01-01"),
		End:                  day("2024-03-31"),
		Region:               "SE",
		Submarket:            "SE",
		UseRealData:          true,
		Horizon:              2,
		ConsumptionAlgorithm: "baseline",
		ProductionAlgorithm:  "seasonal",
		ForwardPrice:         251.456,
		SellRevenue:          15,
		BuyCost:              9,
		FixedCost:            2.4,
		NetProfit:            3.6,
		Provenance:           `{"price":{"connector":"ccee","origin":"synthetic"}}`,
	}
}

func TestMigrationCreatesBackup(t *testing.T) {
	_, path := open(t)
	files, err := os.ReadDir(filepath.Join(filepath.Dir(path), "backups"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	d, path := open(t)
	d.Close()

	again, err := New(context.Background(), path)
	require.NoError(t, err)
	defer again.Close()

	files, err := os.ReadDir(filepath.Join(filepath.Dir(path), "backups"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSaveAndGetRun(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	_, err := d.GetLatestRun(ctx)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	created := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	run := sampleRun("a", created)
	decisions := []DecisionRow{
		{Date: day("2024-04-01"), Consumption: 100, Production: 120, Surplus: 20, SellRevenue: 15, FixedCost: 1.5, NetProfit: 13.5, Decision: "Sell", Advice: "Sell", Favorable: true},
		{Date: day("2024-04-02"), Consumption: 80, Production: 70, Deficit: 10, BuyCost: 9, FixedCost: 0.9, NetProfit: -9.9, Decision: "Buy", Advice: "Buy"},
	}
	validation := []ValidationRow{{Target: "consumption_kwh", MAE: 1, RMSE: 2, MAPE: 3, R2: 0.5, N: 7}}
	require.NoError(t, d.SaveRun(ctx, run, decisions, validation))
	require.NoError(t, d.SaveRun(ctx, sampleRun("b", created.Add(-time.Hour)), nil, nil))

	latest, err := d.GetLatestRun(ctx)
	require.NoError(t, err)
	run.ForwardPrice = 251.46
	assert.Equal(t, run, latest)

	gotDecisions, err := d.GetDecisions(ctx, "a")
	require.NoError(t, err)
	require.Len(t, gotDecisions, 2)
	assert.Equal(t, "a", gotDecisions[0].RunID)
	assert.Equal(t, day("2024-04-01"), gotDecisions[0].Date)
	assert.True(t, gotDecisions[0].Favorable)
	assert.Equal(t, -9.9, gotDecisions[1].NetProfit)

	gotValidation, err := d.GetValidation(ctx, "a")
	require.NoError(t, err)
	require.Len(t, gotValidation, 1)
	assert.Equal(t, 7, gotValidation[0].N)

	runs, err := d.GetRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	_, err = d.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSaveRunIsAtomic(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	duplicate := []DecisionRow{
		{Date: day("2024-04-01"), Decision: "Hold", Advice: "Hold"},
		{Date: day("2024-04-01"), Decision: "Hold", Advice: "Hold"},
	}
	assert.Error(t, d.SaveRun(ctx, sampleRun("a", time.Now()), duplicate, nil))

	_, err := d.GetRun(ctx, "a")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestPurgeRuns(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	old := sampleRun("old", time.Now().Add(-40*24*time.Hour))
	require.NoError(t, d.SaveRun(ctx, old, []DecisionRow{{Date: day("2024-04-01"), Decision: "Hold", Advice: "Hold"}}, nil))
	require.NoError(t, d.SaveRun(ctx, sampleRun("new", time.Now()), nil, nil))

	require.NoError(t, d.PurgeRuns(ctx, 30))

	_, err := d.GetRun(ctx, "old")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	decisions, err := d.GetDecisions(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, decisions)
	_, err = d.GetRun(ctx, "new")
	assert.NoError(t, err)
}

func TestPurgeRunsDropsTheirLog(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	require.NoError(t, d.SaveRun(ctx, sampleRun("old", time.Now().Add(-40*24*time.Hour)), nil, nil))
	require.NoError(t, d.SaveRun(ctx, sampleRun("new", time.Now()), nil, nil))
	for _, run := range []string{"old", "new", "failed", ""} {
		require.NoError(t, d.SaveLogEntry(ctx, LogEntryRow{
			Timestamp: time.Now(),
			Level:     int(slog.LevelInfo),
			Message:   "stage done",
			RunID:     run,
		}))
	}

	require.NoError(t, d.PurgeRuns(ctx, 30))

	entries, err := d.GetLogEntries(ctx, LogQuery{MinLevel: slog.LevelDebug})
	require.NoError(t, err)
	var runs []string
	for _, e := range entries {
		runs = append(runs, e.RunID)
	}
	assert.Equal(t, []string{"", "failed", "new"}, runs)
}

func TestLogEntries(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	for i, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		require.NoError(t, d.SaveLogEntry(ctx, LogEntryRow{
			Timestamp: time.Now(),
			Level:     int(lvl),
			Message:   lvl.String(),
			Attrs:     string(rune('a' + i)),
		}))
	}

	entries, err := d.GetLogEntries(ctx, LogQuery{MinLevel: slog.LevelWarn, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ERROR", entries[0].Message)
	assert.Equal(t, "WARN", entries[1].Message)

	require.NoError(t, d.PurgeLog(ctx, 1))
	entries, err = d.GetLogEntries(ctx, LogQuery{MinLevel: slog.LevelDebug, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Message)
}

func TestLogEntriesOfOneRun(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	for i, run := range []string{"r1", "r2", "r1", "r1"} {
		require.NoError(t, d.SaveLogEntry(ctx, LogEntryRow{
			Timestamp: time.Now(),
			Level:     int(slog.LevelInfo),
			Message:   string(rune('a' + i)),
			RunID:     run,
		}))
	}

	entries, err := d.GetLogEntries(ctx, LogQuery{MinLevel: slog.LevelInfo, RunID: "r1", Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "d", entries[0].Message)
	assert.Equal(t, "c", entries[1].Message)
	assert.Equal(t, "r1", entries[0].RunID)

	entries, err = d.GetLogEntries(ctx, LogQuery{MinLevel: slog.LevelInfo, RunID: "r1", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Message)
}

func TestStatus(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	s, err := d.Status(ctx)
	require.NoError(t, err)
	assert.Positive(t, s.SchemaVersion)
	assert.Zero(t, s.Runs)
	assert.Empty(t, s.LatestRun)

	require.NoError(t, d.SaveRun(ctx, sampleRun("a", time.Now().Add(-time.Hour)), nil, nil))
	require.NoError(t, d.SaveRun(ctx, sampleRun("b", time.Now()), nil, nil))

	s, err = d.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Runs)
	assert.Equal(t, "b", s.LatestRun)
}

func TestBackupNamesTheLatestRun(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	require.NoError(t, d.SaveRun(ctx, sampleRun("3f2c9a7e-5b1d-4e8a-9c0f-1a2b3c4d5e6f", time.Now()), nil, nil))
	path, err := d.Backup(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{8}_\d{6}_3f2c9a7e_solarcast\.db\.zip$`, filepath.Base(path))

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	var manifest Status
	for _, f := range r.File {
		names = append(names, f.Name)
		if f.Name != "manifest.json" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &manifest))
	}
	assert.ElementsMatch(t, []string{"solarcast.db", "manifest.json"}, names)
	assert.Equal(t, 1, manifest.Runs)
	assert.Equal(t, "3f2c9a7e-5b1d-4e8a-9c0f-1a2b3c4d5e6f", manifest.LatestRun)
}

func TestPurgeBackups(t *testing.T) {
	d, path := open(t)
	dir := filepath.Join(filepath.Dir(path), "backups")
	old := filepath.Join(dir, "20000101_000000_none_solarcast.db.zip")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	require.NoError(t, d.PurgeBackups(context.Background(), 7, 1))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(other)
	assert.NoError(t, err)
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestPurgeBackupsKeepsTheNewest(t *testing.T) {
	d, path := open(t)
	dir := filepath.Join(filepath.Dir(path), "backups")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	fresh := entries[0].Name()

	for _, name := range []string{
		"20000101_000000_none_solarcast.db.zip",
		"20000102_000000_3f2c9a7e_solarcast.db.zip",
		"20000103_000000_3f2c9a7e_solarcast.db.zip",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	require.NoError(t, d.PurgeBackups(context.Background(), 7, 3))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{
		fresh,
		"20000102_000000_3f2c9a7e_solarcast.db.zip",
		"20000103_000000_3f2c9a7e_solarcast.db.zip",
	}, names)
}

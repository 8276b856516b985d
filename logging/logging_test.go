package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/angas/solarcast/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	entries []database.LogEntryRow
}

func (m *memoryStore) SaveLogEntry(ctx context.Context, r database.LogEntryRow) error {
	m.entries = append(m.entries, r)
	return nil
}

func TestLevelFromString(t *testing.T) {
	str := func(s string) *string { return &s }
	assert.Equal(t, slog.LevelInfo, LevelFromString(nil))
	assert.Equal(t, slog.LevelDebug, LevelFromString(str("debug")))
	assert.Equal(t, slog.LevelWarn, LevelFromString(str("WARN")))
	assert.Equal(t, slog.LevelError, LevelFromString(str("error")))
	assert.Equal(t, slog.LevelInfo, LevelFromString(str("verbose")))
}

func TestSQLiteHandlerText(t *testing.T) {
	store := &memoryStore{}
	logger := slog.New(NewSQLiteHandler(store, slog.LevelInfo, LogAttrFormatText)).With("module", "pipeline")

	logger.Debug("ignored")
	logger.Info("run finished", "periods", 7, "note", "a=b;c")

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, "run finished", e.Message)
	assert.Equal(t, int(slog.LevelInfo), e.Level)
	assert.Equal(t, `module=pipeline; periods=7; note=a\=b\;c`, e.Attrs)
	assert.False(t, e.Timestamp.IsZero())
}

func TestSQLiteHandlerJSONGroups(t *testing.T) {
	store := &memoryStore{}
	logger := slog.New(NewSQLiteHandler(store, slog.LevelDebug, LogAttrFormatJSON)).WithGroup("stage")

	logger.Warn("slow", "name", "fit")

	require.Len(t, store.entries, 1)
	assert.JSONEq(t, `[{"stage.name":"fit"}]`, store.entries[0].Attrs)
}

func TestMultiHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	slog.New(h).With("module", "test").Info("hello")

	assert.Contains(t, a.String(), "msg=hello")
	assert.Contains(t, a.String(), "module=test")
	assert.Contains(t, b.String(), "msg=hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn+2, ParseLevel("warn+2", slog.LevelInfo))
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG ", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo-4, ParseLevel("info-4", slog.LevelError))
	assert.Equal(t, slog.LevelError, ParseLevel("", slog.LevelError))
	assert.Equal(t, slog.LevelWarn, ParseLevel("loud", slog.LevelWarn))
}

func TestMultiHandlerTagsRun(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h)

	ctx := WithRunID(context.Background(), "3f2c9a7e")
	logger.InfoContext(ctx, "stage done", "stage", "fit")
	logger.Info("idle")

	assert.Contains(t, debug.String(), "msg=\"stage done\" stage=fit run=3f2c9a7e")
	assert.Contains(t, debug.String(), "msg=idle")
	assert.NotContains(t, debug.String(), "msg=idle run=")
	assert.Empty(t, warn.String())

	assert.True(t, h.Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewMultiHandler(slog.NewTextHandler(&warn, nil)).Enabled(ctx, slog.LevelDebug))
}

func TestRunIDFrom(t *testing.T) {
	_, ok := RunIDFrom(context.Background())
	assert.False(t, ok)
	_, ok = RunIDFrom(WithRunID(context.Background(), ""))
	assert.False(t, ok)
	id, ok := RunIDFrom(WithRunID(context.Background(), "r1"))
	assert.True(t, ok)
	assert.Equal(t, "r1", id)
}

func TestSQLiteHandlerStoresRun(t *testing.T) {
	store := &memoryStore{}
	logger := slog.New(NewMultiHandler(NewSQLiteHandler(store, slog.LevelInfo, LogAttrFormatText))).With("module", "pipeline")

	logger.InfoContext(WithRunID(context.Background(), "r1"), "stage done", "stage", "fit")
	logger.Info("idle")

	require.Len(t, store.entries, 2)
	assert.Equal(t, "r1", store.entries[0].RunID)
	assert.Equal(t, "module=pipeline; stage=fit", store.entries[0].Attrs)
	assert.Empty(t, store.entries[1].RunID)
	assert.Equal(t, "module=pipeline", store.entries[1].Attrs)
}

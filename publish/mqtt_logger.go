package publish

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// slogAdapter lets the paho client write its internal log through slog.
type slogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

func newSlogAdapter(logger *slog.Logger, level slog.Level) *slogAdapter {
	return &slogAdapter{logger: logger, level: level}
}

func (l *slogAdapter) Println(v ...any) {
	l.logger.Log(context.Background(), l.level, fmt.Sprint(v...))
}

func (l *slogAdapter) Printf(format string, v ...any) {
	l.logger.Log(context.Background(), l.level, fmt.Sprintf(format, v...))
}

var _ mqtt.Logger = (*slogAdapter)(nil)

// RouteClientLogs sends paho warnings and errors to logger. The paho loggers
// are package globals, so this affects every client in the process.
func RouteClientLogs(logger *slog.Logger) {
	mqtt.CRITICAL = newSlogAdapter(logger, slog.LevelError)
	mqtt.ERROR = newSlogAdapter(logger, slog.LevelError)
	mqtt.WARN = newSlogAdapter(logger, slog.LevelWarn)
}

package logging

import (
	"log/slog"
	"strings"
)

// ParseLevel reads a level name as slog prints it, including offsets such as
// "WARN+2" or "info-4". Empty or unknown names give def.
func ParseLevel(name string, def slog.Level) slog.Level {
	name = strings.TrimSpace(name)
	if name == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return def
	}
	return l
}

// LevelFromString is ParseLevel for optional config values, defaulting to INFO.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}
	return ParseLevel(*str, slog.LevelInfo)
}

package www

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// queryInt reads an integer query parameter that must lie in [lo, hi].
// A missing parameter gives def.
func queryInt(u *url.URL, key string, def, lo, hi int) (int, error) {
	v := u.Query().Get(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	if i < lo || i > hi {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", key, lo, hi, i)
	}
	return i, nil
}

// queryLevel reads a log level such as "warn" or "info+2". A missing
// parameter gives def.
func queryLevel(u *url.URL, key string, def slog.Level) (slog.Level, error) {
	v := u.Query().Get(key)
	if v == "" {
		return def, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%s is not a log level: %q", key, v)
	}
	return l, nil
}

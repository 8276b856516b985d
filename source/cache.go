package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/angas/solarcast/days"
	"github.com/angas/solarcast/series"
)

// Cache stores one JSON artifact per (connector, key, start, end). Entries
// are never invalidated; removing the file is the only way to refetch.
type Cache struct {
	dir    string
	logger *slog.Logger
}

type artifact struct {
	Connector string        `json:"connector"`
	Key       string        `json:"key"`
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Origin    Origin        `json:"origin"`
	StoredAt  time.Time     `json:"stored_at"`
	Bundle    series.Bundle `json:"bundle"`
}

type cached struct {
	Bundle series.Bundle
	Origin Origin
}

// NewCache makes sure dir exists and is writable.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("cache directory %s is not writable: %w", dir, err)
	}
	tmp.Close()
	os.Remove(tmp.Name())

	return &Cache{dir: dir, logger: slog.Default().With("module", "cache")}, nil
}

func (c *Cache) Dir() string {
	return c.dir
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (c *Cache) path(connector string, req Request) string {
	name := fmt.Sprintf("%s_%s.json", connector, req.String())
	return filepath.Join(c.dir, unsafeChars.ReplaceAllString(name, "-"))
}

// Load returns the stored result. Unreadable artifacts count as a miss.
func (c *Cache) Load(connector string, req Request) (cached, bool) {
	p := c.path(connector, req)
	data, err := os.ReadFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("cache read failed", slog.String("path", p), slog.Any("error", err))
		}
		return cached{}, false
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		c.logger.Warn("ignoring corrupt cache artifact", slog.String("path", p), slog.Any("error", err))
		return cached{}, false
	}
	return cached{Bundle: a.Bundle, Origin: a.Origin}, true
}

// Store writes the artifact atomically, so readers only ever see complete files.
func (c *Cache) Store(connector string, req Request, b series.Bundle, origin Origin) error {
	data, err := json.Marshal(artifact{
		Connector: connector,
		Key:       req.Key,
		Start:     days.Format(req.Start),
		End:       days.Format(req.End),
		Origin:    origin,
		StoredAt:  time.Now().UTC(),
		Bundle:    b,
	})
	if err != nil {
		return fmt.Errorf("encode cache artifact: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}

	p := c.path(connector, req)
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("move cache file into place: %w", err)
	}
	c.logger.Debug("cached result", slog.String("path", p), slog.String("origin", string(origin)))
	return nil
}

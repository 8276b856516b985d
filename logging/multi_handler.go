package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// RunAttr is the attribute that carries the pipeline run a record belongs to.
const RunAttr = "run"

type runKey struct{}

// WithRunID marks ctx as belonging to a pipeline run. Records logged with it
// are tagged with the run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runKey{}, id)
}

func RunIDFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runKey{}).(string)
	return id, ok && id != ""
}

// MultiHandler fans a record out to every handler that accepts its level.
// A failing handler does not keep the record from the others.
type MultiHandler struct {
	mu       *sync.Mutex
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers, mu: &sync.Mutex{}}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, dest := range h.handlers {
		if dest.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := RunIDFrom(ctx); ok {
		r = r.Clone()
		r.AddAttrs(slog.String(RunAttr, id))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for _, dest := range h.handlers {
		if !dest.Enabled(ctx, r.Level) {
			continue
		}
		if err := dest.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(dest slog.Handler) slog.Handler { return dest.WithGroup(name) })
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.derive(func(dest slog.Handler) slog.Handler { return dest.WithAttrs(attrs) })
}

func (h *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, dest := range h.handlers {
		handlers[i] = fn(dest)
	}
	return &MultiHandler{mu: h.mu, handlers: handlers}
}

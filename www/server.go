package www

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/solarcast/config"
	"github.com/angas/solarcast/database"
	"github.com/angas/solarcast/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RunStore interface {
	GetLatestRun(ctx context.Context) (database.RunRow, error)
	GetRun(ctx context.Context, id string) (database.RunRow, error)
	GetRuns(ctx context.Context, limit int) ([]database.RunRow, error)
	GetDecisions(ctx context.Context, runID string) ([]database.DecisionRow, error)
	GetValidation(ctx context.Context, runID string) ([]database.ValidationRow, error)
	GetLogEntries(ctx context.Context, q database.LogQuery) ([]database.LogEntryRow, error)
	Status(ctx context.Context) (database.Status, error)
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	hub     *Hub
	handler http.Handler
}

// NewServer wires the JSON api, the metrics endpoint and the live feed.
// start begins a forecast run in the background and reports false when one
// is already running. It may be nil; so may recorder.
func NewServer(store RunStore, recorder *metrics.Recorder, start func() bool, config config.AppConfigApi) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger: logger,
		config: config,
		hub:    NewHub(logger),
	}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	mux := http.NewServeMux()

	mux.Handle("/api/runs", logReqMW(NewRunsHandler(
		logger.With(slog.String("handler", "runs")),
		store,
		start)))

	mux.Handle("GET /api/runs/{id}", logReqMW(NewRunHandler(
		logger.With(slog.String("handler", "run")),
		store)))

	mux.Handle("/api/log", logReqMW(NewLogHandler(
		logger.With(slog.String("handler", "log")),
		store)))

	mux.Handle("GET /api/status", logReqMW(NewStatusHandler(
		logger.With(slog.String("handler", "status")),
		store)))

	if recorder != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{
			Registry: recorder.Registry(),
		}))
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		if !s.hub.register(client) {
			client.conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	s.handler = mux
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Feed is the pipeline reporter that pushes runs to websocket clients.
func (s *Server) Feed() *LiveFeed {
	return NewLiveFeed(s.hub)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "port", s.config.Port)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}

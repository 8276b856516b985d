package www

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/angas/solarcast/database"
)

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing response failed", slog.Any("error", err))
	}
}

// NewRunsHandler lists archived runs on GET and starts a forecast run on POST.
// A POST while a run is in progress is answered with 409.
func NewRunsHandler(logger *slog.Logger, store RunStore, start func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			limit, err := queryInt(r.URL, "limit", 10, 1, 1000)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			runs, err := store.GetRuns(r.Context(), limit)
			if err != nil {
				logger.Error("handling runs request", slog.Any("error", err))
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			res := make([]runView, 0, len(runs))
			for _, run := range runs {
				res = append(res, newRunView(run))
			}
			writeJSON(logger, w, http.StatusOK, res)

		case http.MethodPost:
			if start == nil {
				http.Error(w, "runs cannot be started here", http.StatusServiceUnavailable)
				return
			}
			logger.Info("forecast run requested", slog.String("remoteAddr", r.RemoteAddr))
			if !start() {
				http.Error(w, "a forecast run is already in progress", http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusAccepted)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// NewRunHandler returns one run with its decision table and validation
// metrics. The id "latest" selects the newest run.
func NewRunHandler(logger *slog.Logger, store RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var run database.RunRow
		var err error
		if id == "latest" {
			run, err = store.GetLatestRun(r.Context())
		} else {
			run, err = store.GetRun(r.Context(), id)
		}
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("handling run request", slog.String("id", id), slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		decisions, err := store.GetDecisions(r.Context(), run.ID)
		if err != nil {
			logger.Error("handling run request", slog.String("id", id), slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		validation, err := store.GetValidation(r.Context(), run.ID)
		if err != nil {
			logger.Error("handling run request", slog.String("id", id), slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(logger, w, http.StatusOK, runDetailView{
			Run:        newRunView(run),
			Decisions:  newDecisionViews(decisions),
			Validation: newValidationViews(validation),
		})
	}
}

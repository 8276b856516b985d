package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/solarcast/database"
)

// NewLogHandler pages through the archived log, newest first. The run
// parameter narrows it to the entries of one pipeline run.
func NewLogHandler(logger *slog.Logger, store RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := database.LogQuery{RunID: r.URL.Query().Get("run")}
		var err error
		if q.MinLevel, err = queryLevel(r.URL, "level", slog.LevelInfo); err == nil {
			if q.Page, err = queryInt(r.URL, "page", 1, 1, 1<<20); err == nil {
				q.PageSize, err = queryInt(r.URL, "pageSize", 25, 1, 500)
			}
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		e, err := store.GetLogEntries(r.Context(), q)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(logger, w, http.StatusOK, newLogEntryViews(e))
	}
}

// NewStatusHandler reports what the archive holds.
func NewStatusHandler(logger *slog.Logger, store RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := store.Status(r.Context())
		if err != nil {
			logger.Error("handling status request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, status)
	}
}

package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type LogEntryRow struct {
	Timestamp time.Time
	Level     int
	Message   string
	Attrs     string
	// RunID is the pipeline run the entry was logged in, empty outside runs.
	RunID string
}

// LogQuery selects log entries, newest first. An empty RunID matches every
// entry.
type LogQuery struct {
	MinLevel slog.Level
	RunID    string
	Page     int
	PageSize int
}

func (d *Database) SaveLogEntry(ctx context.Context, r LogEntryRow) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO log (timestamp, level, message, attrs, run_id)
		VALUES (?, ?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Level,
		r.Message,
		r.Attrs,
		r.RunID)
	if err != nil {
		return fmt.Errorf("saving log entry: %w", err)
	}
	return nil
}

func (d *Database) GetLogEntries(ctx context.Context, q LogQuery) ([]LogEntryRow, error) {
	page := max(q.Page, 1)
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	where := []string{"level >= ?"}
	args := []any{int(q.MinLevel)}
	if q.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, q.RunID)
	}
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := d.read.QueryContext(ctx, `
		SELECT timestamp, level, message, attrs, run_id
		FROM log
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("fetching log entries: %w", err)
	}
	defer rows.Close()

	var ts string
	var entries []LogEntryRow
	for rows.Next() {
		var r LogEntryRow
		if err := rows.Scan(&ts, &r.Level, &r.Message, &r.Attrs, &r.RunID); err != nil {
			return nil, err
		}
		r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		entries = append(entries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading log rows: %w", err)
	}

	return entries, nil
}

// PurgeLog keeps the newest maxLogEntries entries.
func (d *Database) PurgeLog(ctx context.Context, maxLogEntries int) error {
	if maxLogEntries < 1 {
		return nil
	}
	d.logger.Debug("purging log")
	_, err := d.write.ExecContext(ctx, `
		DELETE FROM log WHERE id <= (SELECT id FROM log ORDER BY id DESC LIMIT 1 OFFSET ?)`, maxLogEntries)
	if err != nil {
		return fmt.Errorf("purging log: %w", err)
	}
	return nil
}

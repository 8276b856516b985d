package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"
)

//go:embed migrations
var migrationsDir embed.FS

type Database struct {
	logger *slog.Logger
	read   *sql.DB
	write  *sql.DB
	path   string
}

const initSQL = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = MEMORY;
	PRAGMA busy_timeout = 5000;
	PRAGMA automatic_index = true;
	PRAGMA foreign_keys = ON;
	PRAGMA analysis_limit = 1000;
	PRAGMA trusted_schema = OFF;
`

// The hook is process wide, so it is registered once for every database.
var registerHook sync.Once

// New opens the run archive at path with one writer and a pool of readers,
// and applies pending migrations.
func New(ctx context.Context, path string) (*Database, error) {
	registerHook.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			_, err := conn.ExecContext(context.Background(), initSQL, nil)
			return err
		})
	})

	read, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error when opening database (read): %w", err)
	}
	read.SetMaxOpenConns(10) // readers can be concurrent
	read.SetConnMaxIdleTime(time.Minute)

	write, err := sql.Open("sqlite", path)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("error when opening database (write): %w", err)
	}
	write.SetMaxOpenConns(1) // only a single writer ever, no concurrency
	write.SetConnMaxIdleTime(time.Minute)

	d := &Database{
		logger: slog.Default().With(slog.String("module", "database")),
		read:   read,
		write:  write,
		path:   path,
	}

	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return d, nil
}

func (d *Database) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

func (d *Database) Close() {
	d.read.Close()
	d.write.Close()
}

// Status summarizes what the archive holds.
type Status struct {
	CheckedAt     time.Time `json:"checked_at"`
	SchemaVersion int       `json:"schema_version"`
	Runs          int       `json:"runs"`
	LatestRun     string    `json:"latest_run,omitempty"`
}

func (d *Database) Status(ctx context.Context) (Status, error) {
	s := Status{CheckedAt: time.Now().UTC()}
	v, err := d.schemaVersion(ctx)
	if err != nil {
		return s, err
	}
	s.SchemaVersion = v
	if v == 0 {
		return s, nil
	}
	if err := d.read.QueryRowContext(ctx, "SELECT count(*) FROM run").Scan(&s.Runs); err != nil {
		return s, fmt.Errorf("count runs: %w", err)
	}
	err = d.read.QueryRowContext(ctx, "SELECT id FROM run ORDER BY created_at DESC, rowid DESC LIMIT 1").Scan(&s.LatestRun)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("get latest run: %w", err)
	}
	return s, nil
}

func (d *Database) schemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.read.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

type migration struct {
	version int
	file    string
}

var migrationName = regexp.MustCompile(`^(\d+)[-_]`)

// pendingMigrations lists the embedded migrations newer than current, oldest first.
func pendingMigrations(current int) ([]migration, error) {
	files, err := migrationsDir.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var res []migration
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".sql" {
			continue
		}
		matches := migrationName.FindStringSubmatch(f.Name())
		if len(matches) < 2 {
			return nil, fmt.Errorf("parse version from migration file: %s", f.Name())
		}
		v, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("convert migration version from file %s: %w", f.Name(), err)
		}
		if v > current {
			res = append(res, migration{version: v, file: f.Name()})
		}
	}
	slices.SortFunc(res, func(a, b migration) int { return a.version - b.version })
	return res, nil
}

// migrate applies pending migrations, each in its own transaction. An
// existing archive is backed up first.
func (d *Database) migrate(ctx context.Context) error {
	current, err := d.schemaVersion(ctx)
	if err != nil {
		return err
	}
	pending, err := pendingMigrations(current)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	if _, err := d.Backup(ctx); err != nil {
		return fmt.Errorf("backup database before migration: %w", err)
	}

	for _, m := range pending {
		d.logger.Info("applying migration", slog.Int("version", m.version), slog.String("file", m.file))
		if err := d.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) apply(ctx context.Context, m migration) error {
	data, err := migrationsDir.ReadFile(path.Join("migrations", m.file))
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", m.file, err)
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction for migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration %d: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d;", m.version)); err != nil {
		return fmt.Errorf("update database version for migration %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}

// purgeTable deletes rows whose column is older than the retention period.
// column must hold RFC 3339 UTC timestamps.
func (d *Database) purgeTable(ctx context.Context, table, column string, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	before := time.Now().UTC().Add(-24 * time.Hour * time.Duration(retentionDays))
	res, err := d.write.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE %s < ?`, table, column),
		before.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("error when purging %s: %w", table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", table), slog.Any("error", err))
		return nil
	}
	d.logger.Debug("purged table", slog.String("table", table), slog.Int64("rows", rows), slog.Time("before", before))
	return nil
}

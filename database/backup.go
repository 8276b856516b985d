package database

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const backupTimeLayout = "20060102_150405"

// Backup file names are <time>_<run>_solarcast.db.zip, where run is the short
// id of the newest archived run or "none".
var backupName = regexp.MustCompile(`^(\d{8}_\d{6})_(.+)_solarcast\.db\.zip$`)

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a compressed copy of the archive into the backups directory
// and returns the path of the zip file.
func (d *Database) Backup(ctx context.Context) (string, error) {
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	manifest, err := d.Status(ctx)
	if err != nil {
		return "", err
	}
	run := "none"
	if len(manifest.LatestRun) >= 8 {
		run = strings.ToLower(manifest.LatestRun[:8])
	}

	dest := filepath.Join(dir, fmt.Sprintf("%s_%s_solarcast.db", manifest.CheckedAt.Format(backupTimeLayout), run))
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return "", fmt.Errorf("vacuuming database into '%s': %w", dest, err)
	}
	defer func() {
		if err := os.Remove(dest); err != nil {
			d.logger.Warn("could not remove original backup after compression", slog.String("error", err.Error()))
		}
	}()

	zipPath := dest + ".zip"
	if err := writeBackupZip(zipPath, dest, filepath.Base(d.path), manifest); err != nil {
		os.Remove(zipPath)
		return "", err
	}

	d.logger.Info("database backup complete",
		slog.String("filename", zipPath),
		slog.Int("runs", manifest.Runs),
		slog.String("latest_run", manifest.LatestRun))
	return zipPath, nil
}

// writeBackupZip stores the database copy and its Status as manifest.json.
func writeBackupZip(zipPath, dbPath, entryName string, manifest Status) error {
	zipFile, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	dbFile, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database backup for compression: %w", err)
	}
	defer dbFile.Close()

	fileInfo, err := dbFile.Stat()
	if err != nil {
		return fmt.Errorf("get file info: %w", err)
	}
	header, err := zip.FileInfoHeader(fileInfo)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = entryName
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip file entry: %w", err)
	}
	if _, err := io.Copy(writer, dbFile); err != nil {
		return fmt.Errorf("write database to zip: %w", err)
	}

	mw, err := zipWriter.Create("manifest.json")
	if err != nil {
		return fmt.Errorf("create manifest entry: %w", err)
	}
	if err := json.NewEncoder(mw).Encode(manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return zipFile.Close()
}

// PurgeBackups deletes backups older than retentionDays. The newest keep
// backups survive whatever their age, so a long idle archive still has a
// copy to restore.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays, keep int) error {
	if retentionDays < 1 {
		return nil
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	dir := d.backupDir()
	d.logger.Debug("purging old backups", slog.String("dir", dir))

	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	type backup struct {
		name    string
		created time.Time
	}
	var backups []backup
	for _, file := range files {
		match := backupName.FindStringSubmatch(file.Name())
		if match == nil {
			d.logger.Debug("this is not a backup file", slog.String("filename", file.Name()))
			continue
		}
		t, err := time.Parse(backupTimeLayout, match[1])
		if err != nil {
			d.logger.Debug("failed to parse backup timestamp", slog.String("filename", file.Name()), slog.String("error", err.Error()))
			continue
		}
		backups = append(backups, backup{name: file.Name(), created: t})
	}
	slices.SortFunc(backups, func(a, b backup) int { return b.created.Compare(a.created) })

	var removed int
	for i, b := range backups {
		if i < keep || time.Since(b.created) <= retention {
			continue
		}
		path := filepath.Join(dir, b.name)
		d.logger.Debug("deleting old backup", slog.String("path", path))
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old backup '%s': %w", path, err)
		}
		removed++
	}

	d.logger.Info("backup purge complete", slog.Int("removed", removed), slog.Int("kept", len(backups)-removed))
	return nil
}

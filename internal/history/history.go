// Package history provides the SQLite-backed transfer history store.
// Every upload, download, deletion, and share is recorded per owner and
// aggregated for the stats endpoint.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// Operation discriminators for transfer records.
const (
	OpUpload   = "upload"
	OpDownload = "download"
	OpDelete   = "delete"
	OpShare    = "share"
)

// Store manages transfer history persistence via SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Record is one transfer history row.
type Record struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Operation string    `json:"operation"`
	FileName  string    `json:"fileName"`
	FileSize  int64     `json:"fileSize"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats holds aggregate statistics from the history store.
type Stats struct {
	TotalUploads   int64          `json:"totalUploads"`
	TotalDownloads int64          `json:"totalDownloads"`
	TotalDeletions int64          `json:"totalDeletions"`
	TotalShares    int64          `json:"totalShares"`
	BytesUploaded  int64          `json:"bytesUploaded"`
	UniqueOwners   int64          `json:"uniqueOwners"`
	PerOwner       []OwnerStat    `json:"perOwner"`
	Operations     map[string]int `json:"-"`
}

// OwnerStat represents per-owner transfer statistics.
type OwnerStat struct {
	OwnerID       string `json:"ownerId"`
	UploadCount   int64  `json:"uploadCount"`
	BytesUploaded int64  `json:"bytesUploaded"`
}

// Open opens or creates the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite supports only one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	log.Infof("Transfer history store initialized at %s", dbPath)
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfer_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id   TEXT NOT NULL,
		operation  TEXT NOT NULL,
		file_name  TEXT NOT NULL,
		file_size  INTEGER NOT NULL DEFAULT 0,
		timestamp  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transfer_history_owner     ON transfer_history(owner_id);
	CREATE INDEX IF NOT EXISTS idx_transfer_history_operation ON transfer_history(operation);
	CREATE INDEX IF NOT EXISTS idx_transfer_history_timestamp ON transfer_history(timestamp);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// RecordTransfer inserts one history row.
func (s *Store) RecordTransfer(ctx context.Context, ownerID, operation, fileName string, fileSize int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_history (owner_id, operation, file_name, file_size, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, ownerID, operation, fileName, fileSize, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}

	log.Debugf("History recorded: %s %s %s (%d bytes)", ownerID, operation, fileName, fileSize)
	return nil
}

// RecentForOwner returns the owner's most recent transfers, newest first.
func (s *Store) RecentForOwner(ctx context.Context, ownerID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, operation, file_name, file_size, timestamp
		FROM transfer_history
		WHERE owner_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Operation, &r.FileName, &r.FileSize, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetStats returns aggregate statistics across all owners.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN operation = 'upload'   THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN operation = 'download' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN operation = 'delete'   THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN operation = 'share'    THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN operation = 'upload'   THEN file_size ELSE 0 END), 0),
			COALESCE(COUNT(DISTINCT owner_id), 0)
		FROM transfer_history
	`).Scan(&stats.TotalUploads, &stats.TotalDownloads, &stats.TotalDeletions,
		&stats.TotalShares, &stats.BytesUploaded, &stats.UniqueOwners)
	if err != nil {
		return nil, fmt.Errorf("failed to get totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id,
		       SUM(CASE WHEN operation = 'upload' THEN 1 ELSE 0 END) AS upload_count,
		       SUM(CASE WHEN operation = 'upload' THEN file_size ELSE 0 END) AS bytes_uploaded
		FROM transfer_history
		GROUP BY owner_id
		ORDER BY bytes_uploaded DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get per-owner stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o OwnerStat
		if err := rows.Scan(&o.OwnerID, &o.UploadCount, &o.BytesUploaded); err != nil {
			return nil, fmt.Errorf("failed to scan owner stats: %w", err)
		}
		stats.PerOwner = append(stats.PerOwner, o)
	}
	return stats, rows.Err()
}

// Purge removes history rows older than the given age.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan).UTC()
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM transfer_history WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the history store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

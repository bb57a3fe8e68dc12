// Package repository persists normalized biomarker observations and
// reconstructs the per-code series consumed by the time-series engines. Two
// backends are provided: SQLite for single-node deployments and PostgreSQL
// for shared ones.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/biomarker-insight-server/internal/domain"
)

// SQLiteStore implements domain.HistoryRepository using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite history store. It creates the database
// file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		code TEXT NOT NULL,
		value REAL NOT NULL,
		unit TEXT DEFAULT '',
		status TEXT NOT NULL,
		collected_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, code, collected_at)
	);

	CREATE INDEX IF NOT EXISTS idx_observations_user ON observations(user_id);
	CREATE INDEX IF NOT EXISTS idx_observations_user_code ON observations(user_id, code);
	CREATE INDEX IF NOT EXISTS idx_observations_collected ON observations(collected_at);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveObservations stores the resolved biomarkers from one evaluation. A
// re-evaluation of the same report upserts over the previous values rather
// than duplicating the sample. Unresolved biomarkers carry no canonical code
// and are skipped.
func (s *SQLiteStore) SaveObservations(ctx context.Context, userID string, biomarkers []domain.NormalizedBiomarker) error {
	if userID == "" {
		return fmt.Errorf("save observations: user ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (user_id, code, value, unit, status, collected_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, code, collected_at) DO UPDATE SET
			value = excluded.value,
			unit = excluded.unit,
			status = excluded.status
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, b := range biomarkers {
		if !b.Resolved() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, userID, b.Code, b.Value, b.Unit, string(b.Status), b.CollectedAt.UTC(), now); err != nil {
			return fmt.Errorf("failed to insert observation for %s: %w", b.Code, err)
		}
	}

	return tx.Commit()
}

// LoadSeries reconstructs a user's full history grouped by code, ordered by
// collection date ascending within each series.
func (s *SQLiteStore) LoadSeries(ctx context.Context, userID string) (domain.SeriesByCode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, value, collected_at
		FROM observations
		WHERE user_id = ?
		ORDER BY code, collected_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	series := make(domain.SeriesByCode)
	for rows.Next() {
		var code string
		var value float64
		var collectedAt time.Time
		if err := rows.Scan(&code, &value, &collectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		series[code] = append(series[code], domain.Sample{Date: collectedAt, Value: value})
	}
	return series, rows.Err()
}

// LoadCodeHistory returns the most recent samples for one biomarker, newest
// first. A non-positive limit returns the full history.
func (s *SQLiteStore) LoadCodeHistory(ctx context.Context, userID, code string, limit int) (domain.Series, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT value, collected_at
		FROM observations
		WHERE user_id = ? AND code = ?
		ORDER BY collected_at DESC
		LIMIT ?
	`, userID, code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var series domain.Series
	for rows.Next() {
		var value float64
		var collectedAt time.Time
		if err := rows.Scan(&value, &collectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		series = append(series, domain.Sample{Date: collectedAt, Value: value})
	}
	return series, rows.Err()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

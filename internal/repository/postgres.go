package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/biomarker-insight-server/internal/domain"
)

// PostgresStore implements domain.HistoryRepository using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection. It expects the schema to
// already exist (created via EnsureSchema or ops tooling).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a connection pool from a connection URL and
// bootstraps the schema.
func NewPostgresStoreFromURL(databaseURL string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := store.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// EnsureSchema creates the observations table and indexes if absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		code TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		collected_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(user_id, code, collected_at)
	);

	CREATE INDEX IF NOT EXISTS idx_observations_user ON observations(user_id);
	CREATE INDEX IF NOT EXISTS idx_observations_user_code ON observations(user_id, code);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveObservations upserts the resolved biomarkers from one evaluation.
func (s *PostgresStore) SaveObservations(ctx context.Context, userID string, biomarkers []domain.NormalizedBiomarker) error {
	if userID == "" {
		return fmt.Errorf("save observations: user ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO observations (user_id, code, value, unit, status, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, code, collected_at) DO UPDATE SET
			value = EXCLUDED.value,
			unit = EXCLUDED.unit,
			status = EXCLUDED.status
	`

	for _, b := range biomarkers {
		if !b.Resolved() {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, userID, b.Code, b.Value, b.Unit, string(b.Status), b.CollectedAt.UTC()); err != nil {
			return fmt.Errorf("failed to upsert observation for %s: %w", b.Code, err)
		}
	}

	return tx.Commit()
}

// LoadSeries reconstructs a user's full history grouped by code.
func (s *PostgresStore) LoadSeries(ctx context.Context, userID string) (domain.SeriesByCode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, value, collected_at
		FROM observations
		WHERE user_id = $1
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
// first.
func (s *PostgresStore) LoadCodeHistory(ctx context.Context, userID, code string, limit int) (domain.Series, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT value, collected_at
		FROM observations
		WHERE user_id = $1 AND code = $2
		ORDER BY collected_at DESC
		LIMIT $3
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

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ensure both stores satisfy the repository contract.
var (
	_ domain.HistoryRepository = (*SQLiteStore)(nil)
	_ domain.HistoryRepository = (*PostgresStore)(nil)
)

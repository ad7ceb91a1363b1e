package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"movies-etl/internal/domains/etl"
	"movies-etl/pkg/logger"
)

// EnsureStateSchema provisions the two pipeline-owned tables. The catalog
// schema itself is an external contract and is never touched here.
func EnsureStateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stateTable = `
		CREATE TABLE IF NOT EXISTS etl_state (
			key        TEXT PRIMARY KEY,
			value      TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	const quarantineTable = `
		CREATE TABLE IF NOT EXISTS etl_quarantine (
			movie_id       UUID PRIMARY KEY,
			reason         TEXT NOT NULL,
			document       JSONB,
			quarantined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			attempts       INT NOT NULL DEFAULT 1
		)
	`

	if _, err := pool.Exec(ctx, stateTable); err != nil {
		return fmt.Errorf("failed to create etl_state: %w", err)
	}
	if _, err := pool.Exec(ctx, quarantineTable); err != nil {
		return fmt.Errorf("failed to create etl_quarantine: %w", err)
	}
	return nil
}

type postgresWatermarkStore struct {
	pool *pgxpool.Pool
}

// NewPostgresWatermarkStore keeps the watermark in the etl_state table.
func NewPostgresWatermarkStore(pool *pgxpool.Pool) etl.WatermarkStore {
	return &postgresWatermarkStore{pool: pool}
}

func (s *postgresWatermarkStore) Read(ctx context.Context) (time.Time, error) {
	const query = `SELECT value FROM etl_state WHERE key = $1`

	var ts time.Time
	err := s.pool.QueryRow(ctx, query, etl.WatermarkKey).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// First run only. Storage failures take the error branch below:
			// defaulting there would force an unbounded re-sync.
			return etl.Epoch, nil
		}
		logger.Error("watermark read failed", err)
		return time.Time{}, fmt.Errorf("%w: %v", etl.ErrWatermarkUnavailable, err)
	}

	return ts.UTC(), nil
}

func (s *postgresWatermarkStore) Commit(ctx context.Context, ts time.Time) error {
	// Single-statement upsert: a crash can only leave the old or the new
	// value, never a partial write.
	const query = `
		INSERT INTO etl_state (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, etl.WatermarkKey, ts); err != nil {
		logger.Error("watermark commit failed", err)
		return fmt.Errorf("%w: %v", etl.ErrWatermarkUnavailable, err)
	}
	return nil
}

type postgresQuarantineStore struct {
	pool *pgxpool.Pool
}

// NewPostgresQuarantineStore keeps validation-failed roots in etl_quarantine.
func NewPostgresQuarantineStore(pool *pgxpool.Pool) etl.QuarantineStore {
	return &postgresQuarantineStore{pool: pool}
}

func (s *postgresQuarantineStore) Record(ctx context.Context, movieID uuid.UUID, reason string, doc []byte) error {
	const query = `
		INSERT INTO etl_quarantine (movie_id, reason, document, quarantined_at, attempts)
		VALUES ($1, $2, $3, now(), 1)
		ON CONFLICT (movie_id) DO UPDATE
		SET reason = EXCLUDED.reason,
		    document = EXCLUDED.document,
		    quarantined_at = now(),
		    attempts = etl_quarantine.attempts + 1
	`

	if _, err := s.pool.Exec(ctx, query, movieID, reason, doc); err != nil {
		return fmt.Errorf("failed to record quarantine for %s: %w", movieID, err)
	}
	return nil
}

func (s *postgresQuarantineStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM etl_quarantine`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count quarantine: %w", err)
	}
	return count, nil
}

func (s *postgresQuarantineStore) List(ctx context.Context, limit int) ([]etl.QuarantineRecord, error) {
	const query = `
		SELECT movie_id, reason, document, quarantined_at, attempts
		FROM etl_quarantine
		ORDER BY quarantined_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantine: %w", err)
	}
	defer rows.Close()

	records := make([]etl.QuarantineRecord, 0, limit)
	for rows.Next() {
		var rec etl.QuarantineRecord
		if err := rows.Scan(&rec.MovieID, &rec.Reason, &rec.Document, &rec.QuarantinedAt, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan quarantine record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

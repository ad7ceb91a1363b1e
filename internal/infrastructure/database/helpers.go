package database

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Ping checks the database connection is alive and responsive.
func (db *PostgresDB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close shuts down the pool. Safe to call multiple times.
func (db *PostgresDB) Close() error {
	if db.Pool == nil {
		log.Println("[DATABASE] Pool is already closed or was never initialized")
		return nil
	}

	log.Println("[DATABASE] Closing database connection pool...")
	db.Pool.Close()
	db.Pool = nil
	log.Println("[DATABASE] Connection pool closed successfully")

	return nil
}

// PoolStats is a snapshot of connection pool statistics for monitoring.
type PoolStats struct {
	AcquireCount    int64
	AcquiredConns   int32
	IdleConns       int32
	MaxConns        int32
	TotalConns      int32
	NewConnsCount   int64
	AcquireDuration time.Duration
}

// Stats returns a snapshot of the pool statistics.
func (db *PostgresDB) Stats() (*PoolStats, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	raw := db.Pool.Stat()
	return &PoolStats{
		AcquireCount:    raw.AcquireCount(),
		AcquiredConns:   raw.AcquiredConns(),
		IdleConns:       raw.IdleConns(),
		MaxConns:        raw.MaxConns(),
		TotalConns:      raw.TotalConns(),
		NewConnsCount:   raw.NewConnsCount(),
		AcquireDuration: raw.AcquireDuration(),
	}, nil
}

package etl

import (
	"context"
	"time"

	"github.com/google/uuid"

	"movies-etl/internal/domains/catalog"
	"movies-etl/internal/domains/document"
)

// WatermarkStore persists the timestamp up to which the pipeline has fully
// synchronized, surviving restarts.
type WatermarkStore interface {
	// Read returns the last committed watermark, or Epoch when no cycle has
	// ever committed. A storage failure is an error, never a default.
	Read(ctx context.Context) (time.Time, error)

	// Commit atomically replaces the watermark.
	Commit(ctx context.Context, ts time.Time) error
}

// QuarantineStore keeps validation-failed roots for reporting. Quarantined
// roots stay below the watermark and are naturally retried each cycle.
type QuarantineStore interface {
	Record(ctx context.Context, movieID uuid.UUID, reason string, doc []byte) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]QuarantineRecord, error)
}

// ChangeReader is the slice of the catalog boundary the coordinator needs.
type ChangeReader interface {
	FetchChangedMovies(ctx context.Context, since time.Time, limit int) ([]catalog.ChangedMovie, error)
}

// Assembler builds index documents for a batch of roots.
type Assembler interface {
	AssembleBatch(ctx context.Context, ids []uuid.UUID) ([]document.Movie, error)
}

// IndexWriter writes a bounded batch idempotently (upsert by movie id) and
// reports per-document outcomes without rolling back successes.
type IndexWriter interface {
	WriteBatch(ctx context.Context, docs []document.Movie) (*BatchResult, error)
}

// Lease is the mutual exclusion over the watermark resource. Only the
// holder may run a cycle; the write path itself needs no lock (idempotent),
// the lease keeps watermark advancement monotonic across instances.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Service is the sync coordinator.
type Service interface {
	// RunCycle drives one Idle -> Reading -> Writing -> Committing -> Idle
	// pass. Per-root failures are contained in the report; only
	// infrastructure failures (watermark store, change reader) surface as
	// errors, and even those leave the process healthy for the next tick.
	RunCycle(ctx context.Context) (*CycleReport, error)

	Status(ctx context.Context) (*Status, error)
}

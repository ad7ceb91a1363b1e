package etl

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WatermarkKey is the etl_state row holding the sync watermark.
const WatermarkKey = "movies_updated_at"

// Epoch is the sentinel watermark used before the first successful cycle.
var Epoch = time.Unix(0, 0).UTC()

// DocumentFailure is one document's failure inside a batch write.
type DocumentFailure struct {
	MovieID uuid.UUID
	Reason  string
	// Transient failures (connectivity, overload) are retried by the next
	// cycle; non-transient ones are schema/validation failures that go to
	// quarantine.
	Transient bool
	// Document carries the serialized body for quarantine records.
	Document []byte
}

// BatchResult reports per-document outcomes of one bulk write. Succeeded
// documents stay applied even when others in the batch fail.
type BatchResult struct {
	Succeeded []uuid.UUID
	Failed    []DocumentFailure
}

// CycleReport summarizes one coordinator cycle.
type CycleReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Skipped means another coordinator held the lease.
	Skipped bool `json:"skipped,omitempty"`

	Discovered  int `json:"discovered"`
	Written     int `json:"written"`
	Omitted     int `json:"omitted"`
	Quarantined int `json:"quarantined"`
	Failed      int `json:"failed"`

	// Watermark after the cycle; Committed tells whether it advanced.
	Watermark time.Time `json:"watermark"`
	Committed bool      `json:"committed"`
}

// QuarantineRecord is a validation-failed root held out of the index.
type QuarantineRecord struct {
	MovieID       uuid.UUID       `json:"movie_id"`
	Reason        string          `json:"reason"`
	Document      json.RawMessage `json:"document,omitempty"`
	QuarantinedAt time.Time       `json:"quarantined_at"`
	Attempts      int             `json:"attempts"`
}

// Status is the ops-surface view of the pipeline.
type Status struct {
	Watermark       time.Time    `json:"watermark"`
	QuarantineCount int          `json:"quarantine_count"`
	LastCycle       *CycleReport `json:"last_cycle,omitempty"`
}

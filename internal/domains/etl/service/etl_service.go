package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"movies-etl/internal/domains/catalog"
	"movies-etl/internal/domains/etl"
	"movies-etl/pkg/logger"
)

// Config drives one coordinator instance.
type Config struct {
	// BatchSize bounds each bulk write.
	BatchSize int
	// Workers bounds concurrent batch writers within a cycle. Writes are
	// idempotent and order-independent per document, so batches may run in
	// parallel.
	Workers int
	// CycleBudget aborts an overrunning cycle without committing; the next
	// cycle resumes from the last committed watermark.
	CycleBudget time.Duration
}

type outcome int

const (
	outcomeTransient outcome = iota // failed, re-discovered next cycle
	outcomeWritten
	outcomeOmitted // root deleted between discovery and assembly
	outcomeInvalid // quarantined, never retried as-is
)

type etlService struct {
	watermarks etl.WatermarkStore
	reader     etl.ChangeReader
	assembler  etl.Assembler
	writer     etl.IndexWriter
	quarantine etl.QuarantineStore
	lease      etl.Lease // nil disables mutual exclusion (single instance)
	cfg        Config

	mu         sync.Mutex
	lastReport *etl.CycleReport
}

// NewETLService wires the sync coordinator.
func NewETLService(
	watermarks etl.WatermarkStore,
	reader etl.ChangeReader,
	assembler etl.Assembler,
	writer etl.IndexWriter,
	quarantine etl.QuarantineStore,
	lease etl.Lease,
	cfg Config,
) etl.Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &etlService{
		watermarks: watermarks,
		reader:     reader,
		assembler:  assembler,
		writer:     writer,
		quarantine: quarantine,
		lease:      lease,
		cfg:        cfg,
	}
}

// RunCycle drives Idle -> Reading -> Writing -> Committing -> Idle.
func (s *etlService) RunCycle(ctx context.Context) (*etl.CycleReport, error) {
	report := &etl.CycleReport{StartedAt: time.Now().UTC()}
	defer func() {
		report.FinishedAt = time.Now().UTC()
		s.mu.Lock()
		s.lastReport = report
		s.mu.Unlock()
	}()

	if s.lease != nil {
		held, err := s.lease.Acquire(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to acquire lease: %w", err)
		}
		if !held {
			report.Skipped = true
			logger.Info("sync cycle skipped, lease held by another coordinator", nil)
			return report, nil
		}
		// Release with an uncancelled context: a budget overrun must not
		// leave the lease dangling until its TTL.
		releaseCtx := context.WithoutCancel(ctx)
		defer func() {
			if err := s.lease.Release(releaseCtx); err != nil {
				logger.Error("failed to release sync lease", err)
			}
		}()
	}

	if s.cfg.CycleBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CycleBudget)
		defer cancel()
	}

	// Reading.
	since, err := s.watermarks.Read(ctx)
	if err != nil {
		return report, err
	}
	report.Watermark = since

	changed, err := s.reader.FetchChangedMovies(ctx, since, 0)
	if err != nil {
		return report, fmt.Errorf("failed to read changes: %w", err)
	}
	report.Discovered = len(changed)
	if len(changed) == 0 {
		// No-op cycle: back to Idle without touching the watermark.
		return report, nil
	}

	// Writing.
	outcomes := s.writeChanged(ctx, changed)

	for _, c := range changed {
		switch outcomes[c.ID] {
		case outcomeWritten:
			report.Written++
		case outcomeOmitted:
			report.Omitted++
		case outcomeInvalid:
			report.Quarantined++
		default:
			report.Failed++
		}
	}

	// Committing. The watermark advances through the contiguous prefix of
	// successes in (updated_at, movie_id) order and stays strictly below the
	// first failed root's timestamp, so failed roots stay eligible and are
	// re-written idempotently next cycle.
	commit := since
	for i, c := range changed {
		o := outcomes[c.ID]
		if o == outcomeWritten || o == outcomeOmitted {
			if c.UpdatedAt.After(commit) {
				commit = c.UpdatedAt
			}
			continue
		}
		// The change query is strictly-greater and cascades stamp many
		// roots with one timestamp, so committing the failed root's own
		// timestamp would hide it forever. Fall back to the highest prefix
		// success strictly before it.
		if !commit.Before(c.UpdatedAt) {
			commit = since
			for _, p := range changed[:i] {
				if p.UpdatedAt.Before(c.UpdatedAt) && p.UpdatedAt.After(commit) {
					commit = p.UpdatedAt
				}
			}
		}
		break
	}
	if commit.After(since) {
		if err := s.watermarks.Commit(ctx, commit); err != nil {
			return report, err
		}
		report.Watermark = commit
		report.Committed = true
	}

	log.Info().
		Int("discovered", report.Discovered).
		Int("written", report.Written).
		Int("omitted", report.Omitted).
		Int("quarantined", report.Quarantined).
		Int("failed", report.Failed).
		Time("watermark", report.Watermark).
		Bool("committed", report.Committed).
		Msg("Sync cycle finished")

	return report, nil
}

// writeChanged assembles and writes all changed roots in bounded-size
// batches over a bounded worker pool.
func (s *etlService) writeChanged(ctx context.Context, changed []catalog.ChangedMovie) map[uuid.UUID]outcome {
	batches := make([][]catalog.ChangedMovie, 0, (len(changed)+s.cfg.BatchSize-1)/s.cfg.BatchSize)
	for start := 0; start < len(changed); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(changed))
		batches = append(batches, changed[start:end])
	}

	outcomes := make(map[uuid.UUID]outcome, len(changed))
	var mu sync.Mutex

	jobs := make(chan []catalog.ChangedMovie)
	var wg sync.WaitGroup
	for i := 0; i < min(s.cfg.Workers, len(batches)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				result := s.writeBatch(ctx, batch)
				mu.Lock()
				for id, o := range result {
					outcomes[id] = o
				}
				mu.Unlock()
			}
		}()
	}

	for _, batch := range batches {
		jobs <- batch
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

func (s *etlService) writeBatch(ctx context.Context, batch []catalog.ChangedMovie) map[uuid.UUID]outcome {
	// Pessimistic default: anything not explicitly resolved below counts as
	// a transient failure and blocks the watermark behind it.
	result := make(map[uuid.UUID]outcome, len(batch))
	ids := make([]uuid.UUID, len(batch))
	for i, c := range batch {
		ids[i] = c.ID
		result[c.ID] = outcomeTransient
	}

	docs, err := s.assembler.AssembleBatch(ctx, ids)
	if err != nil {
		logger.Error("batch assembly failed", err)
		return result
	}

	assembled := make(map[uuid.UUID]bool, len(docs))
	for _, d := range docs {
		assembled[d.ID] = true
	}
	for _, c := range batch {
		if !assembled[c.ID] {
			result[c.ID] = outcomeOmitted
		}
	}

	if len(docs) == 0 {
		return result
	}

	written, err := s.writer.WriteBatch(ctx, docs)
	if err != nil {
		logger.Error("batch write failed", err)
		return result
	}

	for _, id := range written.Succeeded {
		result[id] = outcomeWritten
	}
	for _, f := range written.Failed {
		if f.Transient {
			log.Warn().
				Str("movie_id", f.MovieID.String()).
				Str("reason", f.Reason).
				Msg("Document write failed, will retry next cycle")
			continue
		}
		result[f.MovieID] = outcomeInvalid
		if err := s.quarantine.Record(ctx, f.MovieID, f.Reason, f.Document); err != nil {
			logger.Error("failed to record quarantine", err)
		}
	}

	return result
}

func (s *etlService) Status(ctx context.Context) (*etl.Status, error) {
	watermark, err := s.watermarks.Read(ctx)
	if err != nil {
		return nil, err
	}

	count, err := s.quarantine.Count(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	last := s.lastReport
	s.mu.Unlock()

	return &etl.Status{
		Watermark:       watermark,
		QuarantineCount: count,
		LastCycle:       last,
	}, nil
}

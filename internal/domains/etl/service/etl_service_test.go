package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movies-etl/internal/domains/catalog"
	"movies-etl/internal/domains/document"
	"movies-etl/internal/domains/etl"
)

// ---- fakes ----

type fakeWatermarks struct {
	mu        sync.Mutex
	value     time.Time
	readErr   error
	commitErr error
	commits   []time.Time
}

func newFakeWatermarks() *fakeWatermarks {
	return &fakeWatermarks{value: etl.Epoch}
}

func (f *fakeWatermarks) Read(ctx context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return time.Time{}, f.readErr
	}
	return f.value, nil
}

func (f *fakeWatermarks) Commit(ctx context.Context, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.value = ts
	f.commits = append(f.commits, ts)
	return nil
}

type fakeReader struct {
	changed []catalog.ChangedMovie
	err     error
	calls   int
}

func (f *fakeReader) FetchChangedMovies(ctx context.Context, since time.Time, limit int) ([]catalog.ChangedMovie, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]catalog.ChangedMovie, 0, len(f.changed))
	for _, c := range f.changed {
		if c.UpdatedAt.After(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAssembler struct {
	docs map[uuid.UUID]document.Movie
	err  error
}

func (f *fakeAssembler) AssembleBatch(ctx context.Context, ids []uuid.UUID) ([]document.Movie, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]document.Movie, 0, len(ids))
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

type fakeWriter struct {
	mu        sync.Mutex
	invalid   map[uuid.UUID]string
	transient map[uuid.UUID]string
	writes    map[uuid.UUID]int
	err       error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		invalid:   map[uuid.UUID]string{},
		transient: map[uuid.UUID]string{},
		writes:    map[uuid.UUID]int{},
	}
}

func (f *fakeWriter) WriteBatch(ctx context.Context, docs []document.Movie) (*etl.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := &etl.BatchResult{}
	for _, doc := range docs {
		if reason, ok := f.invalid[doc.ID]; ok {
			result.Failed = append(result.Failed, etl.DocumentFailure{
				MovieID: doc.ID, Reason: reason, Transient: false,
			})
			continue
		}
		if reason, ok := f.transient[doc.ID]; ok {
			result.Failed = append(result.Failed, etl.DocumentFailure{
				MovieID: doc.ID, Reason: reason, Transient: true,
			})
			continue
		}
		f.writes[doc.ID]++
		result.Succeeded = append(result.Succeeded, doc.ID)
	}
	return result, nil
}

type fakeQuarantine struct {
	mu      sync.Mutex
	records map[uuid.UUID]string
}

func newFakeQuarantine() *fakeQuarantine {
	return &fakeQuarantine{records: map[uuid.UUID]string{}}
}

func (f *fakeQuarantine) Record(ctx context.Context, movieID uuid.UUID, reason string, doc []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[movieID] = reason
	return nil
}

func (f *fakeQuarantine) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeQuarantine) List(ctx context.Context, limit int) ([]etl.QuarantineRecord, error) {
	return nil, nil
}

type fakeLease struct {
	available bool
	acquires  int
	releases  int
}

func (f *fakeLease) Acquire(ctx context.Context) (bool, error) {
	f.acquires++
	return f.available, nil
}

func (f *fakeLease) Release(ctx context.Context) error {
	f.releases++
	return nil
}

// ---- helpers ----

type fixture struct {
	watermarks *fakeWatermarks
	reader     *fakeReader
	assembler  *fakeAssembler
	writer     *fakeWriter
	quarantine *fakeQuarantine
	lease      *fakeLease
	svc        etl.Service
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		watermarks: newFakeWatermarks(),
		reader:     &fakeReader{},
		assembler:  &fakeAssembler{docs: map[uuid.UUID]document.Movie{}},
		writer:     newFakeWriter(),
		quarantine: newFakeQuarantine(),
		lease:      &fakeLease{available: true},
	}
	f.svc = NewETLService(f.watermarks, f.reader, f.assembler, f.writer, f.quarantine, f.lease, cfg)
	return f
}

func (f *fixture) addMovie(title string, updatedAt time.Time) catalog.ChangedMovie {
	id := uuid.New()
	f.reader.changed = append(f.reader.changed, catalog.ChangedMovie{ID: id, UpdatedAt: updatedAt})
	f.assembler.docs[id] = document.Movie{
		ID:        id,
		Title:     title,
		Type:      string(catalog.MovieTypeMovie),
		UpdatedAt: updatedAt,
	}
	return catalog.ChangedMovie{ID: id, UpdatedAt: updatedAt}
}

func ts(offset int) time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Second)
}

// ---- tests ----

func TestRunCycle_NoChanges(t *testing.T) {
	f := newFixture(t, Config{})

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, report.Discovered)
	assert.False(t, report.Committed)
	assert.Empty(t, f.watermarks.commits, "no-op cycle must not touch the watermark")
	assert.Equal(t, 1, f.lease.releases)
}

func TestRunCycle_AllSuccessCommitsHighestTimestamp(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 2})
	f.addMovie("Alpha", ts(1))
	f.addMovie("Beta", ts(2))
	f.addMovie("Gamma", ts(3))

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, 3, report.Written)
	assert.True(t, report.Committed)
	assert.Equal(t, ts(3), report.Watermark)
	require.Len(t, f.watermarks.commits, 1)
	assert.Equal(t, ts(3), f.watermarks.commits[0])
}

func TestRunCycle_ValidationFailureCommitsThroughSuccesses(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 10})
	f.addMovie("Alpha", ts(1))
	f.addMovie("Beta", ts(2))
	bad := f.addMovie("Gamma", ts(3))
	f.writer.invalid[bad.ID] = "mapper_parsing_exception: bad field"

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 1, report.Quarantined)
	assert.True(t, report.Committed)
	assert.Equal(t, ts(2), report.Watermark, "watermark must not pass the failed root")
	assert.Contains(t, f.quarantine.records, bad.ID)

	// The failed root stays eligible: once fixed, the next cycle picks it
	// up again from the committed watermark.
	delete(f.writer.invalid, bad.ID)
	report2, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report2.Discovered)
	assert.Equal(t, ts(3), report2.Watermark)
}

func TestRunCycle_MidCycleFailureBlocksWatermark(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 10})
	f.addMovie("Alpha", ts(1))
	bad := f.addMovie("Beta", ts(2))
	f.addMovie("Gamma", ts(3))
	f.writer.transient[bad.ID] = "connection reset"

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, report.Committed)
	assert.Equal(t, ts(1), report.Watermark,
		"only the prefix before the first failure may commit")
	assert.Empty(t, f.quarantine.records, "transient failures are not quarantined")
}

// A cascade stamps every affected movie with one timestamp, so a failed
// root often shares its updated_at with committed successes. The watermark
// must stay strictly below that timestamp or the strictly-greater change
// query never sees the failed root again.
func TestRunCycle_SharedTimestampWithFailureDoesNotCommitIt(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(1))
	bad := f.addMovie("Beta", ts(1))
	f.writer.transient[bad.ID] = "connection reset"

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)
	assert.False(t, report.Committed, "the failed root's own timestamp must never be committed")
	assert.Empty(t, f.watermarks.commits)

	// Once the failure clears, the next cycle re-discovers both roots and
	// finally writes the one that was left behind.
	delete(f.writer.transient, bad.ID)
	report, err = f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Discovered)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, ts(1), report.Watermark)
	assert.Equal(t, 1, f.writer.writes[bad.ID])
}

func TestRunCycle_SharedTimestampFailureCapsCommitBelowIt(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(1))
	f.addMovie("Beta", ts(2))
	bad := f.addMovie("Gamma", ts(2))
	f.writer.invalid[bad.ID] = "mapper_parsing_exception: bad field"

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	assert.True(t, report.Committed)
	assert.Equal(t, ts(1), report.Watermark,
		"commit must drop below the failed root's timestamp even past a success sharing it")

	// The quarantined root stays discoverable.
	delete(f.writer.invalid, bad.ID)
	report, err = f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Discovered)
	assert.Equal(t, ts(2), report.Watermark)
}

func TestRunCycle_TransientFailureOnFirstRootNoCommit(t *testing.T) {
	f := newFixture(t, Config{})
	bad := f.addMovie("Alpha", ts(1))
	f.addMovie("Beta", ts(2))
	f.writer.transient[bad.ID] = "timeout"

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.False(t, report.Committed)
	assert.Empty(t, f.watermarks.commits)
}

func TestRunCycle_WatermarkReadFailureIsFatal(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(1))
	f.watermarks.readErr = etl.ErrWatermarkUnavailable

	_, err := f.svc.RunCycle(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, etl.ErrWatermarkUnavailable)
	assert.Equal(t, 0, f.reader.calls,
		"an unreadable watermark must not default to a full re-sync")
}

func TestRunCycle_WatermarkCommitFailureIsFatal(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(1))
	f.watermarks.commitErr = errors.New("storage gone")

	report, err := f.svc.RunCycle(context.Background())

	require.Error(t, err)
	assert.False(t, report.Committed)
}

func TestRunCycle_LeaseHeldElsewhereSkips(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(1))
	f.lease.available = false

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, 0, f.reader.calls)
	assert.Equal(t, 0, f.lease.releases, "a lease we never held must not be released")
}

func TestRunCycle_DeletedRootIsOmittedNotFailed(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(1))
	gone := f.addMovie("Beta", ts(2))
	f.addMovie("Gamma", ts(3))
	delete(f.assembler.docs, gone.ID) // deleted between discovery and assembly

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Omitted)
	assert.Equal(t, 2, report.Written)
	assert.True(t, report.Committed)
	assert.Equal(t, ts(3), report.Watermark,
		"a vanished root must not block the watermark")
}

func TestRunCycle_WatermarkIsMonotonic(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(5))

	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)

	// Second cycle discovers nothing newer; the watermark must not move.
	report, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Committed)

	require.Len(t, f.watermarks.commits, 1)
	for i := 1; i < len(f.watermarks.commits); i++ {
		assert.False(t, f.watermarks.commits[i].Before(f.watermarks.commits[i-1]))
	}
}

func TestRunCycle_RewriteIsIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	bad := f.addMovie("Alpha", ts(1))
	m := f.addMovie("Beta", ts(2))
	f.writer.transient[bad.ID] = "overloaded"

	// First cycle writes Beta, but the earlier failure blocks the commit,
	// so Beta stays ahead of the watermark.
	report, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Committed)

	// Alpha recovers; Beta is re-discovered and re-written harmlessly.
	delete(f.writer.transient, bad.ID)
	report, err = f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ts(2), report.Watermark)
	assert.Equal(t, 2, f.writer.writes[m.ID], "re-write of an already-synced root is expected and harmless")
}

func TestRunCycle_AssemblyFailureFailsBatchOnly(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 10})
	f.addMovie("Alpha", ts(1))
	f.assembler.err = errors.New("snapshot read failed")

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err, "per-root failures never escape the cycle")
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Committed)
}

func TestRunCycle_NilLeaseRunsUnguarded(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(1))
	f.svc = NewETLService(f.watermarks, f.reader, f.assembler, f.writer, f.quarantine, nil, Config{})

	report, err := f.svc.RunCycle(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Committed)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, Config{})
	f.addMovie("Alpha", ts(1))

	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)

	status, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ts(1), status.Watermark)
	assert.Equal(t, 0, status.QuarantineCount)
	require.NotNil(t, status.LastCycle)
	assert.Equal(t, 1, status.LastCycle.Written)
}

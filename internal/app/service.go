// Package service provides the attribution service that implements the
// dependencies required by the HTTP API: outcome recording, score reads,
// audit trail access, chain verification and windowed progress.
package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/bmbilon/merets/internal/adapters/mq/queue"
	workerpool "github.com/bmbilon/merets/internal/adapters/mq/worker"
	"github.com/bmbilon/merets/internal/adapters/repository"
	"github.com/bmbilon/merets/internal/domain/dedupe"
	"github.com/bmbilon/merets/internal/domain/ledger"
	"github.com/bmbilon/merets/internal/domain/model"
	"github.com/bmbilon/merets/internal/domain/progress"
	"github.com/bmbilon/merets/internal/domain/scoring"
	"github.com/bmbilon/merets/pkg/logger"
	"github.com/bmbilon/merets/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize     = 100000
	defaultDedupeSize    = 500000
	defaultMaxAuditLimit = 100
	defaultChangeEpsilon = 0.05

	// lockStripes fixes the size of the per-subject lock table. Writes for
	// one subject always hash to the same stripe, so history reads and
	// ledger appends for a subject never interleave.
	lockStripes = 128
)

// Service implements the attribution engine over a history/ledger store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	model      *scoring.Model
	tracker    *progress.Tracker
	workerPool *workerpool.Pool

	// Per-subject write serialization.
	stripes [lockStripes]sync.Mutex

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	maxAuditLimit int
	changeEpsilon float64
	scoringOpts   []scoring.Option
	progressOpts  []progress.Option

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the history/ledger store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of recording workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxAuditLimit caps the audit trail page size.
func WithMaxAuditLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxAuditLimit = limit
		}
	}
}

// WithChangeEpsilon sets the minimum composite delta that earns a ledger
// entry. Smaller recomputations record the event but suppress the entry.
func WithChangeEpsilon(epsilon float64) Option {
	return func(s *Service) {
		if epsilon >= 0 {
			s.changeEpsilon = epsilon
		}
	}
}

// WithScoringOptions forwards options to the scoring model.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithProgressOptions forwards options to the progress tracker.
func WithProgressOptions(opts ...progress.Option) Option {
	return func(s *Service) {
		s.progressOpts = append(s.progressOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU() * 2,
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		maxAuditLimit: defaultMaxAuditLimit,
		changeEpsilon: defaultChangeEpsilon,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting attribution service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	s.model = scoring.NewModel(s.scoringOpts...)
	s.tracker = progress.NewTracker(s.progressOpts...)

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "attribution service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Float64("changeEpsilon", s.changeEpsilon),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping attribution service...")

	if s.eventQueue != nil {
		_ = s.eventQueue.Close()
	}
	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "attribution service stopped")
}

// RecordOutcome applies one outcome event: append it to the subject's
// history, recompute the score, and chain a ledger entry when the composite
// moved by more than the configured epsilon. Writes for one subject are
// serialized through the stripe lock; the event+entry append itself is
// atomic at the store boundary.
func (s *Service) RecordOutcome(ctx context.Context, event model.OutcomeEvent) error {
	if err := event.Validate(); err != nil {
		metrics.RecordOutcomeRejected()
		return err
	}

	lock := s.stripe(event.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.store.LoadHistory(ctx, event.SubjectID)
	if err != nil {
		metrics.RecordStoreError("load_history")
		// The HTTP layer marks an id seen before enqueueing. An event that
		// failed to record must release its id, or the retry would be
		// answered as a duplicate of something that never landed.
		s.deduper.Unrecord(ctx, event.EventID)
		return fmt.Errorf("load history for %s: %w", event.SubjectID, err)
	}

	computeStart := time.Now()
	extended := append(history, event)
	score := s.model.Compute(extended)
	metrics.RecordScoreComputeLatency(float64(time.Since(computeStart).Milliseconds()))

	tail, err := s.store.LedgerTail(ctx, event.SubjectID)
	if err != nil {
		metrics.RecordStoreError("ledger_tail")
		s.deduper.Unrecord(ctx, event.EventID)
		return fmt.Errorf("ledger tail for %s: %w", event.SubjectID, err)
	}

	// The old composite comes from the chain, not the previous computation:
	// suppressed no-ops must not accumulate into a gap the audit trail
	// cannot explain.
	old := s.model.Compute(nil).Composite
	if tail != nil {
		old = tail.NewComposite
	}

	var entry *ledger.Entry
	if math.Abs(score.Composite-old) > s.changeEpsilon {
		e, err := ledger.Build(event.SubjectID, tail, old, score.Composite,
			s.model.ComputeBreakdown(extended), transitionReason(event),
			ledger.ActionTaskOutcome, time.Now())
		if err != nil {
			s.deduper.Unrecord(ctx, event.EventID)
			return fmt.Errorf("build ledger entry for %s: %w", event.SubjectID, err)
		}
		entry = &e
	} else {
		metrics.RecordNoopSuppressed()
		s.logger.Debug(ctx, "composite change below epsilon, ledger entry suppressed",
			logger.String("subjectID", event.SubjectID),
			logger.Float64("old", old),
			logger.Float64("new", score.Composite),
		)
	}

	appendStart := time.Now()
	err = s.store.AppendOutcome(ctx, event, entry)
	metrics.RecordAppendLatency(float64(time.Since(appendStart).Milliseconds()))

	if errors.Is(err, repository.ErrDuplicateEvent) {
		// Re-delivery that slipped past the dedupe cache. Already recorded,
		// so acknowledge without a second write.
		metrics.RecordOutcomeDuplicate()
		return nil
	}
	if err != nil {
		metrics.RecordStoreError("append_outcome")
		s.deduper.Unrecord(ctx, event.EventID)
		return fmt.Errorf("append outcome %s: %w", event.EventID, err)
	}

	metrics.RecordOutcomeRecorded()
	if entry != nil {
		metrics.RecordLedgerAppend()
		s.logger.Debug(ctx, "ledger entry appended",
			logger.String("subjectID", event.SubjectID),
			logger.Int64("entryID", entry.ID),
			logger.Float64("change", entry.Change),
		)
	}

	return nil
}

// CurrentScore computes the subject's reputation state from its full
// history. History, not the ledger, is the source of truth; a subject with
// no recorded events gets the documented neutral defaults, not an error.
func (s *Service) CurrentScore(ctx context.Context, subjectID string) (scoring.Score, error) {
	history, err := s.store.LoadHistory(ctx, subjectID)
	if err != nil {
		metrics.RecordStoreError("load_history")
		return scoring.Score{}, fmt.Errorf("load history for %s: %w", subjectID, err)
	}

	start := time.Now()
	score := s.model.Compute(history)
	metrics.RecordScoreComputeLatency(float64(time.Since(start).Milliseconds()))

	return score, nil
}

// AuditTrail returns up to limit ledger entries for the subject, newest
// first. The limit is clamped to the configured maximum page size.
func (s *Service) AuditTrail(ctx context.Context, subjectID string, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		return nil, repository.ErrInvalidLimit
	}
	if limit > s.maxAuditLimit {
		limit = s.maxAuditLimit
	}

	entries, err := s.store.RecentLedger(ctx, subjectID, limit)
	if err != nil {
		metrics.RecordStoreError("recent_ledger")
		return nil, fmt.Errorf("audit trail for %s: %w", subjectID, err)
	}
	return entries, nil
}

// VerifyIntegrity re-walks the subject's full chain and reports its status.
// A broken chain is a valid result, not an error.
func (s *Service) VerifyIntegrity(ctx context.Context, subjectID string) (ledger.Status, error) {
	entries, err := s.store.ScanLedger(ctx, subjectID)
	if err != nil {
		metrics.RecordStoreError("scan_ledger")
		return ledger.Status{}, fmt.Errorf("scan ledger for %s: %w", subjectID, err)
	}

	start := time.Now()
	status, err := ledger.Verify(ctx, entries)
	metrics.RecordVerifyLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return ledger.Status{}, err
	}

	metrics.RecordVerification(status.Valid)
	if !status.Valid {
		s.logger.Warn(ctx, "ledger chain verification failed",
			logger.String("subjectID", subjectID),
			logger.String("fault", string(status.Fault)),
			logger.Any("brokenAt", status.BrokenAtEntryID),
		)
	}

	return status, nil
}

// WindowedProgress aggregates the subject's completed work over the
// requested window.
func (s *Service) WindowedProgress(ctx context.Context, subjectID, window string) (progress.Progress, error) {
	w, err := progress.ParseWindow(window)
	if err != nil {
		return progress.Progress{}, err
	}

	history, err := s.store.LoadHistory(ctx, subjectID)
	if err != nil {
		metrics.RecordStoreError("load_history")
		return progress.Progress{}, fmt.Errorf("load history for %s: %w", subjectID, err)
	}

	return s.tracker.Progress(history, time.Now(), w), nil
}

// BonusQualification evaluates the subject's bonus gates over the trailing
// week and the current composite.
func (s *Service) BonusQualification(ctx context.Context, subjectID string) (progress.Qualification, error) {
	history, err := s.store.LoadHistory(ctx, subjectID)
	if err != nil {
		metrics.RecordStoreError("load_history")
		return progress.Qualification{}, fmt.Errorf("load history for %s: %w", subjectID, err)
	}

	now := time.Now()
	score := s.model.Compute(history)
	weekly := s.tracker.Progress(history, now, progress.WindowWeekly)
	missed := s.tracker.MissedInWindow(history, now, progress.WindowWeekly)

	return s.tracker.Bonus(weekly.Units, score.Composite, missed), nil
}

// SeenAndRecord atomically checks if an event id was seen and records it if
// not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordOutcomeDuplicate()
	}
	return seen
}

// Unrecord removes an event id from the seen list, allowing it to be
// retried after a failed enqueue.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Enqueue submits a validated event for asynchronous recording. Returns
// false on backpressure; the caller owns unrecording the id in that case.
func (s *Service) Enqueue(ctx context.Context, event model.OutcomeEvent) bool {
	ok := s.eventQueue.Enqueue(ctx, event)
	if !ok {
		s.logger.Warn(ctx, "event queue full, rejecting event",
			logger.String("eventID", event.EventID),
			logger.String("subjectID", event.SubjectID),
		)
	}
	return ok
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		subjects := s.store.SubjectCount(ctx)

		stats["queueLength"] = queueLen
		stats["trackedSubjects"] = subjects

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTrackedSubjects(subjects)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// stripe maps a subject id onto its write lock.
func (s *Service) stripe(subjectID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subjectID))
	return &s.stripes[h.Sum32()%lockStripes]
}

// transitionReason renders a short human-readable cause for a ledger entry.
func transitionReason(e model.OutcomeEvent) string {
	if e.Rating.Rated() {
		return fmt.Sprintf("outcome %s rated %s", e.Kind, e.Rating)
	}
	return fmt.Sprintf("outcome %s", e.Kind)
}

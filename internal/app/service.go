// Package service wires the scoring engine behind the task event intake
// and exposes the operations used by the HTTP API and the Kafka consumer.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	eventqueue "github.com/okian/perfscore/internal/adapters/mq/queue"
	workerpool "github.com/okian/perfscore/internal/adapters/mq/worker"
	"github.com/okian/perfscore/internal/adapters/repository"
	"github.com/okian/perfscore/internal/cache"
	"github.com/okian/perfscore/internal/domain/dedupe"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/internal/engine"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// Service owns the engine, the intake queue and the worker pool.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	teams      *cache.Coordinator
	engine     *engine.Engine
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	historyLimit   int
	cacheTTL       time.Duration
	recomputeRate  float64
	recomputeBurst int

	// State
	started bool
	cancel  context.CancelFunc

	metrics *metrics.Manager
	now     func() time.Time
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      10_000,
		dedupeSize:     100_000,
		historyLimit:   model.DefaultHistoryLimit,
		cacheTTL:       cache.DefaultTTL,
		recomputeRate:  50,
		recomputeBurst: 10,
		now:            time.Now,
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
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using memory store")
	}

	s.teams = cache.New(s.store,
		cache.WithTTL(s.cacheTTL),
		cache.WithClock(s.now),
		cache.WithMetrics(s.metrics),
		cache.WithLogger(s.logger.Named("cache")),
	)
	s.engine = engine.New(s.store,
		engine.WithTeamDirectory(s.teams),
		engine.WithCacheClearer(s.teams),
		engine.WithClock(s.now),
		engine.WithMetrics(s.metrics),
		engine.WithLogger(s.logger),
		engine.WithHistoryLimit(s.historyLimit),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithMetrics(s.metrics),
	)

	workerOpts := []workerpool.Option{
		workerpool.WithLogger(s.logger.Named("worker")),
		workerpool.WithMetrics(s.metrics),
	}
	if s.recomputeRate > 0 {
		workerOpts = append(workerOpts,
			workerpool.WithRecomputeLimiter(rate.NewLimiter(rate.Limit(s.recomputeRate), s.recomputeBurst)))
	}
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.engine, workerOpts...)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "performance score service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("cacheTTL", s.cacheTTL),
	)
	return nil
}

// Stop closes the intake and lets the workers finish every queued event,
// then closes the store. When ctx ends first the workers are stopped and the
// remaining events are dropped.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping performance score service...")

	_ = s.eventQueue.Close()

	var firstErr error
	if err := s.workerPool.Drain(ctx); err != nil {
		s.logger.Warn(ctx, "stopping with queued events", logger.Int("queued", s.eventQueue.Len(ctx)), logger.Error(err))
		firstErr = err
	}
	s.cancel()
	if err := s.store.Close(context.WithoutCancel(ctx)); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}

	s.started = false
	s.logger.Info(ctx, "performance score service stopped", logger.Any("handled", s.workerPool.Handled()))
	return firstErr
}

// Enqueue validates and deduplicates ev, then queues it for the workers.
// It reports true, without error, for an event id seen before. Events
// without an id get a fresh one and are never treated as duplicates.
func (s *Service) Enqueue(ctx context.Context, ev model.TaskEvent) (bool, error) { //nolint:gocritic // hugeParam: TaskEvent is queued by value
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return false, ErrNotStarted
	}
	if err := ev.Validate(); err != nil {
		return false, err
	}
	ev.UserID = strings.TrimSpace(ev.UserID)
	if strings.TrimSpace(ev.EventID) == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = s.now()
	}

	if s.deduper.SeenAndRecord(ctx, ev.EventID) {
		s.logger.Debug(ctx, "duplicate event detected, skipping",
			logger.String("event_id", ev.EventID),
			logger.String("user_id", ev.UserID),
		)
		return true, nil
	}
	if !s.eventQueue.Enqueue(ctx, ev) {
		// Let a retry of the same event through.
		s.deduper.Unrecord(ctx, ev.EventID)
		return false, ErrBackpressure
	}
	return false, nil
}

// GetScore returns the score record of userID in teamID, creating it on a
// miss. An empty teamID selects the record of the incremental path.
func (s *Service) GetScore(ctx context.Context, userID, teamID string) (model.PerformanceScore, error) {
	e, err := s.running()
	if err != nil {
		return model.PerformanceScore{}, err
	}
	return e.GetScore(ctx, userID, teamID)
}

// UpdateMemberStatus changes a member's status and clears the team caches.
func (s *Service) UpdateMemberStatus(ctx context.Context, teamID, userID, status string) (bool, error) {
	e, err := s.running()
	if err != nil {
		return false, err
	}
	return e.UpdateMemberStatus(ctx, teamID, userID, status)
}

func (s *Service) running() (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		byID, byUser := s.teams.Len()
		stats["queueLength"] = s.eventQueue.Len(context.Background())
		stats["eventsHandled"] = s.workerPool.Handled()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["cachedTeams"] = byID
		stats["cachedUsers"] = byUser
	}
	return stats
}

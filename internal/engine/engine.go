// Package engine orchestrates score updates over the store contracts.
//
// Two entry points write scores. RecordOutcome applies the incremental
// formula to the user's team-less record for one task transition.
// RecomputeForUser rebuilds every per-team record from the user's full task
// list with the batch formula. The two are not guaranteed to agree.
//
// Neither path locks per user. Two concurrent calls for the same user read
// the same record, and the later write wins.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/okian/perfscore/internal/adapters/repository"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/internal/domain/scoring"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// CacheClearer drops cached team data.
type CacheClearer interface {
	Clear(ctx context.Context, reason string)
}

// ReasonMemberStatus is passed to CacheClearer on member status changes.
const ReasonMemberStatus = "member_status"

// Engine is the entry point used by workers and the HTTP layer.
type Engine struct {
	incremental *IncrementalScoreUpdater
	recompute   *TeamRecomputeCoordinator
	sync        *MemberMetricsSynchronizer

	scores   repository.ScoreStore
	statuses repository.MemberStatusWriter
	cache    CacheClearer
	now      func() time.Time
	log      logger.Logger
}

type settings struct {
	teams        repository.TeamDirectory
	cache        CacheClearer
	now          func() time.Time
	metrics      *metrics.Manager
	log          logger.Logger
	historyLimit int
}

// Option applies a configuration option to the Engine.
type Option func(*settings)

// WithTeamDirectory reads teams through dir instead of the store, usually a
// cache.Coordinator.
func WithTeamDirectory(dir repository.TeamDirectory) Option {
	return func(s *settings) {
		if dir != nil {
			s.teams = dir
		}
	}
}

// WithCacheClearer is cleared on member status updates.
func WithCacheClearer(c CacheClearer) Option {
	return func(s *settings) { s.cache = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics records engine activity into m.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *settings) { s.metrics = m }
}

// WithLogger sets the base logger; components derive named loggers from it.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHistoryLimit bounds the history of every record written.
func WithHistoryLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// New wires the engine components over store.
func New(store repository.Store, opts ...Option) *Engine {
	st := settings{
		teams:        store,
		now:          time.Now,
		historyLimit: model.DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(&st)
	}
	if st.log == nil {
		st.log = logger.Get()
	}

	limit := scoring.WithHistoryLimit(st.historyLimit)
	syncer := &MemberMetricsSynchronizer{
		writer:  store,
		metrics: st.metrics,
		log:     st.log.Named("engine.sync"),
	}
	return &Engine{
		incremental: &IncrementalScoreUpdater{
			scores:   store,
			strategy: scoring.NewIncrementalStrategy(limit),
			now:      st.now,
			metrics:  st.metrics,
			log:      st.log.Named("engine.incremental"),
		},
		recompute: &TeamRecomputeCoordinator{
			tasks:    store,
			teams:    st.teams,
			scores:   store,
			keys:     store,
			sync:     syncer,
			strategy: scoring.NewBatchStrategy(limit),
			now:      st.now,
			metrics:  st.metrics,
			log:      st.log.Named("engine.recompute"),
		},
		sync:     syncer,
		scores:   store,
		statuses: store,
		cache:    st.cache,
		now:      st.now,
		log:      st.log.Named("engine"),
	}
}

// RecordOutcome applies one task transition. See IncrementalScoreUpdater.
func (e *Engine) RecordOutcome(ctx context.Context, userID string, task model.Task, completed bool) error {
	return e.incremental.RecordOutcome(ctx, userID, task, completed)
}

// RecomputeForUser rebuilds every team score. See TeamRecomputeCoordinator.
func (e *Engine) RecomputeForUser(ctx context.Context, userID string) error {
	return e.recompute.RecomputeForUser(ctx, userID)
}

// SyncMemberMetrics writes the member projection. See MemberMetricsSynchronizer.
func (e *Engine) SyncMemberMetrics(ctx context.Context, teamID, userID string, m model.MemberMetrics) (bool, error) {
	return e.sync.Sync(ctx, teamID, userID, m)
}

// GetScore returns the record for (userID, teamID), creating and persisting
// a default one on a miss. An empty teamID selects the team-less record.
func (e *Engine) GetScore(ctx context.Context, userID, teamID string) (model.PerformanceScore, error) {
	const op = "engine.GetScore"
	if blank(userID) {
		return model.PerformanceScore{}, newError(op, ErrValidation, errors.New("user id is required"))
	}

	ps, err := e.scores.FindScore(ctx, userID, teamID)
	if err == nil {
		return ps, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.PerformanceScore{}, classify(op, err)
	}

	ps = model.NewPerformanceScore(e.scores.NewScoreID(), userID, teamID, e.now())
	if err := e.scores.ReplaceScore(ctx, ps); err != nil {
		return model.PerformanceScore{}, classify(op, err)
	}
	e.log.Debug(ctx, "created default score", logger.String("user_id", userID), logger.String("team_id", teamID))
	return ps, nil
}

// UpdateMemberStatus changes a member's status and clears the team caches.
// It reports false when no member matched.
func (e *Engine) UpdateMemberStatus(ctx context.Context, teamID, userID, status string) (bool, error) {
	const op = "engine.UpdateMemberStatus"
	if blank(teamID) || blank(userID) {
		return false, newError(op, ErrValidation, errors.New("team id and user id are required"))
	}
	if status != model.MemberActive && status != model.MemberInactive {
		return false, newError(op, ErrValidation, errors.New("unknown member status "+status))
	}

	ok, err := e.statuses.UpdateMemberStatus(ctx, teamID, userID, status)
	if err != nil {
		return false, classify(op, err)
	}
	if e.cache != nil {
		e.cache.Clear(ctx, ReasonMemberStatus)
	}
	return ok, nil
}

// loadOrNew returns the stored record or a fresh default one.
func loadOrNew(ctx context.Context, scores repository.ScoreStore, userID, teamID string, now time.Time) (model.PerformanceScore, error) {
	ps, err := scores.FindScore(ctx, userID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewPerformanceScore(scores.NewScoreID(), userID, teamID, now), nil
	}
	return ps, err
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/okian/perfscore/internal/adapters/repository"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/internal/domain/scoring"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// IncrementalScoreUpdater applies one delta per task transition to the
// user's team-less record.
type IncrementalScoreUpdater struct {
	scores   repository.ScoreStore
	strategy scoring.Strategy
	now      func() time.Time
	metrics  *metrics.Manager
	log      logger.Logger
}

// RecordOutcome loads (or creates) the record, computes the next state in
// memory and persists it with one replace. On any error the stored record
// is unchanged. Calling it twice for one transition counts it twice.
func (u *IncrementalScoreUpdater) RecordOutcome(ctx context.Context, userID string, task model.Task, completed bool) error {
	const op = "engine.RecordOutcome"
	if blank(userID) {
		return newError(op, ErrValidation, errors.New("user id is required"))
	}

	now := u.now()
	prev, err := loadOrNew(ctx, u.scores, userID, "", now)
	if err != nil {
		return classify(op, err)
	}

	next, out := u.strategy.Next(prev, scoring.Input{Task: task, Completed: completed}, now)
	if err := u.scores.ReplaceScore(ctx, next); err != nil {
		return classify(op, err)
	}

	u.metrics.RecordOutcome(out.Entry.ActionType)
	u.metrics.AddHistoryTrimmed(out.Policy, out.Trimmed)
	u.log.Debug(ctx, "outcome recorded",
		logger.String("user_id", userID),
		logger.String("task_id", task.ID),
		logger.Float64("delta", out.Delta),
		logger.Float64("score", next.Score),
	)
	return nil
}

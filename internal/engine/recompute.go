package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/perfscore/internal/adapters/repository"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/internal/domain/scoring"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// TeamRecomputeCoordinator rebuilds a user's per-team scores from scratch.
type TeamRecomputeCoordinator struct {
	tasks    repository.TaskDirectory
	teams    repository.TeamDirectory
	scores   repository.ScoreStore
	keys     repository.KeyValidator
	sync     *MemberMetricsSynchronizer
	strategy scoring.Strategy
	now      func() time.Time
	metrics  *metrics.Manager
	log      logger.Logger
}

// RecomputeForUser rebuilds the record of every team the user belongs to.
//
// Teams are processed sequentially. A failure inside one team is logged and
// the loop moves on; only failures outside the loop (listing tasks or teams,
// the final bulk write) are returned. Score records are written in one bulk
// upsert after the loop, while member projections are written per team as
// the loop runs.
func (c *TeamRecomputeCoordinator) RecomputeForUser(ctx context.Context, userID string) error {
	const op = "engine.RecomputeForUser"
	if blank(userID) {
		return newError(op, ErrValidation, errors.New("user id is required"))
	}
	start := time.Now()

	tasks, err := c.tasks.TasksForUser(ctx, userID)
	if err != nil {
		return classify(op, err)
	}
	teams, err := c.teams.TeamsForUser(ctx, userID)
	if err != nil {
		return classify(op, err)
	}
	if len(teams) == 0 {
		c.log.Debug(ctx, "user has no teams", logger.String("user_id", userID))
		return nil
	}

	now := c.now()
	batch := make([]model.PerformanceScore, 0, len(teams))
	for _, team := range teams {
		next, err := c.rebuild(ctx, userID, team, tasks, now)
		if err != nil {
			c.report(ctx, userID, team.ID, err)
			continue
		}
		batch = append(batch, next)

		if _, err := c.sync.Sync(ctx, team.ID, userID, next.Metrics()); err != nil {
			c.report(ctx, userID, team.ID, err)
			continue
		}
		c.metrics.RecordRecomputeTeam(metrics.ResultOK)
	}

	if len(batch) > 0 {
		if err := c.scores.BulkUpsertScores(ctx, batch); err != nil {
			return classify(op, err)
		}
		c.metrics.ObserveBulkUpsert(len(batch))
	}
	c.metrics.ObserveRecompute(time.Since(start).Seconds())
	c.log.Debug(ctx, "recompute finished",
		logger.String("user_id", userID),
		logger.Int("teams", len(teams)),
		logger.Int("written", len(batch)),
	)
	return nil
}

// rebuild computes the next record of one team. A panic in the iteration is
// turned into an error so the remaining teams still run.
func (c *TeamRecomputeCoordinator) rebuild(ctx context.Context, userID string, team model.Team, tasks []model.Task, now time.Time) (next model.PerformanceScore, err error) {
	const op = "engine.RecomputeForUser"
	defer func() {
		if r := recover(); r != nil {
			err = newError(op, ErrTransientStore, fmt.Errorf("team iteration panicked: %v", r))
		}
	}()

	if !c.keys.ValidKey(team.ID) {
		return model.PerformanceScore{}, newError(op, ErrDataIntegrity, fmt.Errorf("team id %q is not a valid store key", team.ID))
	}

	prev, err := loadOrNew(ctx, c.scores, userID, team.ID, now)
	if err != nil {
		return model.PerformanceScore{}, classify(op, err)
	}
	in := scoring.Input{Tasks: scoring.FilterByTeam(tasks, team.ID), TeamID: team.ID}
	next, out := c.strategy.Next(prev, in, now)
	c.metrics.AddHistoryTrimmed(out.Policy, out.Trimmed)
	return next, nil
}

func (c *TeamRecomputeCoordinator) report(ctx context.Context, userID, teamID string, err error) {
	if errors.Is(err, ErrDataIntegrity) {
		c.metrics.RecordRecomputeTeam(metrics.ResultSkipped)
		c.log.Warn(ctx, "skipping team with malformed id",
			logger.String("user_id", userID),
			logger.String("team_id", teamID),
			logger.Error(err),
		)
		return
	}
	c.metrics.RecordRecomputeTeam(metrics.ResultFailed)
	c.log.Error(ctx, "team recompute failed",
		logger.String("user_id", userID),
		logger.String("team_id", teamID),
		logger.Error(err),
	)
}

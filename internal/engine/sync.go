package engine

import (
	"context"
	"errors"

	"github.com/okian/perfscore/internal/adapters/repository"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// MemberMetricsSynchronizer keeps the member projection embedded in a team
// in step with the canonical score record. The two writes are independent;
// a failure between them leaves the projection stale until the next sync.
type MemberMetricsSynchronizer struct {
	writer  repository.MemberMetricsWriter
	metrics *metrics.Manager
	log     logger.Logger
}

// Sync updates the matching member's metrics and mirror fields. A missing
// member is not an error: Sync logs it and returns false.
func (s *MemberMetricsSynchronizer) Sync(ctx context.Context, teamID, userID string, m model.MemberMetrics) (bool, error) {
	const op = "engine.Sync"
	if blank(teamID) || blank(userID) {
		return false, newError(op, ErrValidation, errors.New("team id and user id are required"))
	}

	ok, err := s.writer.UpdateMemberMetrics(ctx, teamID, userID, m)
	if err != nil {
		s.metrics.RecordProjectionSync(metrics.ResultFailed)
		return false, classify(op, err)
	}
	if !ok {
		s.metrics.RecordProjectionSync(metrics.ResultMissing)
		s.log.Warn(ctx, "no member matched projection update",
			logger.String("team_id", teamID),
			logger.String("user_id", userID),
		)
		return false, nil
	}
	s.metrics.RecordProjectionSync(metrics.ResultUpdated)
	return true, nil
}

// Package repository defines the store contracts the scoring engine reads and
// writes through, and the memory, MongoDB and SQL implementations of them.
package repository

import (
	"context"

	"github.com/okian/perfscore/internal/domain/model"
)

// TaskDirectory lists the tasks assigned to a user.
type TaskDirectory interface {
	// TasksForUser returns every task whose assignee list contains userID,
	// projected to the fields the scoring formulas read.
	TasksForUser(ctx context.Context, userID string) ([]model.Task, error)
}

// TeamDirectory resolves teams and memberships.
type TeamDirectory interface {
	// TeamsForUser returns every team with userID in its member list.
	TeamsForUser(ctx context.Context, userID string) ([]model.Team, error)
	// TeamByID returns ErrNotFound if the team is unknown.
	TeamByID(ctx context.Context, teamID string) (model.Team, error)
}

// ScoreStore persists PerformanceScore records.
type ScoreStore interface {
	// FindScore returns the record for (userID, teamID) or ErrNotFound.
	// An empty teamID selects the user's team-less record.
	FindScore(ctx context.Context, userID, teamID string) (model.PerformanceScore, error)
	// ReplaceScore inserts or replaces the record keyed by its own ID.
	ReplaceScore(ctx context.Context, score model.PerformanceScore) error
	// BulkUpsertScores inserts or replaces every record keyed by
	// (UserID, TeamID) in one round trip. It is not a transaction.
	BulkUpsertScores(ctx context.Context, scores []model.PerformanceScore) error
	// NewScoreID returns an identifier in the store's native key format.
	NewScoreID() string
}

// MemberMetricsWriter updates the denormalized member projection.
type MemberMetricsWriter interface {
	// UpdateMemberMetrics sets the nested metrics and the legacy mirror
	// fields of the matching member. It reports false, without error, when
	// no member matched.
	UpdateMemberMetrics(ctx context.Context, teamID, userID string, metrics model.MemberMetrics) (bool, error)
}

// MemberStatusWriter changes a member's status.
type MemberStatusWriter interface {
	UpdateMemberStatus(ctx context.Context, teamID, userID, status string) (bool, error)
}

// KeyValidator reports whether an identifier is a well-formed store key.
type KeyValidator interface {
	ValidKey(id string) bool
}

// Store is the full contract implemented by every backend.
type Store interface {
	TaskDirectory
	TeamDirectory
	ScoreStore
	MemberMetricsWriter
	MemberStatusWriter
	KeyValidator

	Close(ctx context.Context) error
}

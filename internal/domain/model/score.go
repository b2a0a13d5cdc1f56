package model

import "time"

// Default values for a freshly created performance score.
const (
	DefaultScore        = 100.0
	DefaultHistoryLimit = 100
	MinScore            = 0.0
	MaxScore            = 100.0
)

// Action types recorded on history entries.
const (
	ActionRecalculation = "recalculation"
	ActionTaskCompleted = "task_completed"
	ActionTaskOverdue   = "task_overdue"
)

// ScoreHistoryEntry is one audit record of a score change.
type ScoreHistoryEntry struct {
	Date       time.Time `bson:"date" json:"date"`
	Delta      float64   `bson:"change" json:"change"`
	Reason     string    `bson:"reason" json:"reason"`
	TeamID     string    `bson:"teamId,omitempty" json:"teamId,omitempty"`
	ActionType string    `bson:"actionType,omitempty" json:"actionType,omitempty"`
}

// PerformanceScore is the canonical score record for a (user, team) pair.
// An empty TeamID denotes the user's team-less record.
type PerformanceScore struct {
	ID                  string              `bson:"_id" json:"id"`
	UserID              string              `bson:"userId" json:"userId"`
	TeamID              string              `bson:"teamId" json:"teamId,omitempty"`
	Score               float64             `bson:"score" json:"score"`
	CompletedTasksCount int                 `bson:"completedTasksCount" json:"completedTasksCount"`
	OverdueTasksCount   int                 `bson:"overdueTasksCount" json:"overdueTasksCount"`
	TotalTasksCount     int                 `bson:"totalTasksCount" json:"totalTasksCount"`
	LastUpdated         time.Time           `bson:"lastUpdated" json:"lastUpdated"`
	History             []ScoreHistoryEntry `bson:"history" json:"history"`
}

// NewPerformanceScore returns the optimistic starting record for a pair.
func NewPerformanceScore(id, userID, teamID string, now time.Time) PerformanceScore {
	return PerformanceScore{
		ID:          id,
		UserID:      userID,
		TeamID:      teamID,
		Score:       DefaultScore,
		LastUpdated: now,
		History:     []ScoreHistoryEntry{},
	}
}

// Clone returns a deep copy so callers can mutate history freely.
func (p PerformanceScore) Clone() PerformanceScore {
	out := p
	if p.History != nil {
		out.History = make([]ScoreHistoryEntry, len(p.History))
		copy(out.History, p.History)
	}
	return out
}

// Metrics returns the projection shape of the record.
func (p PerformanceScore) Metrics() MemberMetrics {
	return MemberMetrics{
		Score:          p.Score,
		CompletedTasks: p.CompletedTasksCount,
		OverdueTasks:   p.OverdueTasksCount,
		TotalTasks:     p.TotalTasksCount,
		LastUpdated:    p.LastUpdated,
	}
}

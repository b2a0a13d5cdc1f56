package scoring

import (
	"time"

	"github.com/okian/perfscore/internal/domain/model"
)

// Batch formula constants.
const (
	weightHigh   = 30.0
	weightMedium = 20.0
	weightLow    = 10.0

	earlyBonusPerDay     = 0.02
	lateFactorPerDay     = 0.015
	overduePenaltyPerDay = 0.05

	// bestCaseDaysEarly models the best achievable outcome for a task.
	bestCaseDaysEarly = 5.0

	// ReasonRecalculated is recorded on every recompute history entry.
	ReasonRecalculated = "recalculated"
)

// BasePriority returns the batch weight for a priority. Unknown priorities
// weigh as low.
func BasePriority(p model.Priority) float64 {
	switch p.Normalized() {
	case model.PriorityHigh:
		return weightHigh
	case model.PriorityMedium:
		return weightMedium
	default:
		return weightLow
	}
}

// TaskScore returns the signed point value of a single task at time now.
//
// The late-completion branch multiplies a negative day delta by -1, so a late
// finish still earns a positive time factor. This is kept as-is for parity
// with existing stored scores; see DESIGN.md before changing it.
func TaskScore(t model.Task, now time.Time) float64 {
	base := BasePriority(t.Priority)
	assigned := float64(t.AssignedCount())

	switch t.Status {
	case model.StatusCompleted:
		if t.CompletedAt == nil {
			return 0
		}
		daysDelta := days(t.DueDate.Sub(*t.CompletedAt))
		var timeFactor float64
		if daysDelta > 0 {
			timeFactor = daysDelta * earlyBonusPerDay
		} else {
			timeFactor = daysDelta * lateFactorPerDay * -1
		}
		return base * (1 + timeFactor) / assigned
	case model.StatusOverdue:
		overdueDays := days(now.Sub(t.DueDate))
		if overdueDays <= 0 {
			return 0
		}
		return base * overdueDays * overduePenaltyPerDay * -1 / assigned
	default:
		return 0
	}
}

// maxTaskScore is the best-case value of t: finished bestCaseDaysEarly early.
func maxTaskScore(t model.Task) float64 {
	return BasePriority(t.Priority) * (1 + bestCaseDaysEarly*earlyBonusPerDay) / float64(t.AssignedCount())
}

// Aggregate normalizes a task set to a percentage in [0, 100]. An empty set
// scores model.DefaultScore.
func Aggregate(tasks []model.Task, now time.Time) float64 {
	if len(tasks) == 0 {
		return model.DefaultScore
	}
	var total, maxPossible float64
	for _, t := range tasks {
		total += TaskScore(t, now)
		maxPossible += maxTaskScore(t)
	}
	if maxPossible == 0 {
		return model.DefaultScore
	}
	return Clamp(total / maxPossible * 100)
}

// Counts are the per-team task counters stored alongside a score.
type Counts struct {
	Completed int
	Overdue   int
	Total     int
}

// CountTasks tallies completed and overdue tasks.
func CountTasks(tasks []model.Task) Counts {
	c := Counts{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case model.StatusCompleted:
			c.Completed++
		case model.StatusOverdue:
			c.Overdue++
		}
	}
	return c
}

// FilterByTeam returns the tasks owned by teamID.
func FilterByTeam(tasks []model.Task, teamID string) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.TeamID == teamID {
			out = append(out, t)
		}
	}
	return out
}

// BatchStrategy rebuilds a score from the full task list of one team.
type BatchStrategy struct {
	opts options
}

// NewBatchStrategy creates the recompute strategy.
func NewBatchStrategy(opts ...Option) *BatchStrategy {
	return &BatchStrategy{opts: buildOptions(opts)}
}

// Name implements Strategy.
func (s *BatchStrategy) Name() string { return BatchStrategyName }

// Next implements Strategy. in.Tasks must already be filtered to in.TeamID.
func (s *BatchStrategy) Next(prev model.PerformanceScore, in Input, now time.Time) (model.PerformanceScore, Outcome) {
	next := prev.Clone()
	counts := CountTasks(in.Tasks)

	next.Score = Aggregate(in.Tasks, now)
	next.CompletedTasksCount = counts.Completed
	next.OverdueTasksCount = counts.Overdue
	next.TotalTasksCount = counts.Total
	next.LastUpdated = now

	entry := model.ScoreHistoryEntry{
		Date:       now,
		Delta:      next.Score - prev.Score,
		Reason:     ReasonRecalculated,
		TeamID:     in.TeamID,
		ActionType: model.ActionRecalculation,
	}
	var trimmed int
	next.History, trimmed = TrimByAppend(append(next.History, entry), s.opts.historyLimit)

	return next, Outcome{Strategy: s.Name(), Delta: entry.Delta, Entry: entry, Policy: PolicyByAppend, Trimmed: trimmed}
}

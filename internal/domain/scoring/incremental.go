package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/perfscore/internal/domain/model"
)

// Incremental formula constants.
const (
	pointsLow    = 5.0
	pointsMedium = 10.0
	pointsHigh   = 15.0

	latePenaltyPerDay = 0.1
	maxLatePenalty    = 0.5

	streakBonusPerTask = 0.5
	maxStreakBonus     = 20.0

	overduePointsPerDay = 2.0
	maxOverduePenalty   = 10.0
)

// BasePoints returns the incremental base points for a difficulty.
func BasePoints(d model.Difficulty) float64 {
	switch strings.ToLower(strings.TrimSpace(string(d))) {
	case "high":
		return pointsHigh
	case "medium":
		return pointsMedium
	default:
		return pointsLow
	}
}

// Delta is the result of the incremental formula for one transition.
type Delta struct {
	Points     float64 // delta before clamping, streak bonus included
	Streak     float64 // streak bonus part of Points
	Reason     string
	ActionType string
}

// IncrementalDelta computes the score change for one task transition given
// the number of tasks the user already completed.
func IncrementalDelta(t model.Task, completed bool, completedSoFar int, now time.Time) Delta {
	base := BasePoints(t.Difficulty)

	if !completed {
		daysOverdue := math.Max(0, days(now.Sub(t.DueDate)))
		penalty := math.Min(maxOverduePenalty, daysOverdue*overduePointsPerDay)
		return Delta{
			Points:     -penalty,
			Reason:     fmt.Sprintf("Task overdue by %.1f days - penalty applied", daysOverdue),
			ActionType: model.ActionTaskOverdue,
		}
	}

	elapsed := now.Sub(t.StartDate).Hours()
	expected := t.DueDate.Sub(t.StartDate).Hours()
	if expected <= 0 {
		expected = 1
	}
	efficiency := elapsed / expected

	var points float64
	var reason string
	switch {
	case efficiency < 1:
		points = base * (2 - efficiency)
		reason = fmt.Sprintf("Task completed early (%.0f%% of expected time) - bonus points", efficiency*100)
	case now.After(t.DueDate):
		daysLate := days(now.Sub(t.DueDate))
		penaltyFactor := math.Min(maxLatePenalty, daysLate*latePenaltyPerDay)
		points = base * (1 - penaltyFactor)
		reason = fmt.Sprintf("Task completed late by %.1f days - reduced points", daysLate)
	default:
		points = base
		reason = "Task completed on time - base points"
	}

	streak := math.Min(float64(completedSoFar)*streakBonusPerTask, maxStreakBonus)
	return Delta{
		Points:     points + streak,
		Streak:     streak,
		Reason:     reason,
		ActionType: model.ActionTaskCompleted,
	}
}

// IncrementalStrategy applies one delta per task transition.
type IncrementalStrategy struct {
	opts options
}

// NewIncrementalStrategy creates the per-event strategy.
func NewIncrementalStrategy(opts ...Option) *IncrementalStrategy {
	return &IncrementalStrategy{opts: buildOptions(opts)}
}

// Name implements Strategy.
func (s *IncrementalStrategy) Name() string { return IncrementalStrategyName }

// Next implements Strategy.
func (s *IncrementalStrategy) Next(prev model.PerformanceScore, in Input, now time.Time) (model.PerformanceScore, Outcome) {
	next := prev.Clone()
	d := IncrementalDelta(in.Task, in.Completed, prev.CompletedTasksCount, now)

	if in.Completed {
		next.CompletedTasksCount++
	} else {
		next.OverdueTasksCount++
	}
	next.Score = Clamp(prev.Score + d.Points)
	next.LastUpdated = now

	entry := model.ScoreHistoryEntry{
		Date:       now,
		Delta:      d.Points,
		Reason:     d.Reason,
		TeamID:     in.Task.TeamID,
		ActionType: d.ActionType,
	}
	var trimmed int
	next.History, trimmed = TrimByAge(append(next.History, entry), s.opts.historyLimit)

	return next, Outcome{Strategy: s.Name(), Delta: d.Points, Entry: entry, Policy: PolicyByAge, Trimmed: trimmed}
}

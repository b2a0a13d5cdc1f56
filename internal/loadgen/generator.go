package loadgen

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/perfscore/internal/domain/model"
)

const (
	completedRatio = 0.7
	maxSpanDays    = 14
)

var difficulties = []model.Difficulty{model.DifficultyLow, model.DifficultyMedium, model.DifficultyHigh}

// Generate builds EventsPerUser outcome events and a trailing recompute
// event for every user. The same seed yields the same tasks.
func Generate(cfg *Config, now time.Time) []model.TaskEvent {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	events := make([]model.TaskEvent, 0, cfg.Users*(cfg.EventsPerUser+1))

	for u := 0; u < cfg.Users; u++ {
		userID := fmt.Sprintf("user-%04d", u)
		for i := 0; i < cfg.EventsPerUser; i++ {
			events = append(events, outcomeEvent(rng, cfg.TeamID, userID, i, now))
		}
		events = append(events, model.TaskEvent{
			EventID: uuid.NewString(),
			Type:    model.EventRecompute,
			UserID:  userID,
			TS:      now,
		})
	}
	return events
}

func outcomeEvent(rng *rand.Rand, teamID, userID string, i int, now time.Time) model.TaskEvent {
	completed := rng.Float64() < completedRatio
	start := now.Add(-time.Duration(1+rng.IntN(maxSpanDays)) * 24 * time.Hour)
	due := start.Add(time.Duration(1+rng.IntN(maxSpanDays)) * 24 * time.Hour)

	task := &model.Task{
		ID:         fmt.Sprintf("%s-task-%d", userID, i),
		Status:     model.StatusOverdue,
		Priority:   model.PriorityMedium,
		Difficulty: difficulties[rng.IntN(len(difficulties))],
		AssignedTo: []string{userID},
		StartDate:  start,
		DueDate:    due,
		TeamID:     teamID,
		CreatedAt:  start,
	}
	if completed {
		task.Status = model.StatusCompleted
		task.CompletedAt = &now
	}
	return model.TaskEvent{
		EventID:   uuid.NewString(),
		Type:      model.EventOutcome,
		UserID:    userID,
		Task:      task,
		Completed: completed,
		TS:        now,
	}
}

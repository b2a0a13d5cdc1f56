// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

// Task statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// Priority drives the batch scoring weight of a task.
type Priority string

// Task priorities. Comparison is case-insensitive, see Normalized.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Normalized lowercases and trims the priority.
func (p Priority) Normalized() Priority {
	return Priority(strings.ToLower(strings.TrimSpace(string(p))))
}

// Difficulty drives the incremental scoring base points. It is independent
// of Priority.
type Difficulty string

// Task difficulties as written by the task collaborator.
const (
	DifficultyLow    Difficulty = "Low"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHigh   Difficulty = "High"
)

// Task is owned by the task-management collaborator and is read-only here.
type Task struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	Title       string     `bson:"title,omitempty" json:"title,omitempty"`
	Status      Status     `bson:"status" json:"status"`
	Priority    Priority   `bson:"priority" json:"priority"`
	Difficulty  Difficulty `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	AssignedTo  []string   `bson:"assignedTo" json:"assignedTo"`
	StartDate   time.Time  `bson:"startDate" json:"startDate"`
	DueDate     time.Time  `bson:"dueDate" json:"dueDate"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	TeamID      string     `bson:"teamId,omitempty" json:"teamId,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
}

// AssignedCount returns the number of assignees, never less than one.
func (t Task) AssignedCount() int {
	if len(t.AssignedTo) == 0 {
		return 1
	}
	return len(t.AssignedTo)
}

// IsCompleted reports whether the task is in the completed state.
func (t Task) IsCompleted() bool { return t.Status == StatusCompleted }

// IsOverdue reports whether the task is in the overdue state.
func (t Task) IsOverdue() bool { return t.Status == StatusOverdue }

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventOutcome   EventType = "outcome"   // single-task transition, incremental path
	EventRecompute EventType = "recompute" // full per-team recompute for the user
)

// ErrInvalidEvent is wrapped by TaskEvent.Validate.
var ErrInvalidEvent = errors.New("invalid task event")

type TaskEvent struct {
	EventID   string    `json:"event_id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Task      *Task     `json:"task,omitempty"`
	Completed bool      `json:"completed"`
	TS        time.Time `json:"ts"`
}

// Validate checks the fields a worker needs to dispatch the event.
func (e TaskEvent) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: user_id missing", ErrInvalidEvent)
	}
	switch e.Type {
	case EventOutcome:
		if e.Task == nil {
			return fmt.Errorf("%w: outcome event without task", ErrInvalidEvent)
		}
	case EventRecompute:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

package service

import (
	"errors"

	eventqueue "github.com/okian/perfscore/internal/adapters/mq/queue"
)

// Sentinel errors returned by Service.
var (
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrBackpressure is returned when the event queue is full or closed.
	ErrBackpressure = eventqueue.ErrQueueFull
	// ErrUnknownStore is returned by OpenStore for an unknown backend.
	ErrUnknownStore = errors.New("unknown store backend")
)

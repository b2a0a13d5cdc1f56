package ingest

import "errors"

// ErrInvalidMessage marks a message that cannot be decoded into a TaskEvent.
var ErrInvalidMessage = errors.New("invalid task event message")

// ErrMissingConfig is returned when brokers, topic or group are not set.
var ErrMissingConfig = errors.New("kafka consumer config incomplete")

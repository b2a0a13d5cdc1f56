package queue

import "errors"

// ErrQueueFull is returned by callers that translate a rejected Enqueue.
var ErrQueueFull = errors.New("event queue full")

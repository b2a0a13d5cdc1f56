package queue

import "github.com/okian/perfscore/pkg/metrics"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithMetrics records queue depth and rejections into m.
func WithMetrics(m *metrics.Manager) Option {
	return func(q *InMemoryQueue) {
		q.metrics = m
	}
}

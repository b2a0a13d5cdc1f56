package ingest

import (
	"time"

	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// Option applies a configuration option to the TaskEventConsumer.
type Option func(*TaskEventConsumer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *TaskEventConsumer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records consumed messages into m.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *TaskEventConsumer) { c.metrics = m }
}

// WithPollTimeout bounds a single fetch or commit.
func WithPollTimeout(d time.Duration) Option {
	return func(c *TaskEventConsumer) {
		if d > 0 {
			c.poll = d
		}
	}
}

// WithRetryBackoff sets the pause before a rejected event is offered again.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *TaskEventConsumer) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithReader replaces the kafka reader, for tests.
func WithReader(r Reader) Option {
	return func(c *TaskEventConsumer) {
		if r != nil {
			c.reader = r
		}
	}
}

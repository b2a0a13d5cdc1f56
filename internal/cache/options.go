package cache

import (
	"time"

	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithTTL sets the wholesale clear interval. Zero disables caching in
// effect, since every access finds the window elapsed.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics records lookups and clears into m.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

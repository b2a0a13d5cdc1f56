package worker

import (
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
	"golang.org/x/time/rate"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMetrics records handled events into m.
func WithMetrics(m *metrics.Manager) Option {
	return func(w *InMemoryWorker) {
		w.metrics = m
	}
}

// WithRecomputeLimiter throttles recompute events. Pass the same limiter to
// every worker so the bound applies to the whole pool.
func WithRecomputeLimiter(l *rate.Limiter) Option {
	return func(w *InMemoryWorker) {
		w.limiter = l
	}
}

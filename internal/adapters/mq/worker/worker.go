// Package worker drains the task event queue into the scoring engine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/perfscore/internal/adapters/mq/queue"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
	"golang.org/x/time/rate"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// ErrUnknownEventType is returned for events the engine has no path for.
var ErrUnknownEventType = errors.New("unknown task event type")

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Engine is the subset of the scoring engine workers call.
type Engine interface {
	RecordOutcome(ctx context.Context, userID string, task model.Task, completed bool) error
	RecomputeForUser(ctx context.Context, userID string) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events and hands them to the engine.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing events.
type InMemoryWorker struct {
	queue   Queue
	engine  Engine
	name    string
	limiter *rate.Limiter
	metrics *metrics.Manager
	handled *atomic.Int64

	// Shutdown control
	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, engine Engine, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		engine:   engine,
		name:     "worker",
		handled:  &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	eventChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing event",
					logger.String("event_id", event.EventID),
					logger.String("user_id", event.UserID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// processEvent dispatches a single event to the matching engine path.
func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	defer w.handled.Add(1)

	var err error
	switch event.Type {
	case model.EventOutcome:
		if event.Task == nil {
			err = fmt.Errorf("outcome event %s has no task", event.EventID)
			break
		}
		err = w.engine.RecordOutcome(ctx, event.UserID, *event.Task, event.Completed)
	case model.EventRecompute:
		if w.limiter != nil {
			if err = w.limiter.Wait(ctx); err != nil {
				break
			}
		}
		err = w.engine.RecomputeForUser(ctx, event.UserID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEventType, event.Type)
	}

	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultFailed
	}
	w.metrics.RecordWorkerEvent(string(event.Type), result)
	return err
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	handled *atomic.Int64
	logger  logger.Logger
}

// NewPool creates a new worker pool. All workers share one recompute limiter.
func NewPool(workerCount int, q Queue, engine Engine, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		handled: &atomic.Int64{},
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, engine, workerOpts...)
		w.handled = pool.handled
		pool.workers[i] = w
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Handled returns how many events the pool has processed.
func (p *Pool) Handled() int64 { return p.handled.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Drain waits for the workers to hand every event left in a closed queue to
// the engine. Workers exit once their dequeue channel closes. If ctx ends
// first the pool is stopped and the remaining events are dropped.
func (p *Pool) Drain(ctx context.Context) error {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "drain interrupted", logger.Int("worker_id", i))
			return errors.Join(fmt.Errorf("drain: %w", ctx.Err()), p.Stop(context.WithoutCancel(ctx)))
		}
	}
	return nil
}

// Stop stops all workers without waiting for queued events.
func (p *Pool) Stop(ctx context.Context) error {
	for _, w := range p.workers {
		w.stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	}
	return nil
}

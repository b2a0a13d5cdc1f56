// Package ingest feeds task-mutation messages from Kafka into the intake
// queue.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// Message results recorded in ingest_messages_total.
const (
	ResultAccepted  = "accepted"
	ResultDuplicate = "duplicate"
	ResultInvalid   = "invalid"
	ResultRejected  = "rejected"
)

const (
	defaultPollTimeout  = 5 * time.Second
	defaultRetryBackoff = 200 * time.Millisecond
)

// Config names the stream to consume.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Enqueuer accepts decoded events. It reports duplicate events without error
// and returns a non-nil error when the event was not accepted.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev model.TaskEvent) (duplicate bool, err error)
}

// Retryable reports whether an Enqueue error is worth retrying, such as a
// full queue. Other errors drop the message.
type Retryable func(error) bool

// TaskEventConsumer streams TaskEvents from Kafka into an Enqueuer.
type TaskEventConsumer struct {
	cfg       Config
	reader    Reader
	sink      Enqueuer
	retryable Retryable
	poll      time.Duration
	backoff   time.Duration
	metrics   *metrics.Manager
	log       logger.Logger
}

// NewTaskEventConsumer builds a consumer-group reader for cfg.
func NewTaskEventConsumer(cfg Config, sink Enqueuer, retryable Retryable, opts ...Option) (*TaskEventConsumer, error) {
	if len(cfg.Brokers) == 0 || strings.TrimSpace(cfg.Topic) == "" || strings.TrimSpace(cfg.GroupID) == "" {
		return nil, ErrMissingConfig
	}
	if sink == nil {
		return nil, errors.New("ingest: nil enqueuer")
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	c := &TaskEventConsumer{
		cfg:       cfg,
		sink:      sink,
		retryable: retryable,
		poll:      defaultPollTimeout,
		backoff:   defaultRetryBackoff,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reader == nil {
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
		})
	}
	return c, nil
}

// Close shuts down the reader.
func (c *TaskEventConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Run consumes until ctx is cancelled or the reader is closed. Messages that
// fail to decode are logged and committed past.
func (c *TaskEventConsumer) Run(ctx context.Context) error {
	c.log.Info(ctx, "task event consumer started",
		logger.String("topic", c.cfg.Topic),
		logger.String("group", c.cfg.GroupID),
		logger.String("brokers", strings.Join(c.cfg.Brokers, ",")),
	)
	defer c.log.Info(context.Background(), "task event consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			c.log.Error(ctx, "fetch failed", logger.Error(err))
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			// Only cancellation stops handle; leave the message uncommitted.
			return err
		}

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil && ctx.Err() == nil {
			c.log.Error(ctx, "commit failed", logger.Error(err), logger.Any("offset", msg.Offset))
		}
		commitCancel()
	}
}

// handle decodes and enqueues one message. It returns an error only when ctx
// ends while a rejected event is being retried.
func (c *TaskEventConsumer) handle(ctx context.Context, msg kafka.Message) error {
	ev, err := DecodeTaskEvent(msg.Value)
	if err != nil {
		c.metrics.RecordIngestMessage(ResultInvalid)
		c.log.Warn(ctx, "dropping undecodable message",
			logger.Error(err),
			logger.Any("partition", msg.Partition),
			logger.Any("offset", msg.Offset),
		)
		return nil
	}

	for {
		duplicate, err := c.sink.Enqueue(ctx, ev)
		switch {
		case err == nil && duplicate:
			c.metrics.RecordIngestMessage(ResultDuplicate)
			return nil
		case err == nil:
			c.metrics.RecordIngestMessage(ResultAccepted)
			return nil
		case c.retryable(err):
			c.metrics.RecordIngestMessage(ResultRejected)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
		default:
			c.metrics.RecordIngestMessage(ResultInvalid)
			c.log.Warn(ctx, "dropping rejected event",
				logger.Error(err),
				logger.String("event_id", ev.EventID),
				logger.String("user_id", ev.UserID),
			)
			return nil
		}
	}
}

// DecodeTaskEvent parses a message value. Unknown fields are ignored.
func DecodeTaskEvent(raw []byte) (model.TaskEvent, error) {
	var ev model.TaskEvent
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&ev); err != nil {
		return model.TaskEvent{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	ev.UserID = strings.TrimSpace(ev.UserID)
	if err := ev.Validate(); err != nil {
		return model.TaskEvent{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return ev, nil
}

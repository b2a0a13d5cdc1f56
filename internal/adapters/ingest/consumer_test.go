package ingest_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/perfscore/internal/adapters/ingest"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

var errFull = errors.New("queue full")

// fakeReader serves a fixed set of messages and then reports io.EOF.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

// fakeSink accepts events, rejects the first rejectN calls and reports
// repeated event ids as duplicates.
type fakeSink struct {
	mu      sync.Mutex
	rejectN int
	seen    map[string]bool
	events  []model.TaskEvent
}

func (s *fakeSink) Enqueue(_ context.Context, ev model.TaskEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectN > 0 {
		s.rejectN--
		return false, errFull
	}
	if s.seen[ev.EventID] {
		return true, nil
	}
	s.seen[ev.EventID] = true
	s.events = append(s.events, ev)
	return false, nil
}

func isFull(err error) bool { return errors.Is(err, errFull) }

func TestDecodeTaskEvent(t *testing.T) {
	Convey("Given message payloads", t, func() {
		Convey("When an outcome event is well formed", func() {
			ev, err := ingest.DecodeTaskEvent([]byte(`{"event_id":"e1","type":"outcome","user_id":" u1 ",
				"task":{"id":"t1","status":"completed","difficulty":"High","assignedTo":["u1"]},"completed":true,"extra":1}`))

			Convey("Then every field is decoded and unknown fields are ignored", func() {
				So(err, ShouldBeNil)
				So(ev.EventID, ShouldEqual, "e1")
				So(ev.UserID, ShouldEqual, "u1")
				So(ev.Type, ShouldEqual, model.EventOutcome)
				So(ev.Completed, ShouldBeTrue)
				So(ev.Task.Difficulty, ShouldEqual, model.DifficultyHigh)
			})
		})

		Convey("When the payload is not usable", func() {
			for _, raw := range []string{
				`not json`,
				`{"type":"recompute"}`,
				`{"type":"outcome","user_id":"u1"}`,
				`{"type":"delete","user_id":"u1"}`,
			} {
				_, err := ingest.DecodeTaskEvent([]byte(raw))
				So(errors.Is(err, ingest.ErrInvalidMessage), ShouldBeTrue)
			}
		})
	})
}

func TestNewTaskEventConsumer(t *testing.T) {
	Convey("Given incomplete configs", t, func() {
		sink := &fakeSink{seen: map[string]bool{}}
		for _, cfg := range []ingest.Config{
			{Topic: "t", GroupID: "g"},
			{Brokers: []string{"b:9092"}, GroupID: "g"},
			{Brokers: []string{"b:9092"}, Topic: "t"},
		} {
			_, err := ingest.NewTaskEventConsumer(cfg, sink, nil)
			So(errors.Is(err, ingest.ErrMissingConfig), ShouldBeTrue)
		}
	})
}

func TestTaskEventConsumerRun(t *testing.T) {
	cfg := ingest.Config{Brokers: []string{"localhost:9092"}, Topic: "task-events", GroupID: "perfscore"}

	Convey("Given a stream with good, bad and repeated messages", t, func() {
		reader := &fakeReader{msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"event_id":"e1","type":"recompute","user_id":"u1"}`)},
			{Offset: 2, Value: []byte(`{broken`)},
			{Offset: 3, Value: []byte(`{"event_id":"e1","type":"recompute","user_id":"u1"}`)},
			{Offset: 4, Value: []byte(`{"event_id":"e2","type":"outcome","user_id":"u2","task":{"id":"t9"}}`)},
		}}
		sink := &fakeSink{seen: map[string]bool{}, rejectN: 2}
		m := metrics.NewManager()
		c, err := ingest.NewTaskEventConsumer(cfg, sink, isFull,
			ingest.WithReader(reader),
			ingest.WithMetrics(m),
			ingest.WithRetryBackoff(time.Millisecond),
		)
		So(err, ShouldBeNil)

		Convey("When the consumer runs to the end of the stream", func() {
			So(c.Run(context.Background()), ShouldBeNil)

			Convey("Then valid events are enqueued once after retries", func() {
				So(len(sink.events), ShouldEqual, 2)
				So(sink.events[0].EventID, ShouldEqual, "e1")
				So(sink.events[1].EventID, ShouldEqual, "e2")
			})

			Convey("And every message is committed, including the bad one", func() {
				So(reader.committed, ShouldResemble, []int64{1, 2, 3, 4})
			})

			Convey("And each result is counted", func() {
				n, err := testutil.GatherAndCount(m.Registry(), "perfscore_intake_ingest_messages_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 4)
			})
		})
	})

	Convey("Given a sink that never accepts", t, func() {
		reader := &fakeReader{msgs: []kafka.Message{
			{Offset: 7, Value: []byte(`{"event_id":"e1","type":"recompute","user_id":"u1"}`)},
		}}
		sink := &fakeSink{seen: map[string]bool{}, rejectN: 1 << 30}
		c, err := ingest.NewTaskEventConsumer(cfg, sink, isFull,
			ingest.WithReader(reader),
			ingest.WithRetryBackoff(time.Millisecond),
		)
		So(err, ShouldBeNil)

		Convey("When the context is cancelled mid-retry", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			err := c.Run(ctx)

			Convey("Then Run stops and the message stays uncommitted", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(reader.committed, ShouldBeEmpty)
			})
		})
	})
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/perfscore/internal/adapters/repository"
	service "github.com/okian/perfscore/internal/app"
	"github.com/okian/perfscore/internal/config"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// eventually polls cond until it holds or the timeout passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func seeded(ctx context.Context) *repository.MemoryStore {
	store := repository.NewMemoryStore()
	So(store.PutTeam(ctx, model.Team{ID: "team-1", Members: []model.Member{{UserID: "u1", Status: model.MemberActive}}}), ShouldBeNil)
	So(store.PutTask(ctx, model.Task{
		ID: "t1", Status: model.StatusCompleted, Priority: model.PriorityHigh,
		AssignedTo: []string{"u1"}, DueDate: now.Add(72 * time.Hour), TeamID: "team-1",
	}), ShouldBeNil)
	return store
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not started", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
			_, err := svc.Enqueue(context.Background(), model.TaskEvent{Type: model.EventRecompute, UserID: "u1"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.GetScore(context.Background(), "u1", "")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When started and stopped", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it reports stopped and a second Stop is a no-op", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestServiceEnqueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service over a seeded store", t, func() {
		store := seeded(ctx)
		svc := service.New(
			service.WithStore(store),
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithRecomputeRate(0, 1),
			service.WithClock(clock),
			service.WithMetrics(metrics.NewManager()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a recompute event is enqueued", func() {
			dup, err := svc.Enqueue(ctx, model.TaskEvent{EventID: "e1", Type: model.EventRecompute, UserID: "u1"})
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)

			Convey("Then the team score is rebuilt by a worker", func() {
				So(eventually(func() bool {
					_, err := store.FindScore(ctx, "u1", "team-1")
					return err == nil
				}), ShouldBeTrue)
				ps, err := svc.GetScore(ctx, "u1", "team-1")
				So(err, ShouldBeNil)
				So(ps.CompletedTasksCount, ShouldEqual, 1)
			})

			Convey("And the same event id is reported as a duplicate", func() {
				dup, err := svc.Enqueue(ctx, model.TaskEvent{EventID: "e1", Type: model.EventRecompute, UserID: "u1"})
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("When outcome events without ids are enqueued twice", func() {
			task := &model.Task{ID: "t2", Difficulty: model.DifficultyLow, StartDate: now.Add(-time.Hour), DueDate: now}
			for i := 0; i < 2; i++ {
				dup, err := svc.Enqueue(ctx, model.TaskEvent{Type: model.EventOutcome, UserID: "u1", Task: task, Completed: true})
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
			}

			Convey("Then both are applied to the team-less record", func() {
				So(eventually(func() bool {
					ps, err := store.FindScore(ctx, "u1", "")
					return err == nil && ps.CompletedTasksCount == 2
				}), ShouldBeTrue)
			})
		})

		Convey("When an invalid event is enqueued", func() {
			_, err := svc.Enqueue(ctx, model.TaskEvent{Type: model.EventOutcome, UserID: "u1"})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})

		Convey("When a member status changes", func() {
			ok, err := svc.UpdateMemberStatus(ctx, "team-1", "u1", model.MemberInactive)

			Convey("Then the member is updated", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})
	})

	Convey("Given a service whose workers cannot keep up", t, func() {
		store := seeded(ctx)
		gate := make(chan struct{})
		store.SetFault(func(op, _ string) error {
			if op == repository.OpTasksForUser {
				<-gate
			}
			return nil
		})
		svc := service.New(
			service.WithStore(store),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithRecomputeRate(0, 1),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When more events arrive than the queue holds", func() {
			var full error
			for i := 0; i < 10 && full == nil; i++ {
				_, full = svc.Enqueue(ctx, model.TaskEvent{EventID: fmt.Sprintf("e%d", i), Type: model.EventRecompute, UserID: "u1"})
			}
			close(gate)

			Convey("Then backpressure is reported and the id can be retried", func() {
				So(errors.Is(full, service.ErrBackpressure), ShouldBeTrue)
				So(eventually(func() bool {
					return svc.GetStats()["queueLength"] == 0
				}), ShouldBeTrue)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestServiceStopDrains(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over a slow store", t, func() {
		store := repository.NewMemoryStore()
		store.SetFault(func(op, _ string) error {
			if op == repository.OpFindScore {
				time.Sleep(20 * time.Millisecond)
			}
			return nil
		})
		svc := service.New(
			service.WithStore(store),
			service.WithWorkerCount(4),
			service.WithQueueSize(100),
			service.WithClock(clock),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When outcome events are accepted and the service stops at once", func() {
			task := &model.Task{ID: "t9", Difficulty: model.DifficultyMedium, StartDate: now.Add(-time.Hour), DueDate: now}
			for i := 0; i < 20; i++ {
				_, err := svc.Enqueue(ctx, model.TaskEvent{
					EventID: fmt.Sprintf("e%d", i), Type: model.EventOutcome,
					UserID: fmt.Sprintf("u%d", i), Task: task, Completed: true,
				})
				So(err, ShouldBeNil)
			}
			stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			So(svc.Stop(stopCtx), ShouldBeNil)
			store.SetFault(nil)

			Convey("Then every accepted event was persisted", func() {
				for i := 0; i < 20; i++ {
					ps, err := store.FindScore(ctx, fmt.Sprintf("u%d", i), "")
					So(err, ShouldBeNil)
					So(ps.CompletedTasksCount, ShouldEqual, 1)
				}
			})
		})
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given store configurations", t, func() {
		cfg := config.New()

		Convey("When the memory backend is selected", func() {
			store, err := service.OpenStore(ctx, cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(store, ShouldHaveSameTypeAs, &repository.MemoryStore{})
		})

		Convey("When the sqlite backend is selected", func() {
			cfg.Store = config.StoreSQLite
			cfg.SQLitePath = ":memory:"
			store, err := service.OpenStore(ctx, cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(store.Close(ctx), ShouldBeNil)
		})

		Convey("When an unknown backend is selected", func() {
			cfg.Store = "redis"
			_, err := service.OpenStore(ctx, cfg, logger.Nop())
			So(errors.Is(err, service.ErrUnknownStore), ShouldBeTrue)
		})
	})
}

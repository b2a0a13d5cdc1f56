package scoring_test

import (
	"math"
	"testing"
	"time"

	"github.com/okian/perfscore/internal/domain/model"
	scoring "github.com/okian/perfscore/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const epsilon = 1e-9

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func day(n float64) time.Duration { return time.Duration(n * float64(24*time.Hour)) }

func completedTask(p model.Priority, due, done time.Time, assignees ...string) model.Task {
	return model.Task{
		Status:      model.StatusCompleted,
		Priority:    p,
		AssignedTo:  assignees,
		DueDate:     due,
		CompletedAt: &done,
	}
}

func overdueTask(p model.Priority, due time.Time, assignees ...string) model.Task {
	return model.Task{Status: model.StatusOverdue, Priority: p, AssignedTo: assignees, DueDate: due}
}

func TestTaskScore(t *testing.T) {
	Convey("Given the batch task score model", t, func() {
		Convey("When a high priority task is completed three days early by one user", func() {
			due := now
			task := completedTask(model.PriorityHigh, due, due.Add(-day(3)), "u1")

			Convey("Then it scores 30 * 1.06", func() {
				So(scoring.TaskScore(task, now), ShouldAlmostEqual, 31.8, epsilon)
			})
		})

		Convey("When a medium task shared by two users is four days overdue", func() {
			task := overdueTask(model.PriorityMedium, now.Add(-day(4)), "u1", "u2")

			Convey("Then it contributes -2", func() {
				So(scoring.TaskScore(task, now), ShouldAlmostEqual, -2.0, epsilon)
			})
		})

		Convey("When a task is pending or in progress", func() {
			for _, st := range []model.Status{model.StatusPending, model.StatusInProgress} {
				task := model.Task{Status: st, Priority: model.PriorityHigh, DueDate: now.Add(-day(10))}
				So(scoring.TaskScore(task, now), ShouldEqual, 0)
			}
		})

		Convey("When an overdue task is not yet past its due date", func() {
			So(scoring.TaskScore(overdueTask(model.PriorityHigh, now), now), ShouldEqual, 0)
			So(scoring.TaskScore(overdueTask(model.PriorityHigh, now.Add(day(2))), now), ShouldEqual, 0)
		})

		Convey("When a task is completed two days late", func() {
			task := completedTask(model.PriorityLow, now, now.Add(day(2)))

			Convey("Then the late branch still yields a positive time factor", func() {
				// 10 * (1 + (-2 * 0.015 * -1)) = 10.3
				So(scoring.TaskScore(task, now), ShouldAlmostEqual, 10.3, epsilon)
			})
		})

		Convey("When priorities differ but timing is identical", func() {
			done := now.Add(-day(1))
			high := scoring.TaskScore(completedTask(model.PriorityHigh, now, done), now)
			medium := scoring.TaskScore(completedTask(model.PriorityMedium, now, done), now)
			low := scoring.TaskScore(completedTask("LOW", now, done), now)

			Convey("Then magnitude follows priority", func() {
				So(high, ShouldBeGreaterThan, medium)
				So(medium, ShouldBeGreaterThan, low)
			})

			Convey("And overdue penalties follow priority too", func() {
				due := now.Add(-day(3))
				h := scoring.TaskScore(overdueTask(model.PriorityHigh, due), now)
				m := scoring.TaskScore(overdueTask(model.PriorityMedium, due), now)
				l := scoring.TaskScore(overdueTask(model.PriorityLow, due), now)
				So(math.Abs(h), ShouldBeGreaterThan, math.Abs(m))
				So(math.Abs(m), ShouldBeGreaterThan, math.Abs(l))
			})
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given the score aggregator", t, func() {
		Convey("When there are no tasks", func() {
			So(scoring.Aggregate(nil, now), ShouldEqual, 100)
		})

		Convey("When every task was finished five days early", func() {
			tasks := []model.Task{
				completedTask(model.PriorityHigh, now, now.Add(-day(5))),
				completedTask(model.PriorityLow, now, now.Add(-day(5)), "a", "b"),
			}
			So(scoring.Aggregate(tasks, now), ShouldAlmostEqual, 100, 1e-6)
		})

		Convey("When the only task is a single early completion", func() {
			tasks := []model.Task{completedTask(model.PriorityHigh, now, now.Add(-day(3)))}

			Convey("Then it is normalized against the five-days-early best case", func() {
				So(scoring.Aggregate(tasks, now), ShouldAlmostEqual, 31.8/33.0*100, 1e-6)
			})
		})

		Convey("When every task is badly overdue", func() {
			tasks := []model.Task{
				overdueTask(model.PriorityHigh, now.Add(-day(40))),
				overdueTask(model.PriorityMedium, now.Add(-day(90))),
			}

			Convey("Then the score floors at zero", func() {
				So(scoring.Aggregate(tasks, now), ShouldEqual, 0)
			})
		})

		Convey("When tasks are only pending", func() {
			tasks := []model.Task{{Status: model.StatusPending, Priority: model.PriorityHigh}}
			So(scoring.Aggregate(tasks, now), ShouldEqual, 0)
		})

		Convey("When mixing arbitrary outcomes", func() {
			tasks := []model.Task{
				completedTask(model.PriorityHigh, now, now.Add(-day(30))),
				completedTask(model.PriorityHigh, now, now.Add(-day(60))),
				overdueTask(model.PriorityLow, now.Add(-day(1))),
			}
			score := scoring.Aggregate(tasks, now)
			So(score, ShouldBeBetweenOrEqual, 0, 100)
		})
	})
}

func TestCountsAndFilter(t *testing.T) {
	Convey("Given tasks across two teams", t, func() {
		tasks := []model.Task{
			{ID: "1", TeamID: "a", Status: model.StatusCompleted},
			{ID: "2", TeamID: "a", Status: model.StatusOverdue},
			{ID: "3", TeamID: "b", Status: model.StatusPending},
			{ID: "4", Status: model.StatusCompleted},
		}

		Convey("Then filtering keeps only the team's tasks", func() {
			teamA := scoring.FilterByTeam(tasks, "a")
			So(teamA, ShouldHaveLength, 2)
			So(scoring.CountTasks(teamA), ShouldResemble, scoring.Counts{Completed: 1, Overdue: 1, Total: 2})
		})
	})
}

func TestIncrementalDelta(t *testing.T) {
	Convey("Given the incremental formula", t, func() {
		start := now.Add(-day(2))

		Convey("When a medium task is completed exactly on its due date with four prior completions", func() {
			task := model.Task{Difficulty: model.DifficultyMedium, StartDate: start, DueDate: now}
			d := scoring.IncrementalDelta(task, true, 4, now)

			Convey("Then base points plus a streak bonus of two are awarded", func() {
				So(d.Points, ShouldAlmostEqual, 12, epsilon)
				So(d.Streak, ShouldAlmostEqual, 2, epsilon)
				So(d.Reason, ShouldContainSubstring, "on time")
			})
		})

		Convey("When a high task is completed a quarter into its window", func() {
			task := model.Task{Difficulty: model.DifficultyHigh, StartDate: now.Add(-day(1)), DueDate: now.Add(day(3))}
			d := scoring.IncrementalDelta(task, true, 0, now)

			Convey("Then an early bonus of base*(2-0.25) applies", func() {
				So(d.Points, ShouldAlmostEqual, 15*1.75, epsilon)
				So(d.Reason, ShouldContainSubstring, "early")
			})
		})

		Convey("When a low task is completed three days late", func() {
			task := model.Task{Difficulty: model.DifficultyLow, StartDate: now.Add(-day(5)), DueDate: now.Add(-day(3))}
			d := scoring.IncrementalDelta(task, true, 0, now)

			Convey("Then points are reduced by 30%", func() {
				So(d.Points, ShouldAlmostEqual, 5*0.7, epsilon)
				So(d.Reason, ShouldContainSubstring, "late")
			})
		})

		Convey("When a task is very late the reduction caps at half", func() {
			task := model.Task{Difficulty: "high", StartDate: now.Add(-day(30)), DueDate: now.Add(-day(20))}
			So(scoring.IncrementalDelta(task, true, 0, now).Points, ShouldAlmostEqual, 7.5, epsilon)
		})

		Convey("When the expected duration is zero", func() {
			task := model.Task{Difficulty: model.DifficultyLow, StartDate: now, DueDate: now}
			d := scoring.IncrementalDelta(task, true, 0, now)

			Convey("Then the divide-by-zero guard yields the early branch", func() {
				So(math.IsNaN(d.Points), ShouldBeFalse)
				So(d.Points, ShouldAlmostEqual, 10, epsilon)
			})
		})

		Convey("When the streak is long the bonus caps at twenty", func() {
			task := model.Task{Difficulty: model.DifficultyLow, StartDate: start, DueDate: now}
			So(scoring.IncrementalDelta(task, true, 500, now).Streak, ShouldEqual, 20)
		})

		Convey("When a task becomes overdue", func() {
			Convey("Then the penalty is two points per day", func() {
				task := model.Task{DueDate: now.Add(-day(3))}
				d := scoring.IncrementalDelta(task, false, 10, now)
				So(d.Points, ShouldAlmostEqual, -6, epsilon)
				So(d.ActionType, ShouldEqual, model.ActionTaskOverdue)
			})

			Convey("And the penalty caps at ten", func() {
				task := model.Task{DueDate: now.Add(-day(30))}
				So(scoring.IncrementalDelta(task, false, 0, now).Points, ShouldEqual, -10)
			})
		})

		Convey("Unknown difficulties fall back to low", func() {
			So(scoring.BasePoints("extreme"), ShouldEqual, 5)
			So(scoring.BasePoints(""), ShouldEqual, 5)
		})
	})
}

func TestStrategies(t *testing.T) {
	Convey("Given both scoring strategies", t, func() {
		var batch scoring.Strategy = scoring.NewBatchStrategy()
		var incr scoring.Strategy = scoring.NewIncrementalStrategy(scoring.WithHistoryLimit(5))

		So(batch.Name(), ShouldEqual, scoring.BatchStrategyName)
		So(incr.Name(), ShouldEqual, scoring.IncrementalStrategyName)

		Convey("When the batch strategy runs twice on the same tasks", func() {
			prev := model.NewPerformanceScore("id", "u1", "t1", now)
			tasks := []model.Task{completedTask(model.PriorityHigh, now, now.Add(-day(3)))}
			in := scoring.Input{Tasks: tasks, TeamID: "t1"}

			first, out1 := batch.Next(prev, in, now)
			second, out2 := batch.Next(first, in, now)

			Convey("Then the second delta is zero", func() {
				So(out1.Delta, ShouldBeLessThan, 0)
				So(out2.Delta, ShouldEqual, 0)
				So(second.Score, ShouldEqual, first.Score)
				So(second.History, ShouldHaveLength, 2)
				So(second.History[1].ActionType, ShouldEqual, model.ActionRecalculation)
				So(second.History[1].TeamID, ShouldEqual, "t1")
				So(second.History[1].Reason, ShouldEqual, scoring.ReasonRecalculated)
			})

			Convey("And prev is not mutated", func() {
				So(prev.History, ShouldBeEmpty)
				So(prev.Score, ShouldEqual, 100)
			})
		})

		Convey("When the incremental strategy is applied many times", func() {
			rec := model.NewPerformanceScore("id", "u1", "", now)
			task := model.Task{Difficulty: model.DifficultyHigh, StartDate: now.Add(-day(1)), DueDate: now.Add(day(1))}
			for i := 0; i < 20; i++ {
				rec, _ = incr.Next(rec, scoring.Input{Task: task, Completed: i%3 != 0}, now.Add(time.Duration(i)*time.Minute))
			}

			Convey("Then the score and history stay bounded", func() {
				So(rec.Score, ShouldBeBetweenOrEqual, 0, 100)
				So(rec.History, ShouldHaveLength, 5)
				So(rec.LastUpdated, ShouldEqual, now.Add(19*time.Minute))
			})
		})

		Convey("When the incremental strategy applies the worked example", func() {
			rec := model.NewPerformanceScore("id", "u1", "", now)
			rec.Score = 80
			rec.CompletedTasksCount = 4
			task := model.Task{Difficulty: model.DifficultyMedium, StartDate: now.Add(-day(2)), DueDate: now}
			next, out := incr.Next(rec, scoring.Input{Task: task, Completed: true}, now)

			Convey("Then a delta of twelve is applied and the count increments", func() {
				So(out.Delta, ShouldAlmostEqual, 12, epsilon)
				So(next.Score, ShouldAlmostEqual, 92, epsilon)
				So(next.CompletedTasksCount, ShouldEqual, 5)
			})
		})
	})
}

func TestHistoryTrimming(t *testing.T) {
	Convey("Given a history longer than its bound", t, func() {
		var history []model.ScoreHistoryEntry
		// Appended out of chronological order on purpose.
		for _, offset := range []int{5, 1, 4, 2, 3} {
			history = append(history, model.ScoreHistoryEntry{Date: now.Add(time.Duration(offset) * time.Hour), Delta: float64(offset)})
		}

		Convey("When trimmed by age", func() {
			out, evicted := scoring.TrimByAge(history, 3)

			Convey("Then the three newest remain, newest first", func() {
				So(evicted, ShouldEqual, 2)
				So(out, ShouldHaveLength, 3)
				So(out[0].Delta, ShouldEqual, 5)
				So(out[1].Delta, ShouldEqual, 4)
				So(out[2].Delta, ShouldEqual, 3)
			})
		})

		Convey("When trimmed by append order", func() {
			out, evicted := scoring.TrimByAppend(history, 3)

			Convey("Then the last three appended remain in order", func() {
				So(evicted, ShouldEqual, 2)
				So(out[0].Delta, ShouldEqual, 4)
				So(out[1].Delta, ShouldEqual, 2)
				So(out[2].Delta, ShouldEqual, 3)
			})
		})

		Convey("When the bound is not exceeded nothing changes", func() {
			out, evicted := scoring.TrimByAge(history, 10)
			So(evicted, ShouldEqual, 0)
			So(out, ShouldResemble, history)
		})
	})

	Convey("Clamp bounds values and maps NaN to zero", t, func() {
		So(scoring.Clamp(-5), ShouldEqual, 0)
		So(scoring.Clamp(150), ShouldEqual, 100)
		So(scoring.Clamp(math.NaN()), ShouldEqual, 0)
		So(scoring.Clamp(42.5), ShouldEqual, 42.5)
	})
}

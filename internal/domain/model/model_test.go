package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/perfscore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTask(t *testing.T) {
	Convey("Given tasks with different assignee lists", t, func() {
		Convey("When no one is assigned", func() {
			task := model.Task{}
			Convey("Then the assigned count defaults to one", func() {
				So(task.AssignedCount(), ShouldEqual, 1)
			})
		})

		Convey("When three users are assigned", func() {
			task := model.Task{AssignedTo: []string{"a", "b", "c"}}
			Convey("Then the assigned count is three", func() {
				So(task.AssignedCount(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given priorities in mixed case", t, func() {
		So(model.Priority(" HIGH ").Normalized(), ShouldEqual, model.PriorityHigh)
		So(model.Priority("Medium").Normalized(), ShouldEqual, model.PriorityMedium)
	})
}

func TestPerformanceScore(t *testing.T) {
	Convey("Given a new performance score", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		ps := model.NewPerformanceScore("id-1", "u1", "t1", now)

		Convey("Then it starts perfect with empty history", func() {
			So(ps.Score, ShouldEqual, model.DefaultScore)
			So(ps.History, ShouldBeEmpty)
			So(ps.LastUpdated, ShouldEqual, now)
		})

		Convey("When cloned and the clone's history is changed", func() {
			ps.History = append(ps.History, model.ScoreHistoryEntry{Delta: 1})
			clone := ps.Clone()
			clone.History[0].Delta = 99

			Convey("Then the original is untouched", func() {
				So(ps.History[0].Delta, ShouldEqual, 1)
			})
		})

		Convey("When projected to member metrics", func() {
			ps.Score = 42
			ps.CompletedTasksCount = 3
			ps.OverdueTasksCount = 1
			ps.TotalTasksCount = 5
			m := ps.Metrics()

			Convey("Then every counter is copied", func() {
				So(m.Score, ShouldEqual, 42)
				So(m.CompletedTasks, ShouldEqual, 3)
				So(m.OverdueTasks, ShouldEqual, 1)
				So(m.TotalTasks, ShouldEqual, 5)
			})
		})
	})
}

func TestTeamMember(t *testing.T) {
	Convey("Given a team with two members", t, func() {
		team := model.Team{ID: "t1", Members: []model.Member{{UserID: "u1"}, {UserID: "u2"}}}

		Convey("Then lookups find present members only", func() {
			_, ok := team.Member("u2")
			So(ok, ShouldBeTrue)
			_, ok = team.Member("u3")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestTaskEventValidate(t *testing.T) {
	Convey("Given task events", t, func() {
		task := &model.Task{ID: "t1"}

		So(model.TaskEvent{Type: model.EventOutcome, UserID: "u1", Task: task}.Validate(), ShouldBeNil)
		So(model.TaskEvent{Type: model.EventRecompute, UserID: "u1"}.Validate(), ShouldBeNil)

		for _, ev := range []model.TaskEvent{
			{Type: model.EventOutcome, UserID: "u1"},
			{Type: model.EventRecompute, UserID: "  "},
			{Type: "rename", UserID: "u1"},
		} {
			So(errors.Is(ev.Validate(), model.ErrInvalidEvent), ShouldBeTrue)
		}
	})
}

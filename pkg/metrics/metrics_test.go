package metrics_test

import (
	"testing"

	"github.com/okian/perfscore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			m := metrics.NewManager()

			Convey("Then it owns a private registry", func() {
				So(m, ShouldNotBeNil)
				So(m.Registry(), ShouldNotBeNil)
				So(m.Registry(), ShouldNotEqual, prometheus.DefaultRegisterer)
			})
		})

		Convey("When creating two managers with separate registries", func() {
			So(func() {
				metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
				metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
			}, ShouldNotPanic)
		})

		Convey("When registering twice on one registry", func() {
			reg := prometheus.NewRegistry()
			metrics.NewManager(metrics.WithRegistry(reg))

			Convey("Then the duplicate registration panics", func() {
				So(func() { metrics.NewManager(metrics.WithRegistry(reg)) }, ShouldPanic)
			})
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a manager on a fresh registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(
			metrics.WithRegistry(reg),
			metrics.WithNamespace("test"),
			metrics.WithHistogramBuckets([]float64{0.01, 0.1, 1}),
		)

		Convey("When recording engine activity", func() {
			m.RecordOutcome("task_completed")
			m.RecordOutcome("task_completed")
			m.RecordRecomputeTeam(metrics.ResultOK)
			m.RecordRecomputeTeam(metrics.ResultFailed)
			m.RecordProjectionSync(metrics.ResultMissing)
			m.AddHistoryTrimmed("by_age", 3)
			m.AddHistoryTrimmed("by_age", 0)
			m.ObserveRecompute(0.02)
			m.ObserveBulkUpsert(3)

			Convey("Then the series are gathered", func() {
				count, err := testutil.GatherAndCount(reg,
					"test_engine_outcomes_recorded_total",
					"test_engine_recompute_teams_total",
					"test_engine_projection_sync_total",
					"test_engine_history_trimmed_total",
				)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 5)
			})
		})

		Convey("When recording intake, cache and http activity", func() {
			So(func() {
				m.RecordCacheLookup("team_by_id", metrics.ResultHit)
				m.RecordCacheClear("ttl")
				m.SetQueueDepth(7)
				m.RecordQueueRejected()
				m.RecordWorkerEvent("outcome", metrics.ResultOK)
				m.RecordIngestMessage(metrics.ResultOK)
				m.RecordHTTPRequest("scores", "GET", "200", 0.003)
			}, ShouldNotPanic)
		})
	})

	Convey("Given a nil manager", t, func() {
		var m *metrics.Manager

		Convey("Then every recorder is a no-op", func() {
			So(func() {
				m.RecordOutcome("x")
				m.ObserveRecompute(1)
				m.RecordRecomputeTeam(metrics.ResultOK)
				m.ObserveBulkUpsert(1)
				m.RecordProjectionSync(metrics.ResultOK)
				m.AddHistoryTrimmed("p", 1)
				m.RecordCacheLookup("c", metrics.ResultMiss)
				m.RecordCacheClear("r")
				m.SetQueueDepth(1)
				m.RecordQueueRejected()
				m.RecordWorkerEvent("t", "r")
				m.RecordIngestMessage("r")
				m.RecordHTTPRequest("e", "m", "s", 1)
			}, ShouldNotPanic)
			So(m.Registry(), ShouldBeNil)
		})
	})
}

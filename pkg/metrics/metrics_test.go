package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register its collectors there", func() {
				So(manager, ShouldNotBeNil)
				manager.leaderboardBuilds.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names should carry the namespace and subsystem", func() {
				manager.feedbackSubmitted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, mf := range families {
					if mf.GetName() == "test_namespace_test_subsystem_feedback_submitted_total" {
						found = true
						So(mf.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording query paths", func() {
			before := testutil.ToFloat64(globalManager.queries.WithLabelValues("feedbacks", PathFallback))
			RecordQuery("feedbacks", PathFallback, 1.5)
			RecordQuery("feedbacks", PathIndexed, 0.5)

			Convey("Then the fallback counter should move by one", func() {
				after := testutil.ToFloat64(globalManager.queries.WithLabelValues("feedbacks", PathFallback))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When adjusting active subscriptions", func() {
			before := testutil.ToFloat64(globalManager.subscriptionsActive)
			AddActiveSubscriptions(2)
			AddActiveSubscriptions(-1)

			Convey("Then the gauge should reflect the net change", func() {
				So(testutil.ToFloat64(globalManager.subscriptionsActive)-before, ShouldEqual, 1)
			})
		})

		Convey("When updating the queue size", func() {
			UpdateQueueSize(25, 100)

			Convey("Then utilization should be derived from capacity", func() {
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})

			Convey("And a zero capacity should leave utilization untouched", func() {
				UpdateQueueSize(5, 0)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 5)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordLeaderboardBuild(12)
				RecordLeaderboardError()
				UpdateEmployeesTotal(42)
				RecordFeedbackSubmitted()
				RecordFeedbackDuplicate()
				RecordQueryError("goals")
				RecordSubscriptionDelivery()
				RecordStoreWrite("employees", "push")
				RecordStoreReadLatency(0.2)
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerDispatch(0.1)
				RecordWorkerError()
				RecordHTTPRequest("leaderboard", "GET", "200")
				RecordHTTPRequestDuration("leaderboard", "GET", "200", 3)
				RecordHTTPRateLimited("feedbacks")
				RecordErrorByComponent("store", "closed")
				RecordErrorByType("server_error", "high")
				RecordErrorByEndpoint("leaderboard", "GET", "server_error")
				RecordErrorLatency("http", "server_error", 4)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then only perfboard metrics should be exported", func() {
				So(err, ShouldBeNil)
				for _, mf := range families {
					So(strings.HasPrefix(mf.GetName(), "perfboard_hr_"), ShouldBeTrue)
				}
			})
		})
	})
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then all collectors register without conflict", func() {
				So(manager, ShouldNotBeNil)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("testspace"),
				WithSubsystem("testsys"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRegistry(registry),
			)
			So(manager, ShouldNotBeNil)

			Convey("Then metric names carry the namespace and subsystem", func() {
				manager.sessionsApplied.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "testspace_testsys_sessions_applied_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestPackageHelpers(t *testing.T) {
	Convey("Given the package-level helpers", t, func() {
		Convey("When recording through them", func() {
			// Exercise each helper family against the global manager.
			RecordSessionApplied()
			RecordSessionDuplicate()
			RecordSessionRejected()
			RecordRankChange()
			ObservePointDelta(35)
			ObservePerformanceScore(0.85)
			RecordStoreUpdateLatency(1.5)
			RecordStoreQueryLatency(0.5)
			UpdatePlayersTotal(10)
			UpdateQueueSize(3)
			UpdateQueueCapacity(100)
			UpdateQueueUtilization(0.03)
			RecordQueueEnqueue()
			RecordQueueEnqueueError()
			UpdateWorkerActiveCount(4)
			RecordWorkerProcessingLatency(2.0)
			RecordWorkerError()
			RecordErrorByComponent("store", "postgres")
			RecordHTTPRequest("sessions", "POST", "202")
			RecordHTTPRequestDuration("sessions", "POST", "202", 1.2)
			UpdateSystemMemoryUsage(1 << 20)
			UpdateSystemGoroutineCount(42)

			Convey("Then the shared registry gathers cleanly", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}

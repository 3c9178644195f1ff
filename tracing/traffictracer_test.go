package tracing

import (
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ecusim/sim"
)

var _ = Describe("TrafficTracer", func() {
	var (
		mockClock *clock.Mock
		tracer    *TrafficTracer
	)

	BeforeEach(func() {
		mockClock = clock.NewMock()
		tracer = NewTrafficTracer(sim.NewClockTimeTeller(mockClock), nil)
	})

	It("should count frames and bus time", func() {
		f1 := Task{ID: "1", Kind: KindFrame, Location: "ECU1", Bytes: 8}
		f2 := Task{ID: "2", Kind: KindFrame, Location: "ECU2", Bytes: 2}

		tracer.StartTask(f1)
		mockClock.Add(time.Second)
		tracer.EndTask(f1)

		mockClock.Add(2 * time.Second)
		tracer.StartTask(f2)
		mockClock.Add(time.Second)
		tracer.EndTask(f2)

		stats := tracer.ByKind(KindFrame)
		Expect(stats.Count).To(Equal(2))
		Expect(stats.Bytes).To(Equal(10))
		Expect(stats.BusyTime).To(BeNumerically("~", 2.0, 1e-9))
		Expect(tracer.ByLocation("ECU1").Bytes).To(Equal(8))
		Expect(tracer.BusLoad()).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("should count instant tasks", func() {
		task := Task{ID: "m", Kind: KindMessage, Location: "ECU1", Bytes: 10}
		tracer.StartTask(task)
		tracer.EndTask(task)

		Expect(tracer.ByKind(KindMessage).Count).To(Equal(1))
		Expect(tracer.ByKind(KindMessage).BusyTime).To(BeZero())
		Expect(tracer.Kinds()).To(Equal([]string{KindMessage}))
	})

	It("should report an idle bus at time zero", func() {
		Expect(tracer.BusLoad()).To(BeZero())
		Expect(tracer.ByKind(KindFrame)).To(Equal(TrafficStats{}))
	})

	It("should respect the filter", func() {
		tracer = NewTrafficTracer(sim.NewClockTimeTeller(mockClock),
			func(t Task) bool { return t.Kind != KindSegmentFiltered })

		task := Task{ID: "s", Kind: KindSegmentFiltered, Location: "ECU1"}
		tracer.StartTask(task)
		tracer.EndTask(task)

		Expect(tracer.Kinds()).To(BeEmpty())
	})
})

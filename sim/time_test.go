package sim

import (
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ClockTimeTeller", func() {
	It("should report the time elapsed since creation", func() {
		mockClock := clock.NewMock()
		mockClock.Add(time.Hour)

		teller := NewClockTimeTeller(mockClock)
		Expect(teller.CurrentTime()).To(Equal(VTimeInSec(0)))

		mockClock.Add(1500 * time.Millisecond)
		Expect(teller.CurrentTime()).To(BeNumerically("~", 1.5, 1e-9))
		Expect(teller.Clock()).To(BeIdenticalTo(mockClock))
	})

	It("should convert between durations and simulated time", func() {
		Expect(VTimeOf(250 * time.Millisecond)).To(Equal(VTimeInSec(0.25)))
		Expect(VTimeInSec(2).Duration()).To(Equal(2 * time.Second))
	})
})

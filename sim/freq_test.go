package sim

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		var f = 1 * GHz
		Expect(f.Period()).To(BeNumerically("==", 1e-9))
	})

	It("should panic on the period of 0 Hz", func() {
		Expect(func() { Freq(0).Period() }).To(Panic())
	})

	It("should count cycles", func() {
		var f = 500 * KHz
		Expect(f.Cycle(0.001)).To(Equal(uint64(500)))
	})

	It("should get the duration of cycles", func() {
		var f = 1 * KHz
		Expect(f.Cycles(80)).To(Equal(80 * time.Millisecond))
		Expect(f.Cycles(0)).To(BeZero())
		Expect(Freq(0).Cycles(80)).To(BeZero())
	})

	It("should get the time after N cycles", func() {
		var f = 125 * KHz
		Expect(f.NCyclesLater(111, 1)).To(BeNumerically("~", 1.000888, 1e-9))
	})
})

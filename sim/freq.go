package sim

import (
	"log"
	"math"
	"time"
)

// Freq defines the type of frequency. A bus bit rate is a frequency of bits.
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return VTimeInSec(1.0 / f)
}

// Cycle converts a time to the number of cycles passed since time 0.
func (f Freq) Cycle(time VTimeInSec) uint64 {
	return uint64(math.Round(float64(time) * float64(f)))
}

// Cycles returns how long n cycles last. A frequency of 0 makes every span of
// cycles instantaneous.
func (f Freq) Cycles(n int) time.Duration {
	if f <= 0 || n <= 0 {
		return 0
	}

	return time.Duration(float64(n) / float64(f) * float64(time.Second))
}

// NCyclesLater returns the time after N cycles
func (f Freq) NCyclesLater(n int, now VTimeInSec) VTimeInSec {
	return now + VTimeOf(f.Cycles(n))
}

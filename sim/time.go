package sim

import (
	"time"

	"github.com/benbjohnson/clock"
)

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// Duration converts the simulated time span into a time.Duration.
func (t VTimeInSec) Duration() time.Duration {
	return time.Duration(float64(t) * float64(time.Second))
}

// VTimeOf converts a time.Duration into simulated seconds.
func VTimeOf(d time.Duration) VTimeInSec {
	return VTimeInSec(d.Seconds())
}

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// A ClockTimeTeller measures simulated time as the time elapsed on a clock
// since the teller was created. Tests drive it with a mock clock.
type ClockTimeTeller struct {
	clock clock.Clock
	start time.Time
}

// NewClockTimeTeller creates a ClockTimeTeller whose time zero is now.
func NewClockTimeTeller(c clock.Clock) *ClockTimeTeller {
	return &ClockTimeTeller{
		clock: c,
		start: c.Now(),
	}
}

// CurrentTime returns the seconds elapsed since the teller was created.
func (t *ClockTimeTeller) CurrentTime() VTimeInSec {
	return VTimeOf(t.clock.Since(t.start))
}

// Clock returns the underlying clock.
func (t *ClockTimeTeller) Clock() clock.Clock {
	return t.clock
}

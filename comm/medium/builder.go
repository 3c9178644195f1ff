package medium

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sarchlab/ecusim/sim"
)

// Builder can build buses.
type Builder struct {
	timeTeller   *sim.ClockTimeTeller
	bitRate      sim.Freq
	overheadBits int
	logger       *zap.Logger
}

// MakeBuilder creates a builder with the parameters of a 500 kbit/s CAN bus.
func MakeBuilder() Builder {
	return Builder{
		bitRate:      500 * sim.KHz,
		overheadBits: 47,
	}
}

// WithTimeTeller sets the clock that frame timing is measured on.
func (b Builder) WithTimeTeller(t *sim.ClockTimeTeller) Builder {
	b.timeTeller = t
	return b
}

// WithBitRate sets the bits per second of the bus. Zero makes transmission
// instantaneous.
func (b Builder) WithBitRate(bitRate sim.Freq) Builder {
	b.bitRate = bitRate
	return b
}

// WithFrameOverheadBits sets the bits every frame costs on top of its
// payload.
func (b Builder) WithFrameOverheadBits(n int) Builder {
	b.overheadBits = n
	return b
}

// WithLogger sets the logger of the bus.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a new bus.
func (b Builder) Build(name string) *Bus {
	sim.NameMustBeValid(name)
	b.bitRateMustBeValid()

	bus := &Bus{
		name:         name,
		timeTeller:   b.timeTeller,
		bitRate:      b.bitRate,
		overheadBits: b.overheadBits,
		logger:       b.logger,
		arbiter:      semaphore.NewWeighted(1),
	}

	if bus.timeTeller == nil {
		bus.timeTeller = sim.NewClockTimeTeller(clock.New())
	}

	if bus.logger == nil {
		bus.logger = zap.NewNop()
	}

	return bus
}

func (b Builder) bitRateMustBeValid() {
	if b.bitRate < 0 {
		panic("bit rate must not be negative")
	}
}

package ecu

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/physical"
	"github.com/sarchlab/ecusim/comm/streams"
	"github.com/sarchlab/ecusim/sim"
)

// Builder can build ECUs.
type Builder struct {
	nodeID     messaging.NodeID
	timeTeller *sim.ClockTimeTeller
	logger     *zap.Logger
	comm       comm.Builder
}

// MakeBuilder creates a builder with the default stack parameters.
func MakeBuilder() Builder {
	return Builder{
		comm: comm.MakeBuilder(),
	}
}

// WithNodeID sets the identifier of the ECU on the bus. By default, the name
// of the ECU is used.
func (b Builder) WithNodeID(id messaging.NodeID) Builder {
	b.nodeID = id
	return b
}

// WithTimeTeller sets the time teller that drives the application.
func (b Builder) WithTimeTeller(t *sim.ClockTimeTeller) Builder {
	b.timeTeller = t
	return b
}

// WithMedium sets the medium the ECU is attached to.
func (b Builder) WithMedium(m physical.Medium) Builder {
	b.comm = b.comm.WithMedium(m)
	return b
}

// WithStreamTable sets the admission table shared by the network.
func (b Builder) WithStreamTable(t *streams.Table) Builder {
	b.comm = b.comm.WithStreamTable(t)
	return b
}

// WithMaxFrameSize sets the largest frame payload.
func (b Builder) WithMaxFrameSize(n int) Builder {
	b.comm = b.comm.WithMaxFrameSize(n)
	return b
}

// WithSendingBufferSize sets the capacity of the transmit buffer.
func (b Builder) WithSendingBufferSize(n int) Builder {
	b.comm = b.comm.WithSendingBufferSize(n)
	return b
}

// WithReceivingBufferSize sets the capacity of the receive buffer.
func (b Builder) WithReceivingBufferSize(n int) Builder {
	b.comm = b.comm.WithReceivingBufferSize(n)
	return b
}

// WithReassemblyTimeout sets how long a partial message may stay inactive.
func (b Builder) WithReassemblyTimeout(d time.Duration) Builder {
	b.comm = b.comm.WithReassemblyTimeout(d)
	return b
}

// WithReceiveFilter sets whether segments of message ids the ECU does not
// receive are dropped by the transport layer.
func (b Builder) WithReceiveFilter(enabled bool) Builder {
	b.comm = b.comm.WithReceiveFilter(enabled)
	return b
}

// WithLogger sets the logger of the ECU and its communication module.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a new ECU.
func (b Builder) Build(name string) *ECU {
	sim.NameMustBeValid(name)

	if b.nodeID == "" {
		b.nodeID = messaging.NodeID(name)
	}

	if b.timeTeller == nil {
		b.timeTeller = sim.NewClockTimeTeller(clock.New())
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	e := &ECU{
		name:       name,
		nodeID:     b.nodeID,
		timeTeller: b.timeTeller,
		logger:     b.logger,
	}

	e.comm = b.comm.
		WithNodeID(b.nodeID).
		WithTimeTeller(b.timeTeller).
		WithLogger(b.logger).
		Build(sim.BuildName(name, "Comm"))

	return e
}

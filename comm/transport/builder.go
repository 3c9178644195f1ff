package transport

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/sim"
)

// Builder can build transport layers.
type Builder struct {
	nodeID            messaging.NodeID
	dl                Datalink
	table             AdmissionTable
	timeTeller        sim.TimeTeller
	maxFrameSize      int
	receiveFilter     bool
	reassemblyTimeout time.Duration
	logger            *zap.Logger
}

// MakeBuilder creates a builder with 8-byte frames, admission filtering on
// receive, and a one-second reassembly timeout.
func MakeBuilder() Builder {
	return Builder{
		maxFrameSize:      8,
		receiveFilter:     true,
		reassemblyTimeout: time.Second,
	}
}

// WithNodeID sets the node the layer belongs to.
func (b Builder) WithNodeID(id messaging.NodeID) Builder {
	b.nodeID = id
	return b
}

// WithDatalink sets the layer below.
func (b Builder) WithDatalink(dl Datalink) Builder {
	b.dl = dl
	return b
}

// WithAdmissionTable sets the table that decides admission.
func (b Builder) WithAdmissionTable(t AdmissionTable) Builder {
	b.table = t
	return b
}

// WithTimeTeller sets the time teller that stamps reassembly activity.
func (b Builder) WithTimeTeller(t sim.TimeTeller) Builder {
	b.timeTeller = t
	return b
}

// WithMaxFrameSize sets the largest segment payload.
func (b Builder) WithMaxFrameSize(n int) Builder {
	b.maxFrameSize = n
	return b
}

// WithReceiveFilter sets whether segments of message ids the node does not
// receive are dropped.
func (b Builder) WithReceiveFilter(enabled bool) Builder {
	b.receiveFilter = enabled
	return b
}

// WithReassemblyTimeout sets how long a partial message may stay inactive. A
// timeout of 0 keeps partial messages forever.
func (b Builder) WithReassemblyTimeout(d time.Duration) Builder {
	b.reassemblyTimeout = d
	return b
}

// WithLogger sets the logger of the layer.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a new transport layer.
func (b Builder) Build(name string) *Comp {
	sim.NameMustBeValid(name)
	b.nodeIDMustBeGiven()
	b.datalinkMustBeGiven()
	b.admissionTableMustBeGiven()
	b.maxFrameSizeMustBeValid()

	c := &Comp{
		name:              name,
		nodeID:            b.nodeID,
		dl:                b.dl,
		table:             b.table,
		timeTeller:        b.timeTeller,
		maxFrameSize:      b.maxFrameSize,
		receiveFilter:     b.receiveFilter,
		reassemblyTimeout: b.reassemblyTimeout,
		logger:            b.logger,
		reassembler:       newReassembler(),
	}

	if c.timeTeller == nil {
		c.timeTeller = sim.NewClockTimeTeller(clock.New())
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return c
}

func (b Builder) nodeIDMustBeGiven() {
	if b.nodeID == "" {
		panic("node id is not given")
	}
}

func (b Builder) datalinkMustBeGiven() {
	if b.dl == nil {
		panic("datalink is not given")
	}
}

func (b Builder) admissionTableMustBeGiven() {
	if b.table == nil {
		panic("admission table is not given")
	}
}

func (b Builder) maxFrameSizeMustBeValid() {
	if b.maxFrameSize <= 0 {
		panic("max frame size must be positive")
	}
}

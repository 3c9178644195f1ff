package comm

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/datalink"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/physical"
	"github.com/sarchlab/ecusim/comm/streams"
	"github.com/sarchlab/ecusim/comm/transport"
	"github.com/sarchlab/ecusim/sim"
)

// Builder can build communication modules.
type Builder struct {
	nodeID              messaging.NodeID
	medium              physical.Medium
	table               *streams.Table
	timeTeller          sim.TimeTeller
	maxFrameSize        int
	sendingBufferSize   int
	receivingBufferSize int
	reassemblyTimeout   time.Duration
	receiveFilter       bool
	logger              *zap.Logger
}

// MakeBuilder creates a builder with the default stack parameters.
func MakeBuilder() Builder {
	return Builder{
		maxFrameSize:        8,
		sendingBufferSize:   16,
		receivingBufferSize: 16,
		reassemblyTimeout:   time.Second,
		receiveFilter:       true,
	}
}

// WithNodeID sets the node the module belongs to.
func (b Builder) WithNodeID(id messaging.NodeID) Builder {
	b.nodeID = id
	return b
}

// WithMedium sets the medium the physical layer is plugged into.
func (b Builder) WithMedium(m physical.Medium) Builder {
	b.medium = m
	return b
}

// WithStreamTable sets the admission table shared by the network.
func (b Builder) WithStreamTable(t *streams.Table) Builder {
	b.table = t
	return b
}

// WithTimeTeller sets the time teller used to stamp samples and reassembly
// activity.
func (b Builder) WithTimeTeller(t sim.TimeTeller) Builder {
	b.timeTeller = t
	return b
}

// WithMaxFrameSize sets the largest frame payload.
func (b Builder) WithMaxFrameSize(n int) Builder {
	b.maxFrameSize = n
	return b
}

// WithSendingBufferSize sets the capacity of the transmit buffer.
func (b Builder) WithSendingBufferSize(n int) Builder {
	b.sendingBufferSize = n
	return b
}

// WithReceivingBufferSize sets the capacity of the receive buffer.
func (b Builder) WithReceivingBufferSize(n int) Builder {
	b.receivingBufferSize = n
	return b
}

// WithReassemblyTimeout sets how long a partial message may stay inactive.
func (b Builder) WithReassemblyTimeout(d time.Duration) Builder {
	b.reassemblyTimeout = d
	return b
}

// WithReceiveFilter sets whether the node drops frames and segments of
// message ids it does not receive. When disabled, no acceptance filter is
// installed on the physical layer.
func (b Builder) WithReceiveFilter(enabled bool) Builder {
	b.receiveFilter = enabled
	return b
}

// WithLogger sets the logger of the module and its layers.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// Build creates the layers of the module and connects them.
func (b Builder) Build(name string) *Module {
	sim.NameMustBeValid(name)
	b.nodeIDMustBeGiven()
	b.mediumMustBeGiven()
	b.tableMustBeGiven()

	if b.timeTeller == nil {
		b.timeTeller = sim.NewClockTimeTeller(clock.New())
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	logger := b.logger.With(zap.String("node", string(b.nodeID)))

	m := &Module{
		name:       name,
		nodeID:     b.nodeID,
		table:      b.table,
		timeTeller: b.timeTeller,
		logger:     logger,

		receiveFilter: b.receiveFilter,
		allowed:       make(map[messaging.MessageID]struct{}),
	}

	m.phy = physical.MakeBuilder().
		WithNodeID(b.nodeID).
		WithMedium(b.medium).
		WithMaxFrameSize(b.maxFrameSize).
		WithLogger(logger).
		Build(sim.BuildName(name, "Physical"))

	m.dl = datalink.MakeBuilder().
		WithPhysicalLayer(m.phy).
		WithSendingBufferSize(b.sendingBufferSize).
		WithReceivingBufferSize(b.receivingBufferSize).
		WithLogger(logger).
		Build(sim.BuildName(name, "Datalink"))

	m.tp = transport.MakeBuilder().
		WithNodeID(b.nodeID).
		WithDatalink(m.dl).
		WithAdmissionTable(b.table).
		WithTimeTeller(b.timeTeller).
		WithMaxFrameSize(b.maxFrameSize).
		WithReceiveFilter(b.receiveFilter).
		WithReassemblyTimeout(b.reassemblyTimeout).
		WithLogger(logger).
		Build(sim.BuildName(name, "Transport"))

	for _, buf := range m.dl.Buffers() {
		buf.AcceptHook(sim.HookFunc(m.markActivity))
	}

	b.table.Subscribe(m.onStream)
	m.allowReceive(b.table.AllowedReceiveIDs(b.nodeID)...)

	return m
}

func (b Builder) nodeIDMustBeGiven() {
	if b.nodeID == "" {
		panic("node id is not given")
	}
}

func (b Builder) mediumMustBeGiven() {
	if b.medium == nil {
		panic("medium is not given")
	}
}

func (b Builder) tableMustBeGiven() {
	if b.table == nil {
		panic("stream table is not given")
	}
}

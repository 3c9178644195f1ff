package datalink

import (
	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/sim"
)

// Builder can build datalink layers.
type Builder struct {
	phy                 PhysicalLayer
	sendingBufferSize   int
	receivingBufferSize int
	logger              *zap.Logger
}

// MakeBuilder creates a builder with 16-frame buffers.
func MakeBuilder() Builder {
	return Builder{
		sendingBufferSize:   16,
		receivingBufferSize: 16,
	}
}

// WithPhysicalLayer sets the layer the datalink layer sends through.
func (b Builder) WithPhysicalLayer(phy PhysicalLayer) Builder {
	b.phy = phy
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

// WithLogger sets the logger of the layer.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a datalink layer and registers it as the upper layer of the
// physical layer.
func (b Builder) Build(name string) *Comp {
	sim.NameMustBeValid(name)
	b.physicalLayerMustBeGiven()

	c := &Comp{
		name:   name,
		phy:    b.phy,
		logger: b.logger,
		txBuf: sim.NewBoundedBuffer[messaging.Frame](
			sim.BuildName(name, "TxBuf"), b.sendingBufferSize),
		rxBuf: sim.NewBoundedBuffer[messaging.Frame](
			sim.BuildName(name, "RxBuf"), b.receivingBufferSize),
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	b.phy.SetUpperLayer(c)

	return c
}

func (b Builder) physicalLayerMustBeGiven() {
	if b.phy == nil {
		panic("physical layer is not given")
	}
}

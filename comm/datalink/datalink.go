// Package datalink provides the datalink layer of an ECU. The layer decouples
// the transport layer from the bus with a bounded transmit buffer and a bounded
// receive buffer.
package datalink

import (
	"context"

	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/physical"
	"github.com/sarchlab/ecusim/sim"
)

// PhysicalLayer is the layer below the datalink layer.
type PhysicalLayer interface {
	Send(ctx context.Context, f messaging.Frame) error
	SetUpperLayer(r physical.Receiver)
}

// Comp is the datalink layer of one node.
type Comp struct {
	name   string
	phy    PhysicalLayer
	logger *zap.Logger

	txBuf *sim.BoundedBuffer[messaging.Frame]
	rxBuf *sim.BoundedBuffer[messaging.Frame]
}

// Name returns the name of the layer.
func (c *Comp) Name() string {
	return c.name
}

// Transmit queues a frame for transmission. It blocks while the transmit
// buffer is full.
func (c *Comp) Transmit(ctx context.Context, f messaging.Frame) error {
	return c.txBuf.Put(ctx, f)
}

// Run moves frames from the transmit buffer to the physical layer, one at a
// time, until the context is done.
func (c *Comp) Run(ctx context.Context) error {
	for {
		f, err := c.txBuf.Get(ctx)
		if err != nil {
			return err
		}

		err = c.phy.Send(ctx, f)
		if err != nil {
			c.logger.Error("failed to send frame",
				zap.String("layer", c.name),
				zap.String("frame", f.Meta().ID),
				zap.Error(err))

			return err
		}
	}
}

// OnReceive is called by the physical layer when a frame arrives. It blocks
// while the receive buffer is full, which stalls the bus.
func (c *Comp) OnReceive(ctx context.Context, f messaging.Frame) error {
	return c.rxBuf.Put(ctx, f)
}

// Receive returns the oldest received frame. It blocks while the receive
// buffer is empty.
func (c *Comp) Receive(ctx context.Context) (messaging.Frame, error) {
	return c.rxBuf.Get(ctx)
}

// Occupancy returns the number of frames in the receive buffer and the
// capacity of the transmit buffer.
func (c *Comp) Occupancy() (rxSize, txCapacity int) {
	return c.rxBuf.Size(), c.txBuf.Capacity()
}

// TransmitBuffer returns the transmit buffer.
func (c *Comp) TransmitBuffer() *sim.BoundedBuffer[messaging.Frame] {
	return c.txBuf
}

// ReceiveBuffer returns the receive buffer.
func (c *Comp) ReceiveBuffer() *sim.BoundedBuffer[messaging.Frame] {
	return c.rxBuf
}

// Buffers returns both buffers, transmit buffer first.
func (c *Comp) Buffers() []sim.Buffer {
	return []sim.Buffer{c.txBuf, c.rxBuf}
}

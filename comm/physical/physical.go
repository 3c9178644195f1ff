// Package physical provides the physical layer of an ECU, which puts frames on
// the bus and applies the transceiver's acceptance filter to incoming frames.
package physical

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/medium"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/sim"
)

// HookPosFrameFiltered marks when the acceptance filter rejects a frame.
var HookPosFrameFiltered = &sim.HookPos{Name: "Frame Filtered"}

// ErrFrameTooLarge is returned when a frame exceeds the maximum frame size.
var ErrFrameTooLarge = errors.New("frame exceeds the maximum frame size")

// A Medium carries frames between physical layers.
type Medium interface {
	Plug(p medium.Port)
	Transmit(ctx context.Context, f messaging.Frame) error
}

// A Receiver is the layer that accepts the frames the physical layer lets
// through.
type Receiver interface {
	OnReceive(ctx context.Context, f messaging.Frame) error
}

// Comp is the physical layer of one node.
type Comp struct {
	sim.HookableBase

	name         string
	nodeID       messaging.NodeID
	medium       Medium
	maxFrameSize int
	logger       *zap.Logger

	lock   sync.RWMutex
	upper  Receiver
	filter map[messaging.MessageID]struct{}
}

// Name returns the name of the layer.
func (c *Comp) Name() string {
	return c.name
}

// NodeID returns the node the layer belongs to.
func (c *Comp) NodeID() messaging.NodeID {
	return c.nodeID
}

// MaxFrameSize returns the largest payload a frame may carry.
func (c *Comp) MaxFrameSize() int {
	return c.maxFrameSize
}

// SetUpperLayer sets the layer that receives the accepted frames. It can only
// be set once.
func (c *Comp) SetUpperLayer(r Receiver) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.upper != nil {
		panic("upper layer of " + c.name + " is already set")
	}

	c.upper = r
}

// Send puts the frame on the medium.
func (c *Comp) Send(ctx context.Context, f messaging.Frame) error {
	if f.Meta().Len() > c.maxFrameSize {
		return fmt.Errorf("%s: %d bytes: %w",
			c.name, f.Meta().Len(), ErrFrameTooLarge)
	}

	return c.medium.Transmit(ctx, f)
}

// Deliver is called by the medium when a frame is on the bus. Frames sent by
// this node and frames rejected by the acceptance filter are ignored.
func (c *Comp) Deliver(ctx context.Context, f messaging.Frame) error {
	meta := f.Meta()
	if meta.Src == c.nodeID {
		return nil
	}

	c.lock.RLock()
	upper := c.upper
	accepted := c.accepts(meta.MessageID)
	c.lock.RUnlock()

	if !accepted {
		c.logger.Debug("frame filtered",
			zap.String("layer", c.name),
			zap.String("frame", meta.ID),
			zap.Uint32("message_id", uint32(meta.MessageID)))
		c.invoke(HookPosFrameFiltered, f)

		return nil
	}

	if upper == nil {
		panic("upper layer of " + c.name + " is not set")
	}

	return upper.OnReceive(ctx, f)
}

// accepts must be called with the lock held.
func (c *Comp) accepts(id messaging.MessageID) bool {
	if c.filter == nil {
		return true
	}

	_, found := c.filter[id]

	return found
}

// InstallFilter replaces the acceptance filter. Once a filter is installed,
// only frames whose message id is in the filter are accepted.
func (c *Comp) InstallFilter(ids []messaging.MessageID) {
	filter := make(map[messaging.MessageID]struct{}, len(ids))
	for _, id := range ids {
		filter[id] = struct{}{}
	}

	c.lock.Lock()
	c.filter = filter
	c.lock.Unlock()

	c.logger.Debug("acceptance filter installed",
		zap.String("layer", c.name),
		zap.Int("num_ids", len(ids)))
}

// Filter returns the installed acceptance filter in order, or nil if no filter
// is installed.
func (c *Comp) Filter() []messaging.MessageID {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.filter == nil {
		return nil
	}

	ids := make([]messaging.MessageID, 0, len(c.filter))
	for id := range c.filter {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

func (c *Comp) invoke(pos *sim.HookPos, f messaging.Frame) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   f,
	})
}

// Package medium provides the shared bus that the physical layers of all the
// ECUs are attached to.
package medium

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/sim"
)

// HookPosFrameStart marks when a frame wins the bus and starts transmission.
var HookPosFrameStart = &sim.HookPos{Name: "Frame Start"}

// HookPosFrameDelivered marks when a frame has been handed to every receiver.
var HookPosFrameDelivered = &sim.HookPos{Name: "Frame Delivered"}

// A Port is an attachment point on the bus.
type Port interface {
	NodeID() messaging.NodeID

	// Deliver hands a frame that is on the bus to the port. It may block,
	// which holds the bus until the port accepts the frame.
	Deliver(ctx context.Context, f messaging.Frame) error
}

// A Bus is a broadcast medium that carries one frame at a time. Transmitters
// win the bus in the order they asked for it.
type Bus struct {
	sim.HookableBase

	name         string
	timeTeller   *sim.ClockTimeTeller
	bitRate      sim.Freq
	overheadBits int
	logger       *zap.Logger

	arbiter *semaphore.Weighted

	portsLock sync.RWMutex
	ports     []Port
}

// Name returns the name of the bus.
func (b *Bus) Name() string {
	return b.name
}

// Plug attaches a port to the bus.
func (b *Bus) Plug(p Port) {
	b.portsLock.Lock()
	defer b.portsLock.Unlock()

	for _, existing := range b.ports {
		if existing.NodeID() == p.NodeID() {
			panic("node " + string(p.NodeID()) + " is already plugged in")
		}
	}

	b.ports = append(b.ports, p)
}

// Ports returns the ports attached to the bus in attachment order.
func (b *Bus) Ports() []Port {
	b.portsLock.RLock()
	defer b.portsLock.RUnlock()

	ports := make([]Port, len(b.ports))
	copy(ports, b.ports)

	return ports
}

// TransmissionTime returns how long the frame occupies the bus.
func (b *Bus) TransmissionTime(f messaging.Frame) time.Duration {
	return b.bitRate.Cycles(b.overheadBits + 8*f.Meta().Len())
}

// Transmit puts the frame on the bus and returns after every other port has
// accepted it.
func (b *Bus) Transmit(ctx context.Context, f messaging.Frame) error {
	if err := b.arbiter.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.arbiter.Release(1)

	meta := f.Meta()
	meta.SendTime = b.timeTeller.CurrentTime()
	b.invoke(HookPosFrameStart, f)

	if err := b.occupy(ctx, b.TransmissionTime(f)); err != nil {
		return err
	}

	meta.RecvTime = b.timeTeller.CurrentTime()

	for _, p := range b.Ports() {
		if p.NodeID() == meta.Src {
			continue
		}

		if err := p.Deliver(ctx, f); err != nil {
			return err
		}
	}

	b.logger.Debug("frame delivered",
		zap.String("bus", b.name),
		zap.String("frame", meta.ID),
		zap.String("src", string(meta.Src)),
		zap.Uint32("message_id", uint32(meta.MessageID)),
		zap.Float64("recv_time", float64(meta.RecvTime)))
	b.invoke(HookPosFrameDelivered, f)

	return nil
}

func (b *Bus) occupy(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := b.timeTeller.Clock().Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) invoke(pos *sim.HookPos, f messaging.Frame) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(sim.HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   f,
	})
}

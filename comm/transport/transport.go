// Package transport provides the segment transport layer of an ECU. It splits
// messages into frame-sized segments on the way down and puts them back
// together on the way up.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/sim"
)

// HookPosSegmentFiltered marks when a segment is dropped because the node is
// not a receiver of its message id.
var HookPosSegmentFiltered = &sim.HookPos{Name: "Segment Filtered"}

// HookPosReassemblyTimeout marks when a partial message is discarded.
var HookPosReassemblyTimeout = &sim.HookPos{Name: "Reassembly Timeout"}

// HookPosMessageReassembled marks when a message is complete.
var HookPosMessageReassembled = &sim.HookPos{Name: "Message Reassembled"}

// Datalink is the layer below the transport layer.
type Datalink interface {
	Transmit(ctx context.Context, f messaging.Frame) error
	Receive(ctx context.Context) (messaging.Frame, error)
}

// An AdmissionTable decides who may send and who should receive a message id.
type AdmissionTable interface {
	IsSenderAllowed(sender messaging.NodeID, id messaging.MessageID) bool
	IsReceiverAllowed(receiver messaging.NodeID, id messaging.MessageID) bool
}

// Comp is the segment transport layer of one node.
type Comp struct {
	sim.HookableBase

	name              string
	nodeID            messaging.NodeID
	dl                Datalink
	table             AdmissionTable
	timeTeller        sim.TimeTeller
	maxFrameSize      int
	receiveFilter     bool
	reassemblyTimeout time.Duration
	logger            *zap.Logger

	sendLock sync.Mutex

	// recvLock serialises receivers and is held across datalink waits.
	// stateLock guards the reassembly state and is never held while waiting.
	recvLock    sync.Mutex
	stateLock   sync.Mutex
	reassembler *reassembler
	ready       []*messaging.Message
}

// Name returns the name of the layer.
func (c *Comp) Name() string {
	return c.name
}

// MaxFrameSize returns the largest segment payload.
func (c *Comp) MaxFrameSize() int {
	return c.maxFrameSize
}

// Send splits the message into segments and queues them for transmission in
// order. It returns once the last segment is queued. The segments of
// concurrent sends are never interleaved.
func (c *Comp) Send(
	ctx context.Context,
	sender messaging.NodeID,
	id messaging.MessageID,
	msg *messaging.Message,
) error {
	if !c.table.IsSenderAllowed(sender, id) {
		return &AdmissionError{Sender: sender, MessageID: id}
	}

	segments := Segmentize(sender, id, msg, c.maxFrameSize)

	c.sendLock.Lock()
	defer c.sendLock.Unlock()

	for _, seg := range segments {
		if err := c.dl.Transmit(ctx, seg); err != nil {
			return err
		}
	}

	return nil
}

// Receive returns the next reassembled message. It blocks until a message is
// complete. A *ReassemblyError is returned when a segment cannot be placed;
// the caller may keep calling Receive afterwards.
func (c *Comp) Receive(ctx context.Context) (*messaging.Message, error) {
	c.recvLock.Lock()
	defer c.recvLock.Unlock()

	if msg := c.popReady(); msg != nil {
		return msg, nil
	}

	for {
		f, err := c.dl.Receive(ctx)
		if err != nil {
			return nil, err
		}

		msg, err := c.handleFrame(f)
		if err != nil {
			if msg != nil {
				c.pushReady(msg)
			}

			return nil, err
		}

		if msg != nil {
			return msg, nil
		}
	}
}

func (c *Comp) popReady() *messaging.Message {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	if len(c.ready) == 0 {
		return nil
	}

	msg := c.ready[0]
	c.ready = c.ready[1:]

	return msg
}

func (c *Comp) pushReady(msg *messaging.Message) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.ready = append(c.ready, msg)
}

func (c *Comp) handleFrame(f messaging.Frame) (*messaging.Message, error) {
	meta := f.Meta()

	if c.receiveFilter && !c.table.IsReceiverAllowed(c.nodeID, meta.MessageID) {
		c.logger.Debug("segment filtered",
			zap.String("layer", c.name),
			zap.String("frame", meta.ID),
			zap.String("sender", string(meta.Src)),
			zap.Uint32("message_id", uint32(meta.MessageID)))
		c.invoke(HookPosSegmentFiltered, f, nil)

		return nil, nil
	}

	now := c.timeTeller.CurrentTime()
	c.reportTimeouts(c.expire(now))

	seg, ok := f.(*messaging.Segment)
	if !ok {
		return nil, &ReassemblyError{
			Key:    Key{Sender: meta.Src, MessageID: meta.MessageID},
			Reason: ErrMalformedSegment,
		}
	}

	c.stateLock.Lock()
	msg, err := c.reassembler.add(seg, now)
	c.stateLock.Unlock()

	if err != nil {
		c.logReassemblyError(err)
	}

	if msg != nil {
		c.invoke(HookPosMessageReassembled, msg, nil)
	}

	return msg, err
}

func (c *Comp) expire(now sim.VTimeInSec) []*ReassemblyTimeout {
	if c.reassemblyTimeout <= 0 {
		return nil
	}

	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.reassembler.expire(now, c.reassemblyTimeout)
}

func (c *Comp) reportTimeouts(timeouts []*ReassemblyTimeout) {
	for _, t := range timeouts {
		c.logger.Warn("reassembly timed out",
			zap.String("layer", c.name),
			zap.Stringer("key", t.Key),
			zap.Int("received", t.Received),
			zap.Int("total", t.Total),
			zap.Duration("idle", t.Idle))
		c.invoke(HookPosReassemblyTimeout, nil, t)
	}
}

func (c *Comp) logReassemblyError(err error) {
	var reassemblyErr *ReassemblyError
	if !errors.As(err, &reassemblyErr) {
		return
	}

	c.logger.Warn("segment rejected",
		zap.String("layer", c.name),
		zap.Stringer("key", reassemblyErr.Key),
		zap.Error(reassemblyErr.Reason))
}

// NumPending returns the number of partially received messages.
func (c *Comp) NumPending() int {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.reassembler.numPending()
}

func (c *Comp) invoke(pos *sim.HookPos, item, detail interface{}) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

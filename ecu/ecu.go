// Package ecu provides an electronic control unit that runs a small
// application on top of a communication module. The application sends
// messages periodically and counts the messages it receives.
package ecu

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/ecusim/comm"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/streams"
	"github.com/sarchlab/ecusim/comm/transport"
	"github.com/sarchlab/ecusim/sim"
)

// A Sending is a message that the application sends periodically.
type Sending struct {
	Start     time.Duration
	Interval  time.Duration
	MessageID messaging.MessageID
	Data      []byte
	DataLen   int
}

// A Handler is called for every message the ECU receives.
type Handler func(msg *messaging.Message)

// ECU is a node on the bus.
type ECU struct {
	name       string
	nodeID     messaging.NodeID
	comm       *comm.Module
	timeTeller *sim.ClockTimeTeller
	logger     *zap.Logger

	lock        sync.Mutex
	sendings    []Sending
	maxMessages int
	handler     Handler

	numSent     atomic.Uint64
	numReceived atomic.Uint64
}

// Name returns the name of the ECU.
func (e *ECU) Name() string {
	return e.name
}

// NodeID returns the identifier of the ECU on the bus.
func (e *ECU) NodeID() messaging.NodeID {
	return e.nodeID
}

// Comm returns the communication module of the ECU.
func (e *ECU) Comm() *comm.Module {
	return e.comm
}

// AddSending schedules a message that is sent every interval, starting at the
// given simulated time. The message carries data and declares dataLen bytes.
func (e *ECU) AddSending(
	start, interval time.Duration,
	id messaging.MessageID,
	data []byte,
	dataLen int,
) {
	if interval <= 0 {
		panic("sending interval must be positive")
	}

	if start < 0 {
		panic("sending start must not be negative")
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	e.sendings = append(e.sendings, Sending{
		Start:     start,
		Interval:  interval,
		MessageID: id,
		Data:      data,
		DataLen:   dataLen,
	})
}

// Sendings returns the scheduled sendings.
func (e *ECU) Sendings() []Sending {
	e.lock.Lock()
	defer e.lock.Unlock()

	return append([]Sending(nil), e.sendings...)
}

// SetMaxMessageNumber limits how many messages each sending sends. A limit of
// 0 means no limit.
func (e *ECU) SetMaxMessageNumber(n int) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.maxMessages = n
}

// OnMessage sets the handler of received messages.
func (e *ECU) OnMessage(h Handler) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.handler = h
}

// AddStream registers a stream through the communication module.
func (e *ECU) AddStream(s streams.Stream) {
	e.comm.AddStream(s)
}

// MonitorUpdate returns the monitor samples collected since the last update.
func (e *ECU) MonitorUpdate() []comm.Sample {
	return e.comm.MonitorSample()
}

// Buffers returns the transmit and receive buffers of the ECU.
func (e *ECU) Buffers() []sim.Buffer {
	return e.comm.Datalink().Buffers()
}

// NumSent returns the number of messages the application has sent.
func (e *ECU) NumSent() uint64 {
	return e.numSent.Load()
}

// NumReceived returns the number of messages the application has received.
func (e *ECU) NumReceived() uint64 {
	return e.numReceived.Load()
}

// Run runs the communication module, the receive loop and one loop per
// sending until the context is done or one of them fails.
func (e *ECU) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.comm.Run(ctx) })
	g.Go(func() error { return e.receiveLoop(ctx) })

	e.lock.Lock()
	sendings := append([]Sending(nil), e.sendings...)
	maxMessages := e.maxMessages
	e.lock.Unlock()

	for _, s := range sendings {
		g.Go(func() error { return e.sendLoop(ctx, s, maxMessages) })
	}

	return g.Wait()
}

func (e *ECU) sendLoop(ctx context.Context, s Sending, maxMessages int) error {
	next := s.Start

	for n := 0; maxMessages == 0 || n < maxMessages; n++ {
		if err := e.waitUntil(ctx, next); err != nil {
			return err
		}

		msg := messaging.NewMessageWithLength(s.Data, s.DataLen)
		err := e.comm.Send(ctx, e.nodeID, s.MessageID, msg)

		switch {
		case errors.Is(err, transport.ErrNotAdmitted):
			e.logger.Warn("message not sent",
				zap.String("ecu", e.name),
				zap.Error(err))
		case err != nil:
			return err
		default:
			e.numSent.Add(1)
			e.logger.Debug("message sent",
				zap.String("ecu", e.name),
				zap.Uint32("message_id", uint32(s.MessageID)),
				zap.Float64("time", float64(e.timeTeller.CurrentTime())))
		}

		next += s.Interval
	}

	return nil
}

func (e *ECU) receiveLoop(ctx context.Context) error {
	for {
		msg, err := e.comm.Receive(ctx)

		var reassemblyErr *transport.ReassemblyError
		switch {
		case errors.As(err, &reassemblyErr):
			e.logger.Warn("message lost",
				zap.String("ecu", e.name),
				zap.Error(err))

			continue
		case err != nil:
			return err
		}

		e.numReceived.Add(1)
		e.logger.Debug("message received",
			zap.String("ecu", e.name),
			zap.String("sender", string(msg.SenderID)),
			zap.Uint32("message_id", uint32(msg.MessageID)),
			zap.Float64("time", float64(e.timeTeller.CurrentTime())))

		e.lock.Lock()
		h := e.handler
		e.lock.Unlock()

		if h != nil {
			h(msg)
		}
	}
}

// waitUntil blocks until the simulated time reaches t.
func (e *ECU) waitUntil(ctx context.Context, t time.Duration) error {
	d := t - e.timeTeller.CurrentTime().Duration()
	if d <= 0 {
		return ctx.Err()
	}

	timer := e.timeTeller.Clock().Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

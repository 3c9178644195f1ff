// Package comm composes the layers of an ECU communication stack into a
// communication module that applications send and receive messages through.
package comm

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/datalink"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/physical"
	"github.com/sarchlab/ecusim/comm/streams"
	"github.com/sarchlab/ecusim/comm/transport"
	"github.com/sarchlab/ecusim/sim"
)

// A Module is the communication stack of one node.
type Module struct {
	name       string
	nodeID     messaging.NodeID
	table      *streams.Table
	timeTeller sim.TimeTeller
	logger     *zap.Logger

	phy *physical.Comp
	dl  *datalink.Comp
	tp  *transport.Comp

	activity   atomic.Bool
	sampleLock sync.Mutex
	sampled    bool

	receiveFilter bool
	filterLock    sync.Mutex
	allowed       map[messaging.MessageID]struct{}
}

// Name returns the name of the module.
func (m *Module) Name() string {
	return m.name
}

// NodeID returns the node the module belongs to.
func (m *Module) NodeID() messaging.NodeID {
	return m.nodeID
}

// Physical returns the physical layer.
func (m *Module) Physical() *physical.Comp {
	return m.phy
}

// Datalink returns the datalink layer.
func (m *Module) Datalink() *datalink.Comp {
	return m.dl
}

// Transport returns the transport layer.
func (m *Module) Transport() *transport.Comp {
	return m.tp
}

// Send sends a message on behalf of the sender.
func (m *Module) Send(
	ctx context.Context,
	sender messaging.NodeID,
	id messaging.MessageID,
	msg *messaging.Message,
) error {
	return m.tp.Send(ctx, sender, id, msg)
}

// Receive blocks until the next message is reassembled and returns it.
func (m *Module) Receive(ctx context.Context) (*messaging.Message, error) {
	return m.tp.Receive(ctx)
}

// AddStream registers a stream on the shared table.
func (m *Module) AddStream(s streams.Stream) {
	m.table.AddStream(s)
}

// Run transmits queued frames until the context is done.
func (m *Module) Run(ctx context.Context) error {
	return m.dl.Run(ctx)
}

// MonitorSample returns the samples collected since the previous call. A
// fresh pair of buffer samples is taken on the first call and whenever a
// buffer changed since the previous call.
func (m *Module) MonitorSample() []Sample {
	m.sampleLock.Lock()
	defer m.sampleLock.Unlock()

	changed := m.activity.Swap(false)
	if m.sampled && !changed {
		return nil
	}

	m.sampled = true
	rx, tx := m.dl.Occupancy()
	now := m.timeTeller.CurrentTime()

	return []Sample{
		{
			Kind:   ReceiveBufferOccupancy,
			Value:  float64(rx),
			NodeID: m.nodeID,
			Time:   now,
		},
		{
			Kind:   TransmitBufferCapacity,
			Value:  float64(tx),
			NodeID: m.nodeID,
			Time:   now,
		},
	}
}

func (m *Module) markActivity(sim.HookCtx) {
	m.activity.Store(true)
}

func (m *Module) onStream(s streams.Stream) {
	if !s.HasReceiver(m.nodeID) {
		return
	}

	m.allowReceive(s.MessageID)
}

func (m *Module) allowReceive(ids ...messaging.MessageID) {
	m.filterLock.Lock()
	defer m.filterLock.Unlock()

	grown := false
	for _, id := range ids {
		if _, found := m.allowed[id]; found {
			continue
		}

		m.allowed[id] = struct{}{}
		grown = true
	}

	if !grown || !m.receiveFilter {
		return
	}

	filter := make([]messaging.MessageID, 0, len(m.allowed))
	for id := range m.allowed {
		filter = append(filter, id)
	}
	slices.Sort(filter)

	m.phy.InstallFilter(filter)
}

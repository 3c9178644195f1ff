package comm

import (
	"fmt"

	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/sim"
)

// MetricKind tells what a monitor sample measures.
type MetricKind int

// The metrics reported by a communication module.
const (
	ReceiveBufferOccupancy MetricKind = iota
	TransmitBufferCapacity
)

func (k MetricKind) String() string {
	switch k {
	case ReceiveBufferOccupancy:
		return "receive_buffer_occupancy"
	case TransmitBufferCapacity:
		return "transmit_buffer_capacity"
	default:
		return fmt.Sprintf("metric_kind_%d", int(k))
	}
}

// A Sample is one monitor reading of a node.
type Sample struct {
	Kind   MetricKind
	Value  float64
	NodeID messaging.NodeID
	Time   sim.VTimeInSec
}

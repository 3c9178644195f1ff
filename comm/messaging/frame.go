// Package messaging defines the units that travel through the communication
// stack of an ECU: frames on the medium, segments of a message, and the
// messages exchanged between applications.
package messaging

import (
	"fmt"

	"github.com/sarchlab/ecusim/sim"
)

// NodeID identifies an ECU attached to the bus.
type NodeID string

// MessageID identifies a logical message stream on the bus. On a CAN-style
// bus it doubles as the arbitration identifier that acceptance filters match.
type MessageID uint32

// FrameMeta contains the meta data that is attached to every frame.
type FrameMeta struct {
	ID        string
	Src       NodeID
	MessageID MessageID
	Payload   []byte

	SendTime, RecvTime sim.VTimeInSec
}

// A Frame is the smallest unit that the physical layer can put on the medium
// in one step.
type Frame interface {
	Meta() *FrameMeta
}

// Len returns the number of payload bytes carried by the frame.
func (m *FrameMeta) Len() int {
	return len(m.Payload)
}

func (m *FrameMeta) String() string {
	return fmt.Sprintf("frame %s from %s id 0x%x [%d]",
		m.ID, m.Src, uint32(m.MessageID), len(m.Payload))
}

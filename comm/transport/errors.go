package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/ecusim/comm/messaging"
)

// ErrNotAdmitted is matched by every AdmissionError.
var ErrNotAdmitted = errors.New("sender is not admitted for the message id")

// ErrKeyReused means a segment contradicts the partial message stored under
// the same key.
var ErrKeyReused = errors.New("message key reused before reassembly completed")

// ErrMalformedSegment means a received frame cannot be placed in a message.
var ErrMalformedSegment = errors.New("malformed segment")

// A Key identifies a message under reassembly.
type Key struct {
	Sender    messaging.NodeID
	MessageID messaging.MessageID
}

func (k Key) String() string {
	return fmt.Sprintf("%s/0x%x", k.Sender, uint32(k.MessageID))
}

// An AdmissionError is returned when a node tries to send a message id it is
// not the declared sender of.
type AdmissionError struct {
	Sender    messaging.NodeID
	MessageID messaging.MessageID
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s may not send message 0x%x",
		e.Sender, uint32(e.MessageID))
}

// Unwrap returns ErrNotAdmitted.
func (e *AdmissionError) Unwrap() error {
	return ErrNotAdmitted
}

// A ReassemblyError reports a segment that could not be reassembled.
type ReassemblyError struct {
	Key    Key
	Reason error
}

func (e *ReassemblyError) Error() string {
	return fmt.Sprintf("reassembly of %s: %v", e.Key, e.Reason)
}

// Unwrap returns the reason.
func (e *ReassemblyError) Unwrap() error {
	return e.Reason
}

// A ReassemblyTimeout describes a partial message that was discarded because
// no segment of it arrived for too long.
type ReassemblyTimeout struct {
	Key      Key
	Received int
	Total    int
	Idle     time.Duration
}

func (e *ReassemblyTimeout) Error() string {
	return fmt.Sprintf("reassembly of %s timed out after %s with %d of %d segments",
		e.Key, e.Idle, e.Received, e.Total)
}

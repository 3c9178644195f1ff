package messaging

import "fmt"

// A Message is the logical unit exchanged between applications.
type Message struct {
	SenderID       NodeID
	MessageID      MessageID
	Payload        []byte
	DeclaredLength int
}

// NewMessage creates a message whose declared length is the payload length.
func NewMessage(payload []byte) *Message {
	return &Message{
		Payload:        payload,
		DeclaredLength: len(payload),
	}
}

// NewMessageWithLength creates a message whose declared length differs from
// the content, e.g. a short marker standing in for a large transfer.
func NewMessageWithLength(payload []byte, declaredLength int) *Message {
	return &Message{
		Payload:        payload,
		DeclaredLength: declaredLength,
	}
}

// Get returns the content of the message.
func (m *Message) Get() []byte {
	return m.Payload
}

// Len returns the declared length of the message.
func (m *Message) Len() int {
	if m.DeclaredLength > 0 {
		return m.DeclaredLength
	}

	return len(m.Payload)
}

func (m *Message) String() string {
	return fmt.Sprintf("message 0x%x from %s: %q",
		uint32(m.MessageID), m.SenderID, m.Payload)
}

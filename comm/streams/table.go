// Package streams keeps the network-wide record of which node may send a
// message identifier and which nodes are meant to receive it.
package streams

import (
	"cmp"
	"slices"
	"sync"

	"github.com/sarchlab/ecusim/comm/messaging"
)

// A Stream declares the legitimate sender and receivers of a message id.
type Stream struct {
	MessageID messaging.MessageID
	SenderID  messaging.NodeID
	Receivers []messaging.NodeID
}

// HasReceiver tells if the node is a declared receiver of the stream.
func (s Stream) HasReceiver(node messaging.NodeID) bool {
	return slices.Contains(s.Receivers, node)
}

// A Listener is notified after a stream is added to a table.
type Listener func(s Stream)

// A Table is the admission table shared by all the nodes on a bus. It is read
// by every node and only written through AddStream.
type Table struct {
	lock      sync.RWMutex
	streams   map[messaging.MessageID]Stream
	listeners []Listener
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		streams: make(map[messaging.MessageID]Stream),
	}
}

// AddStream registers a stream. Registering a message id again replaces the
// previous entry. Listeners are called after the table is updated.
func (t *Table) AddStream(s Stream) {
	s.Receivers = slices.Clone(s.Receivers)

	t.lock.Lock()
	t.streams[s.MessageID] = s
	listeners := slices.Clone(t.listeners)
	t.lock.Unlock()

	for _, l := range listeners {
		l(s)
	}
}

// Subscribe registers a listener that is called on every AddStream.
func (t *Table) Subscribe(l Listener) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.listeners = append(t.listeners, l)
}

// IsSenderAllowed tells if the node may send the message id.
func (t *Table) IsSenderAllowed(
	sender messaging.NodeID,
	id messaging.MessageID,
) bool {
	s, found := t.Stream(id)
	if !found {
		return false
	}

	return s.SenderID == sender
}

// IsReceiverAllowed tells if the node is meant to accept the message id.
func (t *Table) IsReceiverAllowed(
	receiver messaging.NodeID,
	id messaging.MessageID,
) bool {
	s, found := t.Stream(id)
	if !found {
		return false
	}

	return s.HasReceiver(receiver)
}

// Stream returns the stream registered for the message id.
func (t *Table) Stream(id messaging.MessageID) (Stream, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	s, found := t.streams[id]

	return s, found
}

// Streams returns all registered streams ordered by message id.
func (t *Table) Streams() []Stream {
	t.lock.RLock()
	defer t.lock.RUnlock()

	list := make([]Stream, 0, len(t.streams))
	for _, s := range t.streams {
		list = append(list, s)
	}

	slices.SortFunc(list, func(a, b Stream) int {
		return cmp.Compare(a.MessageID, b.MessageID)
	})

	return list
}

// AllowedReceiveIDs returns the sorted message ids the node is a declared
// receiver of.
func (t *Table) AllowedReceiveIDs(node messaging.NodeID) []messaging.MessageID {
	ids := []messaging.MessageID{}

	for _, s := range t.Streams() {
		if s.HasReceiver(node) {
			ids = append(ids, s.MessageID)
		}
	}

	return ids
}

package transport

import (
	"bytes"
	"container/list"
	"time"

	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/sim"
)

type entry struct {
	key            Key
	total          int
	slots          [][]byte
	filled         []bool
	received       int
	lastSeen       bool
	declaredLength int
	lastActivity   sim.VTimeInSec
}

func newEntry(key Key, seg *messaging.Segment) *entry {
	return &entry{
		key:            key,
		total:          seg.TotalSegments,
		slots:          make([][]byte, seg.TotalSegments),
		filled:         make([]bool, seg.TotalSegments),
		declaredLength: seg.DeclaredLength,
	}
}

func (e *entry) conflictsWith(seg *messaging.Segment) bool {
	if seg.TotalSegments != e.total {
		return true
	}

	return e.filled[seg.SeqIndex] &&
		!bytes.Equal(e.slots[seg.SeqIndex], seg.Payload)
}

func (e *entry) store(seg *messaging.Segment) {
	if !e.filled[seg.SeqIndex] {
		e.filled[seg.SeqIndex] = true
		e.received++
	}

	e.slots[seg.SeqIndex] = seg.Payload
	e.lastSeen = e.lastSeen || seg.IsLast
}

func (e *entry) complete() bool {
	return e.lastSeen && e.received == e.total
}

func (e *entry) message() *messaging.Message {
	return &messaging.Message{
		SenderID:       e.key.Sender,
		MessageID:      e.key.MessageID,
		Payload:        bytes.Join(e.slots, nil),
		DeclaredLength: e.declaredLength,
	}
}

// reassembler keeps the partial messages of one node. Entries are kept in the
// order of their last activity, least recent first.
type reassembler struct {
	entries map[Key]*list.Element
	order   *list.List
}

func newReassembler() *reassembler {
	return &reassembler{
		entries: make(map[Key]*list.Element),
		order:   list.New(),
	}
}

func validateSegment(seg *messaging.Segment) error {
	if seg.TotalSegments <= 0 ||
		seg.SeqIndex < 0 ||
		seg.SeqIndex >= seg.TotalSegments ||
		seg.IsLast != (seg.SeqIndex == seg.TotalSegments-1) {
		return ErrMalformedSegment
	}

	return nil
}

// add stores a segment. It returns the message if the segment completes one.
// A segment that contradicts the stored entry replaces it, in which case both
// a message and an error may be returned.
func (r *reassembler) add(
	seg *messaging.Segment,
	now sim.VTimeInSec,
) (*messaging.Message, error) {
	key := Key{Sender: seg.Src, MessageID: seg.MessageID}

	if err := validateSegment(seg); err != nil {
		return nil, &ReassemblyError{Key: key, Reason: err}
	}

	var err error

	elem, found := r.entries[key]
	if found && elem.Value.(*entry).conflictsWith(seg) {
		r.remove(key)
		found = false
		err = &ReassemblyError{Key: key, Reason: ErrKeyReused}
	}

	if !found {
		elem = r.order.PushBack(newEntry(key, seg))
		r.entries[key] = elem
	}

	e := elem.Value.(*entry)
	e.store(seg)
	e.lastActivity = now
	r.order.MoveToBack(elem)

	if !e.complete() {
		return nil, err
	}

	r.remove(key)

	return e.message(), err
}

// expire discards the entries that have been inactive for longer than the
// timeout.
func (r *reassembler) expire(
	now sim.VTimeInSec,
	timeout time.Duration,
) []*ReassemblyTimeout {
	var expired []*ReassemblyTimeout

	for {
		front := r.order.Front()
		if front == nil {
			return expired
		}

		e := front.Value.(*entry)
		idle := (now - e.lastActivity).Duration()
		if idle <= timeout {
			return expired
		}

		r.remove(e.key)
		expired = append(expired, &ReassemblyTimeout{
			Key:      e.key,
			Received: e.received,
			Total:    e.total,
			Idle:     idle,
		})
	}
}

func (r *reassembler) remove(key Key) {
	elem, found := r.entries[key]
	if !found {
		return
	}

	r.order.Remove(elem)
	delete(r.entries, key)
}

func (r *reassembler) numPending() int {
	return len(r.entries)
}

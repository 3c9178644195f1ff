package messaging

import (
	"bytes"
	"fmt"

	"github.com/sarchlab/ecusim/sim"
)

// A Segment is a frame that carries one fragment of a message together with
// the information required to put the message back together.
type Segment struct {
	FrameMeta

	SeqIndex       int
	TotalSegments  int
	IsLast         bool
	DeclaredLength int
}

// Meta returns the meta data associated with the Segment.
func (s *Segment) Meta() *FrameMeta {
	return &s.FrameMeta
}

// SegmentBuilder can build segments.
type SegmentBuilder struct {
	src            NodeID
	messageID      MessageID
	payload        []byte
	seqIndex       int
	totalSegments  int
	declaredLength int
}

// WithSrc sets the node that sends the segment.
func (b SegmentBuilder) WithSrc(src NodeID) SegmentBuilder {
	b.src = src
	return b
}

// WithMessageID sets the message identifier of the segment.
func (b SegmentBuilder) WithMessageID(id MessageID) SegmentBuilder {
	b.messageID = id
	return b
}

// WithPayload sets the fragment of the message carried by the segment. The
// bytes are copied, so the caller may reuse its buffer.
func (b SegmentBuilder) WithPayload(payload []byte) SegmentBuilder {
	b.payload = bytes.Clone(payload)
	return b
}

// WithSeqIndex sets the position of the segment in the message.
func (b SegmentBuilder) WithSeqIndex(i int) SegmentBuilder {
	b.seqIndex = i
	return b
}

// WithTotalSegments sets the number of segments in the message.
func (b SegmentBuilder) WithTotalSegments(n int) SegmentBuilder {
	b.totalSegments = n
	return b
}

// WithDeclaredLength sets the length the application declared for the
// message.
func (b SegmentBuilder) WithDeclaredLength(n int) SegmentBuilder {
	b.declaredLength = n
	return b
}

// Build creates a new segment. The last flag is derived from the index.
func (b SegmentBuilder) Build() *Segment {
	s := &Segment{}
	s.ID = fmt.Sprintf("seg-%d-msg-%d-%s",
		b.seqIndex, b.messageID, sim.GetIDGenerator().Generate())
	s.Src = b.src
	s.MessageID = b.messageID
	s.Payload = b.payload
	s.SeqIndex = b.seqIndex
	s.TotalSegments = b.totalSegments
	s.IsLast = b.seqIndex == b.totalSegments-1
	s.DeclaredLength = b.declaredLength

	return s
}

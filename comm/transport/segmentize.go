package transport

import (
	"github.com/sarchlab/ecusim/comm/messaging"
)

// NumSegments returns how many frames of maxFrameSize bytes carry a payload of
// the given length. An empty payload still takes one frame. It panics if
// maxFrameSize is not positive.
func NumSegments(payloadLen, maxFrameSize int) int {
	if maxFrameSize <= 0 {
		panic("max frame size must be positive")
	}

	if payloadLen <= 0 {
		return 1
	}

	return (payloadLen-1)/maxFrameSize + 1
}

// Segmentize splits a message into segments that each fit in one frame.
func Segmentize(
	sender messaging.NodeID,
	id messaging.MessageID,
	msg *messaging.Message,
	maxFrameSize int,
) []*messaging.Segment {
	payload := msg.Get()
	total := NumSegments(len(payload), maxFrameSize)
	segments := make([]*messaging.Segment, 0, total)

	for i := 0; i < total; i++ {
		start := i * maxFrameSize
		end := min(start+maxFrameSize, len(payload))

		seg := messaging.SegmentBuilder{}.
			WithSrc(sender).
			WithMessageID(id).
			WithPayload(payload[start:end]).
			WithSeqIndex(i).
			WithTotalSegments(total).
			WithDeclaredLength(msg.Len()).
			Build()
		segments = append(segments, seg)
	}

	return segments
}

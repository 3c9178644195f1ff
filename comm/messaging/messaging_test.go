package messaging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SegmentBuilder", func() {
	It("should build a segment", func() {
		seg := SegmentBuilder{}.
			WithSrc("A").
			WithMessageID(5).
			WithPayload([]byte("HELL")).
			WithSeqIndex(0).
			WithTotalSegments(3).
			WithDeclaredLength(10).
			Build()

		Expect(seg.Meta()).To(BeIdenticalTo(&seg.FrameMeta))
		Expect(seg.Src).To(Equal(NodeID("A")))
		Expect(seg.MessageID).To(Equal(MessageID(5)))
		Expect(seg.Meta().Len()).To(Equal(4))
		Expect(seg.IsLast).To(BeFalse())
		Expect(seg.DeclaredLength).To(Equal(10))
		Expect(seg.ID).To(HavePrefix("seg-0-msg-5-"))
	})

	It("should mark the final segment as last", func() {
		seg := SegmentBuilder{}.
			WithSeqIndex(2).
			WithTotalSegments(3).
			Build()

		Expect(seg.IsLast).To(BeTrue())
	})

	It("should give every segment a distinct id", func() {
		a := SegmentBuilder{}.WithTotalSegments(1).Build()
		b := SegmentBuilder{}.WithTotalSegments(1).Build()

		Expect(a.ID).NotTo(Equal(b.ID))
	})
})

var _ = Describe("Message", func() {
	It("should expose payload and length", func() {
		msg := NewMessage([]byte("HELLOWORLD"))

		Expect(msg.Get()).To(Equal([]byte("HELLOWORLD")))
		Expect(msg.Len()).To(Equal(10))
	})

	It("should report the declared length", func() {
		msg := NewMessageWithLength([]byte("x"), 64)

		Expect(msg.Len()).To(Equal(64))
	})

	It("should report zero for an empty message", func() {
		Expect(NewMessage(nil).Len()).To(Equal(0))
	})
})

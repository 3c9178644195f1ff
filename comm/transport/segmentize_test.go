package transport

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ecusim/comm/messaging"
)

var _ = Describe("Segmentize", func() {
	It("should split HELLOWORLD into 4, 4 and 2 bytes", func() {
		msg := messaging.NewMessage([]byte("HELLOWORLD"))

		segs := Segmentize("A", 0x10, msg, 4)

		Expect(segs).To(HaveLen(3))
		Expect(string(segs[0].Payload)).To(Equal("HELL"))
		Expect(string(segs[1].Payload)).To(Equal("OWOR"))
		Expect(string(segs[2].Payload)).To(Equal("LD"))

		for i, s := range segs {
			Expect(s.SeqIndex).To(Equal(i))
			Expect(s.TotalSegments).To(Equal(3))
			Expect(s.IsLast).To(Equal(i == 2))
			Expect(s.Src).To(Equal(messaging.NodeID("A")))
			Expect(s.MessageID).To(Equal(messaging.MessageID(0x10)))
			Expect(s.DeclaredLength).To(Equal(10))
		}
	})

	It("should put an empty payload in a single last segment", func() {
		segs := Segmentize("A", 1, messaging.NewMessage(nil), 8)

		Expect(segs).To(HaveLen(1))
		Expect(segs[0].Payload).To(BeEmpty())
		Expect(segs[0].IsLast).To(BeTrue())
		Expect(segs[0].TotalSegments).To(Equal(1))
	})

	It("should carry the declared length", func() {
		msg := messaging.NewMessageWithLength([]byte("MARK"), 300)

		segs := Segmentize("A", 1, msg, 8)

		Expect(segs).To(HaveLen(1))
		Expect(segs[0].DeclaredLength).To(Equal(300))
	})

	It("should panic on a non-positive frame size", func() {
		Expect(func() {
			Segmentize("A", 1, messaging.NewMessage([]byte("X")), 0)
		}).To(PanicWith("max frame size must be positive"))
		Expect(func() { NumSegments(5, 0) }).
			To(PanicWith("max frame size must be positive"))
		Expect(func() { NumSegments(0, -1) }).
			To(PanicWith("max frame size must be positive"))
	})

	It("should not share the payload buffer of the message", func() {
		buf := []byte("HELLOWORLD")

		segs := Segmentize("A", 1, messaging.NewMessage(buf), 4)
		copy(buf, "XXXXXXXXXX")

		Expect(string(bytes.Join(payloads(segs), nil))).To(Equal("HELLOWORLD"))
	})

	DescribeTable("segment count",
		func(length, maxFrameSize, expected int) {
			payload := bytes.Repeat([]byte{'x'}, length)

			segs := Segmentize("A", 1, messaging.NewMessage(payload), maxFrameSize)

			Expect(segs).To(HaveLen(expected))
			Expect(NumSegments(length, maxFrameSize)).To(Equal(expected))
			Expect(string(bytes.Join(payloads(segs), nil))).To(Equal(string(payload)))
		},
		Entry("empty", 0, 8, 1),
		Entry("one byte", 1, 8, 1),
		Entry("exactly one frame", 8, 8, 1),
		Entry("one byte over", 9, 8, 2),
		Entry("exact multiple", 64, 8, 8),
		Entry("single byte frames", 5, 1, 5),
		Entry("large frames", 100, 64, 2),
	)
})

func payloads(segs []*messaging.Segment) [][]byte {
	out := make([][]byte, len(segs))
	for i, s := range segs {
		out[i] = s.Payload
	}

	return out
}

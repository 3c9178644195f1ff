package tracing

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ecusim/comm/medium"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/physical"
	"github.com/sarchlab/ecusim/comm/transport"
	"github.com/sarchlab/ecusim/sim"
)

type recordingTracer struct {
	lock   sync.Mutex
	starts []Task
	ends   []Task
}

func (t *recordingTracer) StartTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.starts = append(t.starts, task)
}

func (t *recordingTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.ends = append(t.ends, task)
}

type namedDomain struct {
	sim.HookableBase
	name string
}

func (d *namedDomain) Name() string {
	return d.name
}

func (d *namedDomain) invoke(pos *sim.HookPos, item, detail interface{}) {
	d.InvokeHook(sim.HookCtx{Domain: d, Pos: pos, Item: item, Detail: detail})
}

func makeSegment(src messaging.NodeID, payload string) *messaging.Segment {
	return messaging.SegmentBuilder{}.
		WithSrc(src).
		WithMessageID(0x12).
		WithPayload([]byte(payload)).
		WithTotalSegments(1).
		Build()
}

var _ = Describe("Trace Hook", func() {
	var (
		tracer *recordingTracer
		domain *namedDomain
	)

	BeforeEach(func() {
		tracer = &recordingTracer{}
		domain = &namedDomain{name: "ECU1.Comm.Physical"}
		CollectTrace(domain, tracer)
	})

	It("should turn a transmission into a frame task", func() {
		bus := medium.MakeBuilder().
			WithTimeTeller(sim.NewClockTimeTeller(clock.NewMock())).
			WithBitRate(0).
			Build("Bus")
		CollectTrace(bus, tracer)

		seg := makeSegment("ECU1", "HELLO")
		Expect(bus.Transmit(context.Background(), seg)).To(Succeed())

		Expect(tracer.starts).To(HaveLen(1))
		Expect(tracer.ends).To(HaveLen(1))
		Expect(tracer.starts[0].ID).To(Equal(seg.ID))
		Expect(tracer.starts[0].Kind).To(Equal(KindFrame))
		Expect(tracer.starts[0].Location).To(Equal("ECU1"))
		Expect(tracer.starts[0].What).To(Equal("0x12"))
		Expect(tracer.starts[0].Bytes).To(Equal(5))
		Expect(tracer.ends[0].ID).To(Equal(seg.ID))
	})

	It("should report a filtered frame at the domain", func() {
		domain.invoke(physical.HookPosFrameFiltered, makeSegment("ECU2", "AB"), nil)

		Expect(tracer.starts).To(HaveLen(1))
		Expect(tracer.ends).To(HaveLen(1))
		Expect(tracer.starts[0].Kind).To(Equal(KindFrameFiltered))
		Expect(tracer.starts[0].Location).To(Equal("ECU1.Comm.Physical"))
	})

	It("should report a filtered segment", func() {
		domain.invoke(transport.HookPosSegmentFiltered, makeSegment("ECU2", "AB"), nil)

		Expect(tracer.ends).To(HaveLen(1))
		Expect(tracer.ends[0].Kind).To(Equal(KindSegmentFiltered))
	})

	It("should report a reassembly timeout", func() {
		domain.invoke(transport.HookPosReassemblyTimeout, nil,
			&transport.ReassemblyTimeout{
				Key:      transport.Key{Sender: "ECU2", MessageID: 0x12},
				Received: 1,
				Total:    3,
			})

		Expect(tracer.ends).To(HaveLen(1))
		Expect(tracer.ends[0].Kind).To(Equal(KindReassemblyTimeout))
		Expect(tracer.ends[0].ID).To(Equal("timeout-ECU2/0x12"))
		Expect(tracer.ends[0].What).To(Equal("1/3 segments"))
	})

	It("should report a reassembled message", func() {
		msg := messaging.NewMessage([]byte("HELLOWORLD"))
		msg.SenderID = "ECU2"
		msg.MessageID = 0x12

		domain.invoke(transport.HookPosMessageReassembled, msg, nil)

		Expect(tracer.ends).To(HaveLen(1))
		Expect(tracer.ends[0].Kind).To(Equal(KindMessage))
		Expect(tracer.ends[0].Bytes).To(Equal(10))
		Expect(tracer.ends[0].Location).To(Equal("ECU1.Comm.Physical"))
	})

	It("should ignore other hook positions", func() {
		domain.invoke(sim.HookPosBufPush, nil, nil)

		Expect(tracer.starts).To(BeEmpty())
	})
})

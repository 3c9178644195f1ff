package comm

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ecusim/comm/medium"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/streams"
	"github.com/sarchlab/ecusim/comm/transport"
	"github.com/sarchlab/ecusim/sim"
)

var _ = Describe("Module", func() {
	var (
		ctx        context.Context
		cancel     context.CancelFunc
		mockClock  *clock.Mock
		timeTeller *sim.ClockTimeTeller
		bus        *medium.Bus
		table      *streams.Table
		builder    Builder
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		mockClock = clock.NewMock()
		timeTeller = sim.NewClockTimeTeller(mockClock)
		bus = medium.MakeBuilder().
			WithTimeTeller(timeTeller).
			WithBitRate(0).
			Build("Bus")
		table = streams.NewTable()
		builder = MakeBuilder().
			WithMedium(bus).
			WithStreamTable(table).
			WithTimeTeller(timeTeller).
			WithMaxFrameSize(4)
	})

	AfterEach(func() {
		cancel()
	})

	It("should panic on missing parts", func() {
		Expect(func() { builder.Build("ECU") }).To(Panic())
		Expect(func() {
			MakeBuilder().WithNodeID("A").WithStreamTable(table).Build("ECU")
		}).To(Panic())
		Expect(func() {
			MakeBuilder().WithNodeID("A").WithMedium(bus).Build("ECU")
		}).To(Panic())
	})

	It("should name its layers", func() {
		m := builder.WithNodeID("A").Build("ECU1")

		Expect(m.Name()).To(Equal("ECU1"))
		Expect(m.NodeID()).To(Equal(messaging.NodeID("A")))
		Expect(m.Physical().Name()).To(Equal("ECU1.Physical"))
		Expect(m.Datalink().Name()).To(Equal("ECU1.Datalink"))
		Expect(m.Transport().Name()).To(Equal("ECU1.Transport"))
	})

	It("should send the bytes the message had when it was sent", func() {
		a := builder.WithNodeID("A").Build("ECUA")
		b := builder.WithNodeID("B").Build("ECUB")
		go func() { _ = b.Run(ctx) }()

		a.AddStream(streams.Stream{
			MessageID: 0x05,
			SenderID:  "A",
			Receivers: []messaging.NodeID{"B"},
		})

		buf := []byte("HELLOWORLD")
		Expect(a.Send(ctx, "A", 0x05, messaging.NewMessage(buf))).To(Succeed())
		copy(buf, "XXXXXXXXXX")

		go func() { _ = a.Run(ctx) }()

		received, err := b.Receive(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(string(received.Get())).To(Equal("HELLOWORLD"))
	})

	Context("with two nodes", func() {
		var a, b *Module

		BeforeEach(func() {
			a = builder.WithNodeID("A").Build("ECUA")
			b = builder.WithNodeID("B").Build("ECUB")

			go func() { _ = a.Run(ctx) }()
			go func() { _ = b.Run(ctx) }()
		})

		It("should deliver HELLOWORLD across the bus", func() {
			a.AddStream(streams.Stream{
				MessageID: 0x10,
				SenderID:  "A",
				Receivers: []messaging.NodeID{"B"},
			})

			msg := messaging.NewMessage([]byte("HELLOWORLD"))
			Expect(a.Send(ctx, "A", 0x10, msg)).To(Succeed())

			received, err := b.Receive(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(string(received.Get())).To(Equal("HELLOWORLD"))
			Expect(received.SenderID).To(Equal(messaging.NodeID("A")))
			Expect(received.MessageID).To(Equal(messaging.MessageID(0x10)))
		})

		It("should refuse a sender that is not declared", func() {
			err := a.Send(ctx, "A", 0x10, messaging.NewMessage([]byte("X")))

			Expect(errors.Is(err, transport.ErrNotAdmitted)).To(BeTrue())
		})

		It("should install the acceptance filter when it becomes a receiver", func() {
			Expect(b.Physical().Filter()).To(BeNil())

			a.AddStream(streams.Stream{
				MessageID: 0x20,
				SenderID:  "A",
				Receivers: []messaging.NodeID{"B"},
			})
			a.AddStream(streams.Stream{
				MessageID: 0x10,
				SenderID:  "A",
				Receivers: []messaging.NodeID{"B", "C"},
			})
			a.AddStream(streams.Stream{
				MessageID: 0x30,
				SenderID:  "B",
				Receivers: []messaging.NodeID{"A"},
			})

			Expect(b.Physical().Filter()).To(Equal([]messaging.MessageID{0x10, 0x20}))
			Expect(a.Physical().Filter()).To(Equal([]messaging.MessageID{0x30}))
		})

		It("should not install a filter when filtering is disabled", func() {
			c := builder.WithNodeID("C").WithReceiveFilter(false).Build("C")

			a.AddStream(streams.Stream{
				MessageID: 0x10,
				SenderID:  "A",
				Receivers: []messaging.NodeID{"C"},
			})

			Expect(c.Physical().Filter()).To(BeNil())
		})

		It("should never drop interest in a message id", func() {
			a.AddStream(streams.Stream{
				MessageID: 0x10,
				SenderID:  "A",
				Receivers: []messaging.NodeID{"B"},
			})
			a.AddStream(streams.Stream{
				MessageID: 0x10,
				SenderID:  "A",
				Receivers: []messaging.NodeID{"C"},
			})

			Expect(b.Physical().Filter()).To(Equal([]messaging.MessageID{0x10}))
		})

		It("should not see frames it does not receive", func() {
			a.AddStream(streams.Stream{
				MessageID: 0x10,
				SenderID:  "A",
				Receivers: []messaging.NodeID{"B"},
			})
			a.AddStream(streams.Stream{
				MessageID: 0x20,
				SenderID:  "A",
				Receivers: []messaging.NodeID{"C"},
			})

			Expect(a.Send(ctx, "A", 0x20, messaging.NewMessage([]byte("SECRET")))).
				To(Succeed())
			Expect(a.Send(ctx, "A", 0x10, messaging.NewMessage([]byte("PUBLIC")))).
				To(Succeed())

			received, err := b.Receive(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(string(received.Get())).To(Equal("PUBLIC"))
		})
	})

	It("should seed the filter from streams added before it was built", func() {
		table.AddStream(streams.Stream{
			MessageID: 0x42,
			SenderID:  "A",
			Receivers: []messaging.NodeID{"B"},
		})

		b := builder.WithNodeID("B").Build("ECUB")

		Expect(b.Physical().Filter()).To(Equal([]messaging.MessageID{0x42}))
	})

	Context("when sampling the monitor", func() {
		var m *Module

		BeforeEach(func() {
			m = builder.
				WithNodeID("A").
				WithSendingBufferSize(5).
				Build("ECUA")
		})

		It("should return a snapshot on the first call", func() {
			mockClock.Add(1500 * time.Millisecond)

			samples := m.MonitorSample()

			Expect(samples).To(ConsistOf(
				Sample{
					Kind:   ReceiveBufferOccupancy,
					Value:  0,
					NodeID: "A",
					Time:   1.5,
				},
				Sample{
					Kind:   TransmitBufferCapacity,
					Value:  5,
					NodeID: "A",
					Time:   1.5,
				},
			))
		})

		It("should be read once", func() {
			Expect(m.MonitorSample()).To(HaveLen(2))
			Expect(m.MonitorSample()).To(BeEmpty())
		})

		It("should sample again after buffer activity", func() {
			Expect(m.MonitorSample()).To(HaveLen(2))

			f := messaging.SegmentBuilder{}.
				WithSrc("B").
				WithMessageID(1).
				WithTotalSegments(1).
				Build()
			Expect(m.Datalink().OnReceive(ctx, f)).To(Succeed())

			samples := m.MonitorSample()

			Expect(samples).To(HaveLen(2))
			Expect(samples[0].Kind).To(Equal(ReceiveBufferOccupancy))
			Expect(samples[0].Value).To(Equal(1.0))
			Expect(m.MonitorSample()).To(BeEmpty())
		})
	})

	It("should name its metrics", func() {
		Expect(ReceiveBufferOccupancy.String()).To(Equal("receive_buffer_occupancy"))
		Expect(TransmitBufferCapacity.String()).To(Equal("transmit_buffer_capacity"))
	})
})

package ecu

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ecusim/comm/medium"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/streams"
	"github.com/sarchlab/ecusim/sim"
)

var _ = Describe("ECU", func() {
	var (
		ctx        context.Context
		cancel     context.CancelFunc
		mockClock  *clock.Mock
		timeTeller *sim.ClockTimeTeller
		table      *streams.Table
		sender     *ECU
		receiver   *ECU
		runErrs    chan error
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		mockClock = clock.NewMock()
		timeTeller = sim.NewClockTimeTeller(mockClock)
		table = streams.NewTable()

		bus := medium.MakeBuilder().
			WithTimeTeller(timeTeller).
			WithBitRate(0).
			Build("Bus")

		builder := MakeBuilder().
			WithMedium(bus).
			WithStreamTable(table).
			WithTimeTeller(timeTeller).
			WithMaxFrameSize(4)
		sender = builder.Build("ECU1")
		receiver = builder.Build("ECU2")

		sender.AddStream(streams.Stream{
			MessageID: 0x10,
			SenderID:  "ECU1",
			Receivers: []messaging.NodeID{"ECU2"},
		})

		runErrs = make(chan error, 2)
	})

	AfterEach(func() {
		cancel()
	})

	run := func() {
		for _, e := range []*ECU{sender, receiver} {
			go func(e *ECU) { runErrs <- e.Run(ctx) }(e)
		}
	}

	advance := func(d time.Duration) func() uint64 {
		return func() uint64 {
			mockClock.Add(d)
			return receiver.NumReceived()
		}
	}

	It("should use its name as the node id", func() {
		Expect(sender.NodeID()).To(Equal(messaging.NodeID("ECU1")))
		Expect(sender.Comm().Name()).To(Equal("ECU1.Comm"))
	})

	It("should expose the datalink buffers", func() {
		bufs := sender.Buffers()

		Expect(bufs).To(HaveLen(2))
		Expect(bufs[0].Name()).To(Equal("ECU1.Comm.Datalink.TxBuf"))
		Expect(bufs[1].Name()).To(Equal("ECU1.Comm.Datalink.RxBuf"))
	})

	It("should refuse a sending without an interval", func() {
		Expect(func() { sender.AddSending(0, 0, 0x10, nil, 0) }).To(Panic())
		Expect(func() {
			sender.AddSending(-time.Second, time.Second, 0x10, nil, 0)
		}).To(Panic())
	})

	It("should send periodically up to the message limit", func() {
		var lock sync.Mutex
		var received []*messaging.Message
		receiver.OnMessage(func(msg *messaging.Message) {
			lock.Lock()
			defer lock.Unlock()
			received = append(received, msg)
		})

		sender.AddSending(10*time.Millisecond, 100*time.Millisecond,
			0x10, []byte("HELLOWORLD"), 10)
		sender.SetMaxMessageNumber(3)
		Expect(sender.Sendings()).To(HaveLen(1))

		run()

		Eventually(advance(10 * time.Millisecond)).Should(BeEquivalentTo(3))
		Consistently(advance(100 * time.Millisecond)).Should(BeEquivalentTo(3))

		Expect(sender.NumSent()).To(BeEquivalentTo(3))
		lock.Lock()
		defer lock.Unlock()
		for _, msg := range received {
			Expect(string(msg.Get())).To(Equal("HELLOWORLD"))
			Expect(msg.SenderID).To(Equal(messaging.NodeID("ECU1")))
		}
	})

	It("should wait for the start time", func() {
		sender.AddSending(time.Second, time.Second, 0x10, []byte("LATE"), 4)
		sender.SetMaxMessageNumber(1)

		run()

		Consistently(receiver.NumReceived, 50*time.Millisecond).
			Should(BeEquivalentTo(0))
		Eventually(advance(100 * time.Millisecond)).Should(BeEquivalentTo(1))
		Expect(timeTeller.CurrentTime()).To(BeNumerically(">=", 1.0))
	})

	It("should keep sending after an admission failure", func() {
		sender.AddSending(0, 10*time.Millisecond, 0x99, []byte("NOPE"), 4)
		sender.AddSending(0, 10*time.Millisecond, 0x10, []byte("OK"), 2)
		sender.SetMaxMessageNumber(2)

		run()

		Eventually(advance(10 * time.Millisecond)).Should(BeEquivalentTo(2))
		Expect(sender.NumSent()).To(BeEquivalentTo(2))
	})

	It("should report monitor samples", func() {
		samples := sender.MonitorUpdate()

		Expect(samples).To(HaveLen(2))
		Expect(sender.MonitorUpdate()).To(BeEmpty())
	})

	It("should stop when the context is cancelled", func() {
		run()
		cancel()

		Eventually(runErrs).Should(Receive(MatchError(context.Canceled)))
		Eventually(runErrs).Should(Receive(MatchError(context.Canceled)))
	})
})

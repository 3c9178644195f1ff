package datalink

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ecusim/comm/messaging"
)

func frame(seq int) *messaging.Segment {
	return messaging.SegmentBuilder{}.
		WithSrc("A").
		WithMessageID(1).
		WithPayload([]byte{byte(seq)}).
		WithSeqIndex(seq).
		WithTotalSegments(8).
		Build()
}

var _ = Describe("Datalink Layer", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		mockCtrl *gomock.Controller
		phy      *MockPhysicalLayer
		dl       *Comp
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		mockCtrl = gomock.NewController(GinkgoT())
		phy = NewMockPhysicalLayer(mockCtrl)

		phy.EXPECT().SetUpperLayer(gomock.Any())
		dl = MakeBuilder().
			WithPhysicalLayer(phy).
			WithSendingBufferSize(2).
			WithReceivingBufferSize(3).
			Build("ECU.Datalink")
	})

	AfterEach(func() {
		cancel()
	})

	It("should name its buffers after itself", func() {
		Expect(dl.TransmitBuffer().Name()).To(Equal("ECU.Datalink.TxBuf"))
		Expect(dl.ReceiveBuffer().Name()).To(Equal("ECU.Datalink.RxBuf"))
		Expect(dl.Buffers()).To(HaveLen(2))
	})

	It("should register itself as the upper layer", func() {
		p := NewMockPhysicalLayer(mockCtrl)
		var upper interface{}
		p.EXPECT().SetUpperLayer(gomock.Any()).
			Do(func(r interface{}) { upper = r })

		c := MakeBuilder().WithPhysicalLayer(p).Build("Other")

		Expect(upper).To(BeIdenticalTo(c))
	})

	It("should panic without a physical layer", func() {
		Expect(func() { MakeBuilder().Build("ECU") }).To(Panic())
	})

	It("should report occupancy", func() {
		Expect(dl.OnReceive(ctx, frame(0))).To(Succeed())
		Expect(dl.OnReceive(ctx, frame(1))).To(Succeed())

		rx, tx := dl.Occupancy()

		Expect(rx).To(Equal(2))
		Expect(tx).To(Equal(2))
	})

	It("should hand received frames up in order", func() {
		for i := 0; i < 3; i++ {
			Expect(dl.OnReceive(ctx, frame(i))).To(Succeed())
		}

		for i := 0; i < 3; i++ {
			f, err := dl.Receive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.(*messaging.Segment).SeqIndex).To(Equal(i))
		}
	})

	It("should block the physical layer while the receive buffer is full", func() {
		for i := 0; i < 3; i++ {
			Expect(dl.OnReceive(ctx, frame(i))).To(Succeed())
		}

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			Expect(dl.OnReceive(ctx, frame(3))).To(Succeed())
			close(done)
		}()

		Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())

		_, err := dl.Receive(ctx)
		Expect(err).NotTo(HaveOccurred())
		Eventually(done).Should(BeClosed())
	})

	It("should send queued frames in order", func() {
		sent := make(chan int, 4)
		phy.EXPECT().Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f messaging.Frame) error {
				sent <- f.(*messaging.Segment).SeqIndex
				return nil
			}).Times(4)

		go func() { _ = dl.Run(ctx) }()

		for i := 0; i < 4; i++ {
			Expect(dl.Transmit(ctx, frame(i))).To(Succeed())
		}

		for i := 0; i < 4; i++ {
			Eventually(sent).Should(Receive(Equal(i)))
		}
	})

	It("should block transmit while the transmit buffer is full", func() {
		Expect(dl.Transmit(ctx, frame(0))).To(Succeed())
		Expect(dl.Transmit(ctx, frame(1))).To(Succeed())

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			Expect(dl.Transmit(ctx, frame(2))).To(Succeed())
			close(done)
		}()

		Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())

		sent := make(chan struct{}, 3)
		phy.EXPECT().Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, messaging.Frame) error {
				sent <- struct{}{}
				return nil
			}).Times(3)
		go func() { _ = dl.Run(ctx) }()

		Eventually(done).Should(BeClosed())
		Eventually(sent).Should(HaveLen(3))
	})

	It("should stop when the physical layer fails", func() {
		sendErr := errors.New("frame too large")
		phy.EXPECT().Send(gomock.Any(), gomock.Any()).Return(sendErr)

		Expect(dl.Transmit(ctx, frame(0))).To(Succeed())

		Expect(dl.Run(ctx)).To(MatchError(sendErr))
	})

	It("should stop when the context is cancelled", func() {
		cancel()

		Expect(dl.Run(ctx)).To(MatchError(context.Canceled))
	})
})

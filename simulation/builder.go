package simulation

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/rs/xid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/medium"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/streams"
	"github.com/sarchlab/ecusim/config"
	"github.com/sarchlab/ecusim/datarecording"
	"github.com/sarchlab/ecusim/ecu"
	"github.com/sarchlab/ecusim/monitoring"
	"github.com/sarchlab/ecusim/sim"
	"github.com/sarchlab/ecusim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	network      *config.Network
	clock        clock.Clock
	logger       *zap.Logger
	dataRecorder datarecording.DataRecorder
	monitorOn    bool
	monitorPort  int
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithNetwork sets the network to simulate. The network must have been
// validated.
func (b Builder) WithNetwork(n *config.Network) Builder {
	b.network = n
	return b
}

// WithClock sets the clock that drives the simulated time.
func (b Builder) WithClock(c clock.Clock) Builder {
	b.clock = c
	return b
}

// WithLogger sets the logger of the simulation and all the ECUs.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// WithDataRecorder sets the recorder, replacing the one described by the
// network.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.dataRecorder = r
	return b
}

// WithMonitor turns on the monitoring server, regardless of the network.
func (b Builder) WithMonitor(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

func (b Builder) networkMustBeGiven() {
	if b.network == nil {
		panic("network is not given")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.networkMustBeGiven()

	if b.clock == nil {
		b.clock = clock.New()
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	n := b.network
	if n.Simulation.ParallelIDs {
		sim.UseParallelIDGenerator()
	}

	s := &Simulation{
		id:             xid.New().String(),
		clock:          b.clock,
		timeTeller:     sim.NewClockTimeTeller(b.clock),
		logger:         b.logger,
		duration:       n.Simulation.Duration.Duration,
		sampleInterval: n.Simulation.SampleInterval.Duration,
		table:          streams.NewTable(),
		ecuIndex:       make(map[string]*ecu.ECU),
	}

	s.bus = medium.MakeBuilder().
		WithTimeTeller(s.timeTeller).
		WithBitRate(sim.Freq(n.Bus.BitRateOrDefault()) * sim.Hz).
		WithFrameOverheadBits(n.Bus.FrameOverheadBits).
		WithLogger(b.logger).
		Build(n.Bus.Name)

	for _, c := range n.ECUs {
		s.addECU(b.buildECU(s, c, n.Bus.MaxFrameSize))
	}

	if b.logger.Core().Enabled(zap.DebugLevel) {
		logHook := sim.NewLogHook(b.logger, s.timeTeller)
		for _, e := range s.ecus {
			for _, buf := range e.Buffers() {
				buf.AcceptHook(logHook)
			}
		}
	}

	for _, st := range n.Streams {
		s.table.AddStream(streamFromConfig(st))
	}

	s.traffic = tracing.NewTrafficTracer(s.timeTeller, nil)
	s.collectTrace(s.traffic)

	if err := b.buildRecorder(s); err != nil {
		return nil, err
	}

	if b.monitorOn || n.Monitor.Enabled {
		if err := b.startMonitor(s); err != nil {
			return nil, multierr.Append(err, s.Terminate())
		}
	}

	return s, nil
}

func (b Builder) buildECU(
	s *Simulation,
	c config.ECU,
	maxFrameSize int,
) *ecu.ECU {
	e := ecu.MakeBuilder().
		WithMedium(s.bus).
		WithStreamTable(s.table).
		WithTimeTeller(s.timeTeller).
		WithMaxFrameSize(maxFrameSize).
		WithSendingBufferSize(c.SendingBufferSize).
		WithReceivingBufferSize(c.ReceivingBufferSize).
		WithReassemblyTimeout(c.ReassemblyTimeoutOrDefault()).
		WithReceiveFilter(c.ReceiveFilterOrDefault()).
		WithLogger(b.logger).
		Build(c.Name)

	e.SetMaxMessageNumber(c.MaxMessages)

	for _, sending := range c.Sendings {
		e.AddSending(
			sending.Start.Duration,
			sending.Interval.Duration,
			messaging.MessageID(sending.MessageID),
			[]byte(sending.Data),
			sending.DataLen,
		)
	}

	return e
}

func streamFromConfig(c config.Stream) streams.Stream {
	receivers := make([]messaging.NodeID, len(c.Receivers))
	for i, r := range c.Receivers {
		receivers[i] = messaging.NodeID(r)
	}

	return streams.Stream{
		MessageID: messaging.MessageID(c.MessageID),
		SenderID:  messaging.NodeID(c.Sender),
		Receivers: receivers,
	}
}

func (b Builder) buildRecorder(s *Simulation) error {
	c := b.network.Simulation

	s.dataRecorder = b.dataRecorder
	if s.dataRecorder == nil && c.Recorder != "none" {
		path := strings.TrimSuffix(c.Output, ".sqlite3")
		if path == "" {
			path = "ecusim_" + s.id
		}

		r, err := datarecording.NewWithConfig(datarecording.RecorderConfig{
			Type:    c.Recorder,
			Path:    path,
			ConnStr: c.ClickHouseDSN,
		})
		if err != nil {
			return fmt.Errorf("create recorder: %w", err)
		}

		s.dataRecorder = r
	}

	if s.dataRecorder == nil {
		return nil
	}

	s.dataRecorder.CreateTable(SampleTable, SampleEntry{})

	if c.TraceFrames {
		s.dbTracer = tracing.NewDBTracer(s.timeTeller, s.dataRecorder)
		s.collectTrace(s.dbTracer)
	}

	return nil
}

func (b Builder) startMonitor(s *Simulation) error {
	port := b.monitorPort
	if !b.monitorOn {
		port = b.network.Monitor.Port
	}

	s.monitor = monitoring.NewMonitor()
	if port > 0 {
		s.monitor.WithPortNumber(port)
	}

	s.monitor.RegisterTimeTeller(s.timeTeller)
	s.monitor.RegisterStreamTable(s.table)
	s.monitor.RegisterTrafficTracer(s.traffic)
	s.monitor.RegisterNode(s.bus)

	for _, e := range s.ecus {
		s.monitor.RegisterNode(e)
	}

	url, err := s.monitor.StartServer()
	if err != nil {
		return err
	}

	s.monitorURL = url

	return nil
}

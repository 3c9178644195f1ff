// Package simulation assembles a network of ECUs on a bus from a network
// description and runs it for a span of simulated time.
package simulation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/ecusim/comm/medium"
	"github.com/sarchlab/ecusim/comm/streams"
	"github.com/sarchlab/ecusim/datarecording"
	"github.com/sarchlab/ecusim/ecu"
	"github.com/sarchlab/ecusim/monitoring"
	"github.com/sarchlab/ecusim/sim"
	"github.com/sarchlab/ecusim/tracing"
)

// SampleTable is the table that monitor samples are recorded into.
const SampleTable = "monitor_samples"

// SampleEntry is a row of the sample table.
type SampleEntry struct {
	Time   float64
	Node   string
	Metric string
	Value  float64
}

// A Simulation is a bus, the ECUs attached to it, and the services that
// observe them.
type Simulation struct {
	id             string
	clock          clock.Clock
	timeTeller     *sim.ClockTimeTeller
	logger         *zap.Logger
	duration       time.Duration
	sampleInterval time.Duration

	bus      *medium.Bus
	table    *streams.Table
	ecus     []*ecu.ECU
	ecuIndex map[string]*ecu.ECU

	dataRecorder datarecording.DataRecorder
	dbTracer     *tracing.DBTracer
	traffic      *tracing.TrafficTracer
	monitor      *monitoring.Monitor
	monitorURL   string

	terminateOnce sync.Once
	terminateErr  error
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// TimeTeller returns the time teller of the simulation.
func (s *Simulation) TimeTeller() sim.TimeTeller {
	return s.timeTeller
}

// Bus returns the medium that all the ECUs are attached to.
func (s *Simulation) Bus() *medium.Bus {
	return s.bus
}

// StreamTable returns the admission table of the network.
func (s *Simulation) StreamTable() *streams.Table {
	return s.table
}

// ECUs returns the ECUs in declaration order.
func (s *Simulation) ECUs() []*ecu.ECU {
	return append([]*ecu.ECU(nil), s.ecus...)
}

// ECUByName returns the ECU with the given name, or nil.
func (s *Simulation) ECUByName(name string) *ecu.ECU {
	return s.ecuIndex[name]
}

// DataRecorder returns the recorder of the simulation. It is nil if
// recording is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Traffic returns the tracer that counts the traffic on the bus.
func (s *Simulation) Traffic() *tracing.TrafficTracer {
	return s.traffic
}

// Monitor returns the monitor of the simulation. It is nil if monitoring is
// off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring server.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

func (s *Simulation) addECU(e *ecu.ECU) {
	if _, found := s.ecuIndex[e.Name()]; found {
		panic("ECU " + e.Name() + " already registered")
	}

	s.ecus = append(s.ecus, e)
	s.ecuIndex[e.Name()] = e
}

func (s *Simulation) collectTrace(t tracing.Tracer) {
	tracing.CollectTrace(s.bus, t)

	for _, e := range s.ecus {
		tracing.CollectTrace(e.Comm().Physical(), t)
		tracing.CollectTrace(e.Comm().Transport(), t)
	}
}

// Run runs every ECU until the simulated duration has passed or the context
// is cancelled. Both are normal ends of a run.
func (s *Simulation) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar("Simulation",
			uint64(s.duration.Milliseconds()))
		defer s.monitor.CompleteProgressBar(bar)
	}

	s.logger.Info("simulation started",
		zap.String("id", s.id),
		zap.Int("ecus", len(s.ecus)),
		zap.Duration("duration", s.duration))

	g, ctx := errgroup.WithContext(ctx)

	for _, e := range s.ecus {
		g.Go(func() error { return e.Run(ctx) })
	}

	g.Go(func() error { return s.sampleLoop(ctx, bar) })
	g.Go(func() error { return s.stopAfterDuration(ctx, cancel) })

	err := g.Wait()
	s.sample()

	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	s.logger.Info("simulation ended",
		zap.String("id", s.id),
		zap.Float64("time", float64(s.timeTeller.CurrentTime())),
		zap.Float64("bus_load", s.traffic.BusLoad()),
		zap.Error(err))

	return err
}

func (s *Simulation) stopAfterDuration(
	ctx context.Context,
	cancel context.CancelFunc,
) error {
	timer := s.clock.Timer(s.duration - s.timeTeller.CurrentTime().Duration())
	defer timer.Stop()

	select {
	case <-timer.C:
		cancel()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulation) sampleLoop(
	ctx context.Context,
	bar *monitoring.ProgressBar,
) error {
	ticker := s.clock.Ticker(s.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sample()

			if bar != nil {
				bar.SetFinished(
					uint64(s.timeTeller.CurrentTime().Duration().Milliseconds()))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sample records the monitor samples of every ECU.
func (s *Simulation) sample() {
	if s.dataRecorder == nil {
		return
	}

	for _, e := range s.ecus {
		for _, smp := range e.MonitorUpdate() {
			s.dataRecorder.InsertData(SampleTable, SampleEntry{
				Time:   float64(smp.Time),
				Node:   string(smp.NodeID),
				Metric: smp.Kind.String(),
				Value:  smp.Value,
			})
		}
	}
}

// Terminate flushes the traces, closes the recorder and stops the monitor.
// Calling it more than once returns the first result.
func (s *Simulation) Terminate() error {
	s.terminateOnce.Do(func() {
		var err error

		if s.dbTracer != nil {
			s.dbTracer.Terminate()
		}

		if s.dataRecorder != nil {
			err = multierr.Append(err, s.dataRecorder.Close())
		}

		if s.monitor != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			err = multierr.Append(err, s.monitor.Stop(ctx))
		}

		s.terminateErr = err
	})

	return s.terminateErr
}

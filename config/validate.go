package config

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/sarchlab/ecusim/sim"
)

// Validate checks the network description and reports every problem found.
func (n *Network) Validate() error {
	var err error

	if e := sim.ValidateName(n.Bus.Name); e != nil {
		err = multierr.Append(err, fmt.Errorf("bus: %w", e))
	}

	if n.Bus.BitRateOrDefault() < 0 {
		err = multierr.Append(err, fmt.Errorf("bus: bit rate must not be negative"))
	}

	if n.Bus.MaxFrameSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("bus: max frame size must be positive"))
	}

	ecus := make(map[string]bool, len(n.ECUs))
	for i, e := range n.ECUs {
		err = multierr.Append(err, e.validate(i))

		if ecus[e.Name] {
			err = multierr.Append(err, fmt.Errorf("ecu %s is declared twice", e.Name))
		}
		ecus[e.Name] = true
	}

	for i, s := range n.Streams {
		err = multierr.Append(err, s.validate(i, ecus))
	}

	if n.Simulation.Duration.Duration <= 0 {
		err = multierr.Append(err, fmt.Errorf("simulation: duration must be positive"))
	}

	if n.Simulation.SampleInterval.Duration <= 0 {
		err = multierr.Append(err,
			fmt.Errorf("simulation: sample interval must be positive"))
	}

	switch n.Simulation.Recorder {
	case "", "sqlite", "none":
	case "clickhouse":
		if n.Simulation.ClickHouseDSN == "" {
			err = multierr.Append(err,
				fmt.Errorf("simulation: clickhouse recorder needs a dsn"))
		}
	default:
		err = multierr.Append(err,
			fmt.Errorf("simulation: unknown recorder %q", n.Simulation.Recorder))
	}

	if n.Monitor.Port < 0 || n.Monitor.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("monitor: invalid port %d", n.Monitor.Port))
	}

	return err
}

func (e ECU) validate(index int) error {
	var err error

	if nameErr := sim.ValidateName(e.Name); nameErr != nil {
		err = multierr.Append(err, fmt.Errorf("ecus[%d]: %w", index, nameErr))
	}

	if e.SendingBufferSize <= 0 {
		err = multierr.Append(err,
			fmt.Errorf("ecu %s: sending buffer size must be positive", e.Name))
	}

	if e.ReceivingBufferSize <= 0 {
		err = multierr.Append(err,
			fmt.Errorf("ecu %s: receiving buffer size must be positive", e.Name))
	}

	if e.ReassemblyTimeout != nil && e.ReassemblyTimeout.Duration < 0 {
		err = multierr.Append(err,
			fmt.Errorf("ecu %s: reassembly timeout must not be negative", e.Name))
	}

	if e.MaxMessages < 0 {
		err = multierr.Append(err,
			fmt.Errorf("ecu %s: max messages must not be negative", e.Name))
	}

	for i, s := range e.Sendings {
		if s.Interval.Duration <= 0 {
			err = multierr.Append(err,
				fmt.Errorf("ecu %s: sendings[%d]: interval must be positive", e.Name, i))
		}

		if s.Start.Duration < 0 {
			err = multierr.Append(err,
				fmt.Errorf("ecu %s: sendings[%d]: start must not be negative", e.Name, i))
		}
	}

	return err
}

func (s Stream) validate(index int, ecus map[string]bool) error {
	var err error

	if !ecus[s.Sender] {
		err = multierr.Append(err,
			fmt.Errorf("streams[%d]: unknown sender %q", index, s.Sender))
	}

	for _, r := range s.Receivers {
		if !ecus[r] {
			err = multierr.Append(err,
				fmt.Errorf("streams[%d]: unknown receiver %q", index, r))
		}
	}

	return err
}

// Package config describes a simulated network in YAML: the bus, the ECUs and
// their sendings, the streams, and how long the simulation runs.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Network is the root of a network description.
type Network struct {
	Bus        Bus        `yaml:"bus"`
	ECUs       []ECU      `yaml:"ecus"`
	Streams    []Stream   `yaml:"streams"`
	Simulation Simulation `yaml:"simulation"`
	Monitor    Monitor    `yaml:"monitor"`
}

// Bus describes the shared medium.
type Bus struct {
	Name              string `yaml:"name"`
	BitRate           *int   `yaml:"bit_rate,omitempty"`
	FrameOverheadBits int    `yaml:"frame_overhead_bits"`
	MaxFrameSize      int    `yaml:"max_frame_size"`
}

// ECU describes one node.
type ECU struct {
	Name                string    `yaml:"name"`
	SendingBufferSize   int       `yaml:"sending_buffer_size"`
	ReceivingBufferSize int       `yaml:"receiving_buffer_size"`
	ReassemblyTimeout   *Duration `yaml:"reassembly_timeout,omitempty"`
	ReceiveFilter       *bool     `yaml:"receive_filter,omitempty"`
	MaxMessages         int       `yaml:"max_messages"`
	Sendings            []Sending `yaml:"sendings"`
}

// Sending describes a message that an ECU sends periodically.
type Sending struct {
	MessageID uint32   `yaml:"message_id"`
	Start     Duration `yaml:"start"`
	Interval  Duration `yaml:"interval"`
	Data      string   `yaml:"data"`
	DataLen   int      `yaml:"data_len"`
}

// Stream declares the sender and receivers of a message id.
type Stream struct {
	MessageID uint32   `yaml:"message_id"`
	Sender    string   `yaml:"sender"`
	Receivers []string `yaml:"receivers"`
}

// Simulation controls a run.
type Simulation struct {
	Duration       Duration `yaml:"duration"`
	SampleInterval Duration `yaml:"sample_interval"`
	ParallelIDs    bool     `yaml:"parallel_ids"`
	Output         string   `yaml:"output"`
	TraceFrames    bool     `yaml:"trace_frames"`

	// Recorder is "sqlite" (default), "clickhouse" or "none".
	Recorder      string `yaml:"recorder"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// Monitor controls the monitoring server.
type Monitor struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Duration wraps time.Duration for YAML strings such as "10ms" or "1s".
type Duration struct {
	time.Duration
}

// D creates a Duration.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	d.Duration = parsed

	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// BitRateOrDefault returns the bit rate of the bus. A bit rate of 0 makes
// transmissions instantaneous.
func (b Bus) BitRateOrDefault() int {
	if b.BitRate == nil {
		return DefaultBitRate
	}

	return *b.BitRate
}

// ReassemblyTimeoutOrDefault returns the reassembly timeout of the ECU.
func (e ECU) ReassemblyTimeoutOrDefault() time.Duration {
	if e.ReassemblyTimeout == nil {
		return DefaultReassemblyTimeout
	}

	return e.ReassemblyTimeout.Duration
}

// ReceiveFilterOrDefault tells if the ECU drops segments it does not receive.
func (e ECU) ReceiveFilterOrDefault() bool {
	if e.ReceiveFilter == nil {
		return true
	}

	return *e.ReceiveFilter
}

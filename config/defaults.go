package config

import "time"

// The values used for fields that a network description leaves out.
const (
	DefaultBusName             = "Bus"
	DefaultBitRate             = 500_000
	DefaultFrameOverheadBits   = 47
	DefaultMaxFrameSize        = 8
	DefaultSendingBufferSize   = 16
	DefaultReceivingBufferSize = 16
	DefaultReassemblyTimeout   = time.Second
	DefaultDuration            = time.Second
	DefaultSampleInterval      = 100 * time.Millisecond
)

// ApplyDefaults fills the fields that are left out.
func (n *Network) ApplyDefaults() {
	if n.Bus.Name == "" {
		n.Bus.Name = DefaultBusName
	}

	if n.Bus.FrameOverheadBits == 0 {
		n.Bus.FrameOverheadBits = DefaultFrameOverheadBits
	}

	if n.Bus.MaxFrameSize == 0 {
		n.Bus.MaxFrameSize = DefaultMaxFrameSize
	}

	for i := range n.ECUs {
		e := &n.ECUs[i]

		if e.SendingBufferSize == 0 {
			e.SendingBufferSize = DefaultSendingBufferSize
		}

		if e.ReceivingBufferSize == 0 {
			e.ReceivingBufferSize = DefaultReceivingBufferSize
		}
	}

	if n.Simulation.Duration.Duration == 0 {
		n.Simulation.Duration = D(DefaultDuration)
	}

	if n.Simulation.SampleInterval.Duration == 0 {
		n.Simulation.SampleInterval = D(DefaultSampleInterval)
	}
}

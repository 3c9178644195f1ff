package physical

import (
	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/sim"
)

// Builder can build physical layers.
type Builder struct {
	nodeID       messaging.NodeID
	medium       Medium
	maxFrameSize int
	logger       *zap.Logger
}

// MakeBuilder creates a builder for classic CAN frames of 8 bytes.
func MakeBuilder() Builder {
	return Builder{
		maxFrameSize: 8,
	}
}

// WithNodeID sets the node the layer belongs to.
func (b Builder) WithNodeID(id messaging.NodeID) Builder {
	b.nodeID = id
	return b
}

// WithMedium sets the medium the layer is plugged into.
func (b Builder) WithMedium(m Medium) Builder {
	b.medium = m
	return b
}

// WithMaxFrameSize sets the largest payload a frame may carry.
func (b Builder) WithMaxFrameSize(n int) Builder {
	b.maxFrameSize = n
	return b
}

// WithLogger sets the logger of the layer.
func (b Builder) WithLogger(l *zap.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a new physical layer and plugs it into the medium.
func (b Builder) Build(name string) *Comp {
	sim.NameMustBeValid(name)
	b.nodeIDMustBeGiven()
	b.mediumMustBeGiven()
	b.maxFrameSizeMustBeValid()

	c := &Comp{
		name:         name,
		nodeID:       b.nodeID,
		medium:       b.medium,
		maxFrameSize: b.maxFrameSize,
		logger:       b.logger,
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	b.medium.Plug(c)

	return c
}

func (b Builder) nodeIDMustBeGiven() {
	if b.nodeID == "" {
		panic("node id is not given")
	}
}

func (b Builder) mediumMustBeGiven() {
	if b.medium == nil {
		panic("medium is not given")
	}
}

func (b Builder) maxFrameSizeMustBeValid() {
	if b.maxFrameSize <= 0 {
		panic("max frame size must be positive")
	}
}

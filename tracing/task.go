// Package tracing turns the hooks of the communication stack into tasks that
// can be counted or stored.
package tracing

import "github.com/sarchlab/ecusim/sim"

// Task kinds.
const (
	KindFrame             = "frame"
	KindFrameFiltered     = "frame_filtered"
	KindSegmentFiltered   = "segment_filtered"
	KindReassemblyTimeout = "reassembly_timeout"
	KindMessage           = "message"
)

// A Task is something that happens on the bus or in a node over a span of
// simulated time. Events without a duration start and end at the same time.
type Task struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	What      string         `json:"what"`
	Location  string         `json:"location"`
	StartTime sim.VTimeInSec `json:"start_time"`
	EndTime   sim.VTimeInSec `json:"end_time"`
	Bytes     int            `json:"bytes"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// A Tracer can collect task traces
type Tracer interface {
	StartTask(task Task)
	EndTask(task Task)
}

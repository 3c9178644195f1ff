package tracing

import (
	"maps"
	"slices"
	"sync"

	"github.com/sarchlab/ecusim/sim"
)

// TrafficStats summarizes the tasks of one kind.
type TrafficStats struct {
	Count    int            `json:"count"`
	Bytes    int            `json:"bytes"`
	BusyTime sim.VTimeInSec `json:"busy_time"`
}

// TrafficTracer counts tasks by kind and by location. Since the bus carries
// one frame at a time, the busy time of frame tasks is the time the bus is
// occupied.
type TrafficTracer struct {
	lock       sync.Mutex
	timeTeller sim.TimeTeller
	filter     TaskFilter
	inflight   map[string]Task
	byKind     map[string]*TrafficStats
	byLocation map[string]*TrafficStats
}

// NewTrafficTracer creates a TrafficTracer. A nil filter keeps every task.
func NewTrafficTracer(timeTeller sim.TimeTeller, filter TaskFilter) *TrafficTracer {
	return &TrafficTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]Task),
		byKind:     make(map[string]*TrafficStats),
		byLocation: make(map[string]*TrafficStats),
	}
}

// StartTask records the task start time.
func (t *TrafficTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	task.StartTime = t.timeTeller.CurrentTime()
	t.inflight[task.ID] = task
}

// EndTask adds the task to the statistics.
func (t *TrafficTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	original, ok := t.inflight[task.ID]
	if !ok {
		return
	}

	delete(t.inflight, task.ID)

	duration := t.timeTeller.CurrentTime() - original.StartTime
	for _, stats := range []*TrafficStats{
		t.stats(t.byKind, original.Kind),
		t.stats(t.byLocation, original.Location),
	} {
		stats.Count++
		stats.Bytes += original.Bytes
		stats.BusyTime += duration
	}
}

func (t *TrafficTracer) stats(
	m map[string]*TrafficStats,
	key string,
) *TrafficStats {
	s, ok := m[key]
	if !ok {
		s = &TrafficStats{}
		m[key] = s
	}

	return s
}

// ByKind returns the statistics of a kind of task.
func (t *TrafficTracer) ByKind(kind string) TrafficStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	if s, ok := t.byKind[kind]; ok {
		return *s
	}

	return TrafficStats{}
}

// ByLocation returns the statistics of the tasks at a location.
func (t *TrafficTracer) ByLocation(location string) TrafficStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	if s, ok := t.byLocation[location]; ok {
		return *s
	}

	return TrafficStats{}
}

// Kinds returns the kinds of tasks seen so far, in order.
func (t *TrafficTracer) Kinds() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return slices.Sorted(maps.Keys(t.byKind))
}

// BusLoad returns the share of the elapsed simulated time that the bus spent
// carrying frames.
func (t *TrafficTracer) BusLoad() float64 {
	now := t.timeTeller.CurrentTime()
	if now <= 0 {
		return 0
	}

	return float64(t.ByKind(KindFrame).BusyTime / now)
}

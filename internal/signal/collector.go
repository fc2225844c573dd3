package signal

import "time"

// Buffer capacities for the rolling windows.
const (
	ClickCapacity    = 10
	PositionCapacity = 20
)

// Collector holds bounded raw-event history. It is not safe for concurrent
// use; the stress engine serializes access.
type Collector struct {
	clicks       *ring[time.Time]
	positions    *ring[Point]
	lastActivity time.Time
	hidden       bool
}

// NewCollector returns an empty collector whose inactivity clock starts at now.
func NewCollector(now time.Time) *Collector {
	return &Collector{
		clicks:       newRing[time.Time](ClickCapacity),
		positions:    newRing[Point](PositionCapacity),
		lastActivity: now,
	}
}

// RecordClick appends a click timestamp, dropping the oldest beyond capacity.
func (c *Collector) RecordClick(at time.Time) {
	c.clicks.push(at)
}

// RecordMove appends a pointer position, dropping the oldest beyond capacity.
func (c *Collector) RecordMove(x, y float64, at time.Time) {
	c.positions.push(Point{X: x, Y: y, At: at})
}

// RecordActivity marks the learner as active at the given time.
func (c *Collector) RecordActivity(at time.Time) {
	if at.After(c.lastActivity) {
		c.lastActivity = at
	}
}

// RecordVisibility sets whether the tab is hidden.
func (c *Collector) RecordVisibility(hidden bool) {
	c.hidden = hidden
}

// Record routes a host sample to the matching buffer. Clicks, moves and key
// presses all count as activity; visibility changes do not.
// It reports whether the sample was activity.
func (c *Collector) Record(s Sample) bool {
	switch s.Kind {
	case KindClick:
		c.RecordClick(s.At)
	case KindMove:
		c.RecordMove(s.X, s.Y, s.At)
	case KindKey:
	case KindVisibility:
		c.RecordVisibility(s.Hidden)
		return false
	default:
		return false
	}
	c.RecordActivity(s.At)
	return true
}

// Snapshot copies the current buffers into a Window.
func (c *Collector) Snapshot() Window {
	return Window{
		Clicks:       c.clicks.items(),
		Positions:    c.positions.items(),
		LastActivity: c.lastActivity,
		Hidden:       c.hidden,
	}
}

// ring is a fixed-capacity FIFO that overwrites its oldest element.
type ring[T any] struct {
	buf   []T
	start int
	n     int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring[T]) items() []T {
	out := make([]T, r.n)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

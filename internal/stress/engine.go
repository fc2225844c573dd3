package stress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/suykerbuyk/verve/internal/notify"
	"github.com/suykerbuyk/verve/internal/signal"
)

// watchdogSlack pushes the stall watchdog just past the threshold so the
// reading it triggers is strictly over it.
const watchdogSlack = time.Millisecond

// Engine owns the signal collector and recomputes a Reading on every
// qualifying sample and when the stall watchdog fires.
//
// Readings are numbered as they are computed. Subscribers only ever see
// readings in increasing Seq order; a reading that loses a race with a newer
// one is dropped on delivery.
type Engine struct {
	mu        sync.Mutex
	collector *signal.Collector
	th        Thresholds
	now       func() time.Time
	log       *zap.Logger

	useWatchdog bool
	watchdog    *time.Timer
	closed      bool

	seq    uint64
	latest Reading

	hub       notify.Hub[Reading]
	delivered uint64 // guarded by hub's delivery filter
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithoutWatchdog disables the real-time stall timer. Replay and tests that
// drive time themselves use TickAt instead.
func WithoutWatchdog() Option {
	return func(e *Engine) { e.useWatchdog = false }
}

// NewEngine creates an engine with the given thresholds. Zero-valued
// threshold fields fall back to defaults.
func NewEngine(th Thresholds, opts ...Option) *Engine {
	e := &Engine{
		th:          withDefaults(th),
		now:         time.Now,
		log:         zap.NewNop(),
		useWatchdog: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.collector = signal.NewCollector(e.now())
	e.hub.Accept = func(r Reading) bool {
		if r.Seq <= e.delivered {
			return false
		}
		e.delivered = r.Seq
		return true
	}

	e.mu.Lock()
	e.armWatchdogLocked()
	e.mu.Unlock()
	return e
}

func withDefaults(th Thresholds) Thresholds {
	d := DefaultThresholds()
	if th.Rage <= 0 {
		th.Rage = d.Rage
	}
	if th.Stall <= 0 {
		th.Stall = d.Stall
	}
	if th.Jitter <= 0 {
		th.Jitter = d.Jitter
	}
	if th.ReversalRatio <= 0 {
		th.ReversalRatio = d.ReversalRatio
	}
	if th.ClickSpan <= 0 {
		th.ClickSpan = d.ClickSpan
	}
	return th
}

// Thresholds returns the effective thresholds.
func (e *Engine) Thresholds() Thresholds {
	return e.th
}

// Subscribe registers fn to receive every delivered reading.
func (e *Engine) Subscribe(fn func(Reading)) (cancel func()) {
	return e.hub.Subscribe(fn)
}

// Latest returns the most recently computed reading.
func (e *Engine) Latest() Reading {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Window returns a snapshot of the collector.
func (e *Engine) Window() signal.Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collector.Snapshot()
}

// Ingest records a host sample and recomputes. A zero sample time is
// stamped with the engine clock.
func (e *Engine) Ingest(s signal.Sample) Reading {
	if s.At.IsZero() {
		s.At = e.now()
	}

	e.mu.Lock()
	active := e.collector.Record(s)
	r := e.computeLocked(s.At)
	if active {
		e.armWatchdogLocked()
	}
	e.mu.Unlock()

	e.hub.Publish(r)
	return r
}

// Tick recomputes at the engine clock's current time.
func (e *Engine) Tick() Reading {
	return e.TickAt(e.now())
}

// TickAt recomputes as of now without recording a sample.
func (e *Engine) TickAt(now time.Time) Reading {
	e.mu.Lock()
	r := e.computeLocked(now)
	e.mu.Unlock()

	e.hub.Publish(r)
	return r
}

func (e *Engine) computeLocked(now time.Time) Reading {
	e.seq++
	r := Classify(e.collector.Snapshot(), now, e.th)
	r.Seq = e.seq
	e.latest = r
	return r
}

// armWatchdogLocked (re)starts the stall timer so exactly one is pending.
func (e *Engine) armWatchdogLocked() {
	if !e.useWatchdog || e.closed {
		return
	}
	d := e.th.Stall + watchdogSlack
	if e.watchdog == nil {
		e.watchdog = time.AfterFunc(d, e.fireWatchdog)
		return
	}
	e.watchdog.Reset(d)
}

func (e *Engine) fireWatchdog() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	r := e.Tick()
	if r.Stalled {
		e.log.Debug("stall watchdog fired",
			zap.Duration("inactive", r.Inactive),
			zap.Int("level", r.Level))
	}
}

// Run ingests samples from src until it ends or ctx is done. Reaching the
// end of the source is not an error.
func (e *Engine) Run(ctx context.Context, src signal.Source) error {
	for {
		s, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read sample: %w", err)
		}
		e.Ingest(s)
	}
}

// Replay ingests a recorded trace in virtual time. Wherever the trace goes
// quiet for longer than the stall threshold, a tick is inserted at the moment
// the watchdog would have fired live. A quiet stretch at the end of the trace
// is only seen when src implements signal.Bounded and reports an end time.
func (e *Engine) Replay(ctx context.Context, src signal.Source) error {
	for {
		s, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			if b, ok := src.(signal.Bounded); ok {
				if end, ok := b.End(); ok {
					e.catchUp(end)
				}
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read sample: %w", err)
		}
		e.catchUp(s.At)
		e.Ingest(s)
	}
}

// catchUp ticks at the moment the watchdog would have fired if the trace
// stays quiet until at.
func (e *Engine) catchUp(at time.Time) {
	last := e.Window().LastActivity
	if fireAt := last.Add(e.th.Stall + watchdogSlack); at.After(fireAt) {
		e.TickAt(fireAt)
	}
}

// Close stops the watchdog. The engine still classifies on Ingest and Tick.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.watchdog != nil {
		e.watchdog.Stop()
	}
}

package stress

import (
	"time"

	"github.com/suykerbuyk/verve/internal/signal"
)

// Signal weights. They sum past 100 on purpose: concurrent distress signals
// saturate the score instead of averaging out.
const (
	weightRaging  = 40
	weightJittery = 30
	weightStalled = 20
	weightHidden  = 25
)

// Score combines flags into the composite level, clamped to [0, 100].
func Score(raging, jittery, stalled, hidden bool) int {
	raw := 0
	if raging {
		raw += weightRaging
	}
	if jittery {
		raw += weightJittery
	}
	if stalled {
		raw += weightStalled
	}
	if hidden {
		raw += weightHidden
	}
	return clamp(raw)
}

// Classify derives a reading from a window snapshot. It is a pure function
// of its arguments; Seq is left for the engine to assign.
func Classify(w signal.Window, now time.Time, th Thresholds) Reading {
	velocity := signal.ClickVelocity(w, now, th.ClickSpan)
	motion := signal.Jitter(w, th.Jitter, th.ReversalRatio)
	inactive := signal.Inactivity(w, now)

	r := Reading{
		Raging:     velocity > th.Rage,
		Jittery:    motion.Jittery,
		Stalled:    inactive > th.Stall,
		Hidden:     w.Hidden,
		ComputedAt: now,
		Velocity:   velocity,
		Motion:     motion,
		Inactive:   inactive,
	}
	r.Level = Score(r.Raging, r.Jittery, r.Stalled, r.Hidden)
	return r
}

// clamp limits a score to [0, 100].
func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

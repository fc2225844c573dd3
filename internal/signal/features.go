package signal

import (
	"math"
	"slices"
	"time"
)

const (
	// DefaultClickSpan is how far back click velocity looks.
	DefaultClickSpan = 2 * time.Second

	// MaxClickVelocity caps clicks/sec so one burst cannot pin the signal.
	MaxClickVelocity = 100.0

	// MinJitterSamples is the fewest positions jitter analysis will use.
	MinJitterSamples = 10

	reversalAngle = math.Pi / 4 // 45°
)

// ClickVelocity returns clicks per second over the clicks recorded within
// span of now, capped at MaxClickVelocity. Fewer than two clicks yields 0;
// clicks all sharing one timestamp yield MaxClickVelocity.
func ClickVelocity(w Window, now time.Time, span time.Duration) float64 {
	if span <= 0 {
		span = DefaultClickSpan
	}

	var recent []time.Time
	for _, c := range w.Clicks {
		if now.Sub(c) <= span {
			recent = append(recent, c)
		}
	}
	if len(recent) < 2 {
		return 0
	}
	// Host timestamps may arrive out of order.
	slices.SortFunc(recent, time.Time.Compare)

	total := recent[len(recent)-1].Sub(recent[0])
	meanMs := float64(total) / float64(time.Millisecond) / float64(len(recent)-1)
	if meanMs <= 0 {
		return MaxClickVelocity
	}
	return math.Min(1000/meanMs, MaxClickVelocity)
}

// JitterStats describes pointer movement over the position window.
type JitterStats struct {
	Segments      int
	MeanDistance  float64 // pixels per segment
	Reversals     int     // consecutive segments turning more than 45°
	ReversalRatio float64 // Reversals / Segments
	Jittery       bool
}

// Jitter analyses pointer movement. Either a mean segment distance above
// distanceThreshold or a reversal ratio above reversalLimit flags jitter.
// Fewer than MinJitterSamples positions is never jittery.
func Jitter(w Window, distanceThreshold, reversalLimit float64) JitterStats {
	if len(w.Positions) < MinJitterSamples {
		return JitterStats{}
	}

	var st JitterStats
	st.Segments = len(w.Positions) - 1

	var total float64
	prevAngle, havePrev := 0.0, false
	for i := 1; i < len(w.Positions); i++ {
		dx := w.Positions[i].X - w.Positions[i-1].X
		dy := w.Positions[i].Y - w.Positions[i-1].Y
		dist := math.Hypot(dx, dy)
		total += dist

		// A stationary segment has no direction; it neither reverses nor
		// breaks the comparison chain.
		if dist == 0 {
			continue
		}
		angle := math.Atan2(dy, dx)
		if havePrev && angleDelta(prevAngle, angle) > reversalAngle {
			st.Reversals++
		}
		prevAngle, havePrev = angle, true
	}

	st.MeanDistance = total / float64(st.Segments)
	st.ReversalRatio = float64(st.Reversals) / float64(st.Segments)
	st.Jittery = st.MeanDistance > distanceThreshold || st.ReversalRatio > reversalLimit
	return st
}

// angleDelta returns the absolute difference between two headings in [0, π].
func angleDelta(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// Inactivity returns how long it has been since the last activity.
func Inactivity(w Window, now time.Time) time.Duration {
	d := now.Sub(w.LastActivity)
	if d < 0 {
		return 0
	}
	return d
}

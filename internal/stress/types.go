package stress

import (
	"fmt"
	"strings"
	"time"

	"github.com/suykerbuyk/verve/internal/signal"
)

// Default thresholds. They were tuned by observation, not derived, and are
// all overridable through config.
const (
	DefaultRage          = 4.0 // clicks/sec
	DefaultStall         = 20 * time.Second
	DefaultJitter        = 50.0 // pixels per segment
	DefaultReversalRatio = 0.3  // reversals per segment
)

// Thresholds parameterize classification.
type Thresholds struct {
	Rage          float64       // click velocity above this is raging
	Stall         time.Duration // inactivity above this is stalled
	Jitter        float64       // mean segment distance above this is jittery
	ReversalRatio float64       // reversal ratio above this is jittery
	ClickSpan     time.Duration // click velocity lookback
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Rage:          DefaultRage,
		Stall:         DefaultStall,
		Jitter:        DefaultJitter,
		ReversalRatio: DefaultReversalRatio,
		ClickSpan:     signal.DefaultClickSpan,
	}
}

// Reading is one classification of a window snapshot.
type Reading struct {
	Level      int // composite score 0-100
	Raging     bool
	Jittery    bool
	Stalled    bool
	Hidden     bool
	ComputedAt time.Time
	Seq        uint64 // engine-assigned, increases with every computation

	// Feature values behind the flags.
	Velocity float64
	Motion   signal.JitterStats
	Inactive time.Duration
}

// Distressed reports whether any flag that triggers a protective downgrade
// is set. A hidden tab adds to the score but is not distress on its own.
func (r Reading) Distressed() bool {
	return r.Raging || r.Jittery || r.Stalled
}

// SameState reports whether two readings agree on level and every flag.
func (r Reading) SameState(o Reading) bool {
	return r.Level == o.Level &&
		r.Raging == o.Raging &&
		r.Jittery == o.Jittery &&
		r.Stalled == o.Stalled &&
		r.Hidden == o.Hidden
}

// Flags returns the names of the set flags in a fixed order.
func (r Reading) Flags() []string {
	var flags []string
	if r.Raging {
		flags = append(flags, "raging")
	}
	if r.Jittery {
		flags = append(flags, "jittery")
	}
	if r.Stalled {
		flags = append(flags, "stalled")
	}
	if r.Hidden {
		flags = append(flags, "hidden")
	}
	return flags
}

func (r Reading) String() string {
	flags := r.Flags()
	if len(flags) == 0 {
		return fmt.Sprintf("stress %d (calm)", r.Level)
	}
	return fmt.Sprintf("stress %d (%s)", r.Level, strings.Join(flags, ", "))
}

package signal

import (
	"fmt"
	"time"
)

// Kind identifies the host event a Sample came from.
type Kind string

const (
	KindClick      Kind = "click"
	KindMove       Kind = "move"
	KindKey        Kind = "key"
	KindVisibility Kind = "visibility"
)

// ParseKind validates a kind name from a trace or host adapter.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindClick, KindMove, KindKey, KindVisibility:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sample kind %q", s)
	}
}

// Sample is one raw interaction event from the host.
type Sample struct {
	At     time.Time
	Kind   Kind
	X, Y   float64 // pointer position, move samples only
	Hidden bool    // visibility samples only
}

// Point is a timestamped pointer position.
type Point struct {
	X, Y float64
	At   time.Time
}

// Window is a read-only snapshot of the collector's rolling buffers.
type Window struct {
	Clicks       []time.Time // oldest first, at most ClickCapacity
	Positions    []Point     // oldest first, at most PositionCapacity
	LastActivity time.Time
	Hidden       bool
}

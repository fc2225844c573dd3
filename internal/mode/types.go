// Package mode implements the pedagogical state machine over
// Mode × SupportLevel, driven by stress readings, manual selection and
// answer streaks.
package mode

import (
	"fmt"
	"strings"

	"github.com/suykerbuyk/verve/internal/stress"
)

// Mode is the coarse scaffolding posture.
type Mode string

const (
	Verve Mode = "VERVE" // active practice, the default
	Aura  Mode = "AURA"  // recalibration and guided review
	Forge Mode = "FORGE" // challenge, minimal scaffolding
)

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case Verve, Aura, Forge:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want VERVE, AURA or FORGE)", s)
	}
}

// Level is the support intensity, 5 = maximal support, 1 = minimal.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 5
)

// ClampLevel limits n to [MinLevel, MaxLevel].
func ClampLevel(n int) Level {
	if n < int(MinLevel) {
		return MinLevel
	}
	if n > int(MaxLevel) {
		return MaxLevel
	}
	return Level(n)
}

// DefaultMasteryStreak is the run of correct answers that earns a level-down.
const DefaultMasteryStreak = 5

// Event is an input to the controller.
type Event interface {
	event()
}

// StressEvent carries a classifier reading.
type StressEvent struct {
	Reading stress.Reading
}

// SelectEvent is an explicit mode choice by the learner or host.
type SelectEvent struct {
	Mode Mode
}

// AnswerEvent is a graded answer.
type AnswerEvent struct {
	Concept string
	Correct bool
}

func (StressEvent) event() {}
func (SelectEvent) event() {}
func (AnswerEvent) event() {}

// State is a snapshot of the controller.
type State struct {
	Mode   Mode
	Level  Level
	Streak int

	// Remediating is the concept under guided review while in AURA; Resume is
	// the mode to return to once it is answered correctly.
	Remediating string
	Resume      Mode
}

// Reason explains why a transition happened.
type Reason string

const (
	ReasonProtective Reason = "protective-downgrade"
	ReasonManual     Reason = "manual"
	ReasonMastery    Reason = "mastery"
	ReasonRemediate  Reason = "remediation"
	ReasonReviewDone Reason = "review-complete"
	ReasonAnswer     Reason = "answer"
)

// Change is the result of applying one event.
type Change struct {
	From, To  State
	Reason    Reason
	LevelDown bool // support level decreased; persist it
}

// ModeChanged reports whether the mode differs between From and To.
func (c Change) ModeChanged() bool {
	return c.From.Mode != c.To.Mode
}

// Noop reports whether the event left the state untouched.
func (c Change) Noop() bool {
	return c.From == c.To
}

package mode

import (
	"sync"

	"go.uber.org/zap"

	"github.com/suykerbuyk/verve/internal/notify"
)

// Initial is hydrated state supplied by a persistence collaborator.
type Initial struct {
	Mode  Mode
	Level Level
}

// Controller owns the mode state machine. Apply is total: every event in
// every state yields a Change, and events that do not apply are no-ops.
type Controller struct {
	mu            sync.Mutex
	st            State
	masteryStreak int
	distressed    bool

	// consecutive incorrect answers, tracked for one concept at a time
	missConcept string
	missRun     int

	hub notify.Hub[Change]
	log *zap.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMasteryStreak overrides the correct-answer run needed for a level-down.
func WithMasteryStreak(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.masteryStreak = n
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// NewController starts from hydrated state. An empty mode means VERVE and
// the level is clamped into range; a zero level means maximal support.
func NewController(init Initial, opts ...ControllerOption) *Controller {
	m := init.Mode
	if _, err := ParseMode(string(m)); err != nil {
		m = Verve
	}
	lvl := init.Level
	if lvl == 0 {
		lvl = MaxLevel
	}

	c := &Controller{
		st:            State{Mode: m, Level: ClampLevel(int(lvl))},
		masteryStreak: DefaultMasteryStreak,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// Subscribe registers fn to receive every non-noop Change.
func (c *Controller) Subscribe(fn func(Change)) (cancel func()) {
	return c.hub.Subscribe(fn)
}

// Apply runs one event through the transition function.
func (c *Controller) Apply(ev Event) Change {
	c.mu.Lock()
	from := c.st
	reason, levelDown := c.applyLocked(ev)
	ch := Change{From: from, To: c.st, Reason: reason, LevelDown: levelDown}
	c.mu.Unlock()

	if ch.Noop() {
		return ch
	}
	if ch.ModeChanged() || ch.LevelDown {
		c.log.Debug("mode transition",
			zap.String("reason", string(ch.Reason)),
			zap.String("from", string(ch.From.Mode)),
			zap.String("to", string(ch.To.Mode)),
			zap.Int("level", int(ch.To.Level)))
	}
	c.hub.Publish(ch)
	return ch
}

func (c *Controller) applyLocked(ev Event) (Reason, bool) {
	switch ev := ev.(type) {
	case StressEvent:
		c.distressed = ev.Reading.Distressed()
		if c.protectLocked() {
			return ReasonProtective, false
		}
		return "", false

	case SelectEvent:
		if _, err := ParseMode(string(ev.Mode)); err != nil || ev.Mode == c.st.Mode {
			return "", false
		}
		c.st.Mode = ev.Mode
		c.st.Remediating = ""
		c.st.Resume = ""
		// A manual choice overrides the reading it was made under; only a
		// later distressed reading may force VERVE again.
		c.distressed = false
		return ReasonManual, false

	case AnswerEvent:
		return c.recordAnswerLocked(ev)

	default:
		return "", false
	}
}

// protectLocked forces VERVE when the latest reading shows distress. Only
// stress readings call it, so a manual choice holds until the next reading.
func (c *Controller) protectLocked() bool {
	if !c.distressed || c.st.Mode == Verve {
		return false
	}
	c.st.Mode = Verve
	c.st.Streak = 0
	c.st.Remediating = ""
	c.st.Resume = ""
	return true
}

func (c *Controller) trackMissLocked(concept string) {
	if concept != "" && concept == c.missConcept {
		c.missRun++
		return
	}
	c.missConcept, c.missRun = concept, 1
}

func (c *Controller) recordAnswerLocked(ev AnswerEvent) (Reason, bool) {
	if !ev.Correct {
		c.st.Streak = 0
		c.trackMissLocked(ev.Concept)

		// Remediation would leave VERVE, which distress forbids.
		if c.missRun >= 2 && ev.Concept != "" && !c.distressed {
			c.missRun = 0
			if c.st.Remediating == "" {
				c.st.Resume = c.st.Mode
			}
			c.st.Remediating = ev.Concept
			c.st.Mode = Aura
			return ReasonRemediate, false
		}
		return ReasonAnswer, false
	}

	c.missConcept, c.missRun = "", 0
	c.st.Streak++

	reason, levelDown := ReasonAnswer, false
	if c.st.Streak >= c.masteryStreak {
		c.st.Streak = 0
		if c.st.Level > MinLevel {
			c.st.Level--
			levelDown = true
		}
		reason = ReasonMastery
	}

	if c.st.Mode == Aura && c.st.Remediating != "" && ev.Concept == c.st.Remediating {
		resume := c.st.Resume
		c.st.Remediating = ""
		c.st.Resume = ""
		if resume != "" && resume != c.st.Mode {
			c.st.Mode = resume
			c.st.Streak = 0
		}
		if !levelDown {
			reason = ReasonReviewDone
		}
	}
	return reason, levelDown
}

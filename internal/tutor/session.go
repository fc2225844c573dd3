// Package tutor is the host-facing surface of the engine. A Session wires
// the stress engine, the mode controller and the content provider together
// and exposes callbacks for everything a host or collaborator needs to
// observe.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suykerbuyk/verve/internal/content"
	"github.com/suykerbuyk/verve/internal/forge"
	"github.com/suykerbuyk/verve/internal/mode"
	"github.com/suykerbuyk/verve/internal/notify"
	"github.com/suykerbuyk/verve/internal/problem"
	"github.com/suykerbuyk/verve/internal/signal"
	"github.com/suykerbuyk/verve/internal/stress"
	"github.com/suykerbuyk/verve/internal/template"
)

// ErrUnknownProblem is returned when grading a problem id this session never
// issued or has already graded.
var ErrUnknownProblem = errors.New("unknown problem")

// recentWindow is how many answers feed the accuracy estimate.
const recentWindow = 10

// Initial is hydrated learner state.
type Initial struct {
	Mode  mode.Mode
	Level mode.Level
}

// Config assembles a Session. Zero values select defaults.
type Config struct {
	Thresholds    stress.Thresholds
	MasteryStreak int

	// Static is the problem bank. Nil means every problem is generated.
	Static content.Static
	// Templates defaults to the built-in registry over DefaultZone.
	Templates   content.Templates
	DefaultZone string
	// Content adds provider options such as a forge generator and limiter.
	Content []content.Option

	Logger     *zap.Logger
	Clock      func() time.Time
	NoWatchdog bool
}

// AnswerResult is what the host learns from grading.
type AnswerResult struct {
	Correct bool
	Streak  int
	Level   mode.Level
}

// Outcome records one graded answer for persistence collaborators.
type Outcome struct {
	SessionID  string             `json:"session_id"`
	ProblemID  string             `json:"problem_id"`
	NodeID     string             `json:"node_id,omitempty"`
	Zone       string             `json:"zone,omitempty"`
	Concept    string             `json:"concept,omitempty"`
	Provenance problem.Provenance `json:"provenance"`
	Difficulty int                `json:"difficulty"`
	Answer     string             `json:"answer"`
	Correct    bool               `json:"correct"`
	Mode       mode.Mode          `json:"mode"`
	Level      mode.Level         `json:"level"`
	Streak     int                `json:"streak"`
	At         time.Time          `json:"at"`
}

// Session is one learner's live engine.
type Session struct {
	id       string
	engine   *stress.Engine
	ctrl     *mode.Controller
	provider *content.Provider
	now      func() time.Time
	log      *zap.Logger

	mu          sync.Mutex
	issued      map[string]problem.Spec
	recent      []bool
	lastReading stress.Reading
	haveReading bool
	closed      bool

	stressHub     notify.Hub[stress.Reading]
	modeHub       notify.Hub[mode.Change]
	outcomeHub    notify.Hub[Outcome]
	unsubscribers []func()
}

// New starts a session from hydrated state.
func New(init Initial, cfg Config) (*Session, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	templates := cfg.Templates
	if templates == nil {
		reg, err := template.NewBuiltin(cfg.DefaultZone)
		if err != nil {
			return nil, fmt.Errorf("template registry: %w", err)
		}
		templates = reg
	}

	s := &Session{
		id:     uuid.NewString(),
		now:    now,
		log:    log,
		issued: make(map[string]problem.Spec),
	}
	s.log = log.With(zap.String("session", s.id))

	engineOpts := []stress.Option{stress.WithClock(now), stress.WithLogger(s.log)}
	if cfg.NoWatchdog {
		engineOpts = append(engineOpts, stress.WithoutWatchdog())
	}
	s.ctrl = mode.NewController(mode.Initial{Mode: init.Mode, Level: init.Level},
		mode.WithMasteryStreak(cfg.MasteryStreak),
		mode.WithLogger(s.log))

	contentOpts := []content.Option{
		content.WithDefaultZone(cfg.DefaultZone),
		content.WithLogger(s.log),
	}
	contentOpts = append(contentOpts, cfg.Content...)
	contentOpts = append(contentOpts, content.WithSnapshot(s.Learner))
	s.provider = content.New(cfg.Static, templates, contentOpts...)

	s.unsubscribers = append(s.unsubscribers, s.ctrl.Subscribe(s.onChange))

	// The engine arms its watchdog on construction, so subscribe right after.
	s.engine = stress.NewEngine(cfg.Thresholds, engineOpts...)
	s.unsubscribers = append(s.unsubscribers, s.engine.Subscribe(s.onReading))

	return s, nil
}

// ID is the session's unique id.
func (s *Session) ID() string { return s.id }

func (s *Session) onReading(r stress.Reading) {
	s.ctrl.Apply(mode.StressEvent{Reading: r})

	s.mu.Lock()
	changed := !s.haveReading || !r.SameState(s.lastReading)
	s.lastReading = r
	s.haveReading = true
	s.mu.Unlock()

	if changed {
		s.stressHub.Publish(r)
	}
}

func (s *Session) onChange(ch mode.Change) {
	s.modeHub.Publish(ch)
}

// OnStressChange registers fn for readings whose level or flags differ
// from the previous one.
func (s *Session) OnStressChange(fn func(stress.Reading)) (cancel func()) {
	return s.stressHub.Subscribe(fn)
}

// OnModeChange registers fn for changes of mode or support level.
func (s *Session) OnModeChange(fn func(mode.Mode, mode.Level)) (cancel func()) {
	return s.modeHub.Subscribe(func(ch mode.Change) {
		if ch.ModeChanged() || ch.From.Level != ch.To.Level {
			fn(ch.To.Mode, ch.To.Level)
		}
	})
}

// OnTransition registers fn for every state change, including streak
// movement. Persistence collaborators use it to save level-downs.
func (s *Session) OnTransition(fn func(mode.Change)) (cancel func()) {
	return s.modeHub.Subscribe(fn)
}

// OnOutcome registers fn for every graded answer.
func (s *Session) OnOutcome(fn func(Outcome)) (cancel func()) {
	return s.outcomeHub.Subscribe(fn)
}

// Ingest feeds one host interaction sample.
func (s *Session) Ingest(sample signal.Sample) stress.Reading {
	return s.engine.Ingest(sample)
}

// Tick recomputes stress without a new sample.
func (s *Session) Tick() stress.Reading {
	return s.engine.Tick()
}

// Run ingests samples from src in real time until it ends or ctx is done.
func (s *Session) Run(ctx context.Context, src signal.Source) error {
	return s.engine.Run(ctx, src)
}

// Replay ingests a recorded trace in virtual time.
func (s *Session) Replay(ctx context.Context, src signal.Source) error {
	return s.engine.Replay(ctx, src)
}

// SelectMode applies an explicit mode choice.
func (s *Session) SelectMode(m mode.Mode) mode.Change {
	return s.ctrl.Apply(mode.SelectEvent{Mode: m})
}

// State returns the controller state.
func (s *Session) State() mode.State {
	return s.ctrl.State()
}

// Stress returns the latest reading.
func (s *Session) Stress() stress.Reading {
	return s.engine.Latest()
}

// Learner summarizes the learner for difficulty estimation.
func (s *Session) Learner() forge.Learner {
	st := s.ctrl.State()
	l := forge.Learner{Mode: st.Mode, Level: st.Level, Streak: st.Streak}
	if st.Remediating != "" {
		l.Focus = []string{st.Remediating}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l.Attempts = len(s.recent)
	if l.Attempts > 0 {
		correct := 0
		for _, ok := range s.recent {
			if ok {
				correct++
			}
		}
		l.Accuracy = float64(correct) / float64(l.Attempts)
	}
	return l
}

// NextProblem resolves a problem for nodeID and holds it until graded.
func (s *Session) NextProblem(ctx context.Context, nodeID string) (problem.Spec, error) {
	spec, err := s.provider.Next(ctx, nodeID)
	if err != nil {
		return problem.Spec{}, err
	}

	s.mu.Lock()
	s.issued[spec.ID] = spec
	s.mu.Unlock()

	s.log.Debug("problem issued",
		zap.String("problem", spec.ID),
		zap.String("node", nodeID),
		zap.String("provenance", string(spec.Provenance)),
		zap.Int("difficulty", spec.Difficulty))
	return spec.Clone(), nil
}

// ReportAnswer grades an issued problem and drives the controller.
func (s *Session) ReportAnswer(problemID, answer string) (AnswerResult, error) {
	s.mu.Lock()
	spec, ok := s.issued[problemID]
	delete(s.issued, problemID)
	s.mu.Unlock()
	if !ok {
		return AnswerResult{}, fmt.Errorf("%w: %s", ErrUnknownProblem, problemID)
	}

	correct := problem.Grade(spec, answer)
	ch := s.ctrl.Apply(mode.AnswerEvent{Concept: spec.Concept(), Correct: correct})

	s.mu.Lock()
	s.recent = append(s.recent, correct)
	if len(s.recent) > recentWindow {
		s.recent = s.recent[len(s.recent)-recentWindow:]
	}
	s.mu.Unlock()

	st := ch.To
	s.outcomeHub.Publish(Outcome{
		SessionID:  s.id,
		ProblemID:  spec.ID,
		NodeID:     spec.NodeID,
		Zone:       spec.Zone,
		Concept:    spec.Concept(),
		Provenance: spec.Provenance,
		Difficulty: spec.Difficulty,
		Answer:     answer,
		Correct:    correct,
		Mode:       st.Mode,
		Level:      st.Level,
		Streak:     st.Streak,
		At:         s.now(),
	})

	return AnswerResult{Correct: correct, Streak: st.Streak, Level: st.Level}, nil
}

// Pending counts issued problems not yet graded.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issued)
}

// Close stops the watchdog, cancels any problem request in flight and drops
// engine subscriptions. Host callbacks stay registered but receive nothing
// further from the engine.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsubscribers
	s.unsubscribers = nil
	s.mu.Unlock()

	s.provider.Cancel()
	s.engine.Close()
	for _, fn := range unsub {
		fn()
	}
}

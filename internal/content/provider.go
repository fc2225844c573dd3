// Package content resolves the next practice problem for a learner. It
// tries the static bank first, then remote generation, then the template
// registry, so a request always ends with a problem unless it is cancelled
// or superseded.
package content

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/suykerbuyk/verve/internal/forge"
	"github.com/suykerbuyk/verve/internal/problem"
	"github.com/suykerbuyk/verve/internal/template"
)

// ErrSuperseded is returned by a Next call whose turn was overtaken by a
// later Next. Its result is discarded.
var ErrSuperseded = errors.New("problem request superseded by a newer turn")

// DefaultTimeout bounds one remote generation call.
const DefaultTimeout = 10 * time.Second

// Static is the human-authored bank.
type Static interface {
	Next(nodeID string) (problem.Spec, bool)
	ZoneFor(nodeID string) (string, bool)
}

// Templates generates problems for a zone, substituting the default zone
// when needed.
type Templates interface {
	Generate(zone string, difficulty int) (spec problem.Spec, substituted bool)
}

// Snapshot reports the learner state difficulty is estimated from.
type Snapshot func() forge.Learner

// Provider runs the fallback chain. One Next call is one turn; starting a
// new turn cancels the previous one.
type Provider struct {
	static      Static
	templates   Templates
	gen         forge.Generator
	limiter     *rate.Limiter
	timeout     time.Duration
	defaultZone string
	snapshot    Snapshot
	log         *zap.Logger

	mu     sync.Mutex
	turn   uint64
	cancel context.CancelFunc
}

// Option configures a Provider.
type Option func(*Provider)

// WithGenerator enables remote generation.
func WithGenerator(g forge.Generator) Option {
	return func(p *Provider) { p.gen = g }
}

// WithLimiter throttles remote generation. A throttled turn skips straight
// to templates.
func WithLimiter(l *rate.Limiter) Option {
	return func(p *Provider) { p.limiter = l }
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDefaultZone sets the zone used for nodes the bank does not know.
func WithDefaultZone(zone string) Option {
	return func(p *Provider) {
		if zone != "" {
			p.defaultZone = zone
		}
	}
}

// WithSnapshot supplies learner state for difficulty estimation.
func WithSnapshot(s Snapshot) Option {
	return func(p *Provider) { p.snapshot = s }
}

// WithLogger sets the provider's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// New builds a provider. static may be nil; templates may not.
func New(static Static, templates Templates, opts ...Option) *Provider {
	p := &Provider{
		static:      static,
		templates:   templates,
		timeout:     DefaultTimeout,
		defaultZone: template.DefaultZone,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next resolves one problem for nodeID.
func (p *Provider) Next(ctx context.Context, nodeID string) (problem.Spec, error) {
	turnCtx, turn, cancel := p.begin(ctx)
	defer cancel()

	zone := p.defaultZone
	if p.static != nil {
		if z, ok := p.static.ZoneFor(nodeID); ok && z != "" {
			zone = z
		}
		if spec, ok := p.static.Next(nodeID); ok {
			return p.finish(turn, spec)
		}
	}

	learner := p.learner()
	difficulty := forge.EstimateDifficulty(learner)

	if p.gen != nil {
		spec, err := p.generate(turnCtx, forge.Request{
			NodeID:     nodeID,
			Zone:       zone,
			Difficulty: difficulty,
			Mode:       learner.Mode,
			Concepts:   learner.Focus,
		})
		switch {
		case err == nil:
			return p.finish(turn, spec)
		case !p.current(turn):
			return problem.Spec{}, ErrSuperseded
		case ctx.Err() != nil:
			return problem.Spec{}, ctx.Err()
		case errors.Is(err, errThrottled):
			p.log.Info("forge throttled, using templates", zap.String("node", nodeID))
		default:
			p.log.Warn("forge generation failed, using templates",
				zap.String("node", nodeID),
				zap.String("generator", p.gen.Name()),
				zap.Error(err))
		}
	}

	spec, substituted := p.templates.Generate(zone, difficulty)
	if substituted {
		p.log.Info("no template for zone, using default",
			zap.String("zone", zone),
			zap.String("default", spec.Zone))
	}
	spec.NodeID = nodeID
	return p.finish(turn, spec)
}

var errThrottled = errors.New("forge rate limit")

func (p *Provider) generate(ctx context.Context, req forge.Request) (problem.Spec, error) {
	if p.limiter != nil && !p.limiter.Allow() {
		return problem.Spec{}, errThrottled
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	spec, err := p.gen.Generate(ctx, req)
	if err != nil {
		return problem.Spec{}, err
	}
	if spec.NodeID == "" {
		spec.NodeID = req.NodeID
	}
	return spec, nil
}

func (p *Provider) learner() forge.Learner {
	if p.snapshot == nil {
		return forge.Learner{}
	}
	return p.snapshot()
}

// begin starts a new turn and cancels the one in flight.
func (p *Provider) begin(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.turn++
	turnCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	return turnCtx, p.turn, cancel
}

func (p *Provider) current(turn uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turn == turn
}

func (p *Provider) finish(turn uint64, spec problem.Spec) (problem.Spec, error) {
	if !p.current(turn) {
		return problem.Spec{}, ErrSuperseded
	}
	return spec, nil
}

// Cancel aborts the turn in flight, if any. Its Next returns ErrSuperseded.
func (p *Provider) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.turn++
}

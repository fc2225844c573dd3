// Package template builds practice problems procedurally from zone-specific
// templates with randomized numeric parameters. Problems are correct by
// construction: the answer is computed, never parsed back.
package template

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suykerbuyk/verve/internal/problem"
)

// DefaultZone is the zone substituted when a requested zone has no template.
const DefaultZone = "Alpha"

// ErrNoDefaultZone is a configuration error: the fallback zone itself has no
// template, so generation could fail.
var ErrNoDefaultZone = errors.New("no template for default zone")

// Draft is what a template produces before options are attached.
type Draft struct {
	Prompt      string
	Answer      int // non-negative
	Steps       []string
	Explanation string
	Concept     string
}

// Template generates drafts for one zone.
type Template struct {
	Zone  string
	Build func(rng *rand.Rand, difficulty int) Draft
}

// Registry maps zones to templates and falls back to a default zone.
type Registry struct {
	mu    sync.Mutex
	rng   *rand.Rand
	zones map[string]Template
	def   string
}

// Option configures a Registry.
type Option func(*Registry)

// WithRand fixes the random source, for reproducible output.
func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) { r.rng = rng }
}

// NewRegistry indexes templates by zone (case-insensitive). It fails when
// defaultZone has no template.
func NewRegistry(defaultZone string, templates []Template, opts ...Option) (*Registry, error) {
	r := &Registry{
		zones: make(map[string]Template, len(templates)),
		def:   key(defaultZone),
	}
	for _, t := range templates {
		if t.Build == nil {
			return nil, fmt.Errorf("template for zone %q has no builder", t.Zone)
		}
		r.zones[key(t.Zone)] = t
	}
	if _, ok := r.zones[r.def]; !ok {
		return nil, fmt.Errorf("%w %q", ErrNoDefaultZone, defaultZone)
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		seed := uint64(time.Now().UnixNano())
		r.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return r, nil
}

// NewBuiltin returns a registry over the built-in zones.
func NewBuiltin(defaultZone string, opts ...Option) (*Registry, error) {
	if defaultZone == "" {
		defaultZone = DefaultZone
	}
	return NewRegistry(defaultZone, Builtin(), opts...)
}

func key(zone string) string {
	return strings.ToLower(strings.TrimSpace(zone))
}

// Has reports whether zone has its own template.
func (r *Registry) Has(zone string) bool {
	_, ok := r.zones[key(zone)]
	return ok
}

// Zones lists the registered zone names, sorted.
func (r *Registry) Zones() []string {
	out := make([]string, 0, len(r.zones))
	for _, t := range r.zones {
		out = append(out, t.Zone)
	}
	sort.Strings(out)
	return out
}

// Generate builds a multiple-choice problem for zone at the given difficulty
// (clamped to [1,5]). Unknown zones use the default zone; substituted
// reports when that happened.
func (r *Registry) Generate(zone string, difficulty int) (spec problem.Spec, substituted bool) {
	t, ok := r.zones[key(zone)]
	if !ok {
		t = r.zones[r.def]
		substituted = true
	}
	difficulty = clampDifficulty(difficulty)

	r.mu.Lock()
	d := t.Build(r.rng, difficulty)
	options := r.optionsLocked(d.Answer)
	r.mu.Unlock()

	spec = problem.Spec{
		ID:            uuid.NewString(),
		Zone:          t.Zone,
		Prompt:        d.Prompt,
		AnswerKey:     strconv.Itoa(d.Answer),
		Options:       options,
		SolutionSteps: d.Steps,
		Explanation:   d.Explanation,
		Difficulty:    difficulty,
	}
	if d.Concept != "" {
		spec.Concepts = []string{d.Concept}
	}
	spec.Finalize(problem.ProvenanceTemplate)
	return spec, substituted
}

// optionsLocked returns the answer plus three distinct non-negative
// distractors in random order.
func (r *Registry) optionsLocked(answer int) []string {
	offsets := []int{1, -1, 2, -2, 3, 5, -5, 10, -10}
	r.rng.Shuffle(len(offsets), func(i, j int) { offsets[i], offsets[j] = offsets[j], offsets[i] })

	values := []int{answer}
	seen := map[int]bool{answer: true}
	for _, off := range offsets {
		v := answer + off
		if v < 0 || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
		if len(values) == problem.OptionCount {
			break
		}
	}
	r.rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

func clampDifficulty(d int) int {
	if d < problem.MinDifficulty {
		return problem.MinDifficulty
	}
	if d > problem.MaxDifficulty {
		return problem.MaxDifficulty
	}
	return d
}

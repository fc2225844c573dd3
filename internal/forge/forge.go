// Package forge generates practice problems with a remote language model.
// Two backends are provided: any OpenAI-compatible chat completions
// endpoint, and Gemini through the genai SDK. Every generated problem is
// checked against the generated-problem contract before it is returned.
package forge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suykerbuyk/verve/internal/config"
	"github.com/suykerbuyk/verve/internal/mode"
	"github.com/suykerbuyk/verve/internal/problem"
)

var (
	// ErrDisabled means remote generation is switched off or has no
	// credential. Callers fall back without logging it as a failure.
	ErrDisabled = errors.New("forge disabled")

	// ErrInvalid marks a response that parsed but broke the problem
	// contract.
	ErrInvalid = errors.New("generated problem rejected")
)

// Request describes the problem wanted.
type Request struct {
	NodeID     string
	Zone       string
	Difficulty int
	Mode       mode.Mode
	Concepts   []string
}

// Generator produces one problem per call.
type Generator interface {
	Generate(ctx context.Context, req Request) (problem.Spec, error)
	Name() string
}

// New returns the generator selected by cfg. It returns ErrDisabled when
// generation is off or the API key variable is empty.
func New(ctx context.Context, cfg config.ForgeConfig) (Generator, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%w: $%s is not set", ErrDisabled, cfg.APIKeyEnv)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewHTTP(cfg.BaseURL, cfg.Model, apiKey, nil), nil
	case "gemini":
		return NewGenAI(ctx, cfg.Model, apiKey, "")
	default:
		return nil, fmt.Errorf("unknown forge provider %q", cfg.Provider)
	}
}

// Learner is the performance snapshot difficulty is estimated from.
type Learner struct {
	Mode     mode.Mode
	Level    mode.Level
	Streak   int
	Attempts int
	Accuracy float64 // fraction correct of recent attempts; ignored when Attempts is 0

	// Focus lists concepts the next problem should exercise, such as one
	// under remediation. It does not affect difficulty.
	Focus []string
}

// EstimateDifficulty maps a learner snapshot to a difficulty in [1,5].
// Support level sets the base (level 5 asks for the easiest problems); a
// hot streak or FORGE mode push it up; poor accuracy or AURA pull it down.
func EstimateDifficulty(l Learner) int {
	level := l.Level
	if level == 0 {
		level = mode.MaxLevel
	}
	d := int(mode.MaxLevel) + 1 - int(level)

	if l.Streak >= 3 {
		d++
	}
	if l.Attempts >= 3 {
		switch {
		case l.Accuracy < 0.5:
			d--
		case l.Accuracy >= 0.9:
			d++
		}
	}
	switch l.Mode {
	case mode.Aura:
		d--
	case mode.Forge:
		d++
	}

	if d < problem.MinDifficulty {
		return problem.MinDifficulty
	}
	if d > problem.MaxDifficulty {
		return problem.MaxDifficulty
	}
	return d
}

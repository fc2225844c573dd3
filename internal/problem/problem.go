// Package problem defines the practice problem handed to learners and the
// structural contract every problem must meet before it leaves the engine.
package problem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Provenance records where a problem came from.
type Provenance string

const (
	ProvenanceStatic   Provenance = "static"
	ProvenanceAI       Provenance = "ai"
	ProvenanceTemplate Provenance = "template"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 5

	// ToolDifficulty and above is flagged RequiresTool. Advisory only.
	ToolDifficulty = 4

	// OptionCount is the option count generated multiple-choice problems
	// must have.
	OptionCount = 4
)

// ErrInvalid marks a problem that breaks the structural contract.
var ErrInvalid = errors.New("invalid problem")

// Spec is one practice problem.
type Spec struct {
	ID            string     `json:"id" yaml:"id"`
	NodeID        string     `json:"node_id,omitempty" yaml:"-"`
	Zone          string     `json:"zone,omitempty" yaml:"-"`
	Prompt        string     `json:"prompt" yaml:"prompt"`
	AnswerKey     string     `json:"answer_key" yaml:"answer"`
	Options       []string   `json:"options,omitempty" yaml:"options,omitempty"`
	SolutionSteps []string   `json:"solution_steps,omitempty" yaml:"steps,omitempty"`
	Explanation   string     `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Difficulty    int        `json:"difficulty" yaml:"difficulty"`
	RequiresTool  bool       `json:"requires_tool" yaml:"-"`
	Provenance    Provenance `json:"provenance" yaml:"-"`
	Concepts      []string   `json:"concepts,omitempty" yaml:"concepts,omitempty"`
}

// MultipleChoice reports whether the problem offers options.
func (s Spec) MultipleChoice() bool {
	return len(s.Options) > 0
}

// Concept returns the primary concept tag, or "" when untagged.
func (s Spec) Concept() string {
	if len(s.Concepts) == 0 {
		return ""
	}
	return s.Concepts[0]
}

// Finalize stamps provenance and the advisory tool flag.
func (s *Spec) Finalize(p Provenance) {
	s.Provenance = p
	s.RequiresTool = s.Difficulty >= ToolDifficulty
}

// Clone returns a deep copy so callers never share slices with a bank.
func (s Spec) Clone() Spec {
	c := s
	c.Options = append([]string(nil), s.Options...)
	c.SolutionSteps = append([]string(nil), s.SolutionSteps...)
	c.Concepts = append([]string(nil), s.Concepts...)
	return c
}

// Validate checks the contract every problem handed to a learner must meet:
// a prompt, an answer key, difficulty in range, and for multiple choice,
// distinct options that include the answer key.
func Validate(s Spec) error {
	if strings.TrimSpace(s.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalid)
	}
	if strings.TrimSpace(s.AnswerKey) == "" {
		return fmt.Errorf("%w: missing answer key", ErrInvalid)
	}
	if s.Difficulty < MinDifficulty || s.Difficulty > MaxDifficulty {
		return fmt.Errorf("%w: difficulty %d outside [%d,%d]", ErrInvalid, s.Difficulty, MinDifficulty, MaxDifficulty)
	}
	if !s.MultipleChoice() {
		return nil
	}

	seen := make(map[string]bool, len(s.Options))
	hasKey := false
	for _, o := range s.Options {
		norm := normalize(o)
		if norm == "" {
			return fmt.Errorf("%w: empty option", ErrInvalid)
		}
		if seen[norm] {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalid, o)
		}
		seen[norm] = true
		if o == s.AnswerKey {
			hasKey = true
		}
	}
	if !hasKey {
		return fmt.Errorf("%w: answer key %q not among options", ErrInvalid, s.AnswerKey)
	}
	return nil
}

// ValidateGenerated applies the stricter contract for generated problems:
// everything Validate checks, exactly OptionCount options when multiple
// choice, and an explanation.
func ValidateGenerated(s Spec) error {
	if err := Validate(s); err != nil {
		return err
	}
	if s.MultipleChoice() && len(s.Options) != OptionCount {
		return fmt.Errorf("%w: %d options, want %d", ErrInvalid, len(s.Options), OptionCount)
	}
	if strings.TrimSpace(s.Explanation) == "" {
		return fmt.Errorf("%w: missing explanation", ErrInvalid)
	}
	return nil
}

// Grade reports whether a submitted answer matches the key. Comparison
// ignores case and surrounding space, and numeric answers compare by value
// so "0.50" matches "0.5".
func Grade(s Spec, submitted string) bool {
	want, got := normalize(s.AnswerKey), normalize(submitted)
	if want == got {
		return true
	}
	wf, err1 := strconv.ParseFloat(want, 64)
	gf, err2 := strconv.ParseFloat(got, 64)
	return err1 == nil && err2 == nil && wf == gf
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

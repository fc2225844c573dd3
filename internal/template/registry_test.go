package template

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"

	"github.com/suykerbuyk/verve/internal/problem"
)

func seeded(t *testing.T) *Registry {
	t.Helper()
	r, err := NewBuiltin(DefaultZone, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("NewBuiltin: %v", err)
	}
	return r
}

func TestNewRegistry_MissingDefaultZone(t *testing.T) {
	_, err := NewRegistry("Omega", Builtin())
	if !errors.Is(err, ErrNoDefaultZone) {
		t.Errorf("err = %v, want ErrNoDefaultZone", err)
	}
}

func TestNewRegistry_NilBuilder(t *testing.T) {
	_, err := NewRegistry("Alpha", []Template{{Zone: "Alpha"}})
	if err == nil {
		t.Error("expected error for template without builder")
	}
}

func TestRegistry_AlphaScenario(t *testing.T) {
	r := seeded(t)
	spec, substituted := r.Generate("Alpha", 2)

	if substituted {
		t.Error("Alpha should not be substituted")
	}
	if spec.Provenance != problem.ProvenanceTemplate {
		t.Errorf("Provenance = %q", spec.Provenance)
	}
	if len(spec.Options) != 4 {
		t.Fatalf("options = %v, want 4", spec.Options)
	}
	if !slices.Contains(spec.Options, spec.AnswerKey) {
		t.Errorf("answer %q not in options %v", spec.AnswerKey, spec.Options)
	}
	if spec.Difficulty != 2 || spec.RequiresTool {
		t.Errorf("difficulty=%d requiresTool=%v", spec.Difficulty, spec.RequiresTool)
	}
}

func TestRegistry_EveryZoneAndDifficultyIsValid(t *testing.T) {
	r := seeded(t)
	for _, zone := range r.Zones() {
		for d := problem.MinDifficulty; d <= problem.MaxDifficulty; d++ {
			for i := 0; i < 50; i++ {
				spec, _ := r.Generate(zone, d)
				if err := problem.ValidateGenerated(spec); err != nil {
					t.Fatalf("%s d%d: %v (%+v)", zone, d, err, spec)
				}
				if n, err := strconv.Atoi(spec.AnswerKey); err != nil || n < 0 {
					t.Fatalf("%s d%d: answer %q not a whole number", zone, d, spec.AnswerKey)
				}
				if spec.RequiresTool != (d >= problem.ToolDifficulty) {
					t.Fatalf("%s d%d: RequiresTool = %v", zone, d, spec.RequiresTool)
				}
				if len(spec.Concepts) != 1 {
					t.Fatalf("%s d%d: concepts = %v", zone, d, spec.Concepts)
				}
			}
		}
	}
}

func TestRegistry_UnknownZoneFallsBack(t *testing.T) {
	r := seeded(t)
	spec, substituted := r.Generate("Omega", 3)
	if !substituted {
		t.Error("expected substitution for unknown zone")
	}
	if spec.Zone != "Alpha" {
		t.Errorf("Zone = %q, want Alpha", spec.Zone)
	}
}

func TestRegistry_ZoneLookupIgnoresCase(t *testing.T) {
	r := seeded(t)
	if !r.Has("gamma") {
		t.Error("Has(gamma) = false")
	}
	if _, substituted := r.Generate(" BETA ", 1); substituted {
		t.Error("BETA should resolve to Beta")
	}
}

func TestRegistry_ClampsDifficulty(t *testing.T) {
	r := seeded(t)
	if s, _ := r.Generate("Beta", 0); s.Difficulty != 1 {
		t.Errorf("difficulty 0 -> %d, want 1", s.Difficulty)
	}
	if s, _ := r.Generate("Beta", 9); s.Difficulty != 5 {
		t.Errorf("difficulty 9 -> %d, want 5", s.Difficulty)
	}
}

func TestRegistry_UniqueIDs(t *testing.T) {
	r := seeded(t)
	a, _ := r.Generate("Delta", 2)
	b, _ := r.Generate("Delta", 2)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids %q and %q", a.ID, b.ID)
	}
}

func TestOptions_ZeroAnswer(t *testing.T) {
	r := seeded(t)
	for i := 0; i < 100; i++ {
		r.mu.Lock()
		opts := r.optionsLocked(0)
		r.mu.Unlock()
		if len(opts) != 4 || !slices.Contains(opts, "0") {
			t.Fatalf("options for 0 = %v", opts)
		}
		for _, o := range opts {
			if n, _ := strconv.Atoi(o); n < 0 {
				t.Fatalf("negative distractor in %v", opts)
			}
		}
	}
}

func TestZones(t *testing.T) {
	want := []string{"Alpha", "Beta", "Delta", "Epsilon", "Gamma"}
	if got := seeded(t).Zones(); !slices.Equal(got, want) {
		t.Errorf("Zones = %v, want %v", got, want)
	}
}

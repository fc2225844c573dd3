package profile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/suykerbuyk/verve/internal/bank"
	"github.com/suykerbuyk/verve/internal/mode"
	"github.com/suykerbuyk/verve/internal/problem"
	"github.com/suykerbuyk/verve/internal/tutor"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "profile.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoad_UnknownLearnerDefaults(t *testing.T) {
	s := openStore(t)
	got, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if got != (tutor.Initial{}) {
		t.Errorf("Load = %+v, want zero", got)
	}
}

func TestSaveState_Upserts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.SaveState(ctx, "ada", mode.Forge, 3); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveState(ctx, "ada", mode.Aura, 2); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "ada")
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != mode.Aura || got.Level != 2 {
		t.Errorf("Load = %+v", got)
	}
}

func TestReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.SaveState(context.Background(), "ada", mode.Forge, 1)
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, _ := s.Load(context.Background(), "ada")
	if got.Mode != mode.Forge || got.Level != 1 {
		t.Errorf("after reopen: %+v", got)
	}
}

func TestSummary(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	outcomes := []tutor.Outcome{
		{ProblemID: "a", NodeID: "n", Provenance: problem.ProvenanceStatic, Correct: true, Difficulty: 1, At: t0},
		{ProblemID: "b", NodeID: "n", Provenance: problem.ProvenanceStatic, Correct: false, Difficulty: 1, At: t0.Add(time.Minute)},
		{ProblemID: "c", Provenance: problem.ProvenanceTemplate, Correct: true, Difficulty: 2, At: t0.Add(2 * time.Minute)},
		{ProblemID: "d", Provenance: problem.ProvenanceAI, Correct: true, Difficulty: 3, At: t0.Add(3 * time.Minute)},
	}
	for _, o := range outcomes {
		if err := s.RecordOutcome(ctx, "ada", o); err != nil {
			t.Fatal(err)
		}
	}
	s.RecordOutcome(ctx, "someone-else", outcomes[0])

	sum, err := s.Summary(ctx, "ada")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Attempts != 4 || sum.Correct != 3 {
		t.Errorf("attempts=%d correct=%d", sum.Attempts, sum.Correct)
	}
	if sum.Accuracy() != 0.75 {
		t.Errorf("Accuracy = %v", sum.Accuracy())
	}
	wantProv := map[problem.Provenance]int{
		problem.ProvenanceStatic:   2,
		problem.ProvenanceTemplate: 1,
		problem.ProvenanceAI:       1,
	}
	if diff := cmp.Diff(wantProv, sum.ByProvenance); diff != "" {
		t.Errorf("ByProvenance (-want +got):\n%s", diff)
	}
	if !sum.LastAnswered.Equal(t0.Add(3 * time.Minute)) {
		t.Errorf("LastAnswered = %v", sum.LastAnswered)
	}
}

func TestSummary_Empty(t *testing.T) {
	sum, err := openStore(t).Summary(context.Background(), "new")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Attempts != 0 || sum.Accuracy() != 0 || !sum.LastAnswered.IsZero() {
		t.Errorf("empty summary = %+v", sum)
	}
	if sum.Mode != mode.Verve || sum.Level != mode.MaxLevel {
		t.Errorf("empty summary = %+v", sum)
	}
}

func TestSeenStatic(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	s.RecordOutcome(ctx, "ada", tutor.Outcome{ProblemID: "a", NodeID: "n1", Provenance: problem.ProvenanceStatic, At: t0})
	s.RecordOutcome(ctx, "ada", tutor.Outcome{ProblemID: "a", NodeID: "n1", Provenance: problem.ProvenanceStatic, At: t0})
	s.RecordOutcome(ctx, "ada", tutor.Outcome{ProblemID: "t", NodeID: "n1", Provenance: problem.ProvenanceTemplate, At: t0})

	seen, err := s.SeenStatic(ctx, "ada")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string][]string{"n1": {"a"}}, seen); diff != "" {
		t.Errorf("SeenStatic (-want +got):\n%s", diff)
	}
}

func TestAttach(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	b := bank.New()
	for _, id := range []string{"p1", "p2"} {
		b.Add("n", "Alpha", problem.Spec{ID: id, Prompt: "3 + 4?", AnswerKey: "7", Difficulty: 1, Concepts: []string{"addition"}})
	}
	init, _ := store.Load(ctx, "ada")
	sess, err := tutor.New(init, tutor.Config{
		Static:        b,
		MasteryStreak: 2,
		Clock:         func() time.Time { return t0 },
		NoWatchdog:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	detach := store.Attach(sess, "ada", nil)
	defer detach()

	for i := 0; i < 2; i++ {
		spec, err := sess.NextProblem(ctx, "n")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := sess.ReportAnswer(spec.ID, "7"); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Load(ctx, "ada")
	if err != nil {
		t.Fatal(err)
	}
	if got.Level != 4 {
		t.Errorf("persisted level = %d, want 4 after mastery", got.Level)
	}
	sum, _ := store.Summary(ctx, "ada")
	if sum.Attempts != 2 || sum.Correct != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

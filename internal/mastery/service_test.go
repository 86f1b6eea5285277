package mastery

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/jeseci/internal/skillgraph"
	"github.com/abhisek/jeseci/internal/store"
)

// testCatalog builds vars -> loops -> recursion plus a standalone concept.
func testCatalog(t *testing.T) *skillgraph.Catalog {
	t.Helper()
	g, err := skillgraph.NewGraph(
		[]skillgraph.Concept{
			{ID: "vars", Name: "Variables", Tier: 1},
			{ID: "loops", Name: "Loops", Tier: 1},
			{ID: "recursion", Name: "Recursion", Tier: 2},
			{ID: "io", Name: "Input and Output", Tier: 1},
		},
		[]skillgraph.Edge{
			{From: "vars", To: "loops"},
			{From: "loops", To: "recursion"},
		},
	)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return skillgraph.NewCatalog(g)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewService(testCatalog(t), WithClock(func() time.Time { return fixed }))
}

func TestGetNode_CreateOnRead(t *testing.T) {
	svc := newTestService(t)

	n, err := svc.GetNode("ada", "vars")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if n.Mastery != 0 || n.Attempts != 0 {
		t.Errorf("new node = %+v, want zero", n)
	}
	if n.Status != StatusUnlocked {
		t.Errorf("Status = %s, want unlocked", n.Status)
	}

	n, err = svc.GetNode("ada", "loops")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if n.Status != StatusLocked {
		t.Errorf("loops Status = %s, want locked", n.Status)
	}
}

func TestGetNode_UnknownConcept(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.GetNode("ada", "quantum"); !errors.Is(err, ErrUnknownConcept) {
		t.Errorf("err = %v, want ErrUnknownConcept", err)
	}
	if _, _, err := svc.ApplyDelta("ada", "quantum", 0.1, "k"); !errors.Is(err, ErrUnknownConcept) {
		t.Errorf("ApplyDelta err = %v, want ErrUnknownConcept", err)
	}
}

func TestApplyDelta_ClampsAndDerivesStatus(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		key        string
		delta      float64
		wantScore  float64
		wantStatus Status
	}{
		{"k1", 0.25, 0.25, StatusInProgress},
		{"k2", 0.625, 0.875, StatusMastered},
		{"k3", 0.5, 1.0, StatusMastered},
		{"k4", -2.0, 0.0, StatusInProgress},
	}
	for _, tt := range tests {
		score, status, err := svc.ApplyDelta("ada", "vars", tt.delta, tt.key)
		if err != nil {
			t.Fatalf("%s: %v", tt.key, err)
		}
		if score != tt.wantScore {
			t.Errorf("%s: score = %v, want %v", tt.key, score, tt.wantScore)
		}
		if status != tt.wantStatus {
			t.Errorf("%s: status = %s, want %s", tt.key, status, tt.wantStatus)
		}
	}
}

func TestApplyDelta_IdempotentKey(t *testing.T) {
	svc := newTestService(t)

	s1, _, err := svc.ApplyDelta("ada", "vars", 0.4, "same")
	if err != nil {
		t.Fatal(err)
	}
	s2, _, err := svc.ApplyDelta("ada", "vars", 0.4, "same")
	if err != nil {
		t.Fatalf("replay should not error: %v", err)
	}
	if s1 != s2 || s2 != 0.4 {
		t.Errorf("scores = %v, %v, want 0.4 twice", s1, s2)
	}
	n, _ := svc.GetNode("ada", "vars")
	if n.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", n.Attempts)
	}

	res, err := svc.Apply(Mutation{Learner: "ada", ConceptID: "vars", Kind: store.KindScore, Delta: 0.4, Key: "same"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Replayed {
		t.Error("expected Replayed = true")
	}
}

func TestIsUnlocked_ThresholdAndRelock(t *testing.T) {
	svc := newTestService(t)

	for _, c := range []string{"vars", "io"} {
		ok, err := svc.IsUnlocked("ada", c)
		if err != nil || !ok {
			t.Errorf("IsUnlocked(%s) = %v, %v; want true", c, ok, err)
		}
	}
	if ok, _ := svc.IsUnlocked("ada", "loops"); ok {
		t.Error("loops should start locked")
	}

	svc.ApplyDelta("ada", "vars", 0.5, "a")
	if ok, _ := svc.IsUnlocked("ada", "loops"); ok {
		t.Error("loops should stay locked below 0.6")
	}
	svc.ApplyDelta("ada", "vars", 0.125, "b")
	if ok, _ := svc.IsUnlocked("ada", "loops"); !ok {
		t.Error("loops should unlock above 0.6")
	}

	// Regression re-locks the dependent.
	svc.ApplyDelta("ada", "vars", -0.25, "c")
	if ok, _ := svc.IsUnlocked("ada", "loops"); ok {
		t.Error("loops should re-lock after regression")
	}
}

func TestContentAttemptsAndViews(t *testing.T) {
	svc := newTestService(t)

	svc.Apply(Mutation{Learner: "ada", ConceptID: "vars", ContentID: "lesson-1", Kind: store.KindView, Key: "v1"})
	svc.Apply(Mutation{Learner: "ada", ConceptID: "vars", ContentID: "quiz-1", Kind: store.KindScore, Delta: 0.2, Key: "s1"})
	svc.Apply(Mutation{Learner: "ada", ConceptID: "vars", ContentID: "quiz-1", Kind: store.KindScore, Delta: 0.2, Key: "s2"})

	n, err := svc.GetNode("ada", "vars")
	if err != nil {
		t.Fatal(err)
	}
	if n.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (views do not count)", n.Attempts)
	}
	if n.ContentAttempts["lesson-1"] != 1 || n.ContentAttempts["quiz-1"] != 2 {
		t.Errorf("ContentAttempts = %v", n.ContentAttempts)
	}
	if want := Confidence(2); n.Confidence != want {
		t.Errorf("Confidence = %v, want %v", n.Confidence, want)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		attempts int
		want     float64
	}{
		{0, 0},
		{1, 0.5},
		{3, 0.75},
		{9, 0.9},
	}
	for _, tt := range tests {
		if got := Confidence(tt.attempts); got != tt.want {
			t.Errorf("Confidence(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestUnlockedConceptsAndState(t *testing.T) {
	svc := newTestService(t)
	svc.ApplyDelta("ada", "vars", 0.7, "a")

	got := svc.UnlockedConcepts("ada")
	want := map[string]bool{"vars": true, "loops": true, "io": true}
	if len(got) != len(want) {
		t.Fatalf("UnlockedConcepts = %v, want %v", got, want)
	}
	for _, id := range got {
		if !want[id] {
			t.Errorf("unexpected unlocked concept %q", id)
		}
	}

	state := svc.State("ada")
	if len(state) != 4 {
		t.Fatalf("State len = %d, want 4", len(state))
	}
	pos := map[string]int{}
	for i, n := range state {
		pos[n.ConceptID] = i
	}
	if pos["vars"] > pos["loops"] || pos["loops"] > pos["recursion"] {
		t.Errorf("State not in topological order: %v", pos)
	}
}

func TestLearnersAreIsolated(t *testing.T) {
	svc := newTestService(t)
	svc.ApplyDelta("ada", "vars", 0.9, "k")

	n, _ := svc.GetNode("grace", "vars")
	if n.Mastery != 0 {
		t.Errorf("grace mastery = %v, want 0", n.Mastery)
	}
	// Same key on a different learner is a distinct mutation.
	score, _, _ := svc.ApplyDelta("grace", "vars", 0.2, "k")
	if score != 0.2 {
		t.Errorf("grace score = %v, want 0.2", score)
	}
}

func TestApply_ConcurrentLearners(t *testing.T) {
	svc := newTestService(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			learner := fmt.Sprintf("l%d", i)
			for j := 0; j < 50; j++ {
				if _, _, err := svc.ApplyDelta(learner, "io", 0.01, fmt.Sprintf("k%d", j)); err != nil {
					t.Errorf("apply: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	for _, l := range svc.Learners() {
		n, _ := svc.GetNode(l, "io")
		if n.Attempts != 50 {
			t.Errorf("%s attempts = %d, want 50", l, n.Attempts)
		}
	}
}

func TestCatalogSwapVisible(t *testing.T) {
	cat := testCatalog(t)
	svc := NewService(cat)

	if err := cat.AddEdge(skillgraph.Edge{From: "io", To: "vars"}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if ok, _ := svc.IsUnlocked("ada", "vars"); ok {
		t.Error("vars should lock once io becomes its prerequisite")
	}
}

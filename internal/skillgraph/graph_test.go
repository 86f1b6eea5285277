package skillgraph

import (
	"errors"
	"testing"
)

// fixture:
//
//	vars ──► loops ──► recursion
//	  │                   ▲
//	  └────► funcs ───────┘
func fixture(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(
		[]Concept{
			{ID: "recursion", Name: "Recursion", Tier: 3},
			{ID: "vars", Name: "Variables", Tier: 1},
			{ID: "loops", Name: "Loops", Tier: 2},
			{ID: "funcs", Name: "Functions", Tier: 2},
		},
		[]Edge{
			{From: "vars", To: "loops"},
			{From: "vars", To: "funcs"},
			{From: "loops", To: "recursion"},
			{From: "funcs", To: "recursion"},
		},
	)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func TestConcept_Lookup(t *testing.T) {
	g := fixture(t)

	c, err := g.Concept("loops")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Loops" || c.Tier != 2 {
		t.Errorf("got %+v", c)
	}

	_, err = g.Concept("nope")
	if !errors.Is(err, ErrUnknownConcept) {
		t.Errorf("got %v, want ErrUnknownConcept", err)
	}
}

func TestPrerequisitesAndDependents(t *testing.T) {
	g := fixture(t)

	prereqs := g.Prerequisites("recursion")
	if len(prereqs) != 2 || prereqs[0] != "funcs" || prereqs[1] != "loops" {
		t.Errorf("Prerequisites(recursion) = %v, want [funcs loops]", prereqs)
	}
	deps := g.Dependents("vars")
	if len(deps) != 2 || deps[0] != "funcs" || deps[1] != "loops" {
		t.Errorf("Dependents(vars) = %v, want [funcs loops]", deps)
	}
	if got := g.Prerequisites("vars"); len(got) != 0 {
		t.Errorf("root has prerequisites: %v", got)
	}
	if got := g.Dependents("missing"); got != nil {
		t.Errorf("unknown concept should have nil dependents, got %v", got)
	}
}

func TestTopologicalOrder(t *testing.T) {
	g := fixture(t)
	topo := g.TopologicalOrder()
	if len(topo) != 4 {
		t.Fatalf("got %d concepts, want 4", len(topo))
	}
	pos := make(map[string]int)
	for i, c := range topo {
		pos[c.ID] = i
	}
	for _, e := range g.Edges() {
		if pos[e.From] >= pos[e.To] {
			t.Errorf("%s (pos %d) should precede %s (pos %d)", e.From, pos[e.From], e.To, pos[e.To])
		}
	}
}

func TestDepthAndRoots(t *testing.T) {
	g := fixture(t)
	tests := map[string]int{"vars": 0, "loops": 1, "funcs": 1, "recursion": 2}
	for id, want := range tests {
		if got := g.Depth(id); got != want {
			t.Errorf("Depth(%s) = %d, want %d", id, got, want)
		}
	}
	roots := g.Roots()
	if len(roots) != 1 || roots[0].ID != "vars" {
		t.Errorf("Roots() = %v", roots)
	}
	if g.MaxTier() != 3 {
		t.Errorf("MaxTier() = %d, want 3", g.MaxTier())
	}
}

func TestReachable(t *testing.T) {
	g := fixture(t)
	if !g.Reachable("vars", "recursion") {
		t.Error("recursion should be reachable from vars")
	}
	if g.Reachable("recursion", "vars") {
		t.Error("vars should not be reachable from recursion")
	}
	if g.Reachable("loops", "funcs") {
		t.Error("siblings should not reach each other")
	}
}

func TestWithEdge_RejectsCycle(t *testing.T) {
	g := fixture(t)
	before := len(g.Edges())

	_, err := g.WithEdge(Edge{From: "recursion", To: "vars"})
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("got %v, want ErrCycle", err)
	}
	_, err = g.WithEdge(Edge{From: "loops", To: "loops"})
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("self edge: got %v, want ErrCycle", err)
	}
	if len(g.Edges()) != before {
		t.Error("graph was modified by a rejected edge")
	}
}

func TestWithEdge_Accepts(t *testing.T) {
	g := fixture(t)
	next, err := g.WithEdge(Edge{From: "loops", To: "funcs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := next.Prerequisites("funcs"); len(got) != 2 {
		t.Errorf("funcs prerequisites = %v, want 2", got)
	}
	if got := g.Prerequisites("funcs"); len(got) != 1 {
		t.Errorf("original graph modified: %v", got)
	}
	if next.Depth("recursion") != 3 {
		t.Errorf("Depth(recursion) = %d, want 3", next.Depth("recursion"))
	}
}

func TestWithEdge_UnknownConcept(t *testing.T) {
	g := fixture(t)
	_, err := g.WithEdge(Edge{From: "vars", To: "ghost"})
	if !errors.Is(err, ErrUnknownConcept) {
		t.Errorf("got %v, want ErrUnknownConcept", err)
	}
}

func TestConcepts_ReturnsCopy(t *testing.T) {
	g := fixture(t)
	a := g.Concepts()
	a[0].Name = "MUTATED"
	if g.Concepts()[0].Name == "MUTATED" {
		t.Error("Concepts did not return a copy")
	}
}

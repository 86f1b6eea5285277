package skillgraph

import (
	"errors"
	"strings"
	"testing"
)

func TestNewGraph_Validation(t *testing.T) {
	tests := []struct {
		name     string
		concepts []Concept
		edges    []Edge
		wantErr  error
		contains string
	}{
		{
			name:     "duplicate id",
			concepts: []Concept{{ID: "a", Tier: 1}, {ID: "a", Tier: 1}},
			contains: "duplicate concept ID",
		},
		{
			name:     "bad tier",
			concepts: []Concept{{ID: "a", Tier: 0}},
			contains: "tier must be >= 1",
		},
		{
			name:     "dangling edge",
			concepts: []Concept{{ID: "a", Tier: 1}},
			edges:    []Edge{{From: "a", To: "b"}},
			wantErr:  ErrUnknownConcept,
		},
		{
			name:     "two node cycle",
			concepts: []Concept{{ID: "a", Tier: 1}, {ID: "b", Tier: 1}},
			edges:    []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
			wantErr:  ErrCycle,
			contains: "a, b",
		},
		{
			name:     "self loop",
			concepts: []Concept{{ID: "a", Tier: 1}},
			edges:    []Edge{{From: "a", To: "a"}},
			wantErr:  ErrCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.concepts, tt.edges)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err, tt.contains)
			}
		})
	}
}

func TestNewGraph_DuplicateEdgeCollapsed(t *testing.T) {
	g, err := NewGraph(
		[]Concept{{ID: "a", Tier: 1}, {ID: "b", Tier: 1}},
		[]Edge{{From: "a", To: "b"}, {From: "a", To: "b"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Prerequisites("b"); len(got) != 1 {
		t.Errorf("Prerequisites(b) = %v, want one entry", got)
	}
}

func TestCatalog_AddEdge(t *testing.T) {
	cat := NewCatalog(fixture(t))
	old := cat.Graph()

	if err := cat.AddEdge(Edge{From: "recursion", To: "vars"}); !errors.Is(err, ErrCycle) {
		t.Fatalf("got %v, want ErrCycle", err)
	}
	if cat.Graph() != old {
		t.Error("graph swapped despite rejected edge")
	}

	if err := cat.AddEdge(Edge{From: "loops", To: "funcs"}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if cat.Graph() == old {
		t.Error("graph not swapped after accepted edge")
	}
	if len(old.Prerequisites("funcs")) != 1 {
		t.Error("old graph mutated")
	}
}

func TestCatalog_AddConcept(t *testing.T) {
	cat := NewCatalog(fixture(t))
	if err := cat.AddConcept(Concept{ID: "closures", Tier: 3}); err != nil {
		t.Fatalf("AddConcept: %v", err)
	}
	if !cat.Graph().Has("closures") {
		t.Error("new concept not visible")
	}
	if err := cat.AddConcept(Concept{ID: "vars", Tier: 1}); err == nil {
		t.Error("expected duplicate error")
	}
}

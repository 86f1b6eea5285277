package skillgraph

import (
	"fmt"
	"slices"
	"sort"
)

// Graph is an immutable, arena-indexed prerequisite DAG. Concepts live in a
// slice and every edge is an index into it, so revising a concept never
// invalidates references held elsewhere.
type Graph struct {
	concepts   []Concept
	index      map[string]int
	prereqs    [][]int
	dependents [][]int
	topo       []int
	depth      []int
}

// NewGraph validates the concepts and edges and builds the graph indices.
func NewGraph(concepts []Concept, edges []Edge) (*Graph, error) {
	if err := validate(concepts, edges); err != nil {
		return nil, err
	}
	return build(concepts, edges), nil
}

// build constructs indices for an already validated concept/edge set.
func build(concepts []Concept, edges []Edge) *Graph {
	g := &Graph{
		concepts:   slices.Clone(concepts),
		index:      make(map[string]int, len(concepts)),
		prereqs:    make([][]int, len(concepts)),
		dependents: make([][]int, len(concepts)),
	}
	for i, c := range g.concepts {
		g.index[c.ID] = i
	}
	for _, e := range edges {
		from, to := g.index[e.From], g.index[e.To]
		if slices.Contains(g.prereqs[to], from) {
			continue
		}
		g.prereqs[to] = append(g.prereqs[to], from)
		g.dependents[from] = append(g.dependents[from], to)
	}
	for i := range g.concepts {
		sort.Slice(g.prereqs[i], g.byID(g.prereqs[i]))
		sort.Slice(g.dependents[i], g.byID(g.dependents[i]))
	}

	// Kahn's algorithm; the initial queue and each dependent batch are in ID
	// order so the result is deterministic.
	inDegree := make([]int, len(g.concepts))
	for i := range g.concepts {
		inDegree[i] = len(g.prereqs[i])
	}
	var queue []int
	for i := range g.concepts {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	sort.Slice(queue, g.byID(queue))

	g.depth = make([]int, len(g.concepts))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		g.topo = append(g.topo, i)
		for _, d := range g.dependents[i] {
			if g.depth[i]+1 > g.depth[d] {
				g.depth[d] = g.depth[i] + 1
			}
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	return g
}

func (g *Graph) byID(idx []int) func(a, b int) bool {
	return func(a, b int) bool {
		return g.concepts[idx[a]].ID < g.concepts[idx[b]].ID
	}
}

// Len returns the number of concepts.
func (g *Graph) Len() int { return len(g.concepts) }

// Has reports whether the concept exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Concept returns a concept by ID.
func (g *Graph) Concept(id string) (Concept, error) {
	i, ok := g.index[id]
	if !ok {
		return Concept{}, fmt.Errorf("%w: %q", ErrUnknownConcept, id)
	}
	return g.concepts[i], nil
}

// Concepts returns all concepts in authoring order.
func (g *Graph) Concepts() []Concept {
	return slices.Clone(g.concepts)
}

// Edges returns every prerequisite edge, ordered by target then source.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, to := range g.topo {
		for _, from := range g.prereqs[to] {
			edges = append(edges, Edge{From: g.concepts[from].ID, To: g.concepts[to].ID})
		}
	}
	return edges
}

// Prerequisites returns the IDs of the direct prerequisites of id.
func (g *Graph) Prerequisites(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.ids(g.prereqs[i])
}

// Dependents returns the IDs of concepts that list id as a direct prerequisite.
func (g *Graph) Dependents(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.ids(g.dependents[i])
}

// Roots returns concepts with no prerequisites, in topological order.
func (g *Graph) Roots() []Concept {
	var out []Concept
	for _, i := range g.topo {
		if len(g.prereqs[i]) == 0 {
			out = append(out, g.concepts[i])
		}
	}
	return out
}

// TopologicalOrder returns all concepts such that every prerequisite
// precedes its dependents.
func (g *Graph) TopologicalOrder() []Concept {
	out := make([]Concept, len(g.topo))
	for k, i := range g.topo {
		out[k] = g.concepts[i]
	}
	return out
}

// Depth returns the longest prerequisite chain leading to id (roots are 0).
func (g *Graph) Depth(id string) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	return g.depth[i]
}

// MaxTier returns the highest difficulty tier in the graph.
func (g *Graph) MaxTier() int {
	highest := 0
	for _, c := range g.concepts {
		if c.Tier > highest {
			highest = c.Tier
		}
	}
	return highest
}

// Reachable reports whether to can be reached from from by following
// prerequisite edges forward (from a prerequisite to its dependents).
func (g *Graph) Reachable(from, to string) bool {
	src, ok := g.index[from]
	if !ok {
		return false
	}
	dst, ok := g.index[to]
	if !ok {
		return false
	}

	seen := make([]bool, len(g.concepts))
	stack := []int{src}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == dst {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.dependents[n]...)
	}
	return false
}

// WithEdge returns a new graph with the edge added. The receiver is not
// modified. An edge that would close a cycle is rejected with ErrCycle.
func (g *Graph) WithEdge(e Edge) (*Graph, error) {
	if !g.Has(e.From) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConcept, e.From)
	}
	if !g.Has(e.To) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConcept, e.To)
	}
	if e.From == e.To || g.Reachable(e.To, e.From) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrCycle, e.From, e.To)
	}
	return build(g.concepts, append(g.Edges(), e)), nil
}

// WithConcept returns a new graph with an additional concept.
func (g *Graph) WithConcept(c Concept) (*Graph, error) {
	concepts := append(g.Concepts(), c)
	return NewGraph(concepts, g.Edges())
}

func (g *Graph) ids(idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = g.concepts[i].ID
	}
	return out
}

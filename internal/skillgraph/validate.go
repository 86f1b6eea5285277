package skillgraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// validate performs all structural checks on a concept/edge set.
// It returns one error describing every problem found, or nil.
func validate(concepts []Concept, edges []Edge) error {
	var errs []error

	ids := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		switch {
		case c.ID == "":
			errs = append(errs, errors.New("concept with empty ID"))
		case ids[c.ID]:
			errs = append(errs, fmt.Errorf("duplicate concept ID: %q", c.ID))
		}
		ids[c.ID] = true
		if c.Tier < 1 {
			errs = append(errs, fmt.Errorf("concept %q: tier must be >= 1, got %d", c.ID, c.Tier))
		}
	}

	for _, e := range edges {
		if !ids[e.From] {
			errs = append(errs, fmt.Errorf("edge %s -> %s: %w %q", e.From, e.To, ErrUnknownConcept, e.From))
		}
		if !ids[e.To] {
			errs = append(errs, fmt.Errorf("edge %s -> %s: %w %q", e.From, e.To, ErrUnknownConcept, e.To))
		}
		if e.From == e.To {
			errs = append(errs, fmt.Errorf("%w: self-referential edge on %q", ErrCycle, e.From))
		}
	}

	if cyc := cycleNodes(concepts, edges, ids); len(cyc) > 0 {
		errs = append(errs, fmt.Errorf("%w involving concepts: %s", ErrCycle, strings.Join(cyc, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog graph validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// cycleNodes runs Kahn's algorithm over the known edges and returns the IDs
// left with a positive in-degree, i.e. nodes on or behind a cycle.
func cycleNodes(concepts []Concept, edges []Edge, ids map[string]bool) []string {
	inDegree := make(map[string]int, len(concepts))
	adj := make(map[string][]string)
	seen := make(map[Edge]bool, len(edges))
	for _, c := range concepts {
		inDegree[c.ID] = 0
	}
	for _, e := range edges {
		if !ids[e.From] || !ids[e.To] || e.From == e.To || seen[e] {
			continue
		}
		seen[e] = true
		inDegree[e.To]++
		adj[e.From] = append(adj[e.From], e.To)
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range adj[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited == len(inDegree) {
		return nil
	}

	var stuck []string
	for id, deg := range inDegree {
		if deg > 0 {
			stuck = append(stuck, id)
		}
	}
	sort.Strings(stuck)
	return stuck
}

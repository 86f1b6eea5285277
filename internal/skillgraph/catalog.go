package skillgraph

import "sync/atomic"

// Catalog holds the current shared graph. Readers never lock; administrative
// edits build a fully validated replacement and swap it in atomically.
type Catalog struct {
	cur atomic.Pointer[Graph]
}

// NewCatalog creates a catalog serving g.
func NewCatalog(g *Graph) *Catalog {
	c := &Catalog{}
	c.cur.Store(g)
	return c
}

// Graph returns the graph currently in service.
func (c *Catalog) Graph() *Graph {
	return c.cur.Load()
}

// AddEdge inserts a prerequisite edge. The graph in service is left
// unchanged when the edge is rejected.
func (c *Catalog) AddEdge(e Edge) error {
	for {
		old := c.cur.Load()
		next, err := old.WithEdge(e)
		if err != nil {
			return err
		}
		if c.cur.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// AddConcept inserts a new concept.
func (c *Catalog) AddConcept(concept Concept) error {
	for {
		old := c.cur.Load()
		next, err := old.WithConcept(concept)
		if err != nil {
			return err
		}
		if c.cur.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// Replace swaps in a graph built elsewhere, e.g. from a reloaded catalog file.
// The new graph is re-validated in full before it goes live.
func (c *Catalog) Replace(g *Graph) error {
	checked, err := NewGraph(g.Concepts(), g.Edges())
	if err != nil {
		return err
	}
	c.cur.Store(checked)
	return nil
}

package skillgraph

import "errors"

var (
	// ErrUnknownConcept is returned when a concept ID is absent from the catalog graph.
	ErrUnknownConcept = errors.New("unknown concept")

	// ErrCycle is returned when a prerequisite edge would make the graph cyclic.
	ErrCycle = errors.New("prerequisite cycle")
)

// Concept is a unit of knowledge in the shared catalog graph.
// Concepts are immutable once authored.
type Concept struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Tier        int    `yaml:"tier" json:"tier"` // difficulty tier, 1..N
}

// Edge is a prerequisite relation: From must be learned before To unlocks.
type Edge struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

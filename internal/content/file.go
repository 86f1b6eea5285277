package content

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/jeseci/internal/skillgraph"
)

// File is the on-disk catalog: the shared concept graph plus the lessons
// and quizzes tagged to it.
type File struct {
	Concepts []skillgraph.Concept `yaml:"concepts"`
	Edges    []skillgraph.Edge    `yaml:"edges"`
	Lessons  []Ref                `yaml:"lessons"`
	Quizzes  []Quiz               `yaml:"quizzes"`
}

// Catalog is a loaded catalog file.
type Catalog struct {
	Graph *skillgraph.Graph
	Index *StaticIndex
}

// LoadFile reads and validates a YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return f.Build()
}

// Build validates the file and constructs the graph and index.
func (f File) Build() (*Catalog, error) {
	g, err := skillgraph.NewGraph(f.Concepts, f.Edges)
	if err != nil {
		return nil, err
	}
	for _, l := range f.Lessons {
		if !g.Has(l.ConceptID) {
			return nil, fmt.Errorf("lesson %q: %w %q", l.ID, skillgraph.ErrUnknownConcept, l.ConceptID)
		}
	}
	for _, q := range f.Quizzes {
		if !g.Has(q.ConceptID) {
			return nil, fmt.Errorf("quiz %q: %w %q", q.ID, skillgraph.ErrUnknownConcept, q.ConceptID)
		}
		for _, question := range q.Questions {
			if question.Type.Structured() && question.Answer == "" {
				return nil, fmt.Errorf("quiz %q question %q: answer key required for %s", q.ID, question.ID, question.Type)
			}
		}
	}
	idx, err := NewStaticIndex(f.Lessons, f.Quizzes)
	if err != nil {
		return nil, err
	}
	return &Catalog{Graph: g, Index: idx}, nil
}

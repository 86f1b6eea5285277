package content

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// StaticIndex is an in-memory Index and QuizSource built from catalog items.
// It is immutable after construction.
type StaticIndex struct {
	byConcept map[string]map[int][]Ref
	quizzes   map[string]Quiz
}

// NewStaticIndex builds an index from lessons and quizzes.
func NewStaticIndex(lessons []Ref, quizzes []Quiz) (*StaticIndex, error) {
	idx := &StaticIndex{
		byConcept: make(map[string]map[int][]Ref),
		quizzes:   make(map[string]Quiz, len(quizzes)),
	}
	seen := make(map[string]bool)

	add := func(r Ref) error {
		if r.ID == "" {
			return fmt.Errorf("%s with empty ID", r.Kind)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate content ID: %q", r.ID)
		}
		if r.Tier < 0 {
			return fmt.Errorf("content %q: tier must be >= 0, got %d", r.ID, r.Tier)
		}
		seen[r.ID] = true
		tiers, ok := idx.byConcept[r.ConceptID]
		if !ok {
			tiers = make(map[int][]Ref)
			idx.byConcept[r.ConceptID] = tiers
		}
		tiers[r.Tier] = append(tiers[r.Tier], r)
		return nil
	}

	for _, l := range lessons {
		l.Kind = KindLesson
		if err := add(l); err != nil {
			return nil, err
		}
	}
	for _, q := range quizzes {
		q.Kind = KindQuiz
		if len(q.Questions) == 0 {
			return nil, fmt.Errorf("quiz %q has no questions", q.ID)
		}
		if err := add(q.Ref); err != nil {
			return nil, err
		}
		idx.quizzes[q.ID] = q
	}

	for _, tiers := range idx.byConcept {
		for _, refs := range tiers {
			sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
		}
	}
	return idx, nil
}

// LookupCandidates implements Index.
func (s *StaticIndex) LookupCandidates(_ context.Context, conceptID string, tier int) ([]Ref, error) {
	return slices.Clone(s.byConcept[conceptID][tier]), nil
}

// Quiz implements QuizSource.
func (s *StaticIndex) Quiz(_ context.Context, id string) (Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return Quiz{}, fmt.Errorf("%w: %q", ErrQuizNotFound, id)
	}
	return q, nil
}

// Concepts returns the concept IDs that have at least one item.
func (s *StaticIndex) Concepts() []string {
	out := make([]string, 0, len(s.byConcept))
	for id := range s.byConcept {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Items returns every item for a concept ordered by tier, then ID.
func (s *StaticIndex) Items(conceptID string) []Ref {
	var out []Ref
	for _, refs := range s.byConcept[conceptID] {
		out = append(out, refs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].ID < out[j].ID
	})
	return out
}

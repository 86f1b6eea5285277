// Package mastery implements the Mastery Graph Store: per-learner mastery
// nodes over the shared catalog graph.
package mastery

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/abhisek/jeseci/internal/skillgraph"
	"github.com/abhisek/jeseci/internal/store"
)

// ErrUnknownConcept is returned for concepts absent from the catalog graph.
var ErrUnknownConcept = skillgraph.ErrUnknownConcept

// GraphSource provides the current catalog graph. skillgraph.Catalog
// implements it.
type GraphSource interface {
	Graph() *skillgraph.Graph
}

// Mutation is a single change to a learner node.
type Mutation struct {
	Learner   string
	ConceptID string
	ContentID string
	Kind      store.Kind
	Delta     float64
	Key       string    // idempotency key
	At        time.Time // zero means now

	// Score, when set, replaces the score outright instead of applying
	// Delta. Replay uses it so the view matches the log exactly.
	Score *float64
}

// Result is the outcome of applying a mutation.
type Result struct {
	Score    float64
	Status   Status
	Replayed bool // key had already been applied; nothing changed
}

type record struct {
	score    float64
	attempts int
	updated  time.Time
	content  map[string]int
}

type learnerState struct {
	mu      sync.RWMutex
	nodes   map[string]*record
	applied map[string]Result
}

// Service is the Mastery Graph Store. Learner state is sharded so that
// operations on different learners never contend.
type Service struct {
	graphs     GraphSource
	thresholds Thresholds
	now        func() time.Time

	learners sync.Map // learner ID -> *learnerState
}

// Option configures a Service.
type Option func(*Service)

// WithThresholds overrides the default status thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *Service) { s.thresholds = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an empty store over the given catalog.
func NewService(graphs GraphSource, opts ...Option) *Service {
	s := &Service{
		graphs:     graphs,
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Thresholds returns the configured thresholds.
func (s *Service) Thresholds() Thresholds { return s.thresholds }

func (s *Service) learner(id string) *learnerState {
	if ls, ok := s.learners.Load(id); ok {
		return ls.(*learnerState)
	}
	ls, _ := s.learners.LoadOrStore(id, &learnerState{
		nodes:   make(map[string]*record),
		applied: make(map[string]Result),
	})
	return ls.(*learnerState)
}

func (s *Service) check(g *skillgraph.Graph, conceptID string) error {
	if !g.Has(conceptID) {
		return fmt.Errorf("%w: %q", ErrUnknownConcept, conceptID)
	}
	return nil
}

// score returns the learner's score for a concept, zero if never touched.
// Caller holds ls.mu.
func (ls *learnerState) score(conceptID string) float64 {
	if r, ok := ls.nodes[conceptID]; ok {
		return r.score
	}
	return 0
}

// prereqsMet reports whether every prerequisite meets the unlock threshold.
// Caller holds ls.mu.
func (s *Service) prereqsMet(g *skillgraph.Graph, ls *learnerState, conceptID string) bool {
	for _, p := range g.Prerequisites(conceptID) {
		if ls.score(p) < s.thresholds.Unlock {
			return false
		}
	}
	return true
}

// node builds the read view. Caller holds ls.mu.
func (s *Service) node(g *skillgraph.Graph, ls *learnerState, learner, conceptID string) Node {
	n := Node{Learner: learner, ConceptID: conceptID, ContentAttempts: map[string]int{}}
	if r, ok := ls.nodes[conceptID]; ok {
		n.Mastery = r.score
		n.Attempts = r.attempts
		n.UpdatedAt = r.updated
		for k, v := range r.content {
			n.ContentAttempts[k] = v
		}
	}
	n.Confidence = Confidence(n.Attempts)
	n.Status = s.thresholds.derive(n.Mastery, n.Attempts, s.prereqsMet(g, ls, conceptID))
	return n
}

// GetNode returns the learner's node for a concept, creating it on first
// touch.
func (s *Service) GetNode(learner, conceptID string) (Node, error) {
	g := s.graphs.Graph()
	if err := s.check(g, conceptID); err != nil {
		return Node{}, err
	}
	ls := s.learner(learner)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if _, ok := ls.nodes[conceptID]; !ok {
		ls.nodes[conceptID] = &record{content: make(map[string]int)}
	}
	return s.node(g, ls, learner, conceptID), nil
}

// IsUnlocked reports whether every prerequisite of the concept meets the
// unlock threshold. Concepts without prerequisites are always unlocked.
func (s *Service) IsUnlocked(learner, conceptID string) (bool, error) {
	g := s.graphs.Graph()
	if err := s.check(g, conceptID); err != nil {
		return false, err
	}
	ls := s.learner(learner)

	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return s.prereqsMet(g, ls, conceptID), nil
}

// ApplyDelta adds delta to the learner's score, clamped to [0, 1]. A key
// that was already applied returns the earlier result without error.
func (s *Service) ApplyDelta(learner, conceptID string, delta float64, key string) (float64, Status, error) {
	res, err := s.Apply(Mutation{
		Learner:   learner,
		ConceptID: conceptID,
		Kind:      store.KindScore,
		Delta:     delta,
		Key:       key,
	})
	if err != nil {
		return 0, "", err
	}
	return res.Score, res.Status, nil
}

// Apply is the single mutation entry point.
func (s *Service) Apply(m Mutation) (Result, error) {
	if m.Key == "" {
		return Result{}, errors.New("mutation requires an idempotency key")
	}
	g := s.graphs.Graph()
	if err := s.check(g, m.ConceptID); err != nil {
		return Result{}, err
	}
	ls := s.learner(m.Learner)

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if prior, ok := ls.applied[m.Key]; ok {
		prior.Replayed = true
		return prior, nil
	}

	r, ok := ls.nodes[m.ConceptID]
	if !ok {
		r = &record{content: make(map[string]int)}
		ls.nodes[m.ConceptID] = r
	}

	if m.Score != nil {
		r.score = Clamp(*m.Score)
	} else {
		r.score = Clamp(r.score + m.Delta)
	}
	if m.Kind != store.KindView {
		r.attempts++
	}
	if m.ContentID != "" {
		r.content[m.ContentID]++
	}
	r.updated = m.At
	if r.updated.IsZero() {
		r.updated = s.now()
	}

	res := Result{
		Score:  r.score,
		Status: s.thresholds.derive(r.score, r.attempts, s.prereqsMet(g, ls, m.ConceptID)),
	}
	ls.applied[m.Key] = res
	return res, nil
}

// Statuses returns the current status of each listed concept. Unknown
// concepts are skipped.
func (s *Service) Statuses(learner string, conceptIDs []string) map[string]Status {
	g := s.graphs.Graph()
	ls := s.learner(learner)

	ls.mu.RLock()
	defer ls.mu.RUnlock()
	out := make(map[string]Status, len(conceptIDs))
	for _, id := range conceptIDs {
		if !g.Has(id) {
			continue
		}
		n := s.node(g, ls, learner, id)
		out[id] = n.Status
	}
	return out
}

// State returns a node for every catalog concept in topological order.
func (s *Service) State(learner string) []Node {
	g := s.graphs.Graph()
	ls := s.learner(learner)

	ls.mu.RLock()
	defer ls.mu.RUnlock()
	order := g.TopologicalOrder()
	out := make([]Node, 0, len(order))
	for _, c := range order {
		out = append(out, s.node(g, ls, learner, c.ID))
	}
	return out
}

// UnlockedConcepts returns, in topological order, every concept whose
// prerequisites the learner has met.
func (s *Service) UnlockedConcepts(learner string) []string {
	var out []string
	for _, n := range s.State(learner) {
		if n.Status != StatusLocked {
			out = append(out, n.ConceptID)
		}
	}
	return out
}

// Learners returns the IDs of every learner with state, sorted.
func (s *Service) Learners() []string {
	var out []string
	s.learners.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}

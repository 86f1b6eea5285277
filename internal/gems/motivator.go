// Package gems is the Motivator: it turns committed transactions into
// badges, streak milestones and unlock notices without touching mastery
// state.
package gems

import (
	"fmt"
	"sync/atomic"

	"github.com/abhisek/jeseci/internal/mastery"
	"github.com/abhisek/jeseci/internal/progress"
	"github.com/abhisek/jeseci/internal/skillgraph"
	"github.com/abhisek/jeseci/internal/store"
)

// DefaultCorrectThreshold is the correctness an answer needs to extend a
// streak.
const DefaultCorrectThreshold = 0.85

type depthCache struct {
	graph *skillgraph.Graph
	depth *DepthMap
}

// Motivator computes side effects. OnTransaction depends only on its
// arguments and the catalog graph.
type Motivator struct {
	graphs    mastery.GraphSource
	correctAt float64
	cache     atomic.Pointer[depthCache]
}

// NewMotivator creates a Motivator over the catalog. correctAt <= 0 uses
// DefaultCorrectThreshold.
func NewMotivator(graphs mastery.GraphSource, correctAt float64) *Motivator {
	if correctAt <= 0 {
		correctAt = DefaultCorrectThreshold
	}
	return &Motivator{graphs: graphs, correctAt: correctAt}
}

// depthMap returns the depth map for the graph in service, recomputing it
// after a catalog swap.
func (m *Motivator) depthMap() (*skillgraph.Graph, *DepthMap) {
	g := m.graphs.Graph()
	if c := m.cache.Load(); c != nil && c.graph == g {
		return g, c.depth
	}
	dm := ComputeDepthMap(g)
	m.cache.Store(&depthCache{graph: g, depth: dm})
	return g, dm
}

// Correct reports whether a correctness value extends a streak.
func (m *Motivator) Correct(correctness float64) bool {
	return correctness >= m.correctAt
}

// OnTransaction returns the side effects of a commit given the learner's
// engagement summary before it. Replays produce nothing.
func (m *Motivator) OnTransaction(out progress.Outcome, sum Summary) []SideEffect {
	if out.Replayed {
		return nil
	}
	tx := out.Transaction
	g, dm := m.depthMap()
	name := conceptName(g, tx.Concept)

	base := SideEffect{Learner: tx.Learner, Sequence: tx.Sequence, At: tx.Timestamp}
	var effects []SideEffect

	if tx.Kind == store.KindScore {
		if m.Correct(out.Correctness) {
			streak := sum.Streak + 1
			if streak == NextStreakThreshold(sum.Streak) {
				e := base
				e.Kind = EffectStreakMilestone
				e.Streak = streak
				e.Badge = &Badge{Type: BadgeStreak, Rarity: StreakRarity(streak), Reason: fmt.Sprintf("%d correct in a row!", streak)}
				e.Message = e.Badge.Reason
				effects = append(effects, e)
			}
		}

		switch {
		case out.Before != mastery.StatusMastered && out.After == mastery.StatusMastered:
			e := base
			e.Kind = EffectBadgeAwarded
			e.ConceptID = tx.Concept
			if sum.EverMastered[tx.Concept] {
				e.Badge = &Badge{Type: BadgeRecovery, Rarity: dm.RarityForConcept(tx.Concept), Reason: fmt.Sprintf("Recovered %s", name)}
			} else {
				e.Badge = &Badge{Type: BadgeMastery, Rarity: dm.RarityForConcept(tx.Concept), Reason: fmt.Sprintf("Mastered %s", name)}
			}
			e.Message = e.Badge.Reason
			effects = append(effects, e)

		case out.Before == mastery.StatusMastered && out.After != mastery.StatusMastered:
			e := base
			e.Kind = EffectMasteryRegressed
			e.ConceptID = tx.Concept
			e.Message = fmt.Sprintf("%s is getting rusty", name)
			effects = append(effects, e)
		}
	}

	for _, u := range out.Unlocked {
		e := base
		e.Kind = EffectConceptUnlocked
		e.ConceptID = u.ConceptID
		e.Message = fmt.Sprintf("Unlocked %s", conceptName(g, u.ConceptID))
		effects = append(effects, e)
	}
	for _, r := range out.Relocked {
		e := base
		e.Kind = EffectConceptRelocked
		e.ConceptID = r.ConceptID
		e.Message = fmt.Sprintf("%s is locked again until %s is refreshed", conceptName(g, r.ConceptID), name)
		effects = append(effects, e)
	}
	return effects
}

func conceptName(g *skillgraph.Graph, id string) string {
	if c, err := g.Concept(id); err == nil && c.Name != "" {
		return c.Name
	}
	return id
}

// Package curator implements the Curator: it picks the next lesson or quiz
// for a learner on a concept.
package curator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/abhisek/jeseci/internal/content"
	"github.com/abhisek/jeseci/internal/mastery"
)

var (
	// ErrLocked is returned when the concept's prerequisites are not met.
	ErrLocked = errors.New("concept is locked")

	// ErrNoContent is returned when the catalog has no item for the concept
	// at any tier.
	ErrNoContent = errors.New("no content available for concept")
)

// DefaultTierCount is the number of difficulty tiers content is tagged with.
const DefaultTierCount = 3

// MasteryReader is the read side of the mastery store the Curator needs.
type MasteryReader interface {
	GetNode(learner, conceptID string) (mastery.Node, error)
}

// Curator selects content. It never mutates mastery state.
type Curator struct {
	mastery   MasteryReader
	index     content.Index
	tierCount int
}

// New creates a Curator. tierCount <= 0 selects DefaultTierCount.
func New(m MasteryReader, idx content.Index, tierCount int) *Curator {
	if tierCount <= 0 {
		tierCount = DefaultTierCount
	}
	return &Curator{mastery: m, index: idx, tierCount: tierCount}
}

// TargetTier maps a mastery score to a difficulty tier in [0, tierCount).
func TargetTier(score float64, tierCount int) int {
	t := int(math.Floor(score * float64(tierCount)))
	if t >= tierCount {
		t = tierCount - 1
	}
	if t < 0 {
		t = 0
	}
	return t
}

// probeOrder lists tiers from target outward, lower tier first on ties.
func probeOrder(target, tierCount int) []int {
	order := []int{target}
	for d := 1; d < tierCount; d++ {
		if lo := target - d; lo >= 0 {
			order = append(order, lo)
		}
		if hi := target + d; hi < tierCount {
			order = append(order, hi)
		}
	}
	return order
}

// SelectNext returns the item the learner should see next for the concept.
func (c *Curator) SelectNext(ctx context.Context, learner, conceptID string) (content.Ref, error) {
	node, err := c.mastery.GetNode(learner, conceptID)
	if err != nil {
		return content.Ref{}, err
	}
	if node.Status == mastery.StatusLocked {
		return content.Ref{}, fmt.Errorf("%w: %q", ErrLocked, conceptID)
	}

	for _, tier := range probeOrder(TargetTier(node.Mastery, c.tierCount), c.tierCount) {
		refs, err := c.index.LookupCandidates(ctx, conceptID, tier)
		if err != nil {
			return content.Ref{}, fmt.Errorf("lookup candidates for %q tier %d: %w", conceptID, tier, err)
		}
		if len(refs) > 0 {
			return pick(refs, node.ContentAttempts), nil
		}
	}
	return content.Ref{}, fmt.Errorf("%w: %q", ErrNoContent, conceptID)
}

// pick prefers the item the learner has attempted least, then the lowest ID.
func pick(refs []content.Ref, attempts map[string]int) content.Ref {
	sorted := make([]content.Ref, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool {
		ai, aj := attempts[sorted[i].ID], attempts[sorted[j].ID]
		if ai != aj {
			return ai < aj
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

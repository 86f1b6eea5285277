package gems

import (
	"sort"

	"github.com/abhisek/jeseci/internal/skillgraph"
)

// DepthMap holds the DAG depth for each concept and the quartile boundaries.
type DepthMap struct {
	Depths     map[string]int // concept ID → depth (longest path from a root)
	Boundaries [3]int         // Q1/Q2, Q2/Q3, Q3/Q4 boundaries
}

// ComputeDepthMap computes depths for every concept in g and the quartile
// boundaries of their distribution.
func ComputeDepthMap(g *skillgraph.Graph) *DepthMap {
	concepts := g.Concepts()
	depths := make(map[string]int, len(concepts))
	vals := make([]int, 0, len(concepts))
	for _, c := range concepts {
		d := g.Depth(c.ID)
		depths[c.ID] = d
		vals = append(vals, d)
	}
	sort.Ints(vals)

	n := len(vals)
	var boundaries [3]int
	if n > 0 {
		boundaries = [3]int{
			vals[n/4],   // Q1/Q2 boundary
			vals[n/2],   // Q2/Q3 boundary
			vals[3*n/4], // Q3/Q4 boundary
		}
	}

	return &DepthMap{Depths: depths, Boundaries: boundaries}
}

// RarityForConcept returns the rarity based on a concept's DAG depth.
func (dm *DepthMap) RarityForConcept(conceptID string) Rarity {
	depth := dm.Depths[conceptID]
	switch {
	case depth > dm.Boundaries[2]:
		return RarityLegendary
	case depth > dm.Boundaries[1]:
		return RarityEpic
	case depth > dm.Boundaries[0]:
		return RarityRare
	default:
		return RarityCommon
	}
}

package mastery

import (
	"math"
	"time"
)

// Status is a learner's derived position on a concept. It is never stored;
// it is computed from mastery scores at read time.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusUnlocked   Status = "unlocked"
	StatusInProgress Status = "in_progress"
	StatusMastered   Status = "mastered"
)

// Thresholds holds the score boundaries used to derive status.
type Thresholds struct {
	Unlock   float64 // prerequisite score needed to unlock dependents
	Mastered float64 // score at which a concept counts as mastered
}

// DefaultThresholds returns the standard unlock and mastery thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Unlock: 0.6, Mastered: 0.85}
}

// Node is a learner's mastery of one concept.
type Node struct {
	Learner    string
	ConceptID  string
	Mastery    float64
	Attempts   int
	Confidence float64
	Status     Status
	UpdatedAt  time.Time

	// ContentAttempts counts submissions and views per content item.
	ContentAttempts map[string]int
}

// Confidence grows with the number of scored attempts: 0 before any
// attempt, approaching 1 as evidence accumulates.
func Confidence(attempts int) float64 {
	if attempts <= 0 {
		return 0
	}
	return 1 - 1/float64(1+attempts)
}

// Clamp bounds a score to [0, 1].
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// derive computes status given the node's own score and attempts, and
// whether every prerequisite meets the unlock threshold.
func (t Thresholds) derive(score float64, attempts int, prereqsMet bool) Status {
	switch {
	case !prereqsMet:
		return StatusLocked
	case score >= t.Mastered:
		return StatusMastered
	case attempts > 0 || score > 0:
		return StatusInProgress
	default:
		return StatusUnlocked
	}
}

// Transition records a status change for one concept.
type Transition struct {
	ConceptID string
	From      Status
	To        Status
}

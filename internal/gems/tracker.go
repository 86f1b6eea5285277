package gems

import (
	"sync"

	"github.com/abhisek/jeseci/internal/mastery"
	"github.com/abhisek/jeseci/internal/progress"
	"github.com/abhisek/jeseci/internal/store"
)

// Tracker maintains per-learner engagement summaries. It is safe for
// concurrent use.
type Tracker struct {
	mu        sync.Mutex
	summaries map[string]*Summary
	motivator *Motivator
}

// NewTracker creates a Tracker that judges correctness the way m does.
func NewTracker(m *Motivator) *Tracker {
	return &Tracker{summaries: make(map[string]*Summary), motivator: m}
}

// Summary returns a copy of the learner's summary.
func (t *Tracker) Summary(learner string) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.summaries[learner]
	if !ok {
		return Summary{EverMastered: map[string]bool{}}
	}
	cp := *s
	cp.EverMastered = make(map[string]bool, len(s.EverMastered))
	for k, v := range s.EverMastered {
		cp.EverMastered[k] = v
	}
	return cp
}

// Observe folds a commit into the learner's summary.
func (t *Tracker) Observe(out progress.Outcome) {
	if out.Replayed {
		return
	}
	tx := out.Transaction

	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.summaries[tx.Learner]
	if !ok {
		s = &Summary{EverMastered: make(map[string]bool)}
		t.summaries[tx.Learner] = s
	}
	s.LastActive = tx.Timestamp
	if tx.Kind != store.KindScore {
		return
	}
	s.Answers++
	if t.motivator.Correct(out.Correctness) {
		s.Streak++
		if s.Streak > s.BestStreak {
			s.BestStreak = s.Streak
		}
	} else {
		s.Streak = 0
	}
	if out.After == mastery.StatusMastered {
		s.EverMastered[tx.Concept] = true
	}
}

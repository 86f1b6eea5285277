package gems

import "time"

// BadgeType identifies the category of achievement.
type BadgeType string

const (
	BadgeMastery  BadgeType = "mastery"
	BadgeRecovery BadgeType = "recovery"
	BadgeStreak   BadgeType = "streak"
)

// AllBadgeTypes returns all badge types in display order.
func AllBadgeTypes() []BadgeType {
	return []BadgeType{BadgeMastery, BadgeRecovery, BadgeStreak}
}

// Icon returns the display icon for the badge type.
func (t BadgeType) Icon() string {
	switch t {
	case BadgeMastery:
		return "💎"
	case BadgeRecovery:
		return "🔥"
	case BadgeStreak:
		return "⚡"
	default:
		return "✦"
	}
}

// EffectKind identifies a side effect.
type EffectKind string

const (
	EffectBadgeAwarded     EffectKind = "badge_awarded"
	EffectStreakMilestone  EffectKind = "streak_milestone"
	EffectConceptUnlocked  EffectKind = "concept_unlocked"
	EffectConceptRelocked  EffectKind = "concept_relocked"
	EffectMasteryRegressed EffectKind = "mastery_regressed"
)

// Badge is an achievement attached to a BadgeAwarded or StreakMilestone
// effect.
type Badge struct {
	Type   BadgeType `json:"type"`
	Rarity Rarity    `json:"rarity"`
	Reason string    `json:"reason"`
}

// SideEffect is an engagement event for asynchronous delivery.
type SideEffect struct {
	Kind      EffectKind `json:"kind"`
	Learner   string     `json:"learner"`
	ConceptID string     `json:"concept_id,omitempty"`
	Badge     *Badge     `json:"badge,omitempty"`
	Streak    int        `json:"streak,omitempty"`
	Message   string     `json:"message"`
	Sequence  int64      `json:"sequence"` // log sequence of the triggering transaction
	At        time.Time  `json:"at"`
}

// Summary is the small engagement record the Motivator reads. It is kept
// outside the mastery graph by a Tracker.
type Summary struct {
	Streak       int             // consecutive correct answers
	BestStreak   int
	Answers      int             // scored submissions
	EverMastered map[string]bool // concepts mastered at least once
	LastActive   time.Time
}

package orchestrator

import (
	"time"

	"github.com/abhisek/jeseci/internal/content"
)

// Phase is the state of a learner's turn on a concept.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelectingContent
	PhaseAwaitingSubmission
	PhaseScoring
	PhaseUpdating
	PhaseNotifying
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:               "idle",
	PhaseSelectingContent:   "selecting_content",
	PhaseAwaitingSubmission: "awaiting_submission",
	PhaseScoring:            "scoring",
	PhaseUpdating:           "updating",
	PhaseNotifying:          "notifying",
	PhaseFailed:             "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Agent roles attributed to each phase.
const (
	RoleOrchestrator    = "orchestrator"
	RoleCurator         = "curator"
	RoleAssessor        = "assessor"
	RoleProgressUpdater = "progress_updater"
	RoleMotivator       = "motivator"
)

// Role returns the agent that owns the phase.
func (p Phase) Role() string {
	switch p {
	case PhaseSelectingContent:
		return RoleCurator
	case PhaseScoring:
		return RoleAssessor
	case PhaseUpdating:
		return RoleProgressUpdater
	case PhaseNotifying:
		return RoleMotivator
	default:
		return RoleOrchestrator
	}
}

// busy reports whether a turn in this phase has work in flight.
func (p Phase) busy() bool {
	switch p {
	case PhaseSelectingContent, PhaseScoring, PhaseUpdating, PhaseNotifying:
		return true
	default:
		return false
	}
}

// transitions is the dispatch table of legal phase changes.
var transitions = map[Phase][]Phase{
	PhaseIdle:               {PhaseSelectingContent},
	PhaseSelectingContent:   {PhaseAwaitingSubmission, PhaseIdle, PhaseFailed},
	PhaseAwaitingSubmission: {PhaseScoring, PhaseSelectingContent, PhaseIdle},
	PhaseScoring:            {PhaseUpdating, PhaseAwaitingSubmission, PhaseFailed},
	PhaseUpdating:           {PhaseNotifying, PhaseFailed},
	PhaseNotifying:          {PhaseIdle},
	PhaseFailed:             {PhaseIdle},
}

// CanTransition reports whether from → to is a legal phase change.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// AgentTurn is the orchestration state of one learner on one concept.
type AgentTurn struct {
	Learner   string
	Concept   string
	Phase     Phase
	Content   *content.Ref // selected item, nil until one is chosen
	Attempts  int          // scoring attempts for the pending submission
	StartedAt time.Time
}

// Role returns the agent currently acting on the turn.
func (t AgentTurn) Role() string { return t.Phase.Role() }

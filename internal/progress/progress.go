// Package progress is the Progress-Updater, the sole writer of mastery
// state. Every change is appended to the mutation log before the
// materialized view is touched.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/jeseci/internal/assessor"
	"github.com/abhisek/jeseci/internal/mastery"
	"github.com/abhisek/jeseci/internal/store"
)

// ProvenanceView marks transactions that record a lesson view.
const ProvenanceView = "view"

// Config holds the learning-rate parameters.
type Config struct {
	BaseRate     float64
	AttemptDecay float64
}

// DefaultConfig returns the standard rate parameters.
func DefaultConfig() Config {
	return Config{BaseRate: 0.3, AttemptDecay: 0.1}
}

// LearningRate decays with the number of prior scored attempts.
func (c Config) LearningRate(attempts int) float64 {
	return c.BaseRate / (1 + c.AttemptDecay*float64(attempts))
}

// Delta moves mastery toward correctness by the decayed learning rate.
func (c Config) Delta(correctness, current float64, attempts int) float64 {
	return (correctness - current) * c.LearningRate(attempts)
}

// UnlockEvent reports a dependent concept whose prerequisites became met.
type UnlockEvent struct {
	Learner   string `json:"learner"`
	ConceptID string `json:"concept_id"`
	Cause     string `json:"cause"` // concept whose change triggered it
	Sequence  int64  `json:"sequence"`
}

// RelockEvent reports a dependent concept that fell back to locked after a
// prerequisite regressed.
type RelockEvent struct {
	Learner   string `json:"learner"`
	ConceptID string `json:"concept_id"`
	Cause     string `json:"cause"`
	Sequence  int64  `json:"sequence"`
}

// Entry is one change to commit.
type Entry struct {
	Learner      string
	ConceptID    string
	ContentID    string
	SubmissionID string
	Kind         store.Kind
	Result       assessor.ScoreResult // ignored for views
	Key          string
}

// Outcome is the committed transaction plus what it changed.
type Outcome struct {
	Transaction   store.MasteryTransaction
	Correctness   float64 // assessed correctness, zero for views
	PreviousScore float64
	Before        mastery.Status
	After         mastery.Status
	Unlocked      []UnlockEvent
	Relocked      []RelockEvent

	// Replayed is set when the key was already in the log. Nothing was
	// written and no events are reported.
	Replayed bool
}

// Updater commits mastery changes.
type Updater struct {
	log    store.Log
	nodes  *mastery.Service
	graphs mastery.GraphSource
	cfg    Config
	now    func() time.Time
}

// New creates an Updater writing to log and nodes.
func New(log store.Log, nodes *mastery.Service, graphs mastery.GraphSource, cfg Config) *Updater {
	return &Updater{log: log, nodes: nodes, graphs: graphs, cfg: cfg, now: time.Now}
}

// Config returns the rate parameters in use.
func (u *Updater) Config() Config { return u.cfg }

// Commit scores a quiz result into the learner's mastery. An idempotency
// key that is already in the log returns the existing transaction.
func (u *Updater) Commit(ctx context.Context, learner, conceptID string, result assessor.ScoreResult, key string) (store.MasteryTransaction, error) {
	out, err := u.Record(ctx, Entry{
		Learner:   learner,
		ConceptID: conceptID,
		Kind:      store.KindScore,
		Result:    result,
		Key:       key,
	})
	if err != nil {
		return store.MasteryTransaction{}, err
	}
	return out.Transaction, nil
}

// Record commits an entry and re-evaluates every direct dependent of the
// concept, reporting those that unlocked or relocked.
func (u *Updater) Record(ctx context.Context, e Entry) (Outcome, error) {
	if e.Key == "" {
		return Outcome{}, errors.New("commit requires an idempotency key")
	}

	existing, err := u.log.Lookup(ctx, e.Learner, e.Key)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if existing != nil {
		return u.replay(*existing)
	}

	node, err := u.nodes.GetNode(e.Learner, e.ConceptID)
	if err != nil {
		return Outcome{}, err
	}

	var delta, correctness float64
	provenance := ProvenanceView
	if e.Kind != store.KindView {
		correctness = mastery.Clamp(e.Result.Correctness)
		delta = u.cfg.Delta(correctness, node.Mastery, node.Attempts)
		provenance = e.Result.Provenance
	}
	resulting := mastery.Clamp(node.Mastery + delta)

	dependents := u.graphs.Graph().Dependents(e.ConceptID)
	before := u.nodes.Statuses(e.Learner, dependents)

	tx := store.MasteryTransaction{
		SchemaVersion:  store.SchemaVersion,
		ID:             uuid.NewString(),
		Learner:        e.Learner,
		Concept:        e.ConceptID,
		ContentID:      e.ContentID,
		Kind:           e.Kind,
		SubmissionID:   e.SubmissionID,
		Delta:          resulting - node.Mastery,
		ResultingScore: resulting,
		Provenance:     provenance,
		Timestamp:      u.now().UTC(),
		IdempotencyKey: e.Key,
	}

	saved, err := u.log.Append(ctx, tx)
	if errors.Is(err, store.ErrDuplicateKey) {
		// Lost a race with an identical submission.
		return u.replay(saved)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("append transaction: %w", err)
	}

	res, err := u.apply(saved)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Transaction:   saved,
		Correctness:   correctness,
		PreviousScore: node.Mastery,
		Before:        node.Status,
		After:         res.Status,
	}
	after := u.nodes.Statuses(e.Learner, dependents)
	for _, dep := range dependents {
		was, now := before[dep], after[dep]
		switch {
		case was == mastery.StatusLocked && now != mastery.StatusLocked:
			out.Unlocked = append(out.Unlocked, UnlockEvent{Learner: e.Learner, ConceptID: dep, Cause: e.ConceptID, Sequence: saved.Sequence})
		case was != mastery.StatusLocked && now == mastery.StatusLocked:
			out.Relocked = append(out.Relocked, RelockEvent{Learner: e.Learner, ConceptID: dep, Cause: e.ConceptID, Sequence: saved.Sequence})
		}
	}
	return out, nil
}

// replay makes sure a logged transaction is reflected in the view and
// reports it without events.
func (u *Updater) replay(tx store.MasteryTransaction) (Outcome, error) {
	res, err := u.apply(tx)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Transaction:   tx,
		PreviousScore: tx.ResultingScore - tx.Delta,
		Before:        res.Status,
		After:         res.Status,
		Replayed:      true,
	}, nil
}

func (u *Updater) apply(tx store.MasteryTransaction) (mastery.Result, error) {
	score := tx.ResultingScore
	return u.nodes.Apply(mastery.Mutation{
		Learner:   tx.Learner,
		ConceptID: tx.Concept,
		ContentID: tx.ContentID,
		Kind:      tx.Kind,
		Delta:     tx.Delta,
		Key:       tx.IdempotencyKey,
		At:        tx.Timestamp,
		Score:     &score,
	})
}

// Package orchestrator drives learner turns through content selection,
// scoring, mastery updates and notifications. Each active learner is owned
// by one actor goroutine, so turns for a learner are serialized while
// different learners run in parallel.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abhisek/jeseci/internal/assessor"
	"github.com/abhisek/jeseci/internal/content"
	"github.com/abhisek/jeseci/internal/gems"
	"github.com/abhisek/jeseci/internal/mastery"
	"github.com/abhisek/jeseci/internal/progress"
	"github.com/abhisek/jeseci/internal/store"
)

// Selector picks the next content item for a learner.
type Selector interface {
	SelectNext(ctx context.Context, learner, conceptID string) (content.Ref, error)
}

// Scorer grades a submission.
type Scorer interface {
	Score(ctx context.Context, sub assessor.Submission) (assessor.ScoreResult, error)
}

// EffectQueue accepts side effects for delivery. It must not block.
type EffectQueue interface {
	Enqueue(effects ...gems.SideEffect)
}

// Config tunes the engine.
type Config struct {
	ScoringTimeout     time.Duration // per Assessor call
	MaxScoringAttempts int           // Assessor calls per submission
	MailboxSize        int           // queued requests per learner
	IdleTimeout        time.Duration // 0 keeps actors forever
	SnapshotEvery      int           // commits between snapshots, 0 disables
	SnapshotKeep       int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ScoringTimeout:     30 * time.Second,
		MaxScoringAttempts: 3,
		MailboxSize:        16,
		IdleTimeout:        10 * time.Minute,
		SnapshotEvery:      100,
		SnapshotKeep:       5,
	}
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Graphs    mastery.GraphSource
	Nodes     *mastery.Service
	Log       store.Log
	Snapshots store.SnapshotRepo // optional
	Curator   Selector
	Assessor  Scorer
	Updater   *progress.Updater
	Motivator *gems.Motivator
	Tracker   *gems.Tracker
	Effects   EffectQueue // optional
	Logger    *slog.Logger
}

func (d Deps) validate() error {
	var errs []error
	if d.Graphs == nil {
		errs = append(errs, errors.New("graph source is required"))
	}
	if d.Nodes == nil {
		errs = append(errs, errors.New("mastery service is required"))
	}
	if d.Log == nil {
		errs = append(errs, errors.New("mutation log is required"))
	}
	if d.Curator == nil {
		errs = append(errs, errors.New("curator is required"))
	}
	if d.Assessor == nil {
		errs = append(errs, errors.New("assessor is required"))
	}
	if d.Updater == nil {
		errs = append(errs, errors.New("progress updater is required"))
	}
	if d.Motivator == nil {
		errs = append(errs, errors.New("motivator is required"))
	}
	return errors.Join(errs...)
}

// Receipt is the result of a scored submission.
type Receipt struct {
	Transaction store.MasteryTransaction
	Score       assessor.ScoreResult
	Status      mastery.Status
	Unlocked    []string
	Relocked    []string
	Effects     []gems.SideEffect
	Replayed    bool // submission had already been committed
}

// Engine is the orchestrator.
type Engine struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	actors sync.Map // learner -> *actor
	parked sync.Map // learner -> map[string]*turn, turns kept across eviction

	// Commits hold the read side so a snapshot sees every appended
	// transaction applied.
	commitMu     sync.RWMutex
	lastSeq      atomic.Int64
	commits      atomic.Int64
	snapshotting atomic.Bool
	closers      []func() error
}

// New creates an engine. Call Restore before serving to rebuild mastery
// from persistence.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	def := DefaultConfig()
	if cfg.MaxScoringAttempts <= 0 {
		cfg.MaxScoringAttempts = def.MaxScoringAttempts
	}
	if cfg.ScoringTimeout <= 0 {
		cfg.ScoringTimeout = def.ScoringTimeout
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = def.MailboxSize
	}
	if deps.Tracker == nil {
		deps.Tracker = gems.NewTracker(deps.Motivator)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		log:    logger.With("component", "orchestrator"),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// OnClose registers fn to run after the engine stops.
func (e *Engine) OnClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Tracker returns the engagement tracker.
func (e *Engine) Tracker() *gems.Tracker { return e.deps.Tracker }

// RequestNextContent selects the next item for the learner on a concept.
// Lessons are recorded as viewed and finish the turn; quizzes leave the turn
// awaiting a submission.
func (e *Engine) RequestNextContent(ctx context.Context, learner, conceptID string) (content.Ref, error) {
	r, err := e.send(ctx, learner, &request{op: opRequest, concept: conceptID})
	if err != nil {
		return content.Ref{}, err
	}
	return r.ref, nil
}

// SubmitAnswer scores a submission for the pending quiz and commits the
// mastery change. Resubmitting a committed submission ID returns the
// original transaction.
func (e *Engine) SubmitAnswer(ctx context.Context, learner, conceptID string, sub assessor.Submission) (Receipt, error) {
	r, err := e.send(ctx, learner, &request{op: opSubmit, concept: conceptID, sub: sub})
	if err != nil {
		return Receipt{}, err
	}
	return r.receipt, nil
}

// GetMasteryState returns the learner's node for a concept.
func (e *Engine) GetMasteryState(learner, conceptID string) (mastery.Node, error) {
	return e.deps.Nodes.GetNode(learner, conceptID)
}

// ListUnlockedConcepts returns the concepts open to the learner.
func (e *Engine) ListUnlockedConcepts(learner string) []string {
	return e.deps.Nodes.UnlockedConcepts(learner)
}

// Turns reports the learner's turns that are not idle.
func (e *Engine) Turns(ctx context.Context, learner string) ([]AgentTurn, error) {
	r, err := e.send(ctx, learner, &request{op: opInspect})
	if err != nil {
		return nil, err
	}
	return r.turns, nil
}

// ResetLearner returns failed and pending turns to idle. Mastery is not
// touched. It reports how many turns were reset.
func (e *Engine) ResetLearner(ctx context.Context, learner string) (int, error) {
	r, err := e.send(ctx, learner, &request{op: opReset})
	if err != nil {
		return 0, err
	}
	return r.reset, nil
}

// Close stops every actor, waits for them and runs registered closers.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for actors: %w", ctx.Err()))
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// send posts a request to the learner's actor and waits for the reply.
func (e *Engine) send(ctx context.Context, learner string, req *request) (reply, error) {
	if learner == "" {
		return reply{}, errors.New("learner ID is required")
	}
	if e.closed.Load() {
		return reply{}, ErrClosed
	}
	req.reply = make(chan reply, 1)

	for {
		if e.closed.Load() {
			return reply{}, ErrClosed
		}
		a := e.actorFor(learner)
		a.mu.Lock()
		if a.stopped {
			a.mu.Unlock()
			continue
		}
		select {
		case a.mailbox <- req:
			a.mu.Unlock()
		default:
			a.mu.Unlock()
			return reply{}, fmt.Errorf("%w: %q", ErrBusy, learner)
		}
		break
	}

	select {
	case r := <-req.reply:
		return r, r.err
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-e.ctx.Done():
		return reply{}, ErrClosed
	}
}

// actorFor returns the learner's running actor, starting one if needed.
func (e *Engine) actorFor(learner string) *actor {
	if v, ok := e.actors.Load(learner); ok {
		return v.(*actor)
	}
	a := newActor(e, learner)
	v, loaded := e.actors.LoadOrStore(learner, a)
	if loaded {
		return v.(*actor)
	}
	e.wg.Add(1)
	go a.run()
	return a
}

// commit writes an entry through the progress updater.
func (e *Engine) commit(ctx context.Context, entry progress.Entry) (progress.Outcome, error) {
	e.commitMu.RLock()
	out, err := e.deps.Updater.Record(ctx, entry)
	if err == nil {
		for {
			cur := e.lastSeq.Load()
			if out.Transaction.Sequence <= cur || e.lastSeq.CompareAndSwap(cur, out.Transaction.Sequence) {
				break
			}
		}
	}
	e.commitMu.RUnlock()
	if err != nil {
		return out, err
	}
	if !out.Replayed {
		e.afterCommit()
	}
	return out, nil
}

// notify runs the motivator over an outcome and queues its side effects.
func (e *Engine) notify(out progress.Outcome) []gems.SideEffect {
	sum := e.deps.Tracker.Summary(out.Transaction.Learner)
	effects := e.deps.Motivator.OnTransaction(out, sum)
	e.deps.Tracker.Observe(out)
	if e.deps.Effects != nil && len(effects) > 0 {
		e.deps.Effects.Enqueue(effects...)
	}
	return effects
}

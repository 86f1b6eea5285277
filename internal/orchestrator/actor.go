package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/jeseci/internal/assessor"
	"github.com/abhisek/jeseci/internal/content"
	"github.com/abhisek/jeseci/internal/ctxlog"
	"github.com/abhisek/jeseci/internal/progress"
	"github.com/abhisek/jeseci/internal/store"
)

type opKind int

const (
	opRequest opKind = iota
	opSubmit
	opInspect
	opReset
)

type request struct {
	op      opKind
	concept string
	sub     assessor.Submission
	reply   chan reply
}

type reply struct {
	ref     content.Ref
	receipt Receipt
	turns   []AgentTurn
	reset   int
	err     error
}

// completion carries the result of an external call back to the actor.
type completion struct {
	concept string
	ref     content.Ref
	score   assessor.ScoreResult
	err     error
}

// turn is an AgentTurn plus the request waiting on it.
type turn struct {
	AgentTurn
	sub    assessor.Submission
	waiter *request
}

// actor owns one learner. Only its goroutine touches turns and deferred.
type actor struct {
	e       *Engine
	learner string
	log     *slog.Logger

	mailbox chan *request
	results chan completion

	mu      sync.Mutex // guards stopped against senders
	stopped bool

	turns    map[string]*turn
	deferred map[string][]*request
	inflight int
}

func newActor(e *Engine, learner string) *actor {
	return &actor{
		e:        e,
		learner:  learner,
		log:      e.log.With("learner", learner),
		mailbox:  make(chan *request, e.cfg.MailboxSize),
		results:  make(chan completion),
		turns:    make(map[string]*turn),
		deferred: make(map[string][]*request),
	}
}

func (a *actor) run() {
	defer a.e.wg.Done()

	if v, ok := a.e.parked.LoadAndDelete(a.learner); ok {
		a.turns = v.(map[string]*turn)
	}

	var idle <-chan time.Time
	var timer *time.Timer
	if d := a.e.cfg.IdleTimeout; d > 0 {
		timer = time.NewTimer(d)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case req := <-a.mailbox:
			a.handle(req)
		case c := <-a.results:
			a.inflight--
			a.complete(c)
		case <-idle:
			if a.evict() {
				return
			}
		case <-a.e.ctx.Done():
			a.shutdown()
			return
		}
		if timer != nil {
			timer.Reset(a.e.cfg.IdleTimeout)
		}
	}
}

func (a *actor) handle(req *request) {
	switch req.op {
	case opRequest:
		a.requestContent(req)
	case opSubmit:
		a.submit(req)
	case opInspect:
		req.reply <- reply{turns: a.snapshotTurns()}
	case opReset:
		req.reply <- reply{reset: a.reset()}
	default:
		req.reply <- reply{err: fmt.Errorf("unknown request %d", req.op)}
	}
}

func (a *actor) turn(conceptID string) *turn {
	t, ok := a.turns[conceptID]
	if !ok {
		t = &turn{AgentTurn: AgentTurn{Learner: a.learner, Concept: conceptID, Phase: PhaseIdle}}
		a.turns[conceptID] = t
	}
	return t
}

func (a *actor) transition(t *turn, to Phase) {
	from := t.Phase
	if !CanTransition(from, to) {
		a.log.Error("illegal turn transition", "concept", t.Concept, "from", from.String(), "to", to.String())
	}
	t.Phase = to
	a.log.Debug("turn phase", "concept", t.Concept, "from", from.String(), "to", to.String(), "role", to.Role())
}

// hold queues req behind the in-flight work on its concept.
func (a *actor) hold(req *request) {
	a.deferred[req.concept] = append(a.deferred[req.concept], req)
}

func (a *actor) requestContent(req *request) {
	t := a.turn(req.concept)
	if t.Phase.busy() {
		a.hold(req)
		return
	}
	if t.Phase == PhaseFailed {
		req.reply <- reply{err: &FatalError{Phase: PhaseFailed, Err: ErrTurnFailed}}
		return
	}
	if t.Phase == PhaseAwaitingSubmission {
		a.log.Info("abandoning pending quiz", "concept", t.Concept, "content", t.Content.ID)
	}

	a.transition(t, PhaseSelectingContent)
	t.StartedAt = a.e.now()
	t.Content = nil
	t.Attempts = 0
	t.waiter = req

	learner, conceptID := a.learner, req.concept
	a.spawn(conceptID, 0, func(ctx context.Context) completion {
		ref, err := a.e.deps.Curator.SelectNext(ctx, learner, conceptID)
		return completion{concept: conceptID, ref: ref, err: err}
	})
}

func (a *actor) submit(req *request) {
	t := a.turn(req.concept)
	if t.Phase.busy() {
		a.hold(req)
		return
	}

	sub := req.sub
	if sub.ID != "" {
		existing, err := a.e.deps.Log.Lookup(a.e.ctx, a.learner, sub.ID)
		if err != nil {
			req.reply <- reply{err: &FatalError{Phase: t.Phase, Err: fmt.Errorf("lookup submission: %w", err)}}
			return
		}
		if existing != nil {
			node, err := a.e.deps.Nodes.GetNode(a.learner, existing.Concept)
			if err != nil {
				req.reply <- reply{err: fmt.Errorf("replay submission %q: %w", sub.ID, err)}
				return
			}
			req.reply <- reply{receipt: Receipt{Transaction: *existing, Status: node.Status, Replayed: true}}
			return
		}
	}

	switch t.Phase {
	case PhaseFailed:
		req.reply <- reply{err: &FatalError{Phase: PhaseFailed, Err: ErrTurnFailed}}
		return
	case PhaseAwaitingSubmission:
	default:
		req.reply <- reply{err: fmt.Errorf("%w: %q", ErrNoPendingQuiz, req.concept)}
		return
	}
	switch sub.QuizID {
	case "":
		sub.QuizID = t.Content.ID
	case t.Content.ID:
	default:
		req.reply <- reply{err: fmt.Errorf("%w: got %q, pending %q", ErrWrongContent, sub.QuizID, t.Content.ID)}
		return
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = a.e.now()
	}
	sub.Learner = a.learner
	sub.Concept = req.concept

	t.sub = sub
	t.waiter = req
	t.Attempts = 0
	a.score(t)
}

// score starts one Assessor call for the turn's submission.
func (a *actor) score(t *turn) {
	t.Attempts++
	a.transition(t, PhaseScoring)
	sub, conceptID := t.sub, t.Concept
	a.spawn(conceptID, a.e.cfg.ScoringTimeout, func(ctx context.Context) completion {
		res, err := a.e.deps.Assessor.Score(ctx, sub)
		return completion{concept: conceptID, score: res, err: err}
	})
}

// spawn runs fn off the actor and posts its result back. With a timeout,
// the deadline is enforced even when fn ignores its context: the actor gets
// a deadline completion and a late result is dropped.
func (a *actor) spawn(conceptID string, timeout time.Duration, fn func(context.Context) completion) {
	a.inflight++
	a.e.wg.Add(1)
	go func() {
		defer a.e.wg.Done()
		ctx := ctxlog.WithLogger(a.e.ctx, a.log)
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		// Not tracked by wg: a call that never returns must not block Close.
		done := make(chan completion, 1)
		go func() { done <- fn(ctx) }()

		var c completion
		select {
		case c = <-done:
		case <-ctx.Done():
			select {
			case c = <-done:
			default:
				c = completion{concept: conceptID, err: fmt.Errorf("no result within %s: %w", timeout, ctx.Err())}
				a.log.Warn("external call abandoned", "concept", conceptID, "timeout", timeout)
			}
		}
		select {
		case a.results <- c:
		case <-a.e.ctx.Done():
		}
	}()
}

func (a *actor) complete(c completion) {
	t, ok := a.turns[c.concept]
	if !ok {
		a.log.Error("completion for unknown turn", "concept", c.concept)
		return
	}
	switch t.Phase {
	case PhaseSelectingContent:
		a.selected(t, c)
	case PhaseScoring:
		a.scored(t, c)
	default:
		a.log.Error("completion in unexpected phase", "concept", c.concept, "phase", t.Phase.String())
	}
	a.drain(c.concept)
}

func (a *actor) selected(t *turn, c completion) {
	req := t.waiter
	t.waiter = nil

	if c.err != nil {
		a.transition(t, PhaseIdle)
		a.log.Info("content selection rejected", "concept", t.Concept, "error", c.err)
		req.reply <- reply{err: &FatalError{Phase: PhaseSelectingContent, Err: c.err}}
		return
	}

	ref := c.ref
	t.Content = &ref
	if ref.IsQuiz() {
		a.transition(t, PhaseAwaitingSubmission)
		req.reply <- reply{ref: ref}
		return
	}

	// Lessons have nothing to submit; record the view and finish.
	_, err := a.e.commit(a.e.ctx, progress.Entry{
		Learner:   a.learner,
		ConceptID: t.Concept,
		ContentID: ref.ID,
		Kind:      store.KindView,
		Key:       "view-" + uuid.NewString(),
	})
	if err != nil {
		t.waiter = req
		a.fail(t, PhaseSelectingContent, fmt.Errorf("record lesson view %q: %w", ref.ID, err))
		return
	}
	a.transition(t, PhaseIdle)
	req.reply <- reply{ref: ref}
}

func (a *actor) scored(t *turn, c completion) {
	if c.err != nil {
		if retryable(c.err) {
			a.transition(t, PhaseAwaitingSubmission)
			a.log.Warn("scoring attempt failed",
				"concept", t.Concept, "submission", t.sub.ID,
				"attempt", t.Attempts, "max_attempts", a.e.cfg.MaxScoringAttempts, "error", c.err)
			if t.Attempts < a.e.cfg.MaxScoringAttempts {
				a.score(t)
				return
			}
			req, attempts := t.waiter, t.Attempts
			t.waiter = nil
			t.Attempts = 0
			req.reply <- reply{err: &RetryableError{Attempts: attempts, Err: c.err}}
			return
		}
		a.fail(t, PhaseScoring, c.err)
		return
	}

	a.transition(t, PhaseUpdating)
	out, err := a.e.commit(a.e.ctx, progress.Entry{
		Learner:      a.learner,
		ConceptID:    t.Concept,
		ContentID:    t.Content.ID,
		SubmissionID: t.sub.ID,
		Kind:         store.KindScore,
		Result:       c.score,
		Key:          t.sub.ID,
	})
	if err != nil {
		a.fail(t, PhaseUpdating, err)
		return
	}

	a.transition(t, PhaseNotifying)
	effects := a.e.notify(out)
	a.transition(t, PhaseIdle)

	rc := Receipt{
		Transaction: out.Transaction,
		Score:       c.score,
		Status:      out.After,
		Effects:     effects,
		Replayed:    out.Replayed,
	}
	for _, u := range out.Unlocked {
		rc.Unlocked = append(rc.Unlocked, u.ConceptID)
	}
	for _, r := range out.Relocked {
		rc.Relocked = append(rc.Relocked, r.ConceptID)
	}
	a.log.Info("submission committed",
		"concept", t.Concept, "submission", t.sub.ID,
		"correctness", c.score.Correctness, "score", out.Transaction.ResultingScore,
		"sequence", out.Transaction.Sequence, "unlocked", rc.Unlocked)

	req := t.waiter
	t.waiter = nil
	req.reply <- reply{receipt: rc}
}

// fail moves the turn to the terminal failed state.
func (a *actor) fail(t *turn, phase Phase, err error) {
	a.transition(t, PhaseFailed)
	a.log.Error("turn failed", "concept", t.Concept, "phase", phase.String(), "error", err)
	if req := t.waiter; req != nil {
		t.waiter = nil
		req.reply <- reply{err: &FatalError{Phase: phase, Err: err}}
	}
}

// drain replays deferred requests once the concept is no longer busy.
func (a *actor) drain(conceptID string) {
	for {
		q := a.deferred[conceptID]
		if len(q) == 0 {
			delete(a.deferred, conceptID)
			return
		}
		if t := a.turns[conceptID]; t != nil && t.Phase.busy() {
			return
		}
		a.deferred[conceptID] = q[1:]
		a.handle(q[0])
	}
}

func (a *actor) reset() int {
	n := 0
	for _, t := range a.turns {
		if t.Phase == PhaseIdle || t.Phase.busy() {
			continue
		}
		a.transition(t, PhaseIdle)
		t.Content = nil
		t.Attempts = 0
		n++
	}
	if n > 0 {
		a.log.Info("learner reset", "turns", n)
	}
	return n
}

func (a *actor) snapshotTurns() []AgentTurn {
	out := make([]AgentTurn, 0, len(a.turns))
	for _, t := range a.turns {
		if t.Phase == PhaseIdle {
			continue
		}
		at := t.AgentTurn
		if t.Content != nil {
			ref := *t.Content
			at.Content = &ref
		}
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Concept < out[j].Concept })
	return out
}

// evict stops the actor when it has nothing in flight. Pending and failed
// turns are parked for the next actor.
func (a *actor) evict() bool {
	if a.inflight > 0 || len(a.deferred) > 0 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.mailbox) > 0 {
		return false
	}
	a.stopped = true

	keep := make(map[string]*turn)
	for id, t := range a.turns {
		if t.Phase != PhaseIdle {
			keep[id] = t
		}
	}
	if len(keep) > 0 {
		a.e.parked.Store(a.learner, keep)
	}
	a.e.actors.CompareAndDelete(a.learner, a)
	a.log.Debug("evicted idle learner actor", "parked_turns", len(keep))
	return true
}

func (a *actor) shutdown() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	for {
		select {
		case req := <-a.mailbox:
			req.reply <- reply{err: ErrClosed}
		default:
			for _, t := range a.turns {
				if t.waiter != nil {
					t.waiter.reply <- reply{err: ErrClosed}
					t.waiter = nil
				}
			}
			for _, q := range a.deferred {
				for _, req := range q {
					req.reply <- reply{err: ErrClosed}
				}
			}
			return
		}
	}
}

// retryable reports whether a scoring failure may succeed on another try.
func retryable(err error) bool {
	return errors.Is(err, assessor.ErrGeneratorUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

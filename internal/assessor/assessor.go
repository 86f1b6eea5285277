package assessor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/abhisek/jeseci/internal/content"
	"github.com/abhisek/jeseci/internal/ctxlog"
	"github.com/abhisek/jeseci/internal/llm"
)

// RetryConfig bounds generator retries within one Score call.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig retries once with a short backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Assessor scores submissions. It never mutates mastery state.
type Assessor struct {
	quizzes content.QuizSource
	gen     Generator
	retrier retry.Retry[Evaluation]
}

// New creates an Assessor. gen may be nil when the catalog only holds
// structured questions; free-form questions then fail with
// ErrGeneratorUnavailable.
func New(quizzes content.QuizSource, gen Generator, rc RetryConfig) *Assessor {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.InitialBackoff <= 0 {
		rc.InitialBackoff = time.Millisecond
	}
	if rc.MaxBackoff < rc.InitialBackoff {
		rc.MaxBackoff = rc.InitialBackoff
	}
	return &Assessor{
		quizzes: quizzes,
		gen:     gen,
		retrier: retry.New[Evaluation](retry.Config{
			MaxAttempts:   rc.MaxAttempts,
			InitialDelay:  rc.InitialBackoff,
			MaxDelay:      rc.MaxBackoff,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   llm.IsTransient,
		}),
	}
}

// Score converts a submission into a ScoreResult. Structured questions are
// scored deterministically; a result with any free-form question carries
// provenance "llm".
func (a *Assessor) Score(ctx context.Context, sub Submission) (ScoreResult, error) {
	quiz, err := a.quizzes.Quiz(ctx, sub.QuizID)
	if err != nil {
		return ScoreResult{}, err
	}
	if quiz.ConceptID != sub.Concept {
		return ScoreResult{}, fmt.Errorf("%w: quiz %q is tagged %q, not %q", ErrConceptMismatch, quiz.ID, quiz.ConceptID, sub.Concept)
	}

	single := len(quiz.Questions) == 1
	result := ScoreResult{Provenance: ProvenanceDeterministic}
	var earned, possible float64
	var feedback []string

	for _, q := range quiz.Questions {
		answer := sub.answerFor(q, single)
		part := PartCredit{QuestionID: q.ID, Possible: q.Points(), Provenance: ProvenanceDeterministic}

		if q.Type.Structured() {
			if checkStructured(answer, q) {
				part.Earned = 1
			}
		} else {
			eval, err := a.evaluate(ctx, sub.Concept, q, answer)
			if err != nil {
				return ScoreResult{}, err
			}
			part.Earned = clampUnit(eval.Correctness)
			part.Provenance = ProvenanceLLM
			result.Provenance = ProvenanceLLM
			if eval.Feedback != "" {
				feedback = append(feedback, eval.Feedback)
			}
		}

		earned += part.Earned * part.Possible
		possible += part.Possible
		result.PartialCredit = append(result.PartialCredit, part)
	}

	if possible > 0 {
		result.Correctness = clampUnit(earned / possible)
	}
	result.Feedback = strings.Join(feedback, "\n")
	return result, nil
}

// evaluate calls the generator under the retry policy. Blank answers score
// zero without a call.
func (a *Assessor) evaluate(ctx context.Context, conceptID string, q content.Question, answer string) (Evaluation, error) {
	if strings.TrimSpace(answer) == "" {
		return Evaluation{Correctness: 0, Feedback: "No answer given."}, nil
	}
	if a.gen == nil {
		return Evaluation{}, fmt.Errorf("%w: no generator configured", ErrGeneratorUnavailable)
	}

	attempt := 0
	eval, err := a.retrier.Do(ctx, func(ctx context.Context) (Evaluation, error) {
		attempt++
		ev, err := a.gen.GenerateEvaluation(ctx, EvaluationRequest{ConceptID: conceptID, Question: q, Answer: answer})
		if err != nil {
			ctxlog.FromContext(ctx).Debug("generator evaluation failed",
				"question", q.ID, "attempt", attempt, "error", err)
		}
		return ev, err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return Evaluation{}, err
		}
		return Evaluation{}, fmt.Errorf("%w: %w", ErrGeneratorUnavailable, err)
	}
	return eval, nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

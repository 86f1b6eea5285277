// Package assessor scores quiz submissions into normalized results.
// Structured answers are compared against the answer key; free-form answers
// are delegated to the Content Generator.
package assessor

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/jeseci/internal/content"
)

var (
	// ErrGeneratorUnavailable is returned when the Content Generator fails
	// after the retry budget is spent.
	ErrGeneratorUnavailable = errors.New("content generator unavailable")

	// ErrConceptMismatch is returned when a submission names a quiz that is
	// not tagged to the submission's concept.
	ErrConceptMismatch = errors.New("quiz does not belong to concept")
)

// Provenance values recorded on a ScoreResult.
const (
	ProvenanceDeterministic = "deterministic"
	ProvenanceLLM           = "llm"
)

// Submission is a learner's answer to a quiz. Answers maps question IDs to
// raw answers; RawAnswer is used for single-question quizzes.
type Submission struct {
	ID          string            `json:"id"`
	Learner     string            `json:"learner"`
	Concept     string            `json:"concept"`
	QuizID      string            `json:"quiz_id"`
	RawAnswer   string            `json:"raw_answer,omitempty"`
	Answers     map[string]string `json:"answers,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// answerFor returns the raw answer for a question.
func (s Submission) answerFor(q content.Question, single bool) string {
	if a, ok := s.Answers[q.ID]; ok {
		return a
	}
	if single {
		return s.RawAnswer
	}
	return ""
}

// PartCredit is the score of one quiz question.
type PartCredit struct {
	QuestionID string  `json:"question_id"`
	Earned     float64 `json:"earned"`   // 0..1 before weighting
	Possible   float64 `json:"possible"` // question weight
	Provenance string  `json:"provenance"`
}

// ScoreResult is the normalized outcome of scoring a submission.
type ScoreResult struct {
	Correctness   float64      `json:"correctness"`
	PartialCredit []PartCredit `json:"partial_credit"`
	Provenance    string       `json:"provenance"`
	Feedback      string       `json:"feedback,omitempty"`
}

// EvaluationRequest is what the Content Generator sees for one free-form
// question.
type EvaluationRequest struct {
	ConceptID string
	Question  content.Question
	Answer    string
}

// Evaluation is the Content Generator's rubric judgement.
type Evaluation struct {
	Correctness float64 `json:"correctness"`
	Feedback    string  `json:"feedback"`
}

// Generator is the Content Generator collaborator. It may fail or time out.
type Generator interface {
	GenerateEvaluation(ctx context.Context, req EvaluationRequest) (Evaluation, error)
}

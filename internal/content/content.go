// Package content defines the content references the engine hands out and
// the read-only Content Catalog Index it consumes.
package content

import (
	"context"
	"errors"
)

// ErrQuizNotFound is returned when a quiz ID is not in the catalog.
var ErrQuizNotFound = errors.New("quiz not found")

// Kind distinguishes lessons (read, nothing to submit) from quizzes.
type Kind string

const (
	KindLesson Kind = "lesson"
	KindQuiz   Kind = "quiz"
)

// Ref points at one catalog item tagged to a concept at a difficulty tier.
// Tier is zero-based: 0 is the easiest material for the concept.
type Ref struct {
	ID        string `json:"id" yaml:"id"`
	Kind      Kind   `json:"kind" yaml:"-"`
	ConceptID string `json:"concept_id" yaml:"concept"`
	Tier      int    `json:"tier" yaml:"tier"`
	Title     string `json:"title" yaml:"title"`
}

// IsQuiz reports whether the item expects a submission.
func (r Ref) IsQuiz() bool { return r.Kind == KindQuiz }

// QuestionType is the answer format of a quiz question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionCodeOutput     QuestionType = "code_output"
	QuestionCodeCompletion QuestionType = "code_completion"
	QuestionEssay          QuestionType = "essay"
)

// Structured reports whether answers of this type can be compared
// deterministically against an answer key.
func (t QuestionType) Structured() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionCodeOutput:
		return true
	default:
		return false
	}
}

// Question is one part of a quiz.
type Question struct {
	ID      string       `json:"id" yaml:"id"`
	Type    QuestionType `json:"type" yaml:"type"`
	Prompt  string       `json:"prompt" yaml:"prompt"`
	Choices []string     `json:"choices,omitempty" yaml:"choices,omitempty"`
	Answer  string       `json:"answer,omitempty" yaml:"answer,omitempty"` // answer key for structured types
	Rubric  string       `json:"rubric,omitempty" yaml:"rubric,omitempty"` // grading guide for free-form types
	Weight  float64      `json:"weight,omitempty" yaml:"weight,omitempty"` // 0 means 1
}

// Points returns the question weight, defaulting to 1.
func (q Question) Points() float64 {
	if q.Weight <= 0 {
		return 1
	}
	return q.Weight
}

// Quiz is a scored catalog item.
type Quiz struct {
	Ref       `yaml:",inline"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Index is the Content Catalog Index. It is owned by the catalog layer and
// may be remote, so every call takes a context.
type Index interface {
	// LookupCandidates returns the items tagged to concept at tier. An empty
	// result is not an error.
	LookupCandidates(ctx context.Context, conceptID string, tier int) ([]Ref, error)
}

// QuizSource resolves quiz definitions for scoring.
type QuizSource interface {
	Quiz(ctx context.Context, id string) (Quiz, error)
}

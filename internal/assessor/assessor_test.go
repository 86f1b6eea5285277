package assessor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/jeseci/internal/content"
	"github.com/abhisek/jeseci/internal/llm"
)

func testQuizzes(t *testing.T) *content.StaticIndex {
	t.Helper()
	idx, err := content.NewStaticIndex(nil, []content.Quiz{
		{
			Ref: content.Ref{ID: "mc", ConceptID: "vars"},
			Questions: []content.Question{{
				ID: "q1", Type: content.QuestionMultipleChoice, Prompt: "Declare?",
				Choices: []string{"func", "var", "type"}, Answer: "var",
			}},
		},
		{
			Ref: content.Ref{ID: "mixed", ConceptID: "vars"},
			Questions: []content.Question{
				{ID: "tf", Type: content.QuestionTrueFalse, Prompt: "Constants are mutable.", Answer: "false"},
				{ID: "out", Type: content.QuestionCodeOutput, Prompt: "fmt.Println(1+1)", Answer: "2"},
				{ID: "essay", Type: content.QuestionEssay, Prompt: "Explain shadowing.", Rubric: "inner scope", Weight: 2},
			},
		},
		{
			Ref: content.Ref{ID: "structured", ConceptID: "vars"},
			Questions: []content.Question{
				{ID: "tf", Type: content.QuestionTrueFalse, Prompt: "Constants are mutable.", Answer: "false"},
				{ID: "out", Type: content.QuestionCodeOutput, Prompt: "fmt.Println(0.5*2)", Answer: "1"},
				{ID: "mc", Type: content.QuestionMultipleChoice, Prompt: "Declare?", Choices: []string{"func", "var"}, Answer: "var", Weight: 2},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

// fakeGenerator fails the first failures calls, then returns eval.
type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	eval     Evaluation
}

func (f *fakeGenerator) GenerateEvaluation(ctx context.Context, _ EvaluationRequest) (Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return Evaluation{}, f.err
	}
	return f.eval, nil
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestScore_MultipleChoice(t *testing.T) {
	a := New(testQuizzes(t), nil, fastRetry(1))
	tests := []struct {
		answer string
		want   float64
	}{
		{"var", 1},
		{"  VAR ", 1},
		{"2", 1}, // 1-based choice index
		{"1", 0},
		{"func", 0},
		{"", 0},
	}
	for _, tt := range tests {
		res, err := a.Score(context.Background(), Submission{Concept: "vars", QuizID: "mc", RawAnswer: tt.answer})
		if err != nil {
			t.Fatalf("answer %q: %v", tt.answer, err)
		}
		if res.Correctness != tt.want {
			t.Errorf("answer %q: correctness = %v, want %v", tt.answer, res.Correctness, tt.want)
		}
		if res.Provenance != ProvenanceDeterministic {
			t.Errorf("provenance = %q, want deterministic", res.Provenance)
		}
	}
}

func TestScore_StructuredPartialCredit(t *testing.T) {
	a := New(testQuizzes(t), nil, fastRetry(1))
	sub := Submission{Concept: "vars", QuizID: "structured", Answers: map[string]string{
		"tf":  "No",
		"out": "1.0",
		"mc":  "func",
	}}

	first, err := a.Score(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	// tf and out are right (weight 1 each), mc is wrong (weight 2).
	if first.Correctness != 0.5 {
		t.Errorf("correctness = %v, want 0.5", first.Correctness)
	}
	if len(first.PartialCredit) != 3 || first.PartialCredit[2].Possible != 2 || first.PartialCredit[2].Earned != 0 {
		t.Errorf("partial credit = %+v", first.PartialCredit)
	}

	second, err := a.Score(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	if second.Correctness != first.Correctness {
		t.Errorf("structured scoring not deterministic: %v vs %v", first.Correctness, second.Correctness)
	}
}

func TestScore_FreeFormUsesGenerator(t *testing.T) {
	gen := &fakeGenerator{eval: Evaluation{Correctness: 0.5, Feedback: "Mention scope."}}
	a := New(testQuizzes(t), gen, fastRetry(2))
	res, err := a.Score(context.Background(), Submission{Concept: "vars", QuizID: "mixed", Answers: map[string]string{
		"tf":    "false",
		"out":   "3",
		"essay": "An inner variable hides an outer one.",
	}})
	if err != nil {
		t.Fatal(err)
	}
	// (1 + 0 + 0.5*2) / 4
	if res.Correctness != 0.5 {
		t.Errorf("correctness = %v, want 0.5", res.Correctness)
	}
	if res.Provenance != ProvenanceLLM {
		t.Errorf("provenance = %q, want llm", res.Provenance)
	}
	if res.Feedback != "Mention scope." {
		t.Errorf("feedback = %q", res.Feedback)
	}
	if res.PartialCredit[2].Provenance != ProvenanceLLM || res.PartialCredit[0].Provenance != ProvenanceDeterministic {
		t.Errorf("part provenance = %+v", res.PartialCredit)
	}
}

func TestScore_BlankFreeFormSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{eval: Evaluation{Correctness: 1}}
	a := New(testQuizzes(t), gen, fastRetry(2))
	res, err := a.Score(context.Background(), Submission{Concept: "vars", QuizID: "mixed", Answers: map[string]string{"tf": "false"}})
	if err != nil {
		t.Fatal(err)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0", gen.calls)
	}
	if res.Correctness != 0.25 {
		t.Errorf("correctness = %v, want 0.25", res.Correctness)
	}
}

func TestScore_RetriesOnceThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{failures: 1, err: &llm.ErrProviderUnavailable{}, eval: Evaluation{Correctness: 1}}
	a := New(testQuizzes(t), gen, fastRetry(2))
	_, err := a.Score(context.Background(), Submission{Concept: "vars", QuizID: "mixed", Answers: map[string]string{"essay": "text"}})
	if err != nil {
		t.Fatalf("expected recovery after one retry, got %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
}

func TestScore_GeneratorUnavailableAfterBudget(t *testing.T) {
	gen := &fakeGenerator{failures: 10, err: context.DeadlineExceeded}
	a := New(testQuizzes(t), gen, fastRetry(2))
	_, err := a.Score(context.Background(), Submission{Concept: "vars", QuizID: "mixed", Answers: map[string]string{"essay": "text"}})
	if !errors.Is(err, ErrGeneratorUnavailable) {
		t.Fatalf("err = %v, want ErrGeneratorUnavailable", err)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
}

func TestScore_NoGenerator(t *testing.T) {
	a := New(testQuizzes(t), nil, fastRetry(1))
	_, err := a.Score(context.Background(), Submission{Concept: "vars", QuizID: "mixed", Answers: map[string]string{"essay": "text"}})
	if !errors.Is(err, ErrGeneratorUnavailable) {
		t.Errorf("err = %v, want ErrGeneratorUnavailable", err)
	}
}

func TestScore_ValidationErrors(t *testing.T) {
	a := New(testQuizzes(t), nil, fastRetry(1))
	if _, err := a.Score(context.Background(), Submission{Concept: "vars", QuizID: "nope"}); !errors.Is(err, content.ErrQuizNotFound) {
		t.Errorf("missing quiz: err = %v", err)
	}
	if _, err := a.Score(context.Background(), Submission{Concept: "loops", QuizID: "mc"}); !errors.Is(err, ErrConceptMismatch) {
		t.Errorf("wrong concept: err = %v", err)
	}
}

func TestLLMGenerator(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{"correctness": 0.75, "feedback": "Close."}))
	gen := NewLLMGenerator(mock, DefaultLLMGeneratorConfig())

	eval, err := gen.GenerateEvaluation(context.Background(), EvaluationRequest{
		ConceptID: "vars",
		Question:  content.Question{ID: "essay", Type: content.QuestionEssay, Prompt: "Explain shadowing.", Rubric: "inner scope"},
		Answer:    "Inner names hide outer ones.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if eval.Correctness != 0.75 || eval.Feedback != "Close." {
		t.Errorf("eval = %+v", eval)
	}
	call := mock.Calls[0]
	if call.Schema != EvaluationSchema {
		t.Error("expected evaluation schema on request")
	}
	if len(call.Messages) != 1 {
		t.Fatalf("messages = %d", len(call.Messages))
	}
	for _, want := range []string{"Explain shadowing.", "Rubric: inner scope", "Inner names hide outer ones."} {
		if !strings.Contains(call.Messages[0].Content, want) {
			t.Errorf("prompt missing %q:\n%s", want, call.Messages[0].Content)
		}
	}
}

func TestLLMGenerator_BadJSON(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`not json`)})
	gen := NewLLMGenerator(mock, DefaultLLMGeneratorConfig())
	_, err := gen.GenerateEvaluation(context.Background(), EvaluationRequest{Question: content.Question{Type: content.QuestionEssay}})
	var inv *llm.ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Errorf("err = %v, want ErrInvalidResponse", err)
	}
}

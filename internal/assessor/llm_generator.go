package assessor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/abhisek/jeseci/internal/llm"
)

// LLMGeneratorConfig holds request settings for rubric evaluation.
type LLMGeneratorConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultLLMGeneratorConfig returns sensible defaults.
func DefaultLLMGeneratorConfig() LLMGeneratorConfig {
	return LLMGeneratorConfig{
		MaxTokens:   512,
		Temperature: 0.2,
	}
}

// LLMGenerator evaluates free-form answers with an llm.Provider.
type LLMGenerator struct {
	provider llm.Provider
	cfg      LLMGeneratorConfig
}

// NewLLMGenerator creates a Generator backed by provider.
func NewLLMGenerator(provider llm.Provider, cfg LLMGeneratorConfig) *LLMGenerator {
	return &LLMGenerator{provider: provider, cfg: cfg}
}

// EvaluationSchema is the structured output expected from the model.
var EvaluationSchema = &llm.Schema{
	Name:        "answer-evaluation",
	Description: "Rubric-based evaluation of a learner's free-form answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"correctness": map[string]any{
				"type":        "number",
				"minimum":     0.0,
				"maximum":     1.0,
				"description": "How fully the answer satisfies the rubric, from 0 (not at all) to 1 (fully)",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "One or two sentences of feedback addressed to the learner",
			},
		},
		"required":             []any{"correctness", "feedback"},
		"additionalProperties": false,
	},
}

// GenerateEvaluation implements Generator.
func (g *LLMGenerator) GenerateEvaluation(ctx context.Context, req EvaluationRequest) (Evaluation, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeEvaluate)

	userMsg, err := buildEvaluationMessage(req)
	if err != nil {
		return Evaluation{}, fmt.Errorf("build evaluation prompt: %w", err)
	}

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      evaluationSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		Schema:      EvaluationSchema,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return Evaluation{}, err
	}

	var out Evaluation
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return Evaluation{}, &llm.ErrInvalidResponse{Content: resp.Content, Err: err}
	}
	return out, nil
}

const evaluationSystemPrompt = `You grade answers from learners studying programming. Score the answer strictly against the rubric.

Instructions:
- correctness is a number from 0.0 to 1.0. Award partial credit for partially correct answers.
- Judge only what the rubric asks for; ignore style unless the rubric mentions it.
- Feedback is one or two sentences, addressed to the learner, and never reveals a model answer.`

var evaluationUserTemplate = template.Must(template.New("evaluation").Parse(`Concept: {{.ConceptID}}
Question type: {{.Question.Type}}
Question: {{.Question.Prompt}}
{{if .Question.Rubric}}Rubric: {{.Question.Rubric}}
{{end}}Learner's answer:
{{.Answer}}`))

func buildEvaluationMessage(req EvaluationRequest) (string, error) {
	var buf bytes.Buffer
	if err := evaluationUserTemplate.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}

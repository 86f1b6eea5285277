package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func testSchema() *Schema {
	return &Schema{
		Name:        "test-evaluation",
		Description: "A test evaluation",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"correctness": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				"feedback":    map[string]any{"type": "string"},
				"verdict":     map[string]any{"type": "string", "enum": []any{"pass", "partial", "fail"}},
				"parts": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "number"},
				},
			},
			"required": []any{"correctness", "feedback"},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"correctness":0.5,"feedback":"ok","verdict":"partial"}`, false},
		{"valid without optional", `{"correctness":1,"feedback":"ok"}`, false},
		{"missing required", `{"correctness":1}`, true},
		{"wrong type", `{"correctness":"high","feedback":"ok"}`, true},
		{"out of range", `{"correctness":1.5,"feedback":"ok"}`, true},
		{"invalid enum", `{"correctness":1,"feedback":"ok","verdict":"maybe"}`, true},
		{"wrong array item type", `{"correctness":1,"feedback":"ok","parts":["a"]}`, true},
		{"malformed JSON", `{"correctness":`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(testSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) {
					t.Fatalf("expected ErrInvalidResponse, got %T", err)
				}
			}
		})
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`not json`)); err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestValidatingProvider(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"correctness":0.2,"feedback":"try again"}`)},
		MockResponse{Content: json.RawMessage(`{"feedback":"no score"}`)},
	)
	p := WithValidation(mock)
	req := Request{Schema: testSchema()}

	if _, err := p.Generate(context.Background(), req); err != nil {
		t.Fatalf("valid response rejected: %v", err)
	}
	_, err := p.Generate(context.Background(), req)
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if p.Name() != "mock" {
		t.Errorf("Name = %q", p.Name())
	}
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abhisek/jeseci/internal/ctxlog"
	"github.com/abhisek/jeseci/internal/store"
)

func TestResilientProvider_PassesThrough(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{"ok":true}`)})
	p := WithResilience(mock, ResilienceConfig{}, ctxlog.Discard())

	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Content) != `{"ok":true}` {
		t.Errorf("content = %s", resp.Content)
	}
}

func TestResilientProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{}},
		MockResponse{Err: &ErrProviderUnavailable{}},
		MockResponse{Content: json.RawMessage(`{}`)},
	)
	p := WithResilience(mock, ResilienceConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, ctxlog.Discard())

	for i := 0; i < 2; i++ {
		if _, err := p.Generate(context.Background(), Request{}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable from open breaker, got %v", err)
	}
	if mock.CallCount() != 2 {
		t.Errorf("inner calls = %d, want 2 (breaker should short-circuit)", mock.CallCount())
	}
}

type recordingRepo struct {
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.events = append(r.events, data)
	return r.err
}

func (r *recordingRepo) LLMUsage(context.Context) (store.LLMUsage, error) {
	return store.LLMUsage{Requests: len(r.events)}, nil
}

func TestLoggingProvider_RecordsEvents(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{}`), Usage: Usage{InputTokens: 12, OutputTokens: 4}},
		MockResponse{Err: &ErrRateLimit{}},
	)
	repo := &recordingRepo{}
	p := WithLogging(mock, repo)
	ctx := ctxlog.WithLogger(WithPurpose(context.Background(), PurposeEvaluate), ctxlog.Discard())

	if _, err := p.Generate(ctx, Request{}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Generate(ctx, Request{}); err == nil {
		t.Fatal("expected error")
	}

	if len(repo.events) != 2 {
		t.Fatalf("events = %d, want 2", len(repo.events))
	}
	first := repo.events[0]
	if !first.Success || first.InputTokens != 12 || first.Purpose != PurposeEvaluate || first.Provider != "mock" {
		t.Errorf("first event = %+v", first)
	}
	if repo.events[1].Success || repo.events[1].ErrorMessage == "" {
		t.Errorf("second event = %+v", repo.events[1])
	}
}

func TestLoggingProvider_AuditFailureDoesNotFailRequest(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	p := WithLogging(mock, &recordingRepo{err: errors.New("disk full")})
	ctx := ctxlog.WithLogger(context.Background(), ctxlog.Discard())
	if _, err := p.Generate(ctx, Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewProvider_Mock(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultConfig(), nil, ctxlog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "mock" {
		t.Errorf("Name = %q", p.Name())
	}
	if _, err := NewProvider(context.Background(), Config{Provider: "nope"}, nil, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

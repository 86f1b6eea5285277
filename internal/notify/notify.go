// Package notify delivers Motivator side effects off the critical path.
// Delivery is best effort: a full buffer drops effects with a warning.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/abhisek/jeseci/internal/gems"
)

// Sink is the delivery collaborator.
type Sink interface {
	Push(ctx context.Context, learnerID string, event gems.SideEffect) error
}

// Fanout pushes every event to each sink in order. Errors are joined and
// do not stop later sinks.
type Fanout []Sink

// Push implements Sink.
func (f Fanout) Push(ctx context.Context, learnerID string, event gems.SideEffect) error {
	var errs []error
	for _, s := range f {
		if err := s.Push(ctx, learnerID, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *slog.Logger
}

// Push implements Sink.
func (s LogSink) Push(ctx context.Context, learnerID string, event gems.SideEffect) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"learner", learnerID,
		"kind", event.Kind,
		"sequence", event.Sequence,
		"message", event.Message,
	}
	if event.ConceptID != "" {
		attrs = append(attrs, "concept", event.ConceptID)
	}
	if event.Badge != nil {
		attrs = append(attrs, "badge", event.Badge.Type, "rarity", event.Badge.Rarity)
	}
	logger.InfoContext(ctx, "side effect", attrs...)
	return nil
}

// MemorySink records events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []gems.SideEffect
}

// Push implements Sink.
func (s *MemorySink) Push(_ context.Context, _ string, event gems.SideEffect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []gems.SideEffect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gems.SideEffect, len(s.events))
	copy(out, s.events)
	return out
}

package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/jeseci/internal/store"
)

// NewProvider creates a Provider from configuration, wrapped as
// caller → resilience → logging → validation → backend.
// For the "mock" provider the returned *MockProvider sits at the bottom of
// the same chain. eventRepo may be nil.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, logger *slog.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return Wrap(base, cfg.Resilience, eventRepo, logger), nil
}

// Wrap applies the standard decorator chain to an existing provider.
func Wrap(base Provider, res ResilienceConfig, eventRepo store.EventRepo, logger *slog.Logger) Provider {
	validated := WithValidation(base)
	logged := WithLogging(validated, eventRepo)
	return WithResilience(logged, res, logger)
}

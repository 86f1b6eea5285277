package llm

import (
	"fmt"
	"os"
	"time"
)

// Config holds generator provider configuration.
type Config struct {
	// Provider selects the backend: "anthropic", "openai", "gemini",
	// "openrouter" or "mock".
	Provider string `yaml:"provider"`

	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Resilience ResilienceConfig `yaml:"resilience"`

	MaxTokens int `yaml:"max_tokens"`
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"` // Default: "claude-haiku"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`    // Default: "gpt-4o-mini"
	BaseURL string `yaml:"base_url"` // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"` // Default: "gemini-flash"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"` // Default: "https://openrouter.ai/api/v1"
}

// ResilienceConfig bounds how hard a failing provider is pushed.
type ResilienceConfig struct {
	// ConsecutiveFailures trips the circuit breaker.
	ConsecutiveFailures int `yaml:"consecutive_failures"`
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `yaml:"open_timeout"`
	// MaxConcurrent caps in-flight requests across all learners.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// DefaultConfig returns a Config with sensible defaults. The mock provider
// is the default so the engine runs without credentials.
func DefaultConfig() Config {
	return Config{
		Provider:   "mock",
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-exp"},
		Resilience: ResilienceConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
			MaxConcurrent:       8,
		},
		MaxTokens: 512,
	}
}

// ApplyEnv overrides fields from JESECI_* environment variables. API keys
// are only ever read from the environment.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Provider, "JESECI_LLM_PROVIDER")

	set(&c.Anthropic.APIKey, "JESECI_ANTHROPIC_API_KEY")
	set(&c.Anthropic.Model, "JESECI_ANTHROPIC_MODEL")

	set(&c.OpenAI.APIKey, "JESECI_OPENAI_API_KEY")
	set(&c.OpenAI.Model, "JESECI_OPENAI_MODEL")
	set(&c.OpenAI.BaseURL, "JESECI_OPENAI_BASE_URL")

	set(&c.Gemini.APIKey, "JESECI_GEMINI_API_KEY")
	set(&c.Gemini.Model, "JESECI_GEMINI_MODEL")

	set(&c.OpenRouter.APIKey, "JESECI_OPENROUTER_API_KEY")
	set(&c.OpenRouter.Model, "JESECI_OPENROUTER_MODEL")
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("JESECI_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("JESECI_OPENAI_API_KEY is required for the openai provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("JESECI_GEMINI_API_KEY is required for the gemini provider")
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("JESECI_OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}

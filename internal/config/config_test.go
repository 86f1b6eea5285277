package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.UnlockThreshold != 0.6 || cfg.Engine.MasteredThreshold != 0.85 || cfg.Engine.BaseRate != 0.3 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
engine:
  unlock_threshold: 0.5
  scoring_timeout: 5s
store:
  driver: memory
notify:
  workers: 4
log:
  format: json
llm:
  provider: mock
  max_tokens: 256
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.UnlockThreshold != 0.5 {
		t.Errorf("unlock_threshold = %v, want 0.5", cfg.Engine.UnlockThreshold)
	}
	if cfg.Engine.ScoringTimeout != 5*time.Second {
		t.Errorf("scoring_timeout = %v, want 5s", cfg.Engine.ScoringTimeout)
	}
	if cfg.Engine.MasteredThreshold != 0.85 {
		t.Errorf("untouched mastered_threshold = %v, want 0.85", cfg.Engine.MasteredThreshold)
	}
	if cfg.Store.Driver != "memory" || cfg.Notify.Workers != 4 || cfg.Notify.Buffer != 256 {
		t.Errorf("store/notify = %+v / %+v", cfg.Store, cfg.Notify)
	}
	if cfg.Log.Format != "json" || cfg.LLM.MaxTokens != 256 {
		t.Errorf("log/llm = %+v / %d", cfg.Log, cfg.LLM.MaxTokens)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  driver: memory\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JESECI_STORE_DRIVER", "sqlite")
	t.Setenv("JESECI_TIER_COUNT", "5")
	t.Setenv("JESECI_IDLE_TIMEOUT", "1m")
	t.Setenv("JESECI_BASE_RATE", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Engine.TierCount != 5 {
		t.Errorf("tier_count = %d, want 5", cfg.Engine.TierCount)
	}
	if cfg.Engine.IdleTimeout != time.Minute {
		t.Errorf("idle_timeout = %v, want 1m", cfg.Engine.IdleTimeout)
	}
	if cfg.Engine.BaseRate != 0.3 {
		t.Errorf("invalid env should keep default, got %v", cfg.Engine.BaseRate)
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("engine: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unlock out of range", func(c *Config) { c.Engine.UnlockThreshold = 1.5 }, "unlock_threshold"},
		{"mastered below unlock", func(c *Config) { c.Engine.MasteredThreshold = 0.5 }, "mastered_threshold"},
		{"zero tiers", func(c *Config) { c.Engine.TierCount = 0 }, "tier_count"},
		{"zero scoring attempts", func(c *Config) { c.Engine.MaxScoringAttempts = 0 }, "max_scoring_attempts"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "store.dsn"},
		{"amqp without url", func(c *Config) { c.Notify.Sink = "amqp" }, "amqp_url"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"llm provider without key", func(c *Config) { c.LLM.Provider = "anthropic" }, "llm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	got, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/tmp/xdg", "jeseci", "config.yaml") {
		t.Errorf("DefaultPath = %q", got)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("JESECI_TEST_INT", "42")
	t.Setenv("JESECI_TEST_FLOAT", "2.5")
	t.Setenv("JESECI_TEST_DURATION", "90s")

	if got := getEnv("JESECI_TEST_UNSET", "d"); got != "d" {
		t.Errorf("getEnv = %q, want d", got)
	}
	if got := getEnvInt("JESECI_TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt = %d, want 42", got)
	}
	if got := getEnvFloat("JESECI_TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvFloat = %v, want 2.5", got)
	}
	if got := getEnvDuration("JESECI_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v, want 90s", got)
	}
}

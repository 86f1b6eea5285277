// Package config loads engine configuration from a YAML file layered under
// JESECI_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/jeseci/internal/llm"
)

// Config holds all configuration for the engine.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Assessor AssessorConfig `yaml:"assessor"`
	Store    StoreConfig    `yaml:"store"`
	Notify   NotifyConfig   `yaml:"notify"`
	LLM      llm.Config     `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// EngineConfig holds mastery and turn settings.
type EngineConfig struct {
	UnlockThreshold    float64       `yaml:"unlock_threshold"`
	MasteredThreshold  float64       `yaml:"mastered_threshold"`
	BaseRate           float64       `yaml:"base_rate"`
	AttemptDecay       float64       `yaml:"attempt_decay"`
	TierCount          int           `yaml:"tier_count"`
	ScoringTimeout     time.Duration `yaml:"scoring_timeout"`
	MaxScoringAttempts int           `yaml:"max_scoring_attempts"`
	MailboxSize        int           `yaml:"mailbox_size"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
}

// AssessorConfig holds generator retry settings.
type AssessorConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// StoreConfig selects the mutation log backend.
type StoreConfig struct {
	Driver        string `yaml:"driver"` // memory, sqlite, postgres
	DSN           string `yaml:"dsn"`
	SnapshotEvery int    `yaml:"snapshot_every"` // transactions between snapshots, 0 disables
	SnapshotKeep  int    `yaml:"snapshot_keep"`
}

// NotifyConfig selects where side effects are delivered.
type NotifyConfig struct {
	Sink     string `yaml:"sink"` // log, amqp
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
	Buffer   int    `yaml:"buffer"`
	Workers  int    `yaml:"workers"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CatalogConfig points at the YAML catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			UnlockThreshold:    0.6,
			MasteredThreshold:  0.85,
			BaseRate:           0.3,
			AttemptDecay:       0.1,
			TierCount:          3,
			ScoringTimeout:     30 * time.Second,
			MaxScoringAttempts: 3,
			MailboxSize:        16,
			IdleTimeout:        10 * time.Minute,
		},
		Assessor: AssessorConfig{
			MaxAttempts:    2,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			SnapshotEvery: 100,
			SnapshotKeep:  5,
		},
		Notify: NotifyConfig{
			Sink:     "log",
			Exchange: "jeseci.events",
			Buffer:   256,
			Workers:  2,
		},
		LLM: llm.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/jeseci/config.yaml, falling back to
// ~/.config/jeseci/config.yaml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "jeseci", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "jeseci", "config.yaml"), nil
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error; an empty path
// means defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Engine.UnlockThreshold = getEnvFloat("JESECI_UNLOCK_THRESHOLD", c.Engine.UnlockThreshold)
	c.Engine.MasteredThreshold = getEnvFloat("JESECI_MASTERED_THRESHOLD", c.Engine.MasteredThreshold)
	c.Engine.BaseRate = getEnvFloat("JESECI_BASE_RATE", c.Engine.BaseRate)
	c.Engine.TierCount = getEnvInt("JESECI_TIER_COUNT", c.Engine.TierCount)
	c.Engine.ScoringTimeout = getEnvDuration("JESECI_SCORING_TIMEOUT", c.Engine.ScoringTimeout)
	c.Engine.IdleTimeout = getEnvDuration("JESECI_IDLE_TIMEOUT", c.Engine.IdleTimeout)

	c.Store.Driver = getEnv("JESECI_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("JESECI_STORE_DSN", c.Store.DSN)

	c.Notify.Sink = getEnv("JESECI_NOTIFY_SINK", c.Notify.Sink)
	c.Notify.AMQPURL = getEnv("JESECI_AMQP_URL", c.Notify.AMQPURL)

	c.Log.Level = getEnv("JESECI_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("JESECI_LOG_FORMAT", c.Log.Format)

	c.Catalog.Path = getEnv("JESECI_CATALOG", c.Catalog.Path)

	c.LLM.ApplyEnv()
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	e := c.Engine
	if e.UnlockThreshold <= 0 || e.UnlockThreshold > 1 {
		errs = append(errs, fmt.Errorf("engine.unlock_threshold must be in (0,1], got %v", e.UnlockThreshold))
	}
	if e.MasteredThreshold < e.UnlockThreshold || e.MasteredThreshold > 1 {
		errs = append(errs, fmt.Errorf("engine.mastered_threshold must be in [unlock_threshold,1], got %v", e.MasteredThreshold))
	}
	if e.BaseRate <= 0 || e.BaseRate > 1 {
		errs = append(errs, fmt.Errorf("engine.base_rate must be in (0,1], got %v", e.BaseRate))
	}
	if e.AttemptDecay < 0 {
		errs = append(errs, fmt.Errorf("engine.attempt_decay must be >= 0, got %v", e.AttemptDecay))
	}
	if e.TierCount < 1 {
		errs = append(errs, fmt.Errorf("engine.tier_count must be >= 1, got %d", e.TierCount))
	}
	if e.MaxScoringAttempts < 1 {
		errs = append(errs, fmt.Errorf("engine.max_scoring_attempts must be >= 1, got %d", e.MaxScoringAttempts))
	}
	if e.MailboxSize < 1 {
		errs = append(errs, fmt.Errorf("engine.mailbox_size must be >= 1, got %d", e.MailboxSize))
	}
	if e.ScoringTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.scoring_timeout must be positive"))
	}
	if c.Assessor.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("assessor.max_attempts must be >= 1, got %d", c.Assessor.MaxAttempts))
	}

	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want memory, sqlite or postgres", c.Store.Driver))
	}
	if c.Store.SnapshotEvery < 0 || c.Store.SnapshotKeep < 0 {
		errs = append(errs, fmt.Errorf("store snapshot settings must be >= 0"))
	}

	switch c.Notify.Sink {
	case "log":
	case "amqp":
		if c.Notify.AMQPURL == "" {
			errs = append(errs, fmt.Errorf("notify.amqp_url is required for the amqp sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.sink %q: want log or amqp", c.Notify.Sink))
	}
	if c.Notify.Buffer < 1 || c.Notify.Workers < 1 {
		errs = append(errs, fmt.Errorf("notify.buffer and notify.workers must be >= 1"))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}

	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("llm: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

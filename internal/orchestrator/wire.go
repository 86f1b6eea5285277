package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/jeseci/internal/assessor"
	"github.com/abhisek/jeseci/internal/config"
	"github.com/abhisek/jeseci/internal/content"
	"github.com/abhisek/jeseci/internal/curator"
	"github.com/abhisek/jeseci/internal/gems"
	"github.com/abhisek/jeseci/internal/llm"
	"github.com/abhisek/jeseci/internal/mastery"
	"github.com/abhisek/jeseci/internal/notify"
	"github.com/abhisek/jeseci/internal/progress"
	"github.com/abhisek/jeseci/internal/skillgraph"
	"github.com/abhisek/jeseci/internal/store"
)

// System is an engine together with the components built for it.
type System struct {
	Engine     *Engine
	Catalog    *skillgraph.Catalog
	Nodes      *mastery.Service
	Backend    *store.Backend
	Provider   llm.Provider
	Dispatcher *notify.Dispatcher // nil when notifications are disabled
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	provider llm.Provider
	sink     notify.Sink
}

// WithProvider uses p instead of the configured LLM provider. It is wrapped
// with the standard decorators.
func WithProvider(p llm.Provider) BuildOption {
	return func(o *buildOptions) { o.provider = p }
}

// WithSink delivers side effects to s instead of the configured sink.
func WithSink(s notify.Sink) BuildOption {
	return func(o *buildOptions) { o.sink = s }
}

// Build wires a complete engine from configuration and a loaded catalog and
// restores mastery from the configured store.
func Build(ctx context.Context, cfg *config.Config, cat *content.Catalog, logger *slog.Logger, opts ...BuildOption) (*System, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := store.OpenBackend(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var provider llm.Provider
	if o.provider != nil {
		provider = llm.Wrap(o.provider, cfg.LLM.Resilience, backend.Events, logger)
	} else {
		provider, err = llm.NewProvider(ctx, cfg.LLM, backend.Events, logger)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	sink := o.sink
	var amqpSink *notify.AMQPSink
	if sink == nil {
		switch cfg.Notify.Sink {
		case "", "log":
			sink = notify.LogSink{Logger: logger.With("component", "notify")}
		case "amqp":
			amqpSink, err = notify.NewAMQPSink(cfg.Notify.AMQPURL, cfg.Notify.Exchange, logger)
			if err != nil {
				backend.Close()
				return nil, err
			}
			sink = amqpSink
		case "none":
		default:
			backend.Close()
			return nil, fmt.Errorf("unknown notify sink %q", cfg.Notify.Sink)
		}
	}
	var dispatcher *notify.Dispatcher
	if sink != nil {
		dispatcher = notify.NewDispatcher(sink, notify.DispatcherConfig{
			Buffer:  cfg.Notify.Buffer,
			Workers: cfg.Notify.Workers,
		}, logger)
	}

	ec := cfg.Engine
	graphs := skillgraph.NewCatalog(cat.Graph)
	nodes := mastery.NewService(graphs, mastery.WithThresholds(mastery.Thresholds{
		Unlock:   ec.UnlockThreshold,
		Mastered: ec.MasteredThreshold,
	}))
	rates := progress.Config{BaseRate: ec.BaseRate, AttemptDecay: ec.AttemptDecay}
	motivator := gems.NewMotivator(graphs, gems.DefaultCorrectThreshold)
	scorer := assessor.New(cat.Index, assessor.NewLLMGenerator(provider, assessor.DefaultLLMGeneratorConfig()), assessor.RetryConfig{
		MaxAttempts:    cfg.Assessor.MaxAttempts,
		InitialBackoff: cfg.Assessor.InitialBackoff,
		MaxBackoff:     cfg.Assessor.MaxBackoff,
	})

	deps := Deps{
		Graphs:    graphs,
		Nodes:     nodes,
		Log:       backend.Log,
		Snapshots: backend.Snapshots,
		Curator:   curator.New(nodes, cat.Index, ec.TierCount),
		Assessor:  scorer,
		Updater:   progress.New(backend.Log, nodes, graphs, rates),
		Motivator: motivator,
		Tracker:   gems.NewTracker(motivator),
		Logger:    logger,
	}
	if dispatcher != nil {
		deps.Effects = dispatcher
	}

	engine, err := New(Config{
		ScoringTimeout:     ec.ScoringTimeout,
		MaxScoringAttempts: ec.MaxScoringAttempts,
		MailboxSize:        ec.MailboxSize,
		IdleTimeout:        ec.IdleTimeout,
		SnapshotEvery:      cfg.Store.SnapshotEvery,
		SnapshotKeep:       cfg.Store.SnapshotKeep,
	}, deps)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Closers run in reverse: dispatcher drains before the sink and store go.
	engine.OnClose(backend.Close)
	if amqpSink != nil {
		engine.OnClose(amqpSink.Close)
	}
	if dispatcher != nil {
		engine.OnClose(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return dispatcher.Close(ctx)
		})
	}

	if _, err := engine.Restore(ctx); err != nil {
		engine.Close(ctx)
		return nil, err
	}

	return &System{
		Engine:     engine,
		Catalog:    graphs,
		Nodes:      nodes,
		Backend:    backend,
		Provider:   provider,
		Dispatcher: dispatcher,
	}, nil
}

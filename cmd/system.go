package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/jeseci/internal/config"
	"github.com/abhisek/jeseci/internal/llm"
	"github.com/abhisek/jeseci/internal/orchestrator"
)

// openSystem builds an engine from cfg and restores it from the store.
func openSystem(cmd *cobra.Command, cfg *config.Config, opts ...orchestrator.BuildOption) (*orchestrator.System, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	return orchestrator.Build(cmd.Context(), cfg, cat, newLogger(cfg), opts...)
}

// openReadOnly builds a system for inspection: no generator calls and no
// notifications.
func openReadOnly(cmd *cobra.Command, cfg *config.Config) (*orchestrator.System, error) {
	cfg.Notify.Sink = "none"
	cfg.Store.SnapshotEvery = 0
	return openSystem(cmd, cfg, orchestrator.WithProvider(llm.NewMockProvider()))
}

func closeSystem(sys *orchestrator.System) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sys.Engine.Close(ctx)
}

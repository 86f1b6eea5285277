package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/jeseci/internal/report"
	"github.com/abhisek/jeseci/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect answer-evaluation requests",
}

var llmUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show aggregated generator requests and token usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		backend, err := store.OpenBackend(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer backend.Close()

		if backend.Events == nil {
			return fmt.Errorf("the %s store does not record generator requests", cfg.Store.Driver)
		}
		u, err := backend.Events.LLMUsage(cmd.Context())
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		fmt.Println(report.Usage(u))
		return nil
	},
}

func init() {
	llmCmd.AddCommand(llmUsageCmd)
}

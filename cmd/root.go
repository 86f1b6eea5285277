package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/jeseci/internal/config"
	"github.com/abhisek/jeseci/internal/content"
	"github.com/abhisek/jeseci/internal/ctxlog"
	"github.com/abhisek/jeseci/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "jeseci",
	Short:         "Adaptive learning orchestration engine",
	Long:          "jeseci selects content, scores answers and tracks concept mastery for programming learners.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/jeseci/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides JESECI_DB env var)")
	rootCmd.PersistentFlags().String("catalog", "", "Path to catalog YAML (default: built-in sample catalog)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(conceptsCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and applies command-line overrides.
// Flags win over environment, which wins over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Driver = store.DriverSQLite
		cfg.Store.DSN = p
	}
	if p, _ := cmd.Flags().GetString("catalog"); p != "" {
		cfg.Catalog.Path = p
	}
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		cfg.Log.Level = l
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the default.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// loadCatalog loads the configured catalog, falling back to the built-in
// sample.
func loadCatalog(cfg *config.Config) (*content.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return content.Parse(sampleCatalog)
	}
	return content.LoadFile(cfg.Catalog.Path)
}

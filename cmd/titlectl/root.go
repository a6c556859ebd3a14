package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eternisai/session-titler/internal/config"
	"github.com/eternisai/session-titler/internal/logger"
)

// Shared CLI flags
var (
	modelOverride string
	verbose       bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "titlectl",
		Short: "Inspect and run session title generation",
		Long: `titlectl uses the same configuration as the server (environment, .env and
CONFIG_FILE) to show which model would title a session and to title sessions
on demand.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&modelOverride, "model", "", "override the configured provider/model")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(selectCmd())
	cmd.AddCommand(providersCmd())
	cmd.AddCommand(generateCmd())

	return cmd
}

// loadConfig loads the application config and applies the CLI overrides.
func loadConfig() (*config.Config, *logger.Logger) {
	config.LoadConfig()
	cfg := config.AppConfig

	if modelOverride != "" {
		cfg.TitleGeneration.Model = modelOverride
	}

	logConfig := logger.FromConfig("warn", cfg.LogFormat)
	if verbose {
		logConfig.Level = slog.LevelDebug
	}
	logConfig.Output = os.Stderr

	return cfg, logger.New(logConfig)
}

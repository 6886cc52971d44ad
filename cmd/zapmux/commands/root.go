// Package commands implements the zapmux CLI commands using cobra.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/zapmux/pkg/zapmux/config"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zapmux",
		Short: "Zapmux - multi-session WhatsApp bot manager",
		Long: `Zapmux manages multiple concurrent WhatsApp bot sessions, each with
its own credentials and cache, behind a single daemon.

Examples:
  zapmux serve
  zapmux send text --session support 44999999999 "Hello!"
  zapmux sessions list
  zapmux sessions delete support`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSendCmd(),
		newSessionsCmd(),
		newCompletionCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// loadConfig resolves the config path from flags and loads it. Without a
// --config flag it tries zapmux.yaml in the working directory, falling back
// to defaults when no file exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	if _, err := os.Stat("zapmux.yaml"); err == nil {
		return config.LoadFromFile("zapmux.yaml")
	}
	return config.DefaultConfig(), nil
}

// newLogger builds the process logger from config and the --verbose flag.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelInfo
	switch {
	case verbose, cfg.Logging.Level == "debug":
		level = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		level = slog.LevelWarn
	case cfg.Logging.Level == "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

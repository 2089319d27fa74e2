// Package commands implements the boat CLI commands using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jholhewres/boat/pkg/boat/bot"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "boat",
		Short: "boat - chat-driven party bot",
		Long: `boat listens on Discord, WhatsApp or a local console and runs
prefixed chat commands such as !playlist, !ready and !skin.

Examples:
  boat setup
  boat serve
  boat serve --channel console
  boat commands
  boat audit -n 50`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSetupCmd(),
		newConfigCmd(),
		newAuthCmd(),
		newCommandsCmd(),
		newJobsCmd(),
		newAuditCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")

	return rootCmd
}

// resolveConfig loads the --config file, a discovered file, or the
// defaults, in that order. It returns the path used ("" for defaults).
func resolveConfig(cmd *cobra.Command) (*bot.Config, string, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = bot.FindConfigFile()
	}

	cfg, err := bot.LoadConfigFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// configTarget is where config files are written: --config or boat.yaml.
func configTarget(cmd *cobra.Command) string {
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		return path
	}
	return "boat.yaml"
}

// newLogger builds the process logger on stderr, so console replies on
// stdout stay readable.
func newLogger(cmd *cobra.Command, cfg *bot.Config) (*slog.Logger, error) {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger, err := bot.NewLogger(cfg.Logging, verbose, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jholhewres/boat/pkg/boat/bot"
)

// newServeCmd creates the `boat serve` command that runs the bot.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect the channels and answer commands",
		Long: `Start boat, connecting the enabled channels and dispatching
every prefixed message to its command until interrupted.

Examples:
  boat serve
  boat serve --channel discord,console
  boat serve --config ./settings.toml`,
		RunE: runServe,
	}

	cmd.Flags().StringSlice("channel", nil, "channels to enable (console, discord, whatsapp)")
	cmd.Flags().BoolP("quiet", "q", false, "do not print the banner")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, path, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if chans, _ := cmd.Flags().GetStringSlice("channel"); len(chans) > 0 {
		cfg.Channels.Enabled = chans
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	if path != "" {
		logger.Info("config loaded", "path", path)
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		fmt.Fprint(cmd.OutOrStdout(), bot.Banner(cmd.Root().Version, cfg))
	}

	if cfg.ChannelEnabled(bot.ChannelDiscord) {
		if bot.ResolveDiscordToken(cfg, logger) == "" {
			return fmt.Errorf("no Discord token: run `boat auth discord` or set %sDISCORD_TOKEN", bot.EnvPrefix)
		}
	}

	b, err := bot.New(cfg, bot.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return b.Run(ctx)
}

package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jholhewres/boat/pkg/boat/bot"
)

// newSetupCmd creates the `boat setup` interactive wizard.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Asks for the command prefix, channels, owners and the Discord
token, then writes boat.yaml. The token goes to the OS keyring, never to
the file.

Examples:
  boat setup
  boat setup --config ./bots/party.yaml`,
		RunE: runSetup,
	}
}

func runSetup(cmd *cobra.Command, _ []string) error {
	target := configTarget(cmd)
	cfg := bot.DefaultConfig()

	if _, err := os.Stat(target); err == nil {
		overwrite := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite it?", target)).
			Value(&overwrite).
			Run()
		if err != nil {
			return setupAborted(err)
		}
		if !overwrite {
			return nil
		}
	}

	var (
		owners  string
		invites string
		token   string
	)
	cfg.Owner.Enabled = true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Command prefix").
				Description("Typed before every command, e.g. !ping").
				Value(&cfg.Prefix).
				Validate(func(s string) error {
					if s == "" || strings.ContainsAny(s, " \t") {
						return errors.New("prefix must be non-empty and contain no spaces")
					}
					return nil
				}),
			huh.NewMultiSelect[string]().
				Title("Channels").
				Options(huh.NewOptions(bot.ChannelConsole, bot.ChannelDiscord, bot.ChannelWhatsApp)...).
				Value(&cfg.Channels.Enabled).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return errors.New("pick at least one channel")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Owner mode").
				Description("Only owners may run commands").
				Value(&cfg.Owner.Enabled),
			huh.NewInput().
				Title("Owners").
				Description("Display names or ids, separated by commas").
				Value(&owners),
			huh.NewInput().
				Title("Accept party invites from").
				Description("Names or ids, separated by commas. Empty declines all").
				Value(&invites),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				Description("Stored in the OS keyring. Leave empty to skip").
				EchoMode(huh.EchoModePassword).
				Value(&token),
		).WithHideFunc(func() bool {
			return !cfg.ChannelEnabled(bot.ChannelDiscord)
		}),
	)
	if err := form.Run(); err != nil {
		return setupAborted(err)
	}

	cfg.Owner.Owners = splitList(owners)
	cfg.Party.AcceptInvitesFrom = splitList(invites)
	if cfg.Owner.Enabled && len(cfg.Owner.Owners) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: owner mode is on with no owners, every command will be ignored")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if token = strings.TrimSpace(token); token != "" {
		if err := bot.StoreDiscordToken(token); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; set %sDISCORD_TOKEN instead\n", err, bot.EnvPrefix)
		}
	}

	if err := bot.SaveConfigToFile(cfg, target); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s. Start the bot with `boat serve`.\n", target)
	return nil
}

func setupAborted(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("setup cancelled")
	}
	return err
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

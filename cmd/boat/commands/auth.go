package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/boat/pkg/boat/bot"
)

// newAuthCmd creates the `boat auth` command group.
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage channel credentials",
	}
	cmd.AddCommand(newAuthDiscordCmd())
	return cmd
}

func newAuthDiscordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discord",
		Short: "Store the Discord bot token in the OS keyring",
		Long: `Reads the Discord bot token without echo and stores it in the
OS keyring (Secret Service, Keychain or Credential Manager).

Examples:
  boat auth discord
  boat auth discord --delete`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if del, _ := cmd.Flags().GetBool("delete"); del {
				if err := bot.DeleteDiscordToken(); err != nil {
					return fmt.Errorf("removing token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Discord token removed from the keyring.")
				return nil
			}

			token, err := readSecret(cmd, "Discord bot token: ")
			if err != nil {
				return err
			}
			if token == "" {
				return errors.New("empty token")
			}
			if err := bot.StoreDiscordToken(token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Discord token stored in the OS keyring.")
			return nil
		},
	}
	cmd.Flags().Bool("delete", false, "remove the stored token")
	return cmd
}

// readSecret reads one line without echo when stdin is a terminal.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
